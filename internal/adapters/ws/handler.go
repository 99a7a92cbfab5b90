// Package ws adapts gorilla/websocket connections to the hub: it
// verifies the handshake credential, runs the read/write pumps and
// dispatches the event protocol.
package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/auth"
	"github.com/okulov/parley/internal/config"
	"github.com/okulov/parley/internal/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	Hub      *hub.Hub
	Verifier *auth.Verifier
	Cfg      *config.Config
}

func NewHandler(h *hub.Hub, verifier *auth.Verifier, cfg *config.Config) *Handler {
	return &Handler{Hub: h, Verifier: verifier, Cfg: cfg}
}

// Handle authorizes and upgrades a websocket connection. Verification
// failure rejects the connection before any event handler exists.
func (h *Handler) Handle(c *gin.Context) {
	id, err := h.Verifier.Verify(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	log.Info().Str("module", "ws").Int64("user_id", id.UserID).
		Str("username", id.Username).Msg("user connected")

	conn := newWSConn(ws, h.Cfg.SendBuffer)
	sess := h.Hub.Connect(id, conn)

	go conn.writePump(h.Cfg.PingPeriod)
	h.readPump(c, sess, conn)
}

func (h *Handler) readPump(c *gin.Context, sess *hub.Session, conn *wsConn) {
	defer func() {
		log.Info().Str("module", "ws").Int64("user_id", sess.UserID).Msg("user disconnected")
		h.Hub.Disconnect(sess)
		conn.Close()
	}()

	pongWait := h.Cfg.PingPeriod * 10 / 9
	conn.conn.SetReadLimit(h.Cfg.ReadLimit)
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("module", "ws").Int64("user_id", sess.UserID).Msg("read error")
			}
			return
		}
		h.dispatch(c, sess, conn, data)
	}
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
