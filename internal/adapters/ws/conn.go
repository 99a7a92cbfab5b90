package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/hub"
)

const writeWait = 5 * time.Second

// envelope frames every event on the wire in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, sendBuffer int) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// Push marshals an event envelope and hands it to the write pump.
// Non-blocking: a full buffer or a closed connection drops the event.
func (c *wsConn) Push(event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", event).Msg("marshal event")
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Data: body})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

func (c *wsConn) trySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return hub.ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return hub.ErrBackpressure
	}
}

// Kick tells the client why it is being disconnected, then closes.
// Used when a newer connection for the same user evicts this one.
func (c *wsConn) Kick(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.Close()
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsConn) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
