// Package http wires the REST surface and the websocket endpoint into a
// gin engine: account handling, message history, uploads and static files.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/adapters/ws"
	"github.com/okulov/parley/internal/auth"
	"github.com/okulov/parley/internal/config"
	"github.com/okulov/parley/internal/hub"
	"github.com/okulov/parley/internal/store"
)

type API struct {
	Cfg      *config.Config
	Store    *store.Store
	Verifier *auth.Verifier
	Hub      *hub.Hub
}

func SetupRouter(cfg *config.Config, api *API, wsHandler *ws.Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.Static("/uploads", cfg.UploadDir)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	apiGroup := r.Group("/api")
	apiGroup.POST("/register", api.Register)
	apiGroup.POST("/login", api.Login)

	authed := apiGroup.Group("", api.AuthRequired())
	authed.GET("/profile", api.Profile)
	authed.GET("/users/online", api.OnlineUsers)
	authed.GET("/messages/:userId", api.Messages)
	authed.GET("/calls", api.CallHistory)
	authed.POST("/upload", api.Upload)

	r.GET("/ws", wsHandler.Handle)

	return r
}

// AuthRequired verifies the bearer token and stashes the identity for
// downstream handlers.
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Verifier.Verify(bearer(c))
		if err != nil {
			status := http.StatusUnauthorized
			if err == auth.ErrInvalidToken {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.Set("identity", id)
		c.Next()
	}
}

func identityFrom(c *gin.Context) auth.Identity {
	id, _ := c.MustGet("identity").(auth.Identity)
	return id
}

func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
