// Package http wires the REST surface and the space connection endpoint.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/spacesapp/spaces/internal/adapters/signal"
	"github.com/spacesapp/spaces/internal/app"
	"github.com/spacesapp/spaces/internal/auth"
	"github.com/spacesapp/spaces/internal/config"
)

func SetupRouter(cfg *config.Config, reg *app.Registry, tokens *auth.Tokens) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := NewHandlers(reg, tokens)
	ctl := signal.NewController(reg, tokens, cfg)

	api := r.Group("/api")

	spaces := api.Group("/spaces")
	spaces.GET("/ws/:id", ctl.HandleSpace)

	authed := spaces.Group("", BearerAuth(tokens))
	authed.POST("/create", h.CreateSpace)
	authed.GET("/active", h.ListActive)
	authed.GET("/:id", h.GetSpace)
	authed.POST("/join/:id", h.JoinSpace)
	authed.POST("/end/:id", h.EndSpace)

	if cfg.Mode == "debug" {
		// Dev login: trades an identity for a signed token without an IdP.
		api.POST("/auth/token", h.DebugToken)
	}

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
