// Package chat mounts the REST view of the message history.
package chat

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/handlers"
	"github.com/nfrund/chatter/internal/middleware"
	"github.com/nfrund/chatter/internal/module"
	"github.com/nfrund/chatter/internal/registry"
)

// ChatModule implements the module.Module interface for the history API.
type ChatModule struct {
	module.BaseModule
	httpRateLimit float64
}

// Dependencies holds the settings the ChatModule needs beyond the registry.
type Dependencies struct {
	HTTPRateLimit float64
}

// New creates a new instance of the ChatModule.
func New(deps Dependencies) *ChatModule {
	return &ChatModule{
		httpRateLimit: deps.HTTPRateLimit,
	}
}

func (m *ChatModule) Name() string {
	return "chat"
}

// Boot mounts /api. Everything but the health check requires a bearer token;
// edits and deletes are rate limited per client IP.
func (m *ChatModule) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	slog.Info("Booting ChatModule: Setting up routes...")
	oracle := registry.MustGet(reg, registry.OracleKey)
	service := registry.MustGet(reg, registry.ChatServiceKey)
	presence := registry.MustGet(reg, registry.PresenceKey)

	msgs := handlers.NewMessageHandler(service)
	users := handlers.NewUserHandler(presence)

	api := g.Group("/api")
	api.GET("/health", handlers.Health)

	authed := api.Group("", middleware.Auth(oracle))
	authed.GET("/messages", msgs.List)
	authed.GET("/rooms/:room/messages", msgs.Room)
	authed.GET("/private-messages/:from/:to", msgs.Private)
	authed.GET("/user/profile", users.Profile)
	authed.GET("/online", users.Online)

	if m.httpRateLimit > 0 {
		limited := authed.Group("", middleware.RateLimiter(m.httpRateLimit))
		limited.PUT("/messages/:id", msgs.Edit)
		limited.DELETE("/messages/:id", msgs.Delete)
	} else {
		authed.PUT("/messages/:id", msgs.Edit)
		authed.DELETE("/messages/:id", msgs.Delete)
	}
	return nil
}
