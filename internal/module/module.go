// Package module defines the lifecycle every feature of the server follows.
package module

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/registry"
)

// Module is a feature mounted by the server: the chat REST API and the
// realtime websocket endpoint are both modules.
type Module interface {
	Name() string

	// Register publishes the module's services in the registry. All modules
	// register before any module boots.
	Register(reg *registry.Registry) error

	// Boot mounts routes under router and starts background work bound to ctx.
	Boot(ctx context.Context, router *echo.Group, reg *registry.Registry) error

	// Shutdown runs in reverse boot order when the server stops.
	Shutdown(ctx context.Context) error
}

// BaseModule provides no-op Register, Boot and Shutdown for embedding.
type BaseModule struct{}

func (m *BaseModule) Register(reg *registry.Registry) error { return nil }

func (m *BaseModule) Boot(ctx context.Context, router *echo.Group, reg *registry.Registry) error {
	return nil
}

func (m *BaseModule) Shutdown(ctx context.Context) error { return nil }
