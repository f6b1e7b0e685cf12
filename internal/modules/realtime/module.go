// Package realtime mounts the websocket endpoint and feeds bus events to
// live connections.
package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/broadcast"
	"github.com/nfrund/chatter/internal/module"
	"github.com/nfrund/chatter/internal/registry"
	"github.com/nfrund/chatter/internal/websocket"
)

// RealtimeModule implements the module.Module interface for /ws.
type RealtimeModule struct {
	module.BaseModule
	queueSize      int
	originPatterns []string
	bridge         *websocket.Bridge
}

// Dependencies holds the settings the RealtimeModule needs beyond the registry.
type Dependencies struct {
	QueueSize      int
	OriginPatterns []string
}

func New(deps Dependencies) *RealtimeModule {
	return &RealtimeModule{
		queueSize:      deps.QueueSize,
		originPatterns: deps.OriginPatterns,
	}
}

func (m *RealtimeModule) Name() string {
	return "realtime"
}

// Boot starts the relay and the optional Redis mirror, then mounts /ws.
// A mirror that cannot reach Redis is logged and skipped.
func (m *RealtimeModule) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	coordinator := registry.MustGet(reg, registry.CoordinatorKey)
	router := registry.MustGet(reg, registry.RouterKey)
	bus := registry.MustGet(reg, registry.PubSubKey)

	relay := broadcast.NewRelay(router, nil)
	if err := relay.Start(ctx, bus); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}

	if mirror, ok := registry.Get(reg, registry.MirrorKey); ok && mirror != nil {
		if err := mirror.Start(ctx, bus); err != nil {
			slog.Error("Presence mirror disabled", "error", err)
		} else {
			slog.Info("Presence mirror started")
		}
	}

	m.bridge = websocket.NewBridge(coordinator,
		websocket.WithQueueSize(m.queueSize),
		websocket.WithOriginPatterns(m.originPatterns...),
	)
	g.GET("/ws", m.bridge.Handler())
	slog.Info("Booting RealtimeModule: websocket endpoint mounted at /ws")
	return nil
}

// Shutdown closes every live connection.
func (m *RealtimeModule) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down RealtimeModule...")
	if m.bridge == nil {
		return nil
	}
	return m.bridge.Shutdown(ctx)
}
