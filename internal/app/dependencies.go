package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nfrund/chatter/internal/broadcast"
	"github.com/nfrund/chatter/internal/chat"
	"github.com/nfrund/chatter/internal/config"
	"github.com/nfrund/chatter/internal/identity"
	"github.com/nfrund/chatter/internal/metrics"
	"github.com/nfrund/chatter/internal/presence"
	"github.com/nfrund/chatter/internal/pubsub"
	"github.com/nfrund/chatter/internal/registry"
	"github.com/nfrund/chatter/internal/room"
	"github.com/nfrund/chatter/internal/session"
	"github.com/nfrund/chatter/internal/store"
	"github.com/redis/go-redis/v9"
)

// Dependencies holds the core services that are required by the application's modules.
// This struct is passed from the main application entrypoint to wire up the modules.
type Dependencies struct {
	Config      *config.Config
	PubSub      pubsub.PubSub
	Store       store.Store
	Oracle      identity.Oracle
	Metrics     *metrics.Metrics
	Presence    *presence.Registry
	Rooms       *room.Registry
	Router      *broadcast.Router
	Chat        *chat.Service
	Coordinator *session.Coordinator
	// Mirror is nil unless REDIS_URL is set.
	Mirror *presence.RedisMirror

	closers []func(context.Context) error
}

// Build creates every core service from cfg.
func Build(ctx context.Context, cfg *config.Config, version string) (*Dependencies, error) {
	d := &Dependencies{Config: cfg}

	oracle, err := identity.NewJWTOracle(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	d.Oracle = oracle

	if cfg.MetricsEnabled {
		d.Metrics = metrics.New("chatter")
	}

	tracer, cleanupTracing, err := pubsub.SetupOTel(ctx, pubsub.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.TracingServiceName,
		ZipkinURL:   cfg.TracingZipkinURL,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	d.onClose(func(context.Context) error { cleanupTracing(); return nil })

	var bus *pubsub.WatermillBridge
	if cfg.TracingEnabled {
		bus = pubsub.NewWatermillBridgeWithTracer(tracer)
	} else {
		bus = pubsub.NewWatermillBridge()
	}
	d.PubSub = bus
	d.onClose(func(context.Context) error { return bus.Close() })

	st, err := store.Open(ctx, store.Config{
		Driver: cfg.StoreDriver,
		Surreal: store.SurrealConfig{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNS,
			Database:  cfg.SurrealDB,
			User:      cfg.SurrealUser,
			Pass:      cfg.SurrealPass,
		},
		BadgerPath: cfg.BadgerPath,
		SQLDSN:     cfg.SQLDSN,
	}, slog.Default().With("service", "store"))
	if err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	d.onClose(func(context.Context) error { return st.Close() })
	if d.Metrics != nil {
		st = store.Observe(st, d.Metrics)
	}
	d.Store = st

	d.Presence = presence.NewRegistry(bus)
	d.Rooms = room.NewRegistry(d.Presence, st, room.WithBacklogLimit(cfg.RoomBacklogLimit))
	d.Router = broadcast.NewRouter(d.Presence, d.Rooms, broadcast.WithMetrics(d.Metrics))
	d.Chat = chat.NewService(st, bus, chat.WithHistoryLimit(cfg.HistoryLimit))
	d.Coordinator = session.NewCoordinator(session.Deps{
		Oracle:   oracle,
		Presence: d.Presence,
		Rooms:    d.Rooms,
		Router:   d.Router,
		Store:    st,
		History:  d.Chat,
	},
		session.WithRateLimit(cfg.EventsPerSecond, cfg.EventBurst),
		session.WithMetrics(d.Metrics),
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = d.Close(ctx)
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		d.Mirror = presence.NewRedisMirror(client)
		d.onClose(func(context.Context) error { return client.Close() })
	}

	return d, nil
}

// Register publishes the core services in reg for modules to look up.
func (d *Dependencies) Register(reg *registry.Registry) {
	registry.Set(reg, registry.PubSubKey, d.PubSub)
	registry.Set(reg, registry.OracleKey, d.Oracle)
	registry.Set(reg, registry.MetricsKey, d.Metrics)
	registry.Set(reg, registry.PresenceKey, d.Presence)
	registry.Set(reg, registry.MirrorKey, d.Mirror)
	registry.Set(reg, registry.RouterKey, d.Router)
	registry.Set(reg, registry.CoordinatorKey, d.Coordinator)
	registry.Set(reg, registry.ChatServiceKey, d.Chat)
}

// Close releases resources in reverse creation order.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func (d *Dependencies) onClose(fn func(context.Context) error) {
	d.closers = append(d.closers, fn)
}
