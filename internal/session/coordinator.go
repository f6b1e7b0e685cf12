// Package session runs the per-connection state machine: authenticate,
// register presence, dispatch inbound events, tear down on close.
package session

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/chatter/internal/broadcast"
	"github.com/nfrund/chatter/internal/identity"
	"github.com/nfrund/chatter/internal/metrics"
	"github.com/nfrund/chatter/internal/protocol"
	"github.com/nfrund/chatter/internal/store"
	"golang.org/x/time/rate"
)

// Presence is the part of the presence registry a session mutates.
type Presence interface {
	Register(ctx context.Context, connID, identity string) bool
	Unregister(ctx context.Context, connID string) bool
}

// Rooms is the part of the room registry a session mutates.
type Rooms interface {
	Join(ctx context.Context, identity, room string) ([]store.Message, error)
	Leave(identity string) bool
}

// Router delivers outbound events.
type Router interface {
	Attach(sink broadcast.Sink)
	Detach(connID string) bool
	Deliver(ev broadcast.Event) int
}

// History answers getRoomHistory.
type History interface {
	RoomHistory(ctx context.Context, room string) ([]store.Message, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Oracle   identity.Oracle
	Presence Presence
	Rooms    Rooms
	Router   Router
	Store    store.Store
	History  History
}

// Inbound rate limit applied when no WithRateLimit option is given.
const (
	DefaultEventsPerSecond = 20
	DefaultEventBurst      = 40
)

// Coordinator creates sessions over a shared set of registries.
type Coordinator struct {
	deps     Deps
	validate *validator.Validate
	limit    rate.Limit
	burst    int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRateLimit sets the per-connection inbound budget. A non-positive rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Coordinator) {
		if perSecond <= 0 {
			c.limit = rate.Inf
			return
		}
		c.limit = rate.Limit(perSecond)
		c.burst = max(burst, 1)
	}
}

// WithMetrics records inbound event outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger replaces the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator returns a coordinator over deps.
func NewCoordinator(deps Deps, opts ...Option) *Coordinator {
	c := &Coordinator{
		deps:     deps,
		validate: protocol.NewValidator(),
		limit:    rate.Limit(DefaultEventsPerSecond),
		burst:    DefaultEventBurst,
		logger:   slog.Default().With("service", "session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin starts a session for a freshly accepted connection. The session is
// in StateConnecting until Authenticate succeeds.
func (c *Coordinator) Begin(sink broadcast.Sink) *Session {
	return &Session{
		c:       c,
		sink:    sink,
		state:   StateConnecting,
		limiter: rate.NewLimiter(c.limit, c.burst),
		logger:  c.logger.With("conn", sink.ID()),
	}
}
