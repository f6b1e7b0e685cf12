// Package websocket carries chat sessions over websocket connections.
package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/broadcast"
	"github.com/nfrund/chatter/internal/middleware"
	"github.com/nfrund/chatter/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	maxFrameSize = 64 << 10
)

// Bridge upgrades HTTP requests into chat sessions.
type Bridge struct {
	coord          *session.Coordinator
	queueSize      int
	originPatterns []string
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithQueueSize sets the per-connection outbound buffer.
func WithQueueSize(n int) Option {
	return func(b *Bridge) { b.queueSize = n }
}

// WithOriginPatterns restricts cross-origin upgrades. Without patterns any
// origin is accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(b *Bridge) { b.originPatterns = patterns }
}

// WithLogger replaces the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// NewBridge returns a bridge that starts sessions on coord.
func NewBridge(coord *session.Coordinator, opts ...Option) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		coord:     coord,
		queueSize: broadcast.DefaultQueueSize,
		logger:    slog.Default().With("service", "websocket"),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handler authenticates the request and, on success, upgrades it and runs
// the session until the connection ends. Bad credentials get a 401 before
// any upgrade.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		queue := broadcast.NewQueue(uuid.NewString(), b.queueSize)
		sess := b.coord.Begin(queue)
		if err := sess.Authenticate(c.Request().Context(), middleware.Credential(c)); err != nil {
			queue.Close()
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: len(b.originPatterns) == 0,
			OriginPatterns:     b.originPatterns,
		})
		if err != nil {
			sess.Close()
			queue.Close()
			b.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return nil
		}
		conn.SetReadLimit(maxFrameSize)

		b.wg.Add(1)
		defer b.wg.Done()
		newClient(conn, queue, sess, b.logger).run(b.ctx)
		return nil
	}
}

// Shutdown closes every live connection and waits for their sessions to end.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.cancel()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
