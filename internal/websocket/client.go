package websocket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/nfrund/chatter/internal/broadcast"
	"github.com/nfrund/chatter/internal/session"
)

// client pumps frames between one websocket and its session.
type client struct {
	conn    *websocket.Conn
	queue   *broadcast.Queue
	session *session.Session
	logger  *slog.Logger
}

func newClient(conn *websocket.Conn, queue *broadcast.Queue, sess *session.Session, logger *slog.Logger) *client {
	return &client{
		conn:    conn,
		queue:   queue,
		session: sess,
		logger:  logger.With("conn", sess.ID(), "identity", sess.Identity()),
	}
}

// run blocks until the peer goes away or ctx is cancelled, then tears the
// session down.
func (c *client) run(ctx context.Context) {
	writeCtx, cancel := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(writeCtx)
	}()

	// the writer closes the socket on shutdown, which ends the read loop
	c.readPump(context.WithoutCancel(ctx))
	cancel()

	c.session.Close()
	c.queue.Close()
	<-writerDone
	c.logger.Info("WebSocket connection finished")
}

func (c *client) readPump(ctx context.Context) {
	for {
		typ, frame, err := c.conn.Read(ctx)
		if err != nil {
			switch status := websocket.CloseStatus(err); {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				c.logger.Info("WebSocket closed normally by client")
			case errors.Is(err, context.Canceled) || errors.Is(err, io.EOF):
			default:
				c.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			c.logger.Debug("ignoring binary frame")
			continue
		}
		c.session.Handle(ctx, frame)
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.queue.Frames():
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			if err := c.write(ctx, frame); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Info("WebSocket ping failed", "error", err)
				c.conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}

func (c *client) write(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, frame)
}
