// Package broadcast fans outbound events out to live connections.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/nfrund/chatter/internal/metrics"
	"github.com/nfrund/chatter/internal/protocol"
	"github.com/nfrund/chatter/internal/store"
	"github.com/samber/lo"
)

// Sink is the outbound side of one connection. Send must not block; it
// reports false when the frame was dropped.
type Sink interface {
	ID() string
	Send(frame []byte) bool
}

// Kind selects the target set of an Event.
type Kind int

const (
	// KindAll reaches every attached connection.
	KindAll Kind = iota
	// KindRoom reaches the live members of Event.Room.
	KindRoom
	// KindDirect reaches the origin and the connection of Event.To.
	KindDirect
	// KindOthers reaches every connection except the origin.
	KindOthers
	// KindReply reaches the origin only.
	KindReply
)

// Event is one outbound frame and its audience.
type Event struct {
	Kind   Kind
	Name   string
	Data   any
	Ack    *uint64
	Origin string // connection id
	Room   string
	To     string // identity
}

// Resolver maps an identity to its live connection.
type Resolver interface {
	Resolve(identity string) (string, bool)
}

// Members lists the live connections in a room.
type Members interface {
	MembersOf(room string) []string
}

// Router holds the live connection table.
type Router struct {
	mu    sync.RWMutex
	sinks map[string]Sink

	presence Resolver
	rooms    Members
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithMetrics counts deliveries, drops and attached connections on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithLogger replaces the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// NewRouter returns a router with no attached connections.
func NewRouter(presence Resolver, rooms Members, opts ...Option) *Router {
	r := &Router{
		sinks:    make(map[string]Sink),
		presence: presence,
		rooms:    rooms,
		logger:   slog.Default().With("service", "broadcast"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach adds sink to the live table, replacing any sink with the same id.
func (r *Router) Attach(sink Sink) {
	r.mu.Lock()
	r.sinks[sink.ID()] = sink
	r.mu.Unlock()
	r.metrics.ConnectionOpened()
}

// Detach removes the connection. It reports whether it was attached.
func (r *Router) Detach(connID string) bool {
	r.mu.Lock()
	_, ok := r.sinks[connID]
	delete(r.sinks, connID)
	r.mu.Unlock()
	if ok {
		r.metrics.ConnectionClosed()
	}
	return ok
}

// Len is the number of attached connections.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// Targets resolves the connection ids ev would be sent to.
func (r *Router) Targets(ev Event) []string {
	switch ev.Kind {
	case KindRoom:
		return r.attached(r.rooms.MembersOf(ev.Room))
	case KindDirect:
		ids := []string{ev.Origin}
		if connID, ok := r.presence.Resolve(ev.To); ok {
			ids = append(ids, connID)
		}
		return r.attached(lo.Uniq(ids))
	case KindReply:
		return r.attached([]string{ev.Origin})
	case KindOthers:
		return lo.Without(r.all(), ev.Origin)
	default:
		return r.all()
	}
}

// Deliver encodes ev once and queues it on every target. It returns the
// number of connections that accepted the frame.
func (r *Router) Deliver(ev Event) int {
	frame, err := protocol.Encode(ev.Name, ev.Data, ev.Ack)
	if err != nil {
		r.logger.Error("failed to encode event", "event", ev.Name, "error", err)
		return 0
	}

	targets := r.Targets(ev)

	r.mu.RLock()
	sinks := make([]Sink, 0, len(targets))
	for _, id := range targets {
		if s, ok := r.sinks[id]; ok {
			sinks = append(sinks, s)
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, s := range sinks {
		if s.Send(frame) {
			sent++
			continue
		}
		r.metrics.Dropped(ev.Name)
		r.logger.Warn("connection queue full, dropping event", "conn", s.ID(), "event", ev.Name)
	}
	r.metrics.Delivered(ev.Name, sent)
	return sent
}

func (r *Router) all() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.sinks)
}

func (r *Router) attached(ids []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(ids, func(id string, _ int) bool {
		_, ok := r.sinks[id]
		return ok && id != ""
	})
}

// MessageEvent is the delivery of a freshly stored message to its audience.
func MessageEvent(msg store.Message, origin string) Event {
	ev := Event{Data: msg, Origin: origin}
	switch msg.Kind {
	case store.KindRoom:
		ev.Kind, ev.Name, ev.Room = KindRoom, protocol.EventRoomMessage, msg.Room
	case store.KindDirect:
		ev.Kind, ev.Name, ev.To = KindDirect, protocol.EventPrivateMessage, msg.To
	default:
		ev.Kind, ev.Name = KindAll, protocol.EventReceiveMessage
	}
	return ev
}

// TypingEvent tells everyone but origin that identity started or stopped typing.
func TypingEvent(origin, identity string, typing bool) Event {
	name := protocol.EventUserStoppedTyping
	if typing {
		name = protocol.EventUserTyping
	}
	return Event{Kind: KindOthers, Name: name, Origin: origin, Data: protocol.Typing{Username: identity}}
}

// PresenceEvent carries the online list to everyone.
func PresenceEvent(users []string) Event {
	if users == nil {
		users = []string{}
	}
	return Event{Kind: KindAll, Name: protocol.EventUpdateUsers, Data: users}
}

// Reply answers the origin only.
func Reply(origin, name string, data any, ack *uint64) Event {
	return Event{Kind: KindReply, Name: name, Data: data, Ack: ack, Origin: origin}
}
