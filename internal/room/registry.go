// Package room tracks which room each identity occupies.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nfrund/chatter/internal/store"
)

// DefaultBacklogLimit caps the backlog returned by Join.
const DefaultBacklogLimit = 100

// Presence resolves an identity to its live connection.
type Presence interface {
	Resolve(identity string) (string, bool)
}

// History reads room backlogs.
type History interface {
	Query(ctx context.Context, filter store.Filter) ([]store.Message, error)
}

// Registry maps identities to at most one room each. Entries for offline
// identities stay until Leave; MembersOf filters them out.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]string // identity -> room

	presence     Presence
	history      History
	backlogLimit int
	logger       *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBacklogLimit sets the Join backlog cap; zero or less means unbounded.
func WithBacklogLimit(n int) Option {
	return func(r *Registry) { r.backlogLimit = n }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry returns an empty registry.
func NewRegistry(presence Presence, history History, opts ...Option) *Registry {
	r := &Registry{
		rooms:        make(map[string]string),
		presence:     presence,
		history:      history,
		backlogLimit: DefaultBacklogLimit,
		logger:       slog.Default().With("service", "room"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join moves identity into room, replacing any previous room, and returns the
// room backlog in ascending time order. The move is kept even when the
// backlog query fails.
func (r *Registry) Join(ctx context.Context, identity, room string) ([]store.Message, error) {
	r.mu.Lock()
	prev := r.rooms[identity]
	r.rooms[identity] = room
	r.mu.Unlock()

	r.logger.Info("joined room", "identity", identity, "room", room, "previous", prev)

	backlog, err := r.history.Query(ctx, store.Filter{
		Kind:   store.KindRoom,
		Room:   room,
		Limit:  max(r.backlogLimit, 0),
		Latest: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load backlog for %s: %w", room, err)
	}
	return backlog, nil
}

// Leave clears identity's room. It reports whether there was one.
func (r *Registry) Leave(identity string) bool {
	r.mu.Lock()
	room, ok := r.rooms[identity]
	delete(r.rooms, identity)
	r.mu.Unlock()

	if ok {
		r.logger.Info("left room", "identity", identity, "room", room)
	}
	return ok
}

// RoomOf returns identity's current room.
func (r *Registry) RoomOf(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[identity]
	return room, ok
}

// MembersOf returns the live connections of identities mapped to room.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	identities := make([]string, 0)
	for identity, joined := range r.rooms {
		if joined == room {
			identities = append(identities, identity)
		}
	}
	r.mu.RUnlock()

	slices.Sort(identities)
	conns := make([]string, 0, len(identities))
	for _, identity := range identities {
		if connID, ok := r.presence.Resolve(identity); ok {
			conns = append(conns, connID)
		}
	}
	return conns
}
