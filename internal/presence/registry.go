package presence

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/nfrund/chatter/internal/pubsub"
	"github.com/samber/lo"
)

// Changed is published after every register or unregister that changed the
// registry. Version increases by one per change, so consumers can drop
// snapshots that arrive out of order.
type Changed struct {
	Users   []string `json:"users"`
	Version uint64   `json:"version"`
}

// TopicChanged carries Changed events.
var TopicChanged = pubsub.NewEvent[Changed]("presence.changed", "Online identities after a presence change")

// Registry is the bidirectional connection <-> identity map. An identity
// maps to at most one connection: the most recently registered one.
type Registry struct {
	mu         sync.RWMutex
	byConn     map[string]string // connID -> identity
	byIdentity map[string]string // identity -> connID
	version    uint64

	publisher pubsub.Publisher
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry returns an empty registry that announces changes on publisher.
func NewRegistry(publisher pubsub.Publisher, opts ...Option) *Registry {
	r := &Registry{
		byConn:     make(map[string]string),
		byIdentity: make(map[string]string),
		publisher:  publisher,
		logger:     slog.Default().With("service", "presence"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register maps connID to identity. A previous connection of the same
// identity is dropped from the registry without notice to that connection.
// Re-registering an existing pair changes nothing and publishes nothing.
func (r *Registry) Register(ctx context.Context, connID, identity string) bool {
	r.mu.Lock()
	if cur, ok := r.byConn[connID]; ok {
		if cur == identity {
			r.mu.Unlock()
			return false
		}
		// identity is immutable per connection; replace the stale pair
		delete(r.byConn, connID)
		if r.byIdentity[cur] == connID {
			delete(r.byIdentity, cur)
		}
	}

	if prev, ok := r.byIdentity[identity]; ok && prev != connID {
		delete(r.byConn, prev)
		r.logger.Info("connection superseded", "identity", identity, "previous", prev, "current", connID)
	}
	r.byConn[connID] = identity
	r.byIdentity[identity] = connID

	event := r.changedLocked()
	r.mu.Unlock()

	r.logger.Debug("registered", "identity", identity, "conn", connID)
	r.publish(ctx, identity, event)
	return true
}

// Unregister removes connID. It reports false, and publishes nothing, when the
// connection is unknown or was already superseded.
func (r *Registry) Unregister(ctx context.Context, connID string) bool {
	r.mu.Lock()
	identity, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byConn, connID)
	if r.byIdentity[identity] == connID {
		delete(r.byIdentity, identity)
	}

	event := r.changedLocked()
	r.mu.Unlock()

	r.logger.Debug("unregistered", "identity", identity, "conn", connID)
	r.publish(ctx, identity, event)
	return true
}

// Snapshot returns the online identities in sorted order.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Resolve returns the current connection of identity.
func (r *Registry) Resolve(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byIdentity[identity]
	return connID, ok
}

// IdentityOf returns the identity registered for connID.
func (r *Registry) IdentityOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byConn[connID]
	return identity, ok
}

// Version is the number of changes applied so far.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func (r *Registry) snapshotLocked() []string {
	users := lo.Keys(r.byIdentity)
	slices.Sort(users)
	return users
}

func (r *Registry) changedLocked() Changed {
	r.version++
	return Changed{Users: r.snapshotLocked(), Version: r.version}
}

func (r *Registry) publish(ctx context.Context, origin string, event Changed) {
	if r.publisher == nil {
		return
	}
	if err := pubsub.Publish(ctx, r.publisher, TopicChanged, origin, event); err != nil {
		r.logger.Error("failed to publish presence change", "version", event.Version, "error", err)
	}
}
