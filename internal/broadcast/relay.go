package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/chatter/internal/chat"
	"github.com/nfrund/chatter/internal/presence"
	"github.com/nfrund/chatter/internal/protocol"
	"github.com/nfrund/chatter/internal/pubsub"
	"github.com/nfrund/chatter/internal/store"
)

// Relay turns bus events into deliveries. Presence snapshots can arrive out
// of order on the bus; any snapshot older than the last delivered one is
// discarded.
type Relay struct {
	router *Router
	logger *slog.Logger

	mu          sync.Mutex
	lastVersion uint64
}

func NewRelay(router *Router, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default().With("service", "relay")
	}
	return &Relay{router: router, logger: logger}
}

// Start subscribes to the presence and message topics. Handlers run until
// ctx is cancelled.
func (r *Relay) Start(ctx context.Context, sub pubsub.Subscriber) error {
	if err := pubsub.Subscribe(ctx, sub, presence.TopicChanged, r.onPresence); err != nil {
		return fmt.Errorf("subscribe %s: %w", presence.TopicChanged.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, sub, chat.TopicEdited, r.onEdited); err != nil {
		return fmt.Errorf("subscribe %s: %w", chat.TopicEdited.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, sub, chat.TopicDeleted, r.onDeleted); err != nil {
		return fmt.Errorf("subscribe %s: %w", chat.TopicDeleted.Name(), err)
	}
	r.logger.Info("relay started")
	return nil
}

func (r *Relay) onPresence(_ context.Context, ev presence.Changed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Version <= r.lastVersion {
		r.logger.Debug("stale presence snapshot", "version", ev.Version, "last", r.lastVersion)
		return nil
	}
	r.lastVersion = ev.Version
	r.router.Deliver(PresenceEvent(ev.Users))
	return nil
}

func (r *Relay) onEdited(_ context.Context, msg store.Message) error {
	r.router.Deliver(Event{Kind: KindAll, Name: protocol.EventMessageEdited, Data: msg})
	return nil
}

func (r *Relay) onDeleted(_ context.Context, ev protocol.Deleted) error {
	r.router.Deliver(Event{Kind: KindAll, Name: protocol.EventMessageDeleted, Data: ev})
	return nil
}
