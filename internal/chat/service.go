// Package chat serves message history and author-only edits over the store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nfrund/chatter/internal/protocol"
	"github.com/nfrund/chatter/internal/pubsub"
	"github.com/nfrund/chatter/internal/store"
)

// ErrForbidden is returned when the caller may not read or change a message.
var ErrForbidden = errors.New("forbidden")

// DefaultHistoryLimit caps history reads.
const DefaultHistoryLimit = 100

var (
	TopicEdited  = pubsub.NewEvent[store.Message]("message.edited", "A stored message's text was changed by its author")
	TopicDeleted = pubsub.NewEvent[protocol.Deleted]("message.deleted", "A stored message was removed by its author")
)

// Service reads and mutates stored messages.
type Service struct {
	store        store.Store
	publisher    pubsub.Publisher
	historyLimit int
	logger       *slog.Logger
}

type Option func(*Service)

// WithHistoryLimit sets the history cap; zero or less means unbounded.
func WithHistoryLimit(n int) Option {
	return func(s *Service) { s.historyLimit = max(n, 0) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(st store.Store, publisher pubsub.Publisher, opts ...Option) *Service {
	s := &Service{
		store:        st,
		publisher:    publisher,
		historyLimit: DefaultHistoryLimit,
		logger:       slog.Default().With("service", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the latest broadcast messages, oldest first.
func (s *Service) History(ctx context.Context) ([]store.Message, error) {
	return s.store.Query(ctx, store.Filter{Kind: store.KindBroadcast, Limit: s.historyLimit, Latest: true})
}

// RoomHistory returns the latest messages of room, oldest first.
func (s *Service) RoomHistory(ctx context.Context, room string) ([]store.Message, error) {
	return s.store.Query(ctx, store.Filter{Kind: store.KindRoom, Room: room, Limit: s.historyLimit, Latest: true})
}

// Private returns the whole conversation between from and to, oldest first.
// The caller must be one of the two peers.
func (s *Service) Private(ctx context.Context, caller, from, to string) ([]store.Message, error) {
	if caller != from && caller != to {
		return nil, fmt.Errorf("%w: %s is not a party to this conversation", ErrForbidden, caller)
	}
	return s.store.Query(ctx, store.Filter{
		Kind:  store.KindDirect,
		Peers: &store.PeerPair{A: from, B: to},
	})
}

// Edit replaces the text of a message written by caller and announces it.
func (s *Service) Edit(ctx context.Context, caller, id, text string) (*store.Message, error) {
	if err := s.authorize(ctx, caller, id); err != nil {
		return nil, err
	}
	msg, err := s.store.Update(ctx, id, text)
	if err != nil {
		return nil, err
	}
	if err := pubsub.Publish(ctx, s.publisher, TopicEdited, caller, *msg); err != nil {
		s.logger.Error("failed to publish edit", "id", id, "error", err)
	}
	s.logger.Info("message edited", "id", id, "author", caller)
	return msg, nil
}

// Delete removes a message written by caller and announces it.
func (s *Service) Delete(ctx context.Context, caller, id string) error {
	if err := s.authorize(ctx, caller, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := pubsub.Publish(ctx, s.publisher, TopicDeleted, caller, protocol.Deleted{ID: id}); err != nil {
		s.logger.Error("failed to publish delete", "id", id, "error", err)
	}
	s.logger.Info("message deleted", "id", id, "author", caller)
	return nil
}

func (s *Service) authorize(ctx context.Context, caller, id string) error {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.Author != caller {
		return fmt.Errorf("%w: %s is not the author of %s", ErrForbidden, caller, id)
	}
	return nil
}
