package store

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// MemoryStore keeps messages in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, msg *Message) (string, error) {
	if err := prepare(msg); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return msg.ID, nil
}

func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Message, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := lo.Filter(s.messages, func(m Message, _ int) bool { return f.Matches(m) })
	s.mu.RUnlock()

	return sortAndLimit(matched, f), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := lo.Find(s.messages, func(m Message) bool { return m.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	return &msg, nil
}

func (s *MemoryStore) Update(_ context.Context, id, text string) (*Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(s.messages, func(m Message) bool { return m.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	s.messages[idx].Text = text
	s.messages[idx].Edited = true
	updated := s.messages[idx]
	return &updated, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(s.messages, func(m Message) bool { return m.ID == id })
	if !ok {
		return ErrNotFound
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
