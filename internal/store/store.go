// Package store persists chat messages. Every backend keeps the same
// contract: append-only writes, queries filtered by kind and scope, results
// ordered by creation time ascending.
package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind tags the Message variant.
type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindRoom      Kind = "room"
	KindDirect    Kind = "direct"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBroadcast, KindRoom, KindDirect:
		return true
	}
	return false
}

// Message is the persisted record for all three variants. Room is set only
// for KindRoom, To only for KindDirect; Author is the sender in every case.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Room      string    `json:"room,omitempty"`
	Author    string    `json:"author"`
	To        string    `json:"to,omitempty"`
	Text      string    `json:"text"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"createdAt"`
}

// PeerPair selects the direct conversation between two identities,
// independent of direction.
type PeerPair struct {
	A string
	B string
}

// Filter selects messages for Query.
type Filter struct {
	Kind  Kind
	Room  string
	Peers *PeerPair
	// Limit caps the number of results; zero means unbounded.
	Limit int
	// Latest keeps the newest Limit messages instead of the oldest.
	// Results are ascending either way.
	Latest bool
}

// Store is the durable message log.
type Store interface {
	Append(ctx context.Context, msg *Message) (string, error)
	Query(ctx context.Context, filter Filter) ([]Message, error)
	Get(ctx context.Context, id string) (*Message, error)
	// Update replaces the text and marks the message edited.
	Update(ctx context.Context, id, text string) (*Message, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Validate checks the variant invariants of a message about to be appended.
func (m *Message) Validate() error {
	switch {
	case !m.Kind.Valid():
		return invalid("unknown kind %q", m.Kind)
	case strings.TrimSpace(m.Author) == "":
		return invalid("author is required")
	case strings.TrimSpace(m.Text) == "":
		return invalid("text is required")
	case m.Kind == KindRoom && m.Room == "":
		return invalid("room is required for room messages")
	case m.Kind == KindDirect && m.To == "":
		return invalid("recipient is required for direct messages")
	}
	return nil
}

// Validate checks that the filter is answerable.
func (f Filter) Validate() error {
	switch {
	case !f.Kind.Valid():
		return invalid("unknown kind %q", f.Kind)
	case f.Kind == KindRoom && f.Room == "":
		return invalid("room filter requires a room")
	case f.Kind == KindDirect && f.Peers == nil:
		return invalid("direct filter requires a peer pair")
	case f.Limit < 0:
		return invalid("negative limit")
	}
	return nil
}

// Matches reports whether m belongs to the filter's scope. Limit is ignored.
func (f Filter) Matches(m Message) bool {
	if m.Kind != f.Kind {
		return false
	}
	switch f.Kind {
	case KindRoom:
		return m.Room == f.Room
	case KindDirect:
		a, b := f.Peers.A, f.Peers.B
		return (m.Author == a && m.To == b) || (m.Author == b && m.To == a)
	}
	return true
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("text is required")
	}
	return nil
}

// prepare fills the id and timestamp of a new message.
func prepare(msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Edited = false
	return nil
}

// sortAndLimit orders msgs ascending by time and applies the filter's cap.
func sortAndLimit(msgs []Message, f Filter) []Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if f.Limit > 0 && len(msgs) > f.Limit {
		if f.Latest {
			return msgs[len(msgs)-f.Limit:]
		}
		return msgs[:f.Limit]
	}
	return msgs
}
