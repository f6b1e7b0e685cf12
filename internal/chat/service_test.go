package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nfrund/chatter/internal/pubsub"
	"github.com/nfrund/chatter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mu   sync.Mutex
	msgs []pubsub.Message
}

func (m *mockPublisher) Publish(_ context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func seed(t *testing.T, st store.Store, msgs ...store.Message) []string {
	t.Helper()
	ids := make([]string, 0, len(msgs))
	for i := range msgs {
		id, err := st.Append(context.Background(), &msgs[i])
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestService_History(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st, &mockPublisher{}, WithHistoryLimit(2))

	seed(t, st,
		store.Message{Kind: store.KindBroadcast, Author: "alice", Text: "one"},
		store.Message{Kind: store.KindBroadcast, Author: "bob", Text: "two"},
		store.Message{Kind: store.KindBroadcast, Author: "alice", Text: "three"},
		store.Message{Kind: store.KindRoom, Room: "general", Author: "alice", Text: "room"},
	)

	msgs, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "three", msgs[1].Text)

	room, err := svc.RoomHistory(ctx, "general")
	require.NoError(t, err)
	require.Len(t, room, 1)
	assert.Equal(t, "room", room[0].Text)
}

func TestService_Private(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st, &mockPublisher{})

	seed(t, st,
		store.Message{Kind: store.KindDirect, Author: "bob", To: "carol", Text: "hey"},
		store.Message{Kind: store.KindDirect, Author: "carol", To: "bob", Text: "hi"},
		store.Message{Kind: store.KindDirect, Author: "bob", To: "dave", Text: "other"},
	)

	msgs, err := svc.Private(ctx, "carol", "bob", "carol")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = svc.Private(ctx, "dave", "bob", "carol")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_PrivateIsNotCapped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st, &mockPublisher{}, WithHistoryLimit(100))

	msgs := make([]store.Message, 150)
	for i := range msgs {
		from, to := "bob", "carol"
		if i%2 == 1 {
			from, to = to, from
		}
		msgs[i] = store.Message{Kind: store.KindDirect, Author: from, To: to, Text: fmt.Sprintf("m%d", i)}
	}
	seed(t, st, msgs...)

	got, err := svc.Private(ctx, "carol", "carol", "bob")
	require.NoError(t, err)
	require.Len(t, got, 150)
	assert.Equal(t, "m0", got[0].Text)
	assert.Equal(t, "m149", got[149].Text)
}

func TestService_Edit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	pub := &mockPublisher{}
	svc := NewService(st, pub)
	ids := seed(t, st, store.Message{Kind: store.KindBroadcast, Author: "alice", Text: "hello"})

	t.Run("author can edit", func(t *testing.T) {
		msg, err := svc.Edit(ctx, "alice", ids[0], "hello again")
		require.NoError(t, err)
		assert.True(t, msg.Edited)
		assert.Equal(t, "hello again", msg.Text)

		require.Len(t, pub.msgs, 1)
		assert.Equal(t, TopicEdited.Name(), pub.msgs[0].Topic)
		assert.Equal(t, "alice", pub.msgs[0].Origin)
	})

	t.Run("other identity is forbidden", func(t *testing.T) {
		_, err := svc.Edit(ctx, "bob", ids[0], "hijack")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Len(t, pub.msgs, 1)
	})

	t.Run("missing message", func(t *testing.T) {
		_, err := svc.Edit(ctx, "alice", "nope", "x")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("blank text", func(t *testing.T) {
		_, err := svc.Edit(ctx, "alice", ids[0], " ")
		assert.ErrorIs(t, err, store.ErrInvalidInput)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	pub := &mockPublisher{}
	svc := NewService(st, pub)
	ids := seed(t, st, store.Message{Kind: store.KindRoom, Room: "general", Author: "alice", Text: "bye"})

	assert.ErrorIs(t, svc.Delete(ctx, "bob", ids[0]), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "alice", ids[0]))

	_, err := st.Get(ctx, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, TopicDeleted.Name(), pub.msgs[0].Topic)
	assert.JSONEq(t, `{"id":"`+ids[0]+`"}`, string(pub.msgs[0].Payload))
}
