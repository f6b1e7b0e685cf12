package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(i int) time.Time { return base.Add(time.Duration(i) * time.Second) }

// runConformance exercises the contract every backend must honor.
func runConformance(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("append assigns id and keeps timestamp", func(t *testing.T) {
		s := open(t)
		msg := &Message{Kind: KindBroadcast, Author: "alice", Text: "hello", CreatedAt: at(1)}
		id, err := s.Append(ctx, msg)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.Equal(t, id, msg.ID)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Author)
		assert.Equal(t, "hello", got.Text)
		assert.True(t, got.CreatedAt.Equal(at(1)))
		assert.False(t, got.Edited)
	})

	t.Run("append rejects malformed messages", func(t *testing.T) {
		s := open(t)
		cases := []*Message{
			{Kind: "bogus", Author: "a", Text: "x"},
			{Kind: KindBroadcast, Author: "", Text: "x"},
			{Kind: KindBroadcast, Author: "a", Text: "   "},
			{Kind: KindRoom, Author: "a", Text: "x"},
			{Kind: KindDirect, Author: "a", Text: "x"},
		}
		for _, m := range cases {
			_, err := s.Append(ctx, m)
			assert.ErrorIs(t, err, ErrInvalidInput, "%+v", m)
		}
	})

	t.Run("room query is scoped and ascending", func(t *testing.T) {
		s := open(t)
		// inserted out of order on purpose
		for _, i := range []int{3, 1, 2} {
			_, err := s.Append(ctx, &Message{Kind: KindRoom, Room: "general", Author: "alice", Text: fmt.Sprintf("m%d", i), CreatedAt: at(i)})
			require.NoError(t, err)
		}
		_, err := s.Append(ctx, &Message{Kind: KindRoom, Room: "random", Author: "bob", Text: "elsewhere", CreatedAt: at(0)})
		require.NoError(t, err)
		_, err = s.Append(ctx, &Message{Kind: KindRoom, Room: "general:sub", Author: "bob", Text: "prefix trap", CreatedAt: at(0)})
		require.NoError(t, err)

		msgs, err := s.Query(ctx, Filter{Kind: KindRoom, Room: "general"})
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, []string{"m1", "m2", "m3"}, texts(msgs))
	})

	t.Run("limit keeps oldest or latest, always ascending", func(t *testing.T) {
		s := open(t)
		for i := 1; i <= 5; i++ {
			_, err := s.Append(ctx, &Message{Kind: KindBroadcast, Author: "alice", Text: fmt.Sprintf("m%d", i), CreatedAt: at(i)})
			require.NoError(t, err)
		}

		oldest, err := s.Query(ctx, Filter{Kind: KindBroadcast, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, texts(oldest))

		latest, err := s.Query(ctx, Filter{Kind: KindBroadcast, Limit: 2, Latest: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"m4", "m5"}, texts(latest))
	})

	t.Run("direct query merges both directions", func(t *testing.T) {
		s := open(t)
		_, err := s.Append(ctx, &Message{Kind: KindDirect, Author: "bob", To: "carol", Text: "hey", CreatedAt: at(1)})
		require.NoError(t, err)
		_, err = s.Append(ctx, &Message{Kind: KindDirect, Author: "carol", To: "bob", Text: "hi bob", CreatedAt: at(2)})
		require.NoError(t, err)
		_, err = s.Append(ctx, &Message{Kind: KindDirect, Author: "bob", To: "dave", Text: "not you", CreatedAt: at(3)})
		require.NoError(t, err)

		forward, err := s.Query(ctx, Filter{Kind: KindDirect, Peers: &PeerPair{A: "bob", B: "carol"}})
		require.NoError(t, err)
		backward, err := s.Query(ctx, Filter{Kind: KindDirect, Peers: &PeerPair{A: "carol", B: "bob"}})
		require.NoError(t, err)

		assert.Equal(t, []string{"hey", "hi bob"}, texts(forward))
		assert.Equal(t, texts(forward), texts(backward))
	})

	t.Run("update marks edited", func(t *testing.T) {
		s := open(t)
		id, err := s.Append(ctx, &Message{Kind: KindBroadcast, Author: "alice", Text: "tpyo", CreatedAt: at(1)})
		require.NoError(t, err)

		updated, err := s.Update(ctx, id, "typo")
		require.NoError(t, err)
		assert.Equal(t, "typo", updated.Text)
		assert.True(t, updated.Edited)

		msgs, err := s.Query(ctx, Filter{Kind: KindBroadcast})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].Edited)

		_, err = s.Update(ctx, "missing", "x")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Update(ctx, id, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("delete removes from queries", func(t *testing.T) {
		s := open(t)
		id, err := s.Append(ctx, &Message{Kind: KindRoom, Room: "general", Author: "alice", Text: "bye", CreatedAt: at(1)})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, id))
		msgs, err := s.Query(ctx, Filter{Kind: KindRoom, Room: "general"})
		require.NoError(t, err)
		assert.Empty(t, msgs)

		_, err = s.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
	})

	t.Run("invalid filters are rejected", func(t *testing.T) {
		s := open(t)
		_, err := s.Query(ctx, Filter{Kind: KindRoom})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = s.Query(ctx, Filter{Kind: KindDirect})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = s.Query(ctx, Filter{Kind: KindBroadcast, Limit: -1})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func texts(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestBadgerStore(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		s, err := OpenBadger("", slog.Default())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		s, err := OpenSQL("sqlite", dsn)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSurrealStore(t *testing.T) {
	url := os.Getenv("SURREAL_URL")
	if testing.Short() || url == "" {
		t.Skip("skipping SurrealDB integration test; set SURREAL_URL to run")
	}

	runConformance(t, func(t *testing.T) Store {
		cfg := SurrealConfig{
			URL:       url,
			Namespace: "chatter_test",
			Database:  "t" + uuid.NewString()[:8],
			User:      os.Getenv("SURREAL_USER"),
			Pass:      os.Getenv("SURREAL_PASS"),
		}
		s, err := ConnectSurreal(context.Background(), cfg, slog.Default())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Driver: "badger"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "mongo"}, nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestError(t *testing.T) {
	cause := errors.New("connection refused")
	err := wrapQuery("surreal", "query", "SELECT 1", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "surreal store: query")
	assert.Contains(t, err.Error(), "SELECT 1")
	assert.Nil(t, wrap("x", "y", nil))
}

func TestFilterMatches(t *testing.T) {
	dm := Message{Kind: KindDirect, Author: "a", To: "b"}
	assert.True(t, Filter{Kind: KindDirect, Peers: &PeerPair{A: "b", B: "a"}}.Matches(dm))
	assert.False(t, Filter{Kind: KindDirect, Peers: &PeerPair{A: "a", B: "c"}}.Matches(dm))
	assert.False(t, Filter{Kind: KindBroadcast}.Matches(dm))
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (r *recordingObserver) StoreDone(op string, _ time.Time, err error) {
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

func TestObserve(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	s := Observe(NewMemoryStore(), obs)

	id, err := s.Append(ctx, &Message{Kind: KindBroadcast, Author: "alice", Text: "hi"})
	require.NoError(t, err)
	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(ctx, id, "edited")
	require.NoError(t, err)
	_, err = s.Query(ctx, Filter{Kind: KindBroadcast})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	assert.Equal(t, []string{"append", "get", "update", "query", "delete"}, obs.ops)
	assert.Nil(t, obs.errs[0])
	assert.ErrorIs(t, obs.errs[1], ErrNotFound)

	assert.Same(t, s, Observe(s, nil))
}
