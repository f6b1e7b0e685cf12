package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nfrund/chatter/internal/metrics"
	"github.com/nfrund/chatter/internal/presence"
	"github.com/nfrund/chatter/internal/protocol"
	"github.com/nfrund/chatter/internal/room"
	"github.com/nfrund/chatter/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	presence *presence.Registry
	rooms    *room.Registry
	router   *Router
	queues   map[string]*Queue
}

func newFixture(t *testing.T, m *metrics.Metrics) *fixture {
	t.Helper()
	p := presence.NewRegistry(nil)
	rooms := room.NewRegistry(p, store.NewMemoryStore())
	return &fixture{
		presence: p,
		rooms:    rooms,
		router:   NewRouter(p, rooms, WithMetrics(m)),
		queues:   make(map[string]*Queue),
	}
}

// connect attaches a queue for identity under connID.
func (f *fixture) connect(t *testing.T, connID, identity string, size int) *Queue {
	t.Helper()
	q := NewQueue(connID, size)
	f.router.Attach(q)
	f.presence.Register(context.Background(), connID, identity)
	f.queues[connID] = q
	return q
}

func drain(q *Queue) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case frame := <-q.Frames():
			var env protocol.Envelope
			if err := json.Unmarshal(frame, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func TestRouter_Targets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.connect(t, "c-alice", "alice", 8)
	f.connect(t, "c-bob", "bob", 8)
	f.connect(t, "c-carol", "carol", 8)

	_, err := f.rooms.Join(ctx, "alice", "general")
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, "bob", "general")
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, "carol", "random")
	require.NoError(t, err)

	tests := []struct {
		name string
		ev   Event
		want []string
	}{
		{"all", Event{Kind: KindAll}, []string{"c-alice", "c-bob", "c-carol"}},
		{"room", Event{Kind: KindRoom, Room: "general"}, []string{"c-alice", "c-bob"}},
		{"empty room", Event{Kind: KindRoom, Room: "nowhere"}, []string{}},
		{"direct online", Event{Kind: KindDirect, Origin: "c-bob", To: "carol"}, []string{"c-bob", "c-carol"}},
		{"direct offline", Event{Kind: KindDirect, Origin: "c-bob", To: "zed"}, []string{"c-bob"}},
		{"direct to self", Event{Kind: KindDirect, Origin: "c-bob", To: "bob"}, []string{"c-bob"}},
		{"others", Event{Kind: KindOthers, Origin: "c-alice"}, []string{"c-bob", "c-carol"}},
		{"reply", Event{Kind: KindReply, Origin: "c-carol"}, []string{"c-carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, f.router.Targets(tt.ev))
		})
	}
}

func TestRouter_DeliverEncodesEnvelope(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.connect(t, "c-alice", "alice", 8)
	bob := f.connect(t, "c-bob", "bob", 8)

	msg := store.Message{ID: "m1", Kind: store.KindBroadcast, Author: "alice", Text: "hi"}
	assert.Equal(t, 2, f.router.Deliver(MessageEvent(msg, "c-alice")))

	for _, q := range []*Queue{alice, bob} {
		got := drain(q)
		require.Len(t, got, 1)
		assert.Equal(t, protocol.EventReceiveMessage, got[0].Event)
		var m store.Message
		require.NoError(t, json.Unmarshal(got[0].Data, &m))
		assert.Equal(t, "hi", m.Text)
		assert.Nil(t, got[0].Ack)
	}
}

func TestRouter_ReplyCarriesAck(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.connect(t, "c-alice", "alice", 8)
	bob := f.connect(t, "c-bob", "bob", 8)

	ack := uint64(3)
	f.router.Deliver(Reply("c-alice", protocol.EventAck, []store.Message{}, &ack))

	got := drain(alice)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.EventAck, got[0].Event)
	require.NotNil(t, got[0].Ack)
	assert.Equal(t, ack, *got[0].Ack)
	assert.Empty(t, drain(bob))
}

func TestRouter_TypingSkipsOrigin(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.connect(t, "c-alice", "alice", 8)
	bob := f.connect(t, "c-bob", "bob", 8)

	f.router.Deliver(TypingEvent("c-alice", "alice", true))
	f.router.Deliver(TypingEvent("c-alice", "alice", false))

	assert.Empty(t, drain(alice))
	got := drain(bob)
	require.Len(t, got, 2)
	assert.Equal(t, protocol.EventUserTyping, got[0].Event)
	assert.Equal(t, protocol.EventUserStoppedTyping, got[1].Event)
	assert.JSONEq(t, `{"username":"alice"}`, string(got[0].Data))
}

func TestRouter_FullQueueDropsWithoutBlocking(t *testing.T) {
	m := metrics.New("test")
	f := newFixture(t, m)
	slow := f.connect(t, "c-slow", "slow", 1)
	fast := f.connect(t, "c-fast", "fast", 8)

	assert.Equal(t, 2, f.router.Deliver(PresenceEvent([]string{"fast", "slow"})))
	assert.Equal(t, 1, f.router.Deliver(PresenceEvent([]string{"fast", "slow"})))

	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 2)
	dropped, err := testutil.GatherAndCount(m.Registry(), "test_outbound_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
}

func TestRouter_Detach(t *testing.T) {
	m := metrics.New("test")
	f := newFixture(t, m)
	q := f.connect(t, "c-alice", "alice", 8)

	assert.Equal(t, 1, f.router.Len())
	assert.True(t, f.router.Detach("c-alice"))
	assert.False(t, f.router.Detach("c-alice"))
	assert.Equal(t, 0, f.router.Len())

	assert.Equal(t, 0, f.router.Deliver(PresenceEvent(nil)))
	assert.Empty(t, drain(q))
}

func TestPresenceEvent_EmptyList(t *testing.T) {
	ev := PresenceEvent(nil)
	frame, err := protocol.Encode(ev.Name, ev.Data, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"updateUsers","data":[]}`, string(frame))
}

func TestQueue_SendAfterClose(t *testing.T) {
	q := NewQueue("c1", 0)
	assert.True(t, q.Send([]byte("x")))
	q.Close()
	q.Close()
	assert.False(t, q.Send([]byte("y")))
}
