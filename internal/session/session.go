package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/chatter/internal/broadcast"
	"github.com/nfrund/chatter/internal/protocol"
	"github.com/nfrund/chatter/internal/store"
	"golang.org/x/time/rate"
)

// State of a session.
type State int

const (
	// StateConnecting is a transport connection whose credential is not yet checked.
	StateConnecting State = iota
	// StateAuthenticated is the brief step between a verified credential and
	// presence registration.
	StateAuthenticated
	// StateIdle is a registered session outside any room.
	StateIdle
	// StateInRoom is a registered session mapped to a room.
	StateInRoom
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateIdle:
		return "idle"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session is one connection's view of the chat. Handle must be called from
// a single goroutine so that inbound events keep their arrival order.
type Session struct {
	c       *Coordinator
	sink    broadcast.Sink
	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	identity string

	closeOnce sync.Once
}

func (s *Session) ID() string { return s.sink.ID() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity is empty until Authenticate succeeds.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Authenticate checks credential and, on success, attaches the connection
// and registers it in presence. A failed check closes the session without
// touching any registry.
func (s *Session) Authenticate(ctx context.Context, credential string) error {
	s.mu.Lock()
	if s.state != StateConnecting {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("authenticate in state %s", state)
	}
	s.mu.Unlock()

	who, err := s.c.deps.Oracle.Verify(ctx, credential)
	if err != nil {
		s.setState(StateClosed)
		s.logger.Warn("authentication failed", "error", err)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return fmt.Errorf("session closed during authentication")
	}
	s.identity = who
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.logger = s.logger.With("identity", who)
	s.c.deps.Router.Attach(s.sink)
	s.c.deps.Presence.Register(ctx, s.ID(), who)
	s.setState(StateIdle)
	s.logger.Info("session authenticated")
	return nil
}

// Handle processes one inbound frame. Failures are logged and counted;
// they never end the session.
func (s *Session) Handle(ctx context.Context, frame []byte) {
	state := s.State()
	if state != StateIdle && state != StateInRoom {
		s.logger.Debug("dropping frame outside active session", "state", state)
		return
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		s.c.metrics.Inbound("", "malformed")
		s.logger.Warn("malformed frame", "error", err)
		return
	}
	if !s.limiter.Allow() {
		s.c.metrics.Inbound(env.Event, "rate_limited")
		s.logger.Warn("rate limit exceeded, dropping event", "event", env.Event)
		return
	}

	outcome := s.dispatch(ctx, env)
	s.c.metrics.Inbound(env.Event, outcome)
}

func (s *Session) dispatch(ctx context.Context, env protocol.Envelope) string {
	switch env.Event {
	case protocol.EventJoinRoom:
		var p protocol.JoinRoom
		if !s.bind(env, &p) {
			return "malformed"
		}
		return s.joinRoom(ctx, p.Room)

	case protocol.EventLeaveRoom:
		s.c.deps.Rooms.Leave(s.identity)
		s.setState(StateIdle)
		return "ok"

	case protocol.EventRoomMessage:
		var p protocol.RoomMessage
		if !s.bind(env, &p) {
			return "malformed"
		}
		return s.persistAndDeliver(ctx, store.Message{Kind: store.KindRoom, Room: p.Room, Author: s.identity, Text: p.Text})

	case protocol.EventSendMessage:
		var p protocol.SendMessage
		if !s.bind(env, &p) {
			return "malformed"
		}
		return s.persistAndDeliver(ctx, store.Message{Kind: store.KindBroadcast, Author: s.identity, Text: p.Text})

	case protocol.EventPrivateMessage:
		var p protocol.PrivateMessage
		if !s.bind(env, &p) {
			return "malformed"
		}
		return s.persistAndDeliver(ctx, store.Message{Kind: store.KindDirect, Author: s.identity, To: p.To, Text: p.Text})

	case protocol.EventTyping, protocol.EventStopTyping:
		s.c.deps.Router.Deliver(broadcast.TypingEvent(s.ID(), s.identity, env.Event == protocol.EventTyping))
		return "ok"

	case protocol.EventGetRoomHistory:
		var p protocol.GetRoomHistory
		if !s.bind(env, &p) {
			return "malformed"
		}
		return s.roomHistory(ctx, p.Room, env.Ack)
	}

	s.logger.Warn("unknown event", "event", env.Event)
	return "unknown"
}

func (s *Session) bind(env protocol.Envelope, dst any) bool {
	if err := protocol.Bind(s.c.validate, env.Data, dst); err != nil {
		s.logger.Warn("invalid payload", "event", env.Event, "error", err)
		return false
	}
	return true
}

func (s *Session) joinRoom(ctx context.Context, room string) string {
	backlog, err := s.c.deps.Rooms.Join(ctx, s.identity, room)
	s.setState(StateInRoom)
	if err != nil {
		s.logger.Error("failed to load room backlog", "room", room, "error", err)
		return "store_error"
	}
	s.c.deps.Router.Deliver(broadcast.Reply(s.ID(), protocol.EventRoomHistory, nonNil(backlog), nil))
	return "ok"
}

func (s *Session) roomHistory(ctx context.Context, room string, ack *uint64) string {
	msgs, err := s.c.deps.History.RoomHistory(ctx, room)
	if err != nil {
		s.logger.Error("failed to load room history", "room", room, "error", err)
		return "store_error"
	}
	name := protocol.EventRoomHistory
	if ack != nil {
		name = protocol.EventAck
	}
	s.c.deps.Router.Deliver(broadcast.Reply(s.ID(), name, nonNil(msgs), ack))
	return "ok"
}

// persistAndDeliver stores msg and only then delivers it. A store failure
// drops the event.
func (s *Session) persistAndDeliver(ctx context.Context, msg store.Message) string {
	if _, err := s.c.deps.Store.Append(ctx, &msg); err != nil {
		s.logger.Error("failed to persist message, dropping", "kind", msg.Kind, "error", err)
		return "store_error"
	}
	s.c.deps.Router.Deliver(broadcast.MessageEvent(msg, s.ID()))
	return "ok"
}

// Close tears the session down once. The room is left only when this
// connection still owned the identity's presence entry, so a superseded
// connection closing late cannot evict its successor from a room.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = StateClosed
		who := s.identity
		s.mu.Unlock()

		if prev == StateConnecting || prev == StateClosed {
			return
		}

		s.c.deps.Router.Detach(s.ID())
		ctx := context.Background()
		if s.c.deps.Presence.Unregister(ctx, s.ID()) {
			s.c.deps.Rooms.Leave(who)
		}
		s.logger.Info("session closed", "state", prev)
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = state
	}
}

func nonNil(msgs []store.Message) []store.Message {
	if msgs == nil {
		return []store.Message{}
	}
	return msgs
}
