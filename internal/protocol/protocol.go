// Package protocol defines the JSON events exchanged over a chat connection.
//
// Every frame is an Envelope:
//
//	{"event": "roomMessage", "data": {"room": "general", "text": "hi"}}
//
// A client may attach a numeric "ack" to a query; the reply then comes back
// as an "ack" event carrying the same number.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Inbound events.
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventRoomMessage    = "roomMessage"
	EventSendMessage    = "sendMessage"
	EventPrivateMessage = "privateMessage"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
	EventGetRoomHistory = "getRoomHistory"
)

// Outbound events. roomMessage and privateMessage reuse the inbound names.
const (
	EventUpdateUsers       = "updateUsers"
	EventReceiveMessage    = "receiveMessage"
	EventRoomHistory       = "roomHistory"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventMessageEdited     = "messageEdited"
	EventMessageDeleted    = "messageDeleted"
	EventAck               = "ack"
)

const (
	MaxTextLen = 4000
	MaxNameLen = 128
)

// Envelope is one frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *uint64         `json:"ack,omitempty"`
}

// Encode builds an outbound frame.
func Encode(event string, data any, ack *uint64) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw, Ack: ack})
}

// Decode parses an inbound frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing event name")
	}
	return env, nil
}

type JoinRoom struct {
	Room string `json:"room" validate:"nonblank,max=128"`
}

type LeaveRoom struct{}

type RoomMessage struct {
	Room string `json:"room" validate:"nonblank,max=128"`
	Text string `json:"text" validate:"nonblank,max=4000"`
}

type SendMessage struct {
	Text string `json:"text" validate:"nonblank,max=4000"`
}

// PrivateMessage accepts "message" as an alias of "text".
type PrivateMessage struct {
	To      string `json:"to" validate:"nonblank,max=128"`
	Text    string `json:"text" validate:"nonblank,max=4000"`
	Message string `json:"message,omitempty" validate:"-"`
}

// GetRoomHistory also accepts a bare JSON string naming the room.
type GetRoomHistory struct {
	Room string `json:"room" validate:"nonblank,max=128"`
}

func (g *GetRoomHistory) UnmarshalJSON(b []byte) error {
	var room string
	if err := json.Unmarshal(b, &room); err == nil {
		g.Room = room
		return nil
	}
	type plain GetRoomHistory
	return json.Unmarshal(b, (*plain)(g))
}

// Typing is the payload of userTyping and userStoppedTyping.
type Typing struct {
	Username string `json:"username"`
}

// Deleted is the payload of messageDeleted.
type Deleted struct {
	ID string `json:"id"`
}

// NewValidator returns a validator with the "nonblank" rule registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Bind decodes data into dst and validates it.
func Bind(v *validator.Validate, data json.RawMessage, dst any) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	if pm, ok := dst.(*PrivateMessage); ok && pm.Text == "" {
		pm.Text = pm.Message
	}
	if err := v.Struct(dst); err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	return nil
}
