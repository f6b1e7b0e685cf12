package pubsub

import (
	"context"
)

// Message is the envelope carried on the in-process bus.
type Message struct {
	// Topic names the stream, e.g. "presence.changed".
	Topic string
	// Origin is the identity that caused the message, empty for system events.
	Origin string
	// Payload is the JSON-encoded event body.
	Payload []byte
	// Metadata holds free-form context such as timestamps or request ids.
	Metadata map[string]string
}

// Handler processes one delivered message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe registers handler for topic and returns once the subscription
	// is live. Delivery continues until ctx is canceled or Close is called.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// PubSub is implemented by buses that can do both.
type PubSub interface {
	Publisher
	Subscriber
}
