package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WatermillBridge implements PubSub on top of watermill's GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	tracer trace.Tracer
	logger *slog.Logger
}

const (
	// Metadata keys used to carry Message fields through watermill.
	metaKeyOrigin = "origin"
	metaKeyTopic  = "topic"
)

// BridgeOption configures a WatermillBridge.
type BridgeOption func(*WatermillBridge)

// WithTracer enables publish and process spans.
func WithTracer(tracer trace.Tracer) BridgeOption {
	return func(wb *WatermillBridge) {
		wb.tracer = tracer
	}
}

// WithLogger replaces the bridge logger.
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(wb *WatermillBridge) {
		wb.logger = logger
	}
}

// NewWatermillBridge creates an in-memory bus.
func NewWatermillBridge(opts ...BridgeOption) *WatermillBridge {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)

	wb := &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: slog.Default().With("service", "pubsub"),
	}
	for _, opt := range opts {
		opt(wb)
	}

	if wb.tracer != nil {
		wb.pub = NewPublisherTracingMiddleware(goChannel, wb.tracer)
	}
	return wb
}

// NewWatermillBridgeWithTracer is shorthand for NewWatermillBridge(WithTracer(tracer)).
func NewWatermillBridgeWithTracer(tracer trace.Tracer) *WatermillBridge {
	return NewWatermillBridge(WithTracer(tracer))
}

func mapToWatermillMessage(ctx context.Context, msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.SetContext(ctx)

	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	wmMsg.Metadata.Set(metaKeyOrigin, msg.Origin)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)

	return wmMsg
}

func mapToPubSubMessage(wmMsg *message.Message) Message {
	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		if k != metaKeyOrigin && k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Message{
		Topic:    wmMsg.Metadata.Get(metaKeyTopic),
		Origin:   wmMsg.Metadata.Get(metaKeyOrigin),
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements Publisher.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return fmt.Errorf("publish: empty topic")
	}
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(ctx, msg))
}

// Subscribe implements Subscriber. Messages are handled sequentially per
// subscription; a handler error nacks the message and is logged.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		for wmMsg := range messages {
			msg := mapToPubSubMessage(wmMsg)
			if err := wb.process(ctx, wmMsg, msg, handler); err != nil {
				wb.logger.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
				wmMsg.Nack()
				continue
			}
			wmMsg.Ack()
		}
		wb.logger.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

func (wb *WatermillBridge) process(ctx context.Context, wmMsg *message.Message, msg Message, handler Handler) error {
	if wb.tracer == nil {
		return handler(ctx, msg)
	}

	spanCtx, span := wb.tracer.Start(ctx, "pubsub.process."+msg.Topic,
		trace.WithAttributes(
			attribute.String("messaging.system", "watermill"),
			attribute.String("messaging.operation", "process"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message_id", wmMsg.UUID),
			attribute.String("chat.origin", msg.Origin),
			attribute.Int("messaging.message_payload_size_bytes", len(msg.Payload)),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Close shuts the bus down and ends every subscription loop.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
