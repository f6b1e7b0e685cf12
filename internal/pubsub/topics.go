package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// TopicInfo describes a registered topic.
type TopicInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TypeName    string   `json:"type_name"`
	Fields      []string `json:"payload_fields"`
}

var (
	topicsMu sync.RWMutex
	topics   = make(map[string]TopicInfo)
)

// Event is a topic bound to a payload type.
type Event[T any] struct {
	name string
}

// NewEvent defines a typed topic and records it in the topic catalog.
// Defining the same name twice panics; events are declared at package level.
func NewEvent[T any](name, description string) Event[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	info := TopicInfo{Name: name, Description: description}
	if t != nil {
		info.TypeName = t.String()
		info.Fields = jsonFields(t)
	}

	topicsMu.Lock()
	defer topicsMu.Unlock()
	if _, exists := topics[name]; exists {
		panic(fmt.Sprintf("pubsub: topic already defined: %s", name))
	}
	topics[name] = info

	return Event[T]{name: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.name
}

// Topics lists the catalog sorted by name.
func Topics() []TopicInfo {
	topicsMu.RLock()
	defer topicsMu.RUnlock()

	out := make([]TopicInfo, 0, len(topics))
	for _, info := range topics {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Publish encodes payload and publishes it on the event's topic.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], origin string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.name, err)
	}
	return p.Publish(ctx, Message{
		Topic:   event.name,
		Origin:  origin,
		Payload: data,
	})
}

// Subscribe registers a typed handler for event.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], handler func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, event.name, func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.name, err)
		}
		return handler(ctx, payload)
	})
}

func jsonFields(t reflect.Type) []string {
	if t.Kind() != reflect.Struct {
		return nil
	}
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		fields = append(fields, name)
	}
	return fields
}
