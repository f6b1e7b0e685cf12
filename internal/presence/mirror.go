package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/nfrund/chatter/internal/pubsub"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMirrorKey     = "chatter:online"
	defaultMirrorChannel = "chatter:presence"
)

// RedisMirror copies presence snapshots into Redis so other processes can
// read who is online (a set at Key) and follow changes (Channel).
type RedisMirror struct {
	client  *redis.Client
	key     string
	channel string
	logger  *slog.Logger

	mu          sync.Mutex
	lastVersion uint64
}

// MirrorOption configures a RedisMirror.
type MirrorOption func(*RedisMirror)

// WithMirrorKey overrides the Redis key prefix.
func WithMirrorKey(key string) MirrorOption {
	return func(m *RedisMirror) { m.key = key }
}

// WithMirrorChannel overrides the Redis pub/sub channel.
func WithMirrorChannel(channel string) MirrorOption {
	return func(m *RedisMirror) { m.channel = channel }
}

// WithMirrorLogger replaces the mirror logger.
func WithMirrorLogger(logger *slog.Logger) MirrorOption {
	return func(m *RedisMirror) { m.logger = logger }
}

// NewRedisMirror returns a mirror writing through client.
func NewRedisMirror(client *redis.Client, opts ...MirrorOption) *RedisMirror {
	m := &RedisMirror{
		client:  client,
		key:     defaultMirrorKey,
		channel: defaultMirrorChannel,
		logger:  slog.Default().With("service", "presence.mirror"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes the mirror to presence changes on sub. The mirror is best
// effort: a failed write is logged and the snapshot dropped, and the next
// change rewrites the whole set.
func (m *RedisMirror) Start(ctx context.Context, sub pubsub.Subscriber) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return pubsub.Subscribe(ctx, sub, TopicChanged, m.onChanged)
}

func (m *RedisMirror) onChanged(ctx context.Context, event Changed) error {
	if err := m.Apply(ctx, event); err != nil {
		m.logger.Error("Presence mirror write failed, snapshot dropped", "version", event.Version, "error", err)
	}
	return nil
}

// Apply writes one snapshot. Snapshots older than the last applied one are ignored.
func (m *RedisMirror) Apply(ctx context.Context, event Changed) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Version != 0 && event.Version <= m.lastVersion {
		m.logger.Debug("skipping stale presence snapshot", "version", event.Version, "last", m.lastVersion)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.key)
		if len(event.Users) > 0 {
			members := make([]any, len(event.Users))
			for i, u := range event.Users {
				members[i] = u
			}
			pipe.SAdd(ctx, m.key, members...)
		}
		pipe.Set(ctx, m.key+":version", strconv.FormatUint(event.Version, 10), 0)
		pipe.Publish(ctx, m.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror presence: %w", err)
	}

	m.lastVersion = event.Version
	return nil
}

// Online reads the mirrored set.
func (m *RedisMirror) Online(ctx context.Context) ([]string, error) {
	return m.client.SMembers(ctx, m.key).Result()
}
