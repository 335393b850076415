package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RoleChangesChannel is the pub/sub channel shared by every portal instance.
const RoleChangesChannel = "portal:role-changes"

// RedisBroadcaster publishes role changes over Redis pub/sub so sessions held
// by other instances are refreshed too. Publishers also receive their own
// messages, so local delivery goes through Redis as well.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisClient parses url and checks the connection.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, logger: logger}
}

func (b *RedisBroadcaster) PublishRoleChange(ctx context.Context, userID string) error {
	payload, err := json.Marshal(RoleChange{UserID: userID})
	if err != nil {
		return fmt.Errorf("marshal role change: %w", err)
	}
	if err := b.client.Publish(ctx, RoleChangesChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// SubscribeRoleChanges returns once the subscription is confirmed by Redis.
func (b *RedisBroadcaster) SubscribeRoleChanges(fn func(RoleChange)) (func(), error) {
	ctx := context.Background()
	pubsub := b.client.Subscribe(ctx, RoleChangesChannel)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, pubsub)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var change RoleChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("Dropping malformed role change", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			fn(change)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

// Close ends every subscription. The Redis client stays owned by the caller.
func (b *RedisBroadcaster) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	var firstErr error
	for _, s := range subs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
