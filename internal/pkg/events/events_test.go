package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) add(c RoleChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, c.UserID)
}

func (r *recorder) users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestLocalBroadcaster(t *testing.T) {
	b := NewLocalBroadcaster()
	rec := &recorder{}

	cancel, err := b.SubscribeRoleChanges(rec.add)
	require.NoError(t, err)

	require.NoError(t, b.PublishRoleChange(context.Background(), "u1"))
	cancel()
	require.NoError(t, b.PublishRoleChange(context.Background(), "u2"))

	assert.Equal(t, []string{"u1"}, rec.users())
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBroadcasterDeliversAcrossInstances(t *testing.T) {
	client := setupRedis(t)
	publisher := NewRedisBroadcaster(client, zap.NewNop())
	subscriber := NewRedisBroadcaster(client, zap.NewNop())
	defer subscriber.Close()

	rec := &recorder{}
	cancel, err := subscriber.SubscribeRoleChanges(rec.add)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, publisher.PublishRoleChange(context.Background(), "u1"))
	require.NoError(t, publisher.PublishRoleChange(context.Background(), "u2"))

	require.Eventually(t, func() bool {
		return len(rec.users()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"u1", "u2"}, rec.users())
}

func TestRedisBroadcasterSkipsMalformedPayload(t *testing.T) {
	client := setupRedis(t)
	b := NewRedisBroadcaster(client, zap.NewNop())
	defer b.Close()

	rec := &recorder{}
	_, err := b.SubscribeRoleChanges(rec.add)
	require.NoError(t, err)

	require.NoError(t, client.Publish(context.Background(), RoleChangesChannel, "not-json").Err())
	require.NoError(t, b.PublishRoleChange(context.Background(), "u3"))

	require.Eventually(t, func() bool {
		return len(rec.users()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"u3"}, rec.users())
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("://nope")
	assert.Error(t, err)
}
