package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetOrLoad(t *testing.T) {
	c := New[[]string](time.Minute, "test", zap.NewNop())
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"a"}, nil
	}

	for range 3 {
		v, err := c.GetOrLoad(context.Background(), Key("list", "gallery"), load)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{Hits: 2, Misses: 1, Sets: 1}, c.Stats())
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New[int](time.Minute, "test", nil)

	_, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)

	v, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestDeleteAndClear(t *testing.T) {
	c := New[string](time.Minute, "test", nil)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	c.Delete("a", "b")
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	c.Clear()
	_, ok = c.Get("c")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New[string](20*time.Millisecond, "test", nil)
	c.Set("a", "1")
	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "list:gallery", Key("list", "gallery"))
}
