// Package cache keeps short lived, typed copies of read mostly data.
package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/observability/metrics"
)

// Stats tracks cache performance
type Stats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// Cache is a TTL cache of values of one type.
type Cache[T any] struct {
	items  *gocache.Cache
	name   string // For logging and metric attributes
	logger *zap.Logger

	hits, misses, sets atomic.Int64
}

// New creates a cache whose entries live for ttl.
func New[T any](ttl time.Duration, name string, logger *zap.Logger) *Cache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[T]{
		items:  gocache.New(ttl, 2*ttl),
		name:   name,
		logger: logger,
	}
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

func (c *Cache[T]) Get(key string) (T, bool) {
	if v, ok := c.items.Get(key); ok {
		c.hits.Add(1)
		c.record("hit")
		return v.(T), true
	}
	c.misses.Add(1)
	c.record("miss")
	var zero T
	return zero, false
}

func (c *Cache[T]) Set(key string, value T) {
	c.items.SetDefault(key, value)
	c.sets.Add(1)
}

func (c *Cache[T]) Delete(keys ...string) {
	for _, k := range keys {
		c.items.Delete(k)
	}
}

func (c *Cache[T]) Clear() {
	c.items.Flush()
	c.logger.Debug("Cache cleared", zap.String("cache", c.name))
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Errors are not cached.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *Cache[T]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Sets: c.sets.Load()}
}

func (c *Cache[T]) record(result string) {
	metrics.Get().CacheLookupsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache", c.name),
		attribute.String("result", result),
	))
}
