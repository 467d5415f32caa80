package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/jamscore/internal/adapter/metrics"
	"github.com/pscheid92/jamscore/internal/domain"
)

// Cache stores query results shared by all instances. Keys embed a
// per-namespace version so Purge is a single INCR; stale versions expire by TTL.
type Cache struct {
	rdb     goredis.Cmdable
	metrics *metrics.CacheMetrics
}

var _ domain.Cache = (*Cache)(nil)

// NewCache wraps rdb. m may be nil.
func NewCache(rdb goredis.Cmdable, m *metrics.CacheMetrics) *Cache {
	return &Cache{rdb: rdb, metrics: m}
}

func versionKey(namespace string) string {
	return "cache:" + namespace + ":version"
}

func (c *Cache) versioned(ctx context.Context, namespace, key string) (string, error) {
	version, err := c.rdb.Get(ctx, versionKey(namespace)).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("failed to read cache version: %w", err)
	}
	return "cache:" + namespace + ":v" + strconv.FormatInt(version, 10) + ":" + key, nil
}

// Get reports a miss without error while the circuit breaker is open.
func (c *Cache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	k, err := c.versioned(ctx, namespace, key)
	if err == nil {
		var raw []byte
		raw, err = c.rdb.Get(ctx, k).Bytes()
		if err == nil {
			c.hit(namespace)
			return raw, true, nil
		}
	}
	c.miss(namespace)
	if errors.Is(err, goredis.Nil) || IsOpen(err) {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("failed to read cache: %w", err)
}

func (c *Cache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	k, err := c.versioned(ctx, namespace, key)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, namespace, key string) error {
	k, err := c.versioned(ctx, namespace, key)
	if err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	c.invalidated(namespace)
	return nil
}

func (c *Cache) Purge(ctx context.Context, namespace string) error {
	if err := c.rdb.Incr(ctx, versionKey(namespace)).Err(); err != nil {
		return fmt.Errorf("failed to purge cache namespace: %w", err)
	}
	c.invalidated(namespace)
	return nil
}

func (c *Cache) hit(namespace string) {
	if c.metrics != nil {
		c.metrics.Hit(namespace)
	}
}

func (c *Cache) miss(namespace string) {
	if c.metrics != nil {
		c.metrics.Miss(namespace)
	}
}

func (c *Cache) invalidated(namespace string) {
	if c.metrics != nil {
		c.metrics.Invalidated(namespace)
	}
}
