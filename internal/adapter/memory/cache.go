package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a TTL map grouped by namespace.
type Cache struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items map[string]map[string]cacheItem
}

func NewCache(clock clockwork.Clock) *Cache {
	return &Cache{clock: clock, items: make(map[string]map[string]cacheItem)}
}

func (c *Cache) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[namespace][key]
	if !ok {
		return nil, false, nil
	}
	if !c.clock.Now().Before(item.expiresAt) {
		delete(c.items[namespace], key)
		return nil, false, nil
	}
	return slices.Clone(item.value), true, nil
}

func (c *Cache) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns, ok := c.items[namespace]
	if !ok {
		ns = make(map[string]cacheItem)
		c.items[namespace] = ns
	}
	ns[key] = cacheItem{value: slices.Clone(value), expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

func (c *Cache) Delete(_ context.Context, namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items[namespace], key)
	return nil
}

func (c *Cache) Purge(_ context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, namespace)
	return nil
}
