package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a read-through store for fetch results. Get reports a hit only for
// fresh entries: an entry stored at t with TTL d is fresh while now-t < d.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
}

// InMemoryCache implements Cache with a map. Stale entries are removed on access.
// Safe for concurrent use; check-then-fill remains two calls, so concurrent misses
// for the same key may each fetch (last writer wins).
type InMemoryCache[V any] struct {
	mu   sync.Mutex
	data map[string]cacheEntry[V]
	now  func() time.Time
}

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e cacheEntry[V]) fresh(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// NewInMemoryCache creates an empty cache using the wall clock.
func NewInMemoryCache[V any]() *InMemoryCache[V] {
	return NewInMemoryCacheWithClock[V](time.Now)
}

// NewInMemoryCacheWithClock creates an empty cache reading time from now. Used by tests.
func NewInMemoryCacheWithClock[V any](now func() time.Time) *InMemoryCache[V] {
	return &InMemoryCache[V]{
		data: make(map[string]cacheEntry[V]),
		now:  now,
	}
}

// Get returns (value, true, nil) for a fresh entry and (zero, false, nil) otherwise.
func (c *InMemoryCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.data[key]
	if !ok {
		return zero, false, nil
	}
	if !entry.fresh(c.now()) {
		delete(c.data, key)
		return zero, false, nil
	}
	return entry.value, true, nil
}

// Set stores value stamped with the current time.
func (c *InMemoryCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}
	return nil
}

// Len returns the number of stored entries, fresh or not.
func (c *InMemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
