package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached rejects keys over 250 bytes.
const maxKeyLength = 250

// MemcachedCache implements Cache using memcached. Values are stored as JSON
// together with their store time so freshness is evaluated exactly as in memory.
type MemcachedCache[V any] struct {
	client *memcache.Client
	prefix string
	now    func() time.Time
}

type envelope[V any] struct {
	Value    V         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
	TTL      int64     `json:"ttl_ns"`
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"); prefix namespaces keys
// per cache ("forecast:", "search:"). timeout and maxIdleConns use package defaults if zero.
func NewMemcachedCache[V any](addrs, prefix string, timeout time.Duration, maxIdleConns int) (*MemcachedCache[V], error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache[V]{client: client, prefix: prefix, now: time.Now}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key escapes k into memcached's key alphabet (no spaces or control characters).
func (c *MemcachedCache[V]) key(k string) string {
	full := c.prefix + url.QueryEscape(k)
	if len(full) <= maxKeyLength {
		return full
	}
	sum := sha256.Sum256([]byte(k))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get implements Cache.Get. Returns false, nil on miss or stale entry; false, err on error.
func (c *MemcachedCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if ctx.Err() != nil {
		return zero, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return zero, false, nil
		}
		return zero, false, err
	}
	var env envelope[V]
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return zero, false, err
	}
	if c.now().Sub(env.StoredAt) >= time.Duration(env.TTL) {
		return zero, false, nil
	}
	return env.Value, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(envelope[V]{Value: value, StoredAt: c.now(), TTL: int64(ttl)})
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

// expirationSeconds rounds ttl up to whole seconds; freshness is re-checked on Get.
// memcached reads larger values as absolute timestamps, so TTLs are clamped to 30 days.
func expirationSeconds(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	sec := int64((ttl + time.Second - 1) / time.Second)
	switch {
	case sec <= 0:
		return 3600
	case sec > maxRelativeExp:
		return maxRelativeExp
	}
	return int32(sec)
}

// Ping checks if memcached is reachable. Used by the health check.
func (c *MemcachedCache[V]) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache[V]) Close() error {
	return c.client.Close()
}
