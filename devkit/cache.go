package devkit

import (
	"sync"
	"time"
)

// ttlItem holds a cached value and its absolute expiration (Unix ms).
type ttlItem[T any] struct {
	v   T
	exp int64
}

// TTLCache is a small, goroutine-safe in-memory key/value cache with one
// time-to-live shared by every entry.
//
//   - Concurrency: protected by a single mutex; safe for concurrent use.
//   - Expiration: an entry is visible while now < exp. Expired entries are
//     removed lazily when Get reads them; there is no background sweep.
//   - Capacity: when maxEntries > 0 and a new key would exceed it, the entry
//     written longest ago is evicted. maxEntries <= 0 means unbounded.
//   - Time resolution: milliseconds.
//   - Zero value: not ready for use; call NewTTLCache.
type TTLCache[T any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	data       map[string]ttlItem[T]
}

// CacheOption customizes a TTLCache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests that simulate the passage
// of time.
func WithClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) { o.now = now }
}

// NewTTLCache constructs a TTLCache holding at most maxEntries entries, each
// living for ttl. A non-positive ttl makes every entry expire immediately.
func NewTTLCache[T any](maxEntries int, ttl time.Duration, opts ...CacheOption) *TTLCache[T] {
	o := cacheOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[T]{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        o.now,
		data:       make(map[string]ttlItem[T]),
	}
}

// Get returns the value for k if present and not expired. An expired entry
// is deleted during this call and reported as a miss.
func (c *TTLCache[T]) Get(k string) (T, bool) {
	var zero T
	now := c.now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.data[k]
	if !ok {
		return zero, false
	}
	if now >= it.exp {
		delete(c.data, k)
		return zero, false
	}
	return it.v, true
}

// Set inserts or replaces the value for k, expiring at now + ttl.
func (c *TTLCache[T]) Set(k string, v T) {
	exp := c.now().Add(c.ttl).UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[k]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.data[k] = ttlItem[T]{v: v, exp: exp}
}

// evictOldestLocked drops the entry with the earliest expiry. With a uniform
// TTL that is the oldest write.
func (c *TTLCache[T]) evictOldestLocked() {
	var (
		oldest string
		minExp int64
		found  bool
	)
	for k, it := range c.data {
		if !found || it.exp < minExp {
			oldest, minExp, found = k, it.exp, true
		}
	}
	if found {
		delete(c.data, oldest)
	}
}

// Invalidate removes k. Removing an absent key is a no-op.
func (c *TTLCache[T]) Invalidate(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, k)
}

// InvalidateAll removes every entry.
func (c *TTLCache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.data)
}

// Len reports the number of resident entries. Expired entries that have
// not been read since they expired are still counted.
func (c *TTLCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// TTL returns the lifetime applied to every entry.
func (c *TTLCache[T]) TTL() time.Duration { return c.ttl }
