// Package cache provides a small TTL-keyed in-process cache.
//
// Entries expire after their TTL and are dropped lazily on read. A bounded
// cache evicts its oldest entry, by insertion order, when it is full.
package cache

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultTTL applies when Set is called without an explicit ttl.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value  V
	expiry time.Time
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, entry[V]]
	ttl   time.Duration
	clock clock.Clock
}

type Option func(*options)

type options struct {
	ttl      time.Duration
	capacity int
	clock    clock.Clock
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithCapacity bounds the number of entries; 0 means unbounded.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func New[V any](opts ...Option) *Cache[V] {
	o := options{ttl: DefaultTTL, clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	size := o.capacity
	if size <= 0 {
		size = math.MaxInt32
	}
	l, _ := simplelru.NewLRU[string, entry[V]](size, nil) // size is always positive
	return &Cache[V]{lru: l, ttl: o.ttl, clock: o.clock}
}

// Get returns the value stored under key if it has not expired yet.
// An expired entry is removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	// Peek keeps insertion order intact for eviction.
	e, ok := c.lru.Peek(key)
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiry) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl (or the cache's default TTL).
func (c *Cache[V]) Set(key string, value V, ttl ...time.Duration) {
	d := c.ttl
	if len(ttl) > 0 {
		d = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// re-inserting moves the key to the back of the eviction queue
	c.lru.Remove(key)
	c.lru.Add(key, entry[V]{value: value, expiry: c.clock.Now().Add(d)})
}

// Invalidate removes every key containing pattern and returns how many were removed.
// An empty pattern clears the cache.
func (c *Cache[V]) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		n := c.lru.Len()
		c.lru.Purge()
		return n
	}
	var n int
	for _, key := range c.lru.Keys() {
		if strings.Contains(key, pattern) {
			c.lru.Remove(key)
			n++
		}
	}
	return n
}

// Len counts stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// GetOrLoad returns the cached value for key, or calls load and caches its result.
// Errors are not cached.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error), ttl ...time.Duration) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl...)
	return v, nil
}
