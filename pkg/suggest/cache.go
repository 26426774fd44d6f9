package suggest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Cache defaults.
const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 5 * time.Minute
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	MaxSize int
	TTL     time.Duration
	Clock   clock.Clock
}

// Entry is a stored value with its bookkeeping.
type Entry[V any] struct {
	Value             V
	StoredAt          time.Time
	LastAccessedOrder uint64
	AccessCount       int
}

// CacheStats is a point-in-time view of cache counters.
type CacheStats struct {
	Size      int    `json:"size" msgpack:"size"`
	MaxSize   int    `json:"max_size" msgpack:"max_size"`
	Hits      uint64 `json:"hits" msgpack:"hits"`
	Misses    uint64 `json:"misses" msgpack:"misses"`
	Evictions uint64 `json:"evictions" msgpack:"evictions"`
	Expired   uint64 `json:"expired" msgpack:"expired"`
}

// Cache is an LRU map bounded by size and entry age. Keys are used as given;
// callers normalize them.
type Cache[V any] struct {
	lru     *simplelru.LRU[string, *Entry[V]]
	ttl     time.Duration
	maxSize int
	clock   clock.Clock

	// accessOrder feeds Entry.LastAccessedOrder.
	accessOrder uint64

	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64

	mu sync.Mutex
}

// NewCache creates a cache. Zero options fall back to the package defaults.
func NewCache[V any](opts CacheOptions) *Cache[V] {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	lru, _ := simplelru.NewLRU[string, *Entry[V]](opts.MaxSize, nil)

	return &Cache[V]{
		lru:     lru,
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
		clock:   clock.OrReal(opts.Clock),
	}
}

// Get returns the live value for key and marks it most recently used.
// An expired entry is removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Peek(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if c.isExpired(e) {
		c.lru.Remove(key)
		c.expired++
		c.misses++
		return zero, false
	}

	c.lru.Get(key)
	e.AccessCount++
	e.LastAccessedOrder = c.nextAccessOrder()
	c.hits++
	return e.Value, true
}

// Set stores value under key. A present key is refreshed in place; a new key
// on a full cache evicts the least recently used entry first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if e, ok := c.lru.Peek(key); ok {
		e.Value = value
		e.StoredAt = now
		e.LastAccessedOrder = c.nextAccessOrder()
		c.lru.Get(key)
		return
	}

	if c.lru.Len() >= c.maxSize {
		if oldest, _, ok := c.lru.RemoveOldest(); ok {
			c.evictions++
			log.Debugf("Evicted '%s' from suggestion cache", oldest)
		}
	}
	c.lru.Add(key, &Entry[V]{
		Value:             value,
		StoredAt:          now,
		LastAccessedOrder: c.nextAccessOrder(),
	})
}

// Has reports whether key holds a live entry without touching its recency.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	if c.isExpired(e) {
		c.lru.Remove(key)
		c.expired++
		return false
	}
	return true
}

// Peek returns a copy of the entry for key, live or not, without side effects.
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return Entry[V]{}, false
	}
	return *e, true
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// DeletePrefix removes every key starting with prefix and returns how many went.
func (c *Cache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// Cleanup removes every expired entry regardless of recency and returns the count.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && c.isExpired(e) {
			c.lru.Remove(key)
			removed++
		}
	}
	c.expired += uint64(removed)
	return removed
}

// Purge drops every entry. Counters are kept.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the stored keys from least to most recently used.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Stats returns the cache counters.
func (c *Cache[V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:      c.lru.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
	}
}

// StartSweeper runs Cleanup every interval until ctx is done or the returned
// timer is cancelled.
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration) clock.Timer {
	s := &sweeper{}
	if interval <= 0 {
		s.stopped = true
		return s
	}

	var tick func()
	tick = func() {
		if ctx.Err() != nil {
			s.Cancel()
			return
		}
		if n := c.Cleanup(); n > 0 {
			log.Debugf("Cache sweep removed %d expired entries", n)
		}
		s.schedule(c.clock, interval, tick)
	}
	s.schedule(c.clock, interval, tick)
	return s
}

func (c *Cache[V]) isExpired(e *Entry[V]) bool {
	return c.clock.Now().Sub(e.StoredAt) >= c.ttl
}

func (c *Cache[V]) nextAccessOrder() uint64 {
	c.accessOrder++
	return c.accessOrder
}

type sweeper struct {
	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

func (s *sweeper) schedule(clk clock.Clock, interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.timer = clk.AfterFunc(interval, fn)
}

// Cancel stops the sweep loop.
func (s *sweeper) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Cancel()
	}
	return true
}
