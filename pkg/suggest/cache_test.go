package suggest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestCache(size int, ttl time.Duration) (*Cache[string], *clock.Fake) {
	fc := clock.NewFake(epoch)
	return NewCache[string](CacheOptions{MaxSize: size, TTL: ttl, Clock: fc}), fc
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)

	c.Set("dtu", "Delhi Technological University")
	v, ok := c.Get("dtu")

	require.True(t, ok)
	assert.Equal(t, "Delhi Technological University", v)
	assert.True(t, c.Has("dtu"))

	_, ok = c.Get("nsut")
	assert.False(t, ok)
}

func TestCache_CapacityEvictsExactlyOne(t *testing.T) {
	for _, n := range []int{1, 2, 5, 16} {
		t.Run(fmt.Sprintf("size_%d", n), func(t *testing.T) {
			c, _ := newTestCache(n, time.Hour)
			for i := 0; i <= n; i++ {
				c.Set(fmt.Sprintf("k%d", i), "v")
			}

			assert.Equal(t, n, c.Len())
			assert.False(t, c.Has("k0"), "first inserted key is the LRU victim")
			assert.Equal(t, uint64(1), c.Stats().Evictions)
		})
	}
}

func TestCache_EvictsLeastRecentlyAccessed(t *testing.T) {
	// Given: a full cache of A, B, C
	c, _ := newTestCache(3, time.Hour)
	c.Set("a", "A")
	c.Set("b", "B")
	c.Set("c", "C")

	// When: A is read and a new key arrives
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("d", "D")

	// Then: B goes, A stays
	assert.False(t, c.Has("b"))
	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("c"))
	assert.True(t, c.Has("d"))
	assert.Equal(t, []string{"c", "a", "d"}, c.Keys())
}

func TestCache_ExpiredGetIsMissAndRemoves(t *testing.T) {
	c, fc := newTestCache(4, 5*time.Minute)
	c.Set("dtu", "results")

	fc.Advance(5*time.Minute + time.Millisecond)

	_, ok := c.Get("dtu")
	assert.False(t, ok)
	_, present := c.Peek("dtu")
	assert.False(t, present, "expired entry is purged on lookup")
	assert.Equal(t, uint64(1), c.Stats().Expired)
}

func TestCache_TTLScenarioMinuteFourAndSix(t *testing.T) {
	// Given: "dtu" cached with a five minute TTL
	c, fc := newTestCache(10, 5*time.Minute)
	c.Set("dtu", "results")

	// When: read at minute 4
	fc.Advance(4 * time.Minute)
	_, hit := c.Get("dtu")

	// Then: hit
	assert.True(t, hit)

	// When: read at minute 6
	fc.Advance(2 * time.Minute)
	_, hit = c.Get("dtu")

	// Then: miss
	assert.False(t, hit)
}

func TestCache_AccessBookkeeping(t *testing.T) {
	c, _ := newTestCache(4, time.Hour)
	c.Set("a", "A")
	c.Set("b", "B")

	c.Get("a")
	c.Get("a")

	a, _ := c.Peek("a")
	b, _ := c.Peek("b")
	assert.Equal(t, 2, a.AccessCount)
	assert.Zero(t, b.AccessCount)
	assert.Greater(t, a.LastAccessedOrder, b.LastAccessedOrder)
	assert.Equal(t, epoch, a.StoredAt)
}

func TestCache_SetRefreshesInPlace(t *testing.T) {
	c, fc := newTestCache(2, time.Minute)
	c.Set("a", "old")
	c.Get("a")

	fc.Advance(50 * time.Second)
	c.Set("a", "new")
	fc.Advance(50 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok, "refresh resets the entry age")
	assert.Equal(t, "new", v)
	e, _ := c.Peek("a")
	assert.Equal(t, 2, e.AccessCount)
	assert.Zero(t, c.Stats().Evictions)
}

func TestCache_CleanupSweepsOnlyExpired(t *testing.T) {
	c, fc := newTestCache(10, time.Minute)
	c.Set("old1", "x")
	c.Set("old2", "x")
	fc.Advance(30 * time.Second)
	c.Set("fresh", "x")
	c.Get("old1")
	fc.Advance(45 * time.Second)

	removed := c.Cleanup()

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"fresh"}, c.Keys())
}

func TestCache_DeleteAndDeletePrefix(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	c.Set("josaa:iit", "x")
	c.Set("josaa:nit", "x")
	c.Set("acpc:ld", "x")

	assert.True(t, c.Delete("acpc:ld"))
	assert.False(t, c.Delete("acpc:ld"))
	assert.Equal(t, 2, c.DeletePrefix("josaa:"))
	assert.Zero(t, c.Len())
}

func TestCache_SweeperRunsOnInterval(t *testing.T) {
	c, fc := newTestCache(10, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := c.StartSweeper(ctx, 30*time.Second)
	c.Set("a", "x")
	c.Set("b", "x")

	fc.Advance(90 * time.Second)
	assert.Zero(t, c.Len(), "sweep removes entries nobody looked up")

	require.True(t, sweep.Cancel())
	c.Set("c", "x")
	fc.Advance(5 * time.Minute)
	assert.Equal(t, 1, c.Len(), "cancelled sweeper stops sweeping")
	assert.Zero(t, fc.Pending())
}

func TestCache_Defaults(t *testing.T) {
	c := NewCache[int](CacheOptions{})
	assert.Equal(t, DefaultCacheSize, c.Stats().MaxSize)
}
