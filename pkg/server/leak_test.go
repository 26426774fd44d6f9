//go:build test

package server

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/bastiangx/campuscomplete/pkg/autocomplete"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var typingPatterns = [][]string{
	{"i", "ii", "iit", "iit ", "iit b", "iit bo", "iit bom", "iit bomb"},
	{"n", "ni", "nit", "nit t", "nit ti", "nit tir"},
	{"d", "de", "del", "delh", "delhi", "delhi t", "delhi tech"},
	{"t", "te", "tec", "tech", "techn", "techno", "technol", "technolo"},
	{"u", "un", "uni", "univ", "unive", "univer", "univers", "universi", "university"},
}

type memSample struct {
	alloc      uint64
	goroutines int
}

func sample() memSample {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return memSample{alloc: m.Alloc, goroutines: runtime.NumGoroutine()}
}

func (s memSample) delta(base memSample) (int64, int) {
	return int64(s.alloc) - int64(base.alloc), s.goroutines - base.goroutines
}

func controller(t *testing.T, h *harness, scope string) *autocomplete.Controller {
	t.Helper()
	c, err := h.engine.Controller(scope)
	require.NoError(t, err)
	return c
}

func typeAll(c *autocomplete.Controller, suffix int) int {
	ops := 0
	for _, pattern := range typingPatterns {
		for _, prefix := range pattern {
			q := prefix
			if suffix > 0 {
				q = fmt.Sprintf("%s%d", prefix, suffix)
			}
			_, _ = c.Query(context.Background(), q)
			ops++
		}
	}
	return ops
}

func TestMemory_RepeatedQueriesStayBounded(t *testing.T) {
	for _, iterations := range []int{100, 500, 1000} {
		t.Run(fmt.Sprintf("iterations_%d", iterations), func(t *testing.T) {
			h := newHarness(t)
			c := controller(t, h, "josaa")
			base := sample()

			ops := 0
			for i := 0; i < iterations; i++ {
				ops += typeAll(c, 0)
			}
			h.engine.Stop()

			memDelta, goroutineDelta := sample().delta(base)
			memPerOp := float64(memDelta) / float64(ops)
			t.Logf("iterations=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
				iterations, ops, memDelta, memPerOp, goroutineDelta)

			assert.Less(t, memPerOp, 1000.0, "excessive memory per operation")
			assert.LessOrEqual(t, goroutineDelta, 2, "goroutine leak")
		})
	}
}

func TestMemory_DistinctQueriesNeverOutgrowCache(t *testing.T) {
	// Given: far more distinct queries than the cache holds
	h := newHarness(t)
	maxSize := h.cfg.Cache.MaxSize
	josaa, jac := controller(t, h, "josaa"), controller(t, h, "jac")

	// When: typing them across both scopes
	for i := 1; i <= 50; i++ {
		typeAll(josaa, i)
		typeAll(jac, i)
		require.LessOrEqual(t, h.engine.Cache().Len(), maxSize)
	}

	// Then: the cache is full, evicting, and never over capacity
	stats := h.engine.Cache().Stats()
	t.Logf("entries=%d evictions=%d misses=%d", h.engine.Cache().Len(), stats.Evictions, stats.Misses)
	assert.Equal(t, maxSize, h.engine.Cache().Len())
	assert.Positive(t, stats.Evictions)
}

func TestMemory_ConcurrentScopes(t *testing.T) {
	configs := []struct {
		workers    int
		iterations int
	}{
		{workers: 1, iterations: 200},
		{workers: 4, iterations: 50},
		{workers: 8, iterations: 25},
	}

	for _, cfg := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", cfg.workers, cfg.iterations), func(t *testing.T) {
			h := newHarness(t)
			scopes := []*autocomplete.Controller{controller(t, h, "josaa"), controller(t, h, "jac")}
			base := sample()

			var wg sync.WaitGroup
			var mu sync.Mutex
			ops := 0
			for w := 0; w < cfg.workers; w++ {
				c := scopes[w%2]
				wg.Add(1)
				go func() {
					defer wg.Done()
					n := 0
					for i := 0; i < cfg.iterations; i++ {
						n += typeAll(c, 0)
					}
					mu.Lock()
					ops += n
					mu.Unlock()
				}()
			}
			wg.Wait()
			h.engine.Stop()

			memDelta, goroutineDelta := sample().delta(base)
			memPerOp := float64(memDelta) / float64(ops)
			t.Logf("workers=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
				cfg.workers, ops, memDelta, memPerOp, goroutineDelta)

			assert.Less(t, memPerOp, 1000.0, "excessive memory per operation")
			assert.LessOrEqual(t, goroutineDelta, 3, "goroutine leak")
		})
	}
}

func TestMemory_LongRunWithSweeps(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long-running memory test in short mode")
	}

	h := newHarness(t)
	c := controller(t, h, "josaa")
	base := sample()
	var peak int64

	for cycle := 0; cycle < 50; cycle++ {
		typeAll(c, cycle%7)
		if cycle%10 == 0 {
			memDelta, goroutineDelta := sample().delta(base)
			peak = max(peak, memDelta)
			t.Logf("cycle=%d mem_delta=%d bytes goroutine_delta=%d", cycle, memDelta, goroutineDelta)
		}
		if cycle%20 == 0 && cycle > 0 {
			h.clock.Advance(h.cfg.Cache.TTL())
			h.engine.Cache().Cleanup()
		}
	}
	h.engine.Stop()

	_, goroutineDelta := sample().delta(base)
	assert.LessOrEqual(t, goroutineDelta, 2, "goroutine leak")
	assert.Less(t, peak, int64(10*1024*1024), "excessive peak memory")
}
