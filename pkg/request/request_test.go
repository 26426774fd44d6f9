package request

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_SupersedesPrevious(t *testing.T) {
	c := NewCoordinator()

	t1 := c.Issue(context.Background())
	require.True(t, t1.IsCurrent())

	t2 := c.Issue(context.Background())

	assert.Greater(t, t2.ID, t1.ID)
	assert.False(t, t1.IsCurrent())
	assert.True(t, t2.IsCurrent())
	assert.ErrorIs(t, t1.Context().Err(), context.Canceled)
	assert.NoError(t, t2.Context().Err())
	assert.Equal(t, t2.ID, c.Current())
}

func TestIssue_LateResultIsDiscarded(t *testing.T) {
	// Given: a slow lookup under t1
	c := NewCoordinator()
	applied := ""
	apply := func(tok *Token, result string) {
		if tok.IsCurrent() {
			applied = result
		}
	}
	t1 := c.Issue(context.Background())

	// When: t2 is issued and resolves first, then t1 resolves
	t2 := c.Issue(context.Background())
	apply(t2, "second")
	apply(t1, "first")

	// Then: only t2's result is applied
	assert.Equal(t, "second", applied)
}

func TestInvalidate(t *testing.T) {
	c := NewCoordinator()
	tok := c.Issue(context.Background())

	c.Invalidate()

	assert.False(t, tok.IsCurrent())
	assert.Zero(t, c.Current())
	select {
	case <-tok.Done():
	default:
		t.Fatal("invalidated token context not cancelled")
	}

	next := c.Issue(context.Background())
	assert.Greater(t, next.ID, tok.ID, "IDs never repeat")
}

func TestIssue_ParentCancellation(t *testing.T) {
	c := NewCoordinator()
	parent, cancel := context.WithCancel(context.Background())

	tok := c.Issue(parent)
	cancel()

	assert.Error(t, tok.Context().Err())
	assert.True(t, tok.IsCurrent(), "parent cancellation does not retire the token")
}

func TestRelease(t *testing.T) {
	c := NewCoordinator()
	tok := c.Issue(context.Background())

	tok.Release()

	assert.Error(t, tok.Context().Err())
	assert.True(t, tok.IsCurrent())
}

func TestNilTokenIsNeverCurrent(t *testing.T) {
	var tok *Token
	assert.False(t, tok.IsCurrent())
}

func TestIssue_ConcurrentIDsStrictlyIncrease(t *testing.T) {
	c := NewCoordinator()
	const n = 200
	ids := make(chan uint64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- c.Issue(context.Background()).ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	var max uint64
	for id := range ids {
		require.False(t, seen[id], "duplicate token %d", id)
		seen[id] = true
		if id > max {
			max = id
		}
	}
	assert.Equal(t, uint64(n), max)
	assert.Equal(t, max, c.Current())
}
