// Package source provides the lookups behind the autocomplete controller:
// an in-process index over the institution tables and a remote JSON endpoint.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/bastiangx/campuscomplete/pkg/dictionary"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Local answers lookups from a dictionary.Registry. Each scope gets a
// suggest.Index built on first use and dropped when the scope reloads.
type Local struct {
	registry  *dictionary.Registry
	clock     clock.Clock
	latency   time.Duration
	shortlist int

	mu      sync.RWMutex
	indexes map[string]*suggest.Index
}

// LocalOption configures a Local source.
type LocalOption func(*Local)

// WithLatency delays every lookup by d on clk. A cancelled context ends the
// wait early with its error.
func WithLatency(clk clock.Clock, d time.Duration) LocalOption {
	return func(l *Local) {
		l.clock = clock.OrReal(clk)
		l.latency = d
	}
}

// WithShortlist sets how many ranked results the caller will keep, which
// bounds the candidate scan. It must be at least the ranking cap.
func WithShortlist(n int) LocalOption {
	return func(l *Local) {
		l.shortlist = n
	}
}

// NewLocal creates a source over registry.
func NewLocal(registry *dictionary.Registry, opts ...LocalOption) *Local {
	l := &Local{
		registry:  registry,
		clock:     clock.Real(),
		shortlist: suggest.DefaultMaxResults,
		indexes:   make(map[string]*suggest.Index),
	}
	for _, opt := range opts {
		opt(l)
	}
	registry.OnChange(l.drop)
	return l
}

// Lookup returns the candidates of scope that can rank for query.
// Ranking is left to the caller.
func (l *Local) Lookup(ctx context.Context, query, scope string) ([]suggest.Suggestion, error) {
	if l.latency > 0 {
		if err := l.clock.Sleep(ctx, l.latency); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix, err := l.index(scope)
	if err != nil {
		return nil, err
	}
	return ix.Candidates(query, l.shortlist), nil
}

func (l *Local) index(scope string) (*suggest.Index, error) {
	l.mu.RLock()
	ix, ok := l.indexes[scope]
	l.mu.RUnlock()
	if ok {
		return ix, nil
	}

	items, err := l.registry.Suggestions(scope)
	if err != nil {
		return nil, err
	}
	ix = suggest.NewIndex(items)

	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.indexes[scope]; ok {
		return cur, nil
	}
	l.indexes[scope] = ix
	return ix, nil
}

func (l *Local) drop(changed []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, scope := range changed {
		delete(l.indexes, scope)
	}
	log.Debugf("Dropped %d scope index(es)", len(changed))
}
