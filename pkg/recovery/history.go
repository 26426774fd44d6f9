package recovery

import (
	"sync"
	"time"
)

// History defaults.
const (
	DefaultErrorWindow           = 60 * time.Second
	DefaultErrorThreshold        = 3
	DefaultNetworkErrorThreshold = 2
)

// HistoryOptions configures the rolling error window.
type HistoryOptions struct {
	Window           time.Duration
	Threshold        int
	NetworkThreshold int
}

// HistorySnapshot summarises the errors inside the window.
type HistorySnapshot struct {
	Total   int          `json:"total" msgpack:"total"`
	ByKind  map[Kind]int `json:"by_kind" msgpack:"by_kind"`
	Prefers bool         `json:"prefer_fallback" msgpack:"prefer_fallback"`
}

// History is a rolling window of recent failures.
type History struct {
	mu     sync.Mutex
	opts   HistoryOptions
	events []*Error
}

// NewHistory creates a history. Zero options take the defaults.
func NewHistory(opts HistoryOptions) *History {
	if opts.Window <= 0 {
		opts.Window = DefaultErrorWindow
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultErrorThreshold
	}
	if opts.NetworkThreshold <= 0 {
		opts.NetworkThreshold = DefaultNetworkErrorThreshold
	}
	return &History{opts: opts}
}

// Record adds e to the window.
func (h *History) Record(e *Error) {
	if e == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, e)
	h.prune(e.OccurredAt)
}

// ShouldPreferFallback reports whether enough errors happened recently that
// stale data should be served without trying the source.
func (h *History) ShouldPreferFallback(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prune(now)
	return h.prefers()
}

// Snapshot returns the errors inside the window as of now.
func (h *History) Snapshot(now time.Time) HistorySnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prune(now)
	s := HistorySnapshot{Total: len(h.events), ByKind: make(map[Kind]int)}
	for _, e := range h.events {
		s.ByKind[e.Kind]++
	}
	s.Prefers = h.prefers()
	return s
}

// Reset forgets every recorded error.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}

// prefers must be called with h.mu held.
func (h *History) prefers() bool {
	if len(h.events) >= h.opts.Threshold {
		return true
	}
	network := 0
	for _, e := range h.events {
		if e.Kind == KindNetwork {
			network++
		}
	}
	return network >= h.opts.NetworkThreshold
}

// prune must be called with h.mu held.
func (h *History) prune(now time.Time) {
	cutoff := now.Add(-h.opts.Window)
	keep := h.events[:0]
	for _, e := range h.events {
		if e.OccurredAt.After(cutoff) {
			keep = append(keep, e)
		}
	}
	h.events = keep
}
