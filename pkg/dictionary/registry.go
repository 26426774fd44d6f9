package dictionary

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Registry holds the flattened suggestions of every scope and swaps them
// atomically when the tables are reloaded.
type Registry struct {
	mu        sync.RWMutex
	table     *Table
	resolve   Resolver
	scopes    map[string][]suggest.Suggestion
	version   uint64
	listeners []func(changed []string)
}

// NewRegistry flattens t. A nil resolver uses the table's own names.
func NewRegistry(t *Table, resolve Resolver) *Registry {
	r := &Registry{resolve: resolve}
	r.table, r.scopes = t, r.flatten(t)
	r.version = 1
	return r
}

func (r *Registry) flatten(t *Table) map[string][]suggest.Suggestion {
	resolve := r.resolve
	if resolve == nil {
		resolve = NameMap(t.Names)
	}
	out := make(map[string][]suggest.Suggestion, len(t.Scopes))
	for _, name := range t.ScopeNames() {
		items, err := t.Flatten(name, resolve)
		if err != nil {
			continue
		}
		out[name] = items
	}
	return out
}

// Scopes returns the loaded scope names, sorted.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scopes))
	for name := range r.scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suggestions returns the flattened entries of scope. The slice is shared
// and must not be modified.
func (r *Registry) Suggestions(scope string) ([]suggest.Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items, ok := r.scopes[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
	return items, nil
}

// Count returns the number of entries per scope.
func (r *Registry) Count() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.scopes))
	for name, items := range r.scopes {
		out[name] = len(items)
	}
	return out
}

// Files lists the table files behind the current contents.
func (r *Registry) Files() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.table.Files...)
}

// Version increases on every Replace that changed something.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// OnChange registers fn to receive the scopes changed by each Replace.
func (r *Registry) OnChange(fn func(changed []string)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Replace swaps in t and returns the scopes that were added, removed or
// modified. Listeners run after the swap, outside the lock.
func (r *Registry) Replace(t *Table) []string {
	next := r.flatten(t)

	r.mu.Lock()
	changed := diffScopes(r.scopes, next)
	r.table, r.scopes = t, next
	if len(changed) > 0 {
		r.version++
	}
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	log.Infof("Tables reloaded: %d scope(s) changed %v", len(changed), changed)
	for _, fn := range listeners {
		fn(changed)
	}
	return changed
}

// Reload reads dir and replaces the contents. On any load error the current
// contents are kept.
func (r *Registry) Reload(dir string) ([]string, error) {
	t, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return r.Replace(t), nil
}

func diffScopes(old, next map[string][]suggest.Suggestion) []string {
	var changed []string
	for name, items := range next {
		if prev, ok := old[name]; !ok || !sameSuggestions(prev, items) {
			changed = append(changed, name)
		}
	}
	for name := range old {
		if _, ok := next[name]; !ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

func sameSuggestions(a, b []suggest.Suggestion) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.DisplayName != y.DisplayName || x.ProgramID != y.ProgramID ||
			(x.RelevanceWeight == nil) != (y.RelevanceWeight == nil) || x.Weight() != y.Weight() {
			return false
		}
	}
	return true
}
