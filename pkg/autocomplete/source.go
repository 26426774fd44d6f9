// Package autocomplete drives a search-as-you-type box: debounced input,
// cached and retried lookups, stale result suppression and the published
// list state.
package autocomplete

import (
	"context"

	"github.com/bastiangx/campuscomplete/pkg/suggest"
)

// Source looks up candidates for a query within a scope. Implementations
// should honour ctx cancellation; failures are classified and retried by
// the controller.
type Source interface {
	Lookup(ctx context.Context, query, scope string) ([]suggest.Suggestion, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, query, scope string) ([]suggest.Suggestion, error)

func (f SourceFunc) Lookup(ctx context.Context, query, scope string) ([]suggest.Suggestion, error) {
	return f(ctx, query, scope)
}

// Key is the cache and fallback key for query in scope.
func Key(scope, query string) string {
	return ScopePrefix(scope) + suggest.Normalize(query)
}

// ScopePrefix is the prefix shared by every Key of scope.
func ScopePrefix(scope string) string {
	return suggest.Normalize(scope) + ":"
}

// relatedKeys lists the keys of successively shorter prefixes of query,
// longest first. Their stored results are supersets of what query would
// return, so they can stand in for it when the source is down.
func relatedKeys(scope, query string) []string {
	q := suggest.Normalize(query)
	var keys []string
	seen := map[string]bool{q: true}
	runes := []rune(q)
	for i := len(runes) - 1; i > 0; i-- {
		p := suggest.Normalize(string(runes[:i]))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		keys = append(keys, ScopePrefix(scope)+p)
	}
	return keys
}
