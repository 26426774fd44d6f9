// Package suggest is the core, providing institution suggestions, match scoring, ranking and the result cache.
package suggest

// Ranker orders candidate suggestions for a query.
type Ranker interface {
	// Rank returns the matching candidates, best first, capped at opts.MaxResults.
	Rank(candidates []Suggestion, query string, opts RankOptions) []Suggestion
}

// RankerFunc adapts a plain function to the Ranker interface.
type RankerFunc func(candidates []Suggestion, query string, opts RankOptions) []Suggestion

// Rank calls f.
func (f RankerFunc) Rank(candidates []Suggestion, query string, opts RankOptions) []Suggestion {
	return f(candidates, query, opts)
}

// DefaultRanker ranks with the package scoring policy.
var DefaultRanker Ranker = RankerFunc(Rank)
