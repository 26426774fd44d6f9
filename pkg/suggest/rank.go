package suggest

import (
	"sort"
	"strings"
)

// DefaultMaxResults caps a ranked list when RankOptions.MaxResults is unset.
const DefaultMaxResults = 10

// RankOptions controls Rank.
type RankOptions struct {
	MaxResults    int
	CaseSensitive bool
}

// Scored is a ranked suggestion with its combined score.
type Scored struct {
	Suggestion
	Score int
}

func (o RankOptions) limit() int {
	if o.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return o.MaxResults
}

// Rank orders candidates for query: combined score descending, display name
// ascending on ties, capped at opts.MaxResults. Candidates that do not match
// are dropped. An empty query returns every candidate alphabetically.
func Rank(candidates []Suggestion, query string, opts RankOptions) []Suggestion {
	scored := RankScored(candidates, query, opts)
	out := make([]Suggestion, len(scored))
	for i, s := range scored {
		out[i] = s.Suggestion
	}
	return out
}

// RankScored is Rank keeping the combined score of each result.
// Results of an empty query carry a zero score.
func RankScored(candidates []Suggestion, query string, opts RankOptions) []Scored {
	limit := opts.limit()

	if strings.TrimSpace(query) == "" {
		return alphabetical(candidates, limit)
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		s := ScoreCase(c.DisplayName, query, opts.CaseSensitive)
		if s == ScoreNone {
			continue
		}
		scored = append(scored, Scored{Suggestion: c, Score: s + c.Weight()})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return less(scored[i].Suggestion, scored[j].Suggestion)
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// alphabetical is the empty-query path; nothing is scored or filtered.
func alphabetical(candidates []Suggestion, limit int) []Scored {
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		out[i] = Scored{Suggestion: c}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i].Suggestion, out[j].Suggestion)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func less(a, b Suggestion) bool {
	if a.DisplayName != b.DisplayName {
		return a.DisplayName < b.DisplayName
	}
	return a.ID < b.ID
}
