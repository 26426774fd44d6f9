package suggest

import (
	"strings"
)

// Match scores, highest precedence first.
const (
	ScoreExact      = 1000
	ScorePrefix     = 800
	ScoreWordPrefix = 600
	ScoreSubstring  = 400
	ScoreNone       = 0
)

// Normalize lower-cases and trims s. Cache keys and match inputs go through it.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Score rates how well candidate matches query, case-insensitively.
// An empty query scores 0 for every candidate.
func Score(candidate, query string) int {
	return ScoreCase(candidate, query, false)
}

// ScoreCase is Score with optional case sensitivity. Whitespace is always trimmed.
func ScoreCase(candidate, query string, caseSensitive bool) int {
	c := strings.TrimSpace(candidate)
	q := strings.TrimSpace(query)
	if !caseSensitive {
		c = strings.ToLower(c)
		q = strings.ToLower(q)
	}
	if q == "" {
		return ScoreNone
	}

	switch {
	case c == q:
		return ScoreExact
	case strings.HasPrefix(c, q):
		return ScorePrefix
	case hasWordPrefix(c, q):
		return ScoreWordPrefix
	case strings.Contains(c, q):
		return ScoreSubstring
	}
	return ScoreNone
}

func hasWordPrefix(candidate, query string) bool {
	for _, word := range strings.Fields(candidate) {
		if strings.HasPrefix(word, query) {
			return true
		}
	}
	return false
}
