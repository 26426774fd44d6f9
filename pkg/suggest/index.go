package suggest

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Index shortlists candidates for a query. Every word-start suffix of a
// normalized display name is a trie key ("iit bombay" is stored under
// "iit bombay" and "bombay"), so a prefix visit finds all exact, prefix and
// word-prefix matches without scanning.
type Index struct {
	trie  *patricia.Trie
	items []Suggestion
	names []string
}

// NewIndex indexes items. The slice is copied.
func NewIndex(items []Suggestion) *Index {
	ix := &Index{
		trie:  patricia.NewTrie(),
		items: make([]Suggestion, len(items)),
		names: make([]string, len(items)),
	}
	copy(ix.items, items)

	for i, s := range ix.items {
		name := Normalize(s.DisplayName)
		ix.names[i] = name
		for _, key := range wordStarts(name) {
			ix.add(key, i)
		}
	}

	log.Debugf("Indexed %d suggestions", len(ix.items))
	return ix
}

func (ix *Index) add(key string, i int) {
	p := patricia.Prefix(key)
	if item := ix.trie.Get(p); item != nil {
		ids := item.([]int)
		if ids[len(ids)-1] != i {
			ix.trie.Set(p, append(ids, i))
		}
		return
	}
	ix.trie.Insert(p, []int{i})
}

// Len returns the number of indexed suggestions.
func (ix *Index) Len() int {
	return len(ix.items)
}

// All returns every indexed suggestion in insertion order.
func (ix *Index) All() []Suggestion {
	out := make([]Suggestion, len(ix.items))
	copy(out, ix.items)
	return out
}

// Lookup returns the suggestions having query at a word boundary of their
// display name, in insertion order.
func (ix *Index) Lookup(query string) []Suggestion {
	q := Normalize(query)
	if q == "" {
		return ix.All()
	}

	seen := make(map[int]bool)
	err := ix.trie.VisitSubtree(patricia.Prefix(q), func(_ patricia.Prefix, item patricia.Item) error {
		for _, i := range item.([]int) {
			seen[i] = true
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting index subtree: %v", err)
		return nil
	}

	out := make([]Suggestion, 0, len(seen))
	for i := range ix.items {
		if seen[i] {
			out = append(out, ix.items[i])
		}
	}
	return out
}

// Candidates returns a superset of the top max results for query.
//
// Word-boundary matches score at least ScoreWordPrefix and substring matches
// at most ScoreSubstring+MaxWeight, which is lower. Once the trie yields max
// word-boundary matches no substring match can reach the top max, so the
// linear scan is skipped.
func (ix *Index) Candidates(query string, max int) []Suggestion {
	q := Normalize(query)
	if q == "" {
		return ix.All()
	}
	if max <= 0 {
		max = DefaultMaxResults
	}

	hits := ix.Lookup(q)
	strong := 0
	for _, s := range hits {
		if Score(s.DisplayName, q) >= ScoreWordPrefix {
			strong++
		}
	}
	if strong >= max {
		return hits
	}

	out := make([]Suggestion, 0, len(hits))
	for i, name := range ix.names {
		if strings.Contains(name, q) {
			out = append(out, ix.items[i])
		}
	}
	return out
}

// wordStarts returns name and every suffix of it that begins a new word.
func wordStarts(name string) []string {
	var keys []string
	prevSpace := true
	for i, r := range name {
		space := unicode.IsSpace(r)
		if prevSpace && !space {
			keys = append(keys, name[i:])
		}
		prevSpace = space
	}
	return keys
}
