package utils

import (
	"strings"
)

// DuplicateFilter drops repeated keys, ignoring case and surrounding space.
// It is not safe for concurrent use.
type DuplicateFilter struct {
	seen map[string]bool
}

// NewDuplicateFilter creates a filter that treats every key in exclude as already seen
func NewDuplicateFilter(exclude ...string) *DuplicateFilter {
	seen := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		seen[foldKey(k)] = true
	}
	return &DuplicateFilter{seen: seen}
}

// ShouldInclude reports whether key is new, and records it
func (f *DuplicateFilter) ShouldInclude(key string) bool {
	k := foldKey(key)
	if f.seen[k] {
		return false
	}
	f.seen[k] = true
	return true
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
