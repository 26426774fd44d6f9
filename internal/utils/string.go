package utils

import (
	"strings"
)

// FormatSlug turns a slug into a readable fallback name: dashes and
// underscores become spaces and letters are upper-cased.
//
//	"iit-bombay" -> "IIT BOMBAY"
func FormatSlug(slug string) string {
	r := strings.NewReplacer("-", " ", "_", " ")
	return strings.ToUpper(strings.Join(strings.Fields(r.Replace(slug)), " "))
}

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}
