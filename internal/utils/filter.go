package utils

import (
	"strings"
	"unicode"
)

// IsSeparator checks if a rune may appear between words of an institution name
func IsSeparator(r rune) bool {
	switch r {
	case ' ', '_', '-', '.', '/', ',', '&', '(', ')', '\'':
		return true
	}
	return false
}

// IsOnlyNumbers checks if a string consists entirely of numeric digits
func IsOnlyNumbers(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ContainsSpecialChars checks if a string contains special characters
// (non-alphanumeric characters excluding name separators)
func ContainsSpecialChars(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !IsSeparator(r) {
			return true
		}
	}
	return false
}

// IsValidQuery checks if a query is worth a lookup.
// Blank queries, lone numbers and strings with symbols no name contains are rejected.
func IsValidQuery(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return false
	}
	if IsOnlyNumbers(s) {
		return false
	}
	return !ContainsSpecialChars(s)
}

// QueryLenOK checks a query length in runes against [minLen, maxLen].
// A non-positive maxLen means unbounded.
func QueryLenOK(s string, minLen, maxLen int) bool {
	n := len([]rune(strings.TrimSpace(s)))
	if n < minLen {
		return false
	}
	return maxLen <= 0 || n <= maxLen
}
