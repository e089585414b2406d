// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// NormalizeText lowercases and trims s. Used for exact-match comparisons of questions and answers.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CompactLower removes all whitespace from s and lowercases it.
func CompactLower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// CharOverlapRatio compares a and b position by position after CompactLower and returns
// the share of equal runes relative to the longer string. Two empty strings give 0.
func CharOverlapRatio(a, b string) float64 {
	ra := []rune(CompactLower(a))
	rb := []rune(CompactLower(b))
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	same := 0
	for i := 0; i < min(len(ra), len(rb)); i++ {
		if ra[i] == rb[i] {
			same++
		}
	}
	return float64(same) / float64(longest)
}
