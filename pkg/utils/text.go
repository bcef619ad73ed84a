// Package utils provides shared utilities for text, math, and logging.
package utils

// Cap returns s truncated to maxLen characters (runes, never mid-sequence).
// If maxLen is 0 or negative, returns s unchanged. Nothing is appended;
// use Truncate for display output.
func Cap(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
