// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
	"unicode"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Fold lower-cases and trims a string for case-insensitive matching.
func Fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ContainsTerm reports whether term occurs in text on word boundaries.
// Both arguments are expected to be lower-cased already. Boundary checks keep
// short vocabulary terms like "go" or "qa" from matching inside larger words.
func ContainsTerm(text, term string) bool {
	if term == "" || text == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		from = start + 1
		if from >= len(text) {
			return false
		}
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordRune(rune(text[i-1]))
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	return !isWordRune(rune(text[i]))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Truncate cuts s to at most n bytes without splitting a multi-byte rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
