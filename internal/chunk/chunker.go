// Package chunk splits a transcript into bounded-size pieces suitable for a
// language model input window, preferring sentence boundaries over hard cuts.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Split divides text into ordered non-overlapping pieces of at most limit
// bytes each. Boundaries prefer the rightmost sentence end inside the limit,
// then the rightmost whitespace, then a hard cut. Empty or whitespace-only
// input yields no chunks; input within the limit yields exactly one. The
// only pieces allowed to exceed the limit are single runes wider than it.
func Split(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	rest := strings.TrimSpace(text)
	if rest == "" {
		return nil
	}

	var chunks []string
	for len(rest) > limit {
		cut := splitPoint(rest, limit)
		piece := strings.TrimSpace(rest[:cut])
		if piece != "" {
			chunks = append(chunks, piece)
		}
		rest = strings.TrimSpace(rest[cut:])
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// splitPoint returns the cut index for a string longer than limit.
func splitPoint(s string, limit int) int {
	window := s[:limit]

	// A sentence end too close to the start would produce tiny fragments;
	// only accept one in the right half of the window.
	if idx := lastSentenceEnd(window); idx >= limit/2 {
		return idx
	}
	if idx := strings.LastIndexAny(window, " \t\n"); idx > 0 {
		return idx
	}

	return runeCut(s, limit)
}

// lastSentenceEnd returns the index just past the rightmost sentence
// terminator followed by whitespace, or -1 when none exists.
func lastSentenceEnd(window string) int {
	for i := len(window) - 1; i > 0; i-- {
		if window[i] != ' ' && window[i] != '\n' && window[i] != '\t' {
			continue
		}
		switch window[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

// runeCut backs a byte cut off to the nearest rune boundary. A limit
// smaller than the leading rune cuts after that single rune, the
// smallest piece that is still valid UTF-8.
func runeCut(s string, cut int) int {
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}
