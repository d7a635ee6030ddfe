// Package ranking parses free-text peer evaluations into ordered label
// lists and aggregates them into cross-reviewer standings.
package ranking

import (
	"strings"
)

// Marker is the tag reviewers are instructed to place before their final
// ordered list. Everything after the marker is considered the ranking.
const Marker = "FINAL RANKING:"

// Parse extracts an ordered list of known labels from one evaluation text.
//
// If the marker is present, only text after it is scanned. Numbered lists
// ("1. Response 02"), plain lists, and inline prose all work: the parse
// keys on the label tokens themselves, in order of first appearance,
// deduplicated. Without a marker the whole text is scanned the same way.
// Text containing no known label yields an empty ranking; that is a parse
// outcome, not an error.
func Parse(text string, known []string) []string {
	scan := text
	if idx := markerIndex(text); idx >= 0 {
		scan = text[idx+len(Marker):]
	}

	type hit struct {
		label string
		pos   int
	}
	var hits []hit
	for _, l := range known {
		if pos := indexOfLabel(scan, l); pos >= 0 {
			hits = append(hits, hit{label: l, pos: pos})
		}
	}

	// Order of first appearance. Insertion sort keeps this simple and the
	// participant counts are small.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.label)
	}
	return out
}

// markerIndex finds the ranking marker case-insensitively. The scan stays
// on the original bytes: uppercasing the whole text first would shift the
// index whenever a preceding rune changes width under case mapping.
func markerIndex(text string) int {
	for i := 0; i+len(Marker) <= len(text); i++ {
		if strings.EqualFold(text[i:i+len(Marker)], Marker) {
			return i
		}
	}
	return -1
}

// indexOfLabel finds the first occurrence of a label that is not a prefix
// of a longer label: "Response 10" must not match inside "Response 100".
func indexOfLabel(text, label string) int {
	offset := 0
	for {
		pos := strings.Index(text[offset:], label)
		if pos < 0 {
			return -1
		}
		abs := offset + pos
		end := abs + len(label)
		if end >= len(text) || !isDigit(text[end]) {
			return abs
		}
		offset = end
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
