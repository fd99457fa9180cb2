package search

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s used for matching. A Caser is
// stateful, so each call gets its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
