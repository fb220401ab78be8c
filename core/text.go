package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldText trims surrounding whitespace and applies Unicode case folding.
// Two texts are an exact match when their folded forms are equal.
func FoldText(s string) string {
	// A Caser carries state and cannot be shared between goroutines.
	return cases.Fold().String(strings.TrimSpace(s))
}

// TokenCount returns the number of whitespace-delimited tokens in s.
func TokenCount(s string) int {
	return len(strings.Fields(s))
}

// SingleLine collapses line breaks so text can be written as one line of a corpus file.
func SingleLine(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}
