package lang

import (
	"strings"

	"github.com/poiesic/phrasebook/core"
)

// Analyzer turns text into lexical index terms. Ingestion and queries share
// the same analysis so that postings and query terms agree.
type Analyzer struct {
	normalizer *Normalizer
}

// NewAnalyzer creates an analyzer backed by normalizer.
func NewAnalyzer(normalizer *Normalizer) *Analyzer {
	return &Analyzer{normalizer: normalizer}
}

// Normalizer returns the underlying normalizer.
func (a *Analyzer) Normalizer() *Normalizer {
	return a.normalizer
}

// Terms normalizes text for language and splits it into terms. Repeated
// terms are kept so callers can derive term frequencies.
func (a *Analyzer) Terms(text string, language core.Language) []string {
	return splitTerms(a.normalizer.Normalize(text, language))
}

func splitTerms(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !isWordRune(r)
	})
}
