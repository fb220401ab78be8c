package lang

import (
	"strings"

	"github.com/poiesic/phrasebook/core"
)

// Detector is a cheap language-consistency heuristic based on the
// distinguishing letters and stop words of each profile.
type Detector struct {
	registry *Registry
}

// NewDetector creates a detector over registry. A nil registry uses the built-in profiles.
func NewDetector(registry *Registry) *Detector {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Detector{registry: registry}
}

// Evidence counts the letters of text found in the language's distinguishing
// set plus the words of text found in its stop-word list.
func (d *Detector) Evidence(text string, language core.Language) int {
	profile := d.registry.Profile(language)
	lower := strings.ToLower(text)

	score := 0
	if profile.Diacritics != "" {
		for _, r := range lower {
			if strings.ContainsRune(profile.Diacritics, r) {
				score++
			}
		}
	}
	if len(profile.StopWords) > 0 {
		for _, word := range splitTerms(lower) {
			for _, stop := range profile.StopWords {
				if word == stop {
					score++
					break
				}
			}
		}
	}
	return score
}

// Consistent reports whether text plausibly belongs to declared rather than
// other. Text is rejected only when the evidence for other strictly exceeds
// the evidence for declared, so text with no evidence either way is kept.
func (d *Detector) Consistent(text string, declared, other core.Language) bool {
	if declared == other || other == "" {
		return true
	}
	return d.Evidence(text, other) <= d.Evidence(text, declared)
}
