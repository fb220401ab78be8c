package lang

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball"
	"github.com/poiesic/phrasebook/core"
)

const (
	minStemRunes  = 3
	maxStemRounds = 8
)

// Normalizer rewrites query text for lexical matching according to the
// profile of the declared language. The branch is chosen on every call.
type Normalizer struct {
	registry *Registry
}

// NewNormalizer creates a normalizer over registry. A nil registry uses the built-in profiles.
func NewNormalizer(registry *Registry) *Normalizer {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Normalizer{registry: registry}
}

// Normalize returns query normalized for language.
//
// Aggressive languages: every whitespace token keeps its leading and trailing
// non-alphanumeric shell, the core has inner punctuation removed and is
// lowercased, and a core of at least three runes is stemmed. Tokens are
// rejoined with single spaces.
//
// Conservative languages: the query is lowercased and otherwise unchanged.
//
// Normalize is idempotent.
func (n *Normalizer) Normalize(query string, language core.Language) string {
	profile := n.registry.Profile(language)
	if profile.Mode != Aggressive {
		return strings.ToLower(query)
	}

	fields := strings.Fields(query)
	for i, token := range fields {
		fields[i] = normalizeToken(token, profile.Stemmer)
	}
	return strings.Join(fields, " ")
}

func normalizeToken(token, stemmer string) string {
	start := strings.IndexFunc(token, isWordRune)
	if start < 0 {
		return token
	}
	end := strings.LastIndexFunc(token, isWordRune)
	_, size := utf8.DecodeRuneInString(token[end:])
	end += size

	lead, core, trail := token[:start], token[start:end], token[end:]
	core = strings.ToLower(strings.Map(keepWordRune, core))
	if utf8.RuneCountInString(core) >= minStemRunes {
		core = stemFixpoint(core, stemmer)
	}
	return lead + core + trail
}

// stemFixpoint applies the stemmer until the word stops changing.
// Some snowball stemmers do not return a fixed point after one pass.
func stemFixpoint(word, stemmer string) string {
	for range maxStemRounds {
		stemmed, err := snowball.Stem(word, stemmer, true)
		if err != nil || stemmed == "" || stemmed == word {
			return word
		}
		if utf8.RuneCountInString(stemmed) < minStemRunes {
			return stemmed
		}
		word = stemmed
	}
	return word
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func keepWordRune(r rune) rune {
	if isWordRune(r) {
		return r
	}
	return -1
}
