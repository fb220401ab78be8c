package lang

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/phrasebook/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func langOf(s string) core.Language {
	return core.Language(s)
}

func TestNewRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	for _, code := range []core.Language{"en", "fr", "es", "ru", "sv", "no", "hu"} {
		assert.Equal(t, Aggressive, r.Profile(code).Mode, code)
	}
	assert.Equal(t, Conservative, r.Profile("de").Mode)
	assert.Equal(t, Conservative, r.Profile("ja").Mode)
	assert.False(t, r.Known("ja"))
	assert.Contains(t, r.Languages(), core.Language("de"))
}

func TestRegistryProfileIsCopy(t *testing.T) {
	r := NewRegistry()
	p := r.Profile("en")
	p.StopWords[0] = "changed"
	p.Mode = Conservative

	assert.Equal(t, Aggressive, r.Profile("en").Mode)
	assert.Equal(t, "the", r.Profile("en").StopWords[0])
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Profile{Code: "EN-us", Mode: "Conservative"}))
	p := r.Profile("en")
	assert.Equal(t, Conservative, p.Mode)
	assert.Equal(t, core.Language("en"), p.Code)

	err := r.Register(Profile{Code: "de", Mode: Aggressive, Stemmer: "german"})
	require.ErrorIs(t, err, ErrUnsupportedStemmer)

	err = r.Register(Profile{Code: "de", Mode: "fuzzy"})
	require.ErrorIs(t, err, ErrUnknownMode)

	err = r.Register(Profile{Code: "not a tag"})
	require.ErrorIs(t, err, core.ErrInvalidLanguage)
}

func TestRegistryLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.yaml")
	doc := `languages:
  - code: de
    mode: conservative
    stop_words: [Der, die]
    diacritics: "ÄÖÜß"
  - code: it
    mode: aggressive
    stemmer: spanish
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadFile(path))

	de := r.Profile("de")
	assert.Equal(t, []string{"der", "die"}, de.StopWords)
	assert.Equal(t, "äöüß", de.Diacritics)
	assert.True(t, r.Known("it"))
	assert.Equal(t, Aggressive, r.Profile("it").Mode)
}

func TestReadProfilesRejectsUnknownFields(t *testing.T) {
	_, err := ReadProfiles(strings.NewReader("languages:\n  - code: en\n    stemming: yes\n"))
	require.Error(t, err)
}

func TestReadProfilesEmpty(t *testing.T) {
	profiles, err := ReadProfiles(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
