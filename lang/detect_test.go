package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectorConsistent(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name     string
		text     string
		declared string
		other    string
		want     bool
	}{
		{"french text declared french", "Où est la gare ?", "fr", "en", true},
		{"french text declared english", "Où est la gare ?", "en", "fr", false},
		{"english text declared french", "the cat is here", "fr", "en", false},
		{"no evidence either way", "hello", "en", "fr", true},
		{"tie is kept", "merci and", "en", "fr", true},
		{"spanish punctuation", "¿Dónde está?", "es", "fr", true},
		{"german umlauts against english", "Schön, danke", "en", "de", false},
		{"cyrillic against english", "Спасибо", "en", "ru", false},
		{"same language", "anything", "en", "en", true},
		{"no other language", "anything", "en", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Consistent(tt.text, langOf(tt.declared), langOf(tt.other)))
		})
	}
}

func TestDetectorEvidence(t *testing.T) {
	d := NewDetector(nil)

	assert.Equal(t, 2, d.Evidence("the cat is here", "en"))
	assert.Equal(t, 0, d.Evidence("the cat is here", "fr"))
	assert.Equal(t, 0, d.Evidence("anything", "ja"))
}
