// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package lang

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/phrasebook/core"
)

// Mode selects how query terms are normalized for a language.
type Mode string

const (
	// Aggressive stems every token core of three or more runes.
	Aggressive Mode = "aggressive"
	// Conservative lowercases only; no suffix stripping.
	Conservative Mode = "conservative"
)

// SupportedStemmers lists the snowball stemmer names usable by aggressive profiles.
var SupportedStemmers = []string{
	"english",
	"french",
	"hungarian",
	"norwegian",
	"russian",
	"spanish",
	"swedish",
}

// Profile describes how text in one language is normalized and recognized.
type Profile struct {
	// Code is the base language code, e.g. "en".
	Code core.Language `yaml:"code"`

	// Mode is aggressive or conservative.
	Mode Mode `yaml:"mode"`

	// Stemmer is the snowball algorithm name. Required for aggressive profiles.
	Stemmer string `yaml:"stemmer,omitempty"`

	// StopWords is a short list of frequent function words used as language evidence.
	StopWords []string `yaml:"stop_words,omitempty"`

	// Diacritics holds the lowercase letters that distinguish the language.
	Diacritics string `yaml:"diacritics,omitempty"`
}

// Validate canonicalizes the profile and checks its mode and stemmer.
func (p *Profile) Validate() error {
	code, err := core.ParseLanguage(string(p.Code))
	if err != nil {
		return err
	}
	p.Code = code

	p.Mode = Mode(strings.ToLower(strings.TrimSpace(string(p.Mode))))
	if p.Mode == "" {
		p.Mode = Conservative
	}
	switch p.Mode {
	case Conservative:
	case Aggressive:
		p.Stemmer = strings.ToLower(strings.TrimSpace(p.Stemmer))
		if !slices.Contains(SupportedStemmers, p.Stemmer) {
			return fmt.Errorf("%w: %q for language %s", ErrUnsupportedStemmer, p.Stemmer, p.Code)
		}
	default:
		return fmt.Errorf("%w: %q for language %s", ErrUnknownMode, p.Mode, p.Code)
	}

	for i, w := range p.StopWords {
		p.StopWords[i] = strings.ToLower(strings.TrimSpace(w))
	}
	p.Diacritics = strings.ToLower(p.Diacritics)
	return nil
}

func (p *Profile) clone() *Profile {
	c := *p
	c.StopWords = slices.Clone(p.StopWords)
	return &c
}

// builtinProfiles are registered by NewRegistry.
var builtinProfiles = []Profile{
	{
		Code:      "en",
		Mode:      Aggressive,
		Stemmer:   "english",
		StopWords: []string{"the", "and", "is", "are", "of", "to", "you", "it", "that", "what", "this", "with", "have", "my", "your", "please"},
	},
	{
		Code:       "fr",
		Mode:       Aggressive,
		Stemmer:    "french",
		StopWords:  []string{"le", "la", "les", "des", "du", "une", "et", "est", "je", "vous", "nous", "pas", "avec", "dans", "pour", "merci", "oui"},
		Diacritics: "àâæçèéêëîïôœùûÿ",
	},
	{
		Code:       "es",
		Mode:       Aggressive,
		Stemmer:    "spanish",
		StopWords:  []string{"el", "los", "las", "del", "una", "y", "es", "yo", "usted", "por", "para", "con", "gracias", "hola", "muy"},
		Diacritics: "áéíóúñ¿¡",
	},
	{
		Code:       "ru",
		Mode:       Aggressive,
		Stemmer:    "russian",
		StopWords:  []string{"и", "в", "не", "на", "я", "что", "вы", "это", "как", "с"},
		Diacritics: "абвгдеёжзийклмнопрстуфхцчшщъыьэюя",
	},
	{
		Code:       "sv",
		Mode:       Aggressive,
		Stemmer:    "swedish",
		StopWords:  []string{"och", "det", "att", "jag", "är", "inte", "på", "med", "tack"},
		Diacritics: "åäö",
	},
	{
		Code:       "no",
		Mode:       Aggressive,
		Stemmer:    "norwegian",
		StopWords:  []string{"og", "det", "jeg", "er", "ikke", "på", "med", "takk"},
		Diacritics: "åæø",
	},
	{
		Code:       "hu",
		Mode:       Aggressive,
		Stemmer:    "hungarian",
		StopWords:  []string{"és", "nem", "az", "egy", "hogy", "van", "köszönöm"},
		Diacritics: "őű",
	},
	{
		Code:       "de",
		Mode:       Conservative,
		StopWords:  []string{"der", "die", "das", "und", "ist", "ich", "sie", "nicht", "mit", "danke", "bitte"},
		Diacritics: "äöüß",
	},
}
