package core

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Language is a canonical base language code such as "en" or "fr".
type Language string

// ParseLanguage parses a BCP 47 tag and reduces it to its base language.
// "en-US", "EN" and "eng" all parse to "en".
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty language tag", ErrInvalidLanguage)
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidLanguage, s, err)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, s)
	}
	return Language(base.String()), nil
}

// MustParseLanguage is like ParseLanguage but panics on error.
// Intended for package-level tables and tests.
func MustParseLanguage(s string) Language {
	l, err := ParseLanguage(s)
	if err != nil {
		panic(err)
	}
	return l
}

// String returns the language code.
func (l Language) String() string {
	return string(l)
}

// Tag returns the x/text language tag for l.
func (l Language) Tag() language.Tag {
	return language.Make(string(l))
}
