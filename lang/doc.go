// Package lang provides per-language text normalization, lexical analysis and
// a language-consistency heuristic.
//
// Every language has a Profile. Aggressive profiles stem tokens with the
// snowball algorithms; conservative profiles only lowercase, for languages
// where suffix stripping damages short function words. Profiles are held in a
// Registry that starts with built-in profiles and accepts overrides from YAML:
//
//	languages:
//	  - code: de
//	    mode: conservative
//	    stop_words: [der, die, das, und]
//	    diacritics: "äöüß"
//	  - code: en
//	    mode: aggressive
//	    stemmer: english
package lang
