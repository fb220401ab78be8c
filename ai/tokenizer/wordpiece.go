package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/phrasebook/ai"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Special tokens of BERT-style vocabularies.
const (
	ClsToken = "[CLS]"
	SepToken = "[SEP]"
	PadToken = "[PAD]"
	UnkToken = "[UNK]"
)

const maxWordRunes = 100

// WordPiece is a BERT WordPiece tokenizer.
// It is safe for concurrent use.
type WordPiece struct {
	vocab     Vocab
	lowercase bool
	cls       int64
	sep       int64
	pad       int64
	unk       int64
}

// Option configures a WordPiece tokenizer.
type Option func(*WordPiece) error

// WithLowercase controls lowercasing and accent stripping.
// Default is true, matching uncased models.
func WithLowercase(lowercase bool) Option {
	return func(w *WordPiece) error {
		w.lowercase = lowercase
		return nil
	}
}

// New creates a tokenizer over vocab.
func New(vocab Vocab, opts ...Option) (*WordPiece, error) {
	if len(vocab) == 0 {
		return nil, ErrEmptyVocab
	}
	w := &WordPiece{
		vocab:     vocab,
		lowercase: true,
	}
	for _, special := range []struct {
		token string
		dst   *int64
	}{
		{ClsToken, &w.cls},
		{SepToken, &w.sep},
		{PadToken, &w.pad},
		{UnkToken, &w.unk},
	} {
		id, ok := vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSpecialToken, special.token)
		}
		*special.dst = id
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Load reads vocab.txt from path and creates a tokenizer.
func Load(path string, opts ...Option) (*WordPiece, error) {
	vocab, err := LoadVocab(path)
	if err != nil {
		return nil, err
	}
	return New(vocab, opts...)
}

// Tokenize splits text into WordPiece tokens without special tokens.
func (w *WordPiece) Tokenize(text string) []string {
	var pieces []string
	for _, word := range w.basicTokens(text) {
		pieces = append(pieces, w.wordPieces(word)...)
	}
	return pieces
}

// Encode tokenizes text into a model input of exactly maxLen positions:
// [CLS] pieces... [SEP] followed by [PAD]. When the pieces do not fit, the
// leading pieces are kept and the final position is forced to [SEP].
// Returns ai.ErrEmptyTokenization when text yields no pieces.
func (w *WordPiece) Encode(text string, maxLen int) (*ai.Encoding, error) {
	if maxLen < 2 {
		return nil, ErrSequenceTooShort
	}
	pieces := w.Tokenize(text)
	if len(pieces) == 0 {
		return nil, ai.ErrEmptyTokenization
	}

	tokens := make([]string, 0, len(pieces)+2)
	tokens = append(tokens, ClsToken)
	tokens = append(tokens, pieces...)
	tokens = append(tokens, SepToken)
	if len(tokens) > maxLen {
		tokens = tokens[:maxLen]
		tokens[maxLen-1] = SepToken
	}

	enc := &ai.Encoding{
		IDs:           make([]int64, maxLen),
		AttentionMask: make([]int64, maxLen),
		TypeIDs:       make([]int64, maxLen),
		Tokens:        tokens,
	}
	for i := range enc.IDs {
		if i < len(tokens) {
			enc.IDs[i] = w.id(tokens[i])
			enc.AttentionMask[i] = 1
		} else {
			enc.IDs[i] = w.pad
		}
	}
	return enc, nil
}

func (w *WordPiece) id(token string) int64 {
	switch token {
	case ClsToken:
		return w.cls
	case SepToken:
		return w.sep
	}
	if id, ok := w.vocab[token]; ok {
		return id
	}
	return w.unk
}

// basicTokens cleans text and splits it on whitespace and punctuation.
func (w *WordPiece) basicTokens(text string) []string {
	text = cleanText(text)
	if w.lowercase {
		text = stripAccents(strings.ToLower(text))
	}

	var tokens []string
	for _, field := range strings.Fields(text) {
		start := 0
		for i, r := range field {
			if isPunctuation(r) || isCJK(r) {
				if start < i {
					tokens = append(tokens, field[start:i])
				}
				tokens = append(tokens, string(r))
				start = i + utf8.RuneLen(r)
			}
		}
		if start < len(field) {
			tokens = append(tokens, field[start:])
		}
	}
	return tokens
}

// wordPieces applies greedy longest-match-first subword splitting.
func (w *WordPiece) wordPieces(word string) []string {
	if utf8.RuneCountInString(word) > maxWordRunes {
		return []string{UnkToken}
	}

	var pieces []string
	for start := 0; start < len(word); {
		end := len(word)
		found := ""
		for start < end {
			candidate := word[start:end]
			if start > 0 {
				candidate = "##" + candidate
			}
			if _, ok := w.vocab[candidate]; ok {
				found = candidate
				break
			}
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}
		if found == "" {
			return []string{UnkToken}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

// cleanText drops invalid and control characters and normalizes whitespace.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == utf8.RuneError:
			continue
		case r == '\t' || r == '\n' || r == '\r' || unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r) || unicode.In(r, unicode.Cf):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
