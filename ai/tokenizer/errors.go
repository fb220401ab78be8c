package tokenizer

import "errors"

var (
	// ErrEmptyVocab is returned when a vocabulary contains no tokens.
	ErrEmptyVocab = errors.New("vocabulary is empty")

	// ErrMissingSpecialToken is returned when the vocabulary lacks [CLS], [SEP], [PAD] or [UNK].
	ErrMissingSpecialToken = errors.New("vocabulary is missing a special token")

	// ErrSequenceTooShort is returned when the sequence length cannot hold [CLS] and [SEP].
	ErrSequenceTooShort = errors.New("sequence length must be at least 2")
)
