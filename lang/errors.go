package lang

import "errors"

var (
	// ErrUnknownMode is returned for a profile mode other than aggressive or conservative.
	ErrUnknownMode = errors.New("unknown normalization mode")

	// ErrUnsupportedStemmer is returned when an aggressive profile names a stemmer that is not available.
	ErrUnsupportedStemmer = errors.New("unsupported stemmer")
)
