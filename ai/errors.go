package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTokenization is returned when text produces no tokens.
	ErrEmptyTokenization = errors.New("text produced no tokens")

	// ErrDimensionMismatch is the sentinel matched by DimensionMismatchError.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrOutputName is the sentinel matched by OutputNameError.
	ErrOutputName = errors.New("model output name mismatch")

	// ErrNotInitialized is returned when an embedder is used before Initialize succeeds.
	ErrNotInitialized = errors.New("embedder not initialized")

	// ErrClosed is returned when an embedder is used after Close.
	ErrClosed = errors.New("embedder closed")
)

// DimensionMismatchError reports a model output shorter than the configured dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected at least %d components, model returned %d", ErrDimensionMismatch, e.Expected, e.Actual)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// OutputNameError reports an output tensor name the model does not declare.
type OutputNameError struct {
	Expected string   // Name the embedder intended to read
	Actual   []string // Names the model declares
	Err      error    // Underlying runtime error, if any
}

func (e *OutputNameError) Error() string {
	msg := fmt.Sprintf("%s: expected output %q, model declares [%s]", ErrOutputName, e.Expected, strings.Join(e.Actual, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrOutputName.
func (e *OutputNameError) Is(target error) bool {
	return target == ErrOutputName
}

func (e *OutputNameError) Unwrap() error {
	return e.Err
}
