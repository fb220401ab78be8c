package ai

import (
	"slices"
	"strings"
)

// PreferredOutputNames lists output tensor names, in order of preference, that
// sentence-embedding exports commonly use when no name is configured.
var PreferredOutputNames = []string{
	"sentence_embedding",
	"last_hidden_state",
	"token_embeddings",
	"embeddings",
}

// ResolveOutputName picks the output tensor to read from the names a model declares.
// A configured name must be declared verbatim. Without one, the first declared
// name from PreferredOutputNames wins. Anything else is an OutputNameError;
// the name is never guessed.
func ResolveOutputName(declared []string, configured string) (string, error) {
	if configured != "" {
		if slices.Contains(declared, configured) {
			return configured, nil
		}
		return "", &OutputNameError{Expected: configured, Actual: slices.Clone(declared)}
	}
	for _, name := range PreferredOutputNames {
		if slices.Contains(declared, name) {
			return name, nil
		}
	}
	return "", &OutputNameError{
		Expected: strings.Join(PreferredOutputNames, "|"),
		Actual:   slices.Clone(declared),
	}
}

var unknownOutputMarkers = []string{
	"invalid output name",
	"unknown output",
	"output name",
	"no output named",
}

// IsUnknownOutputError reports whether a runtime error message indicates the
// requested output tensor does not exist in the model.
func IsUnknownOutputError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unknownOutputMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ExtractEmbedding returns a copy of the first dim components of raw.
// A raw output with fewer than dim components fails with DimensionMismatchError.
func ExtractEmbedding(raw []float32, dim int) ([]float32, error) {
	if len(raw) < dim || dim <= 0 {
		return nil, &DimensionMismatchError{Expected: dim, Actual: len(raw)}
	}
	out := make([]float32, dim)
	copy(out, raw[:dim])
	return out, nil
}
