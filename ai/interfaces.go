package ai

import "context"

// Embedder generates fixed-size vector embeddings from text.
// Implementations must be safe for concurrent use; implementations backed by a
// single inference session serialize calls internally.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector always has exactly Dimension() components.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed dimensionality D of every returned vector.
	Dimension() int

	// ModelID identifies the embedding space. Vectors from embedders with
	// different model IDs are not comparable.
	ModelID() string
}

// Encoder is implemented by embedders that can split tokenization from inference.
// Encode is safe to call concurrently with EmbedEncoding, which lets callers
// tokenize upcoming inputs while the model is busy.
type Encoder interface {
	// Encode tokenizes text into a fixed-length model input.
	// Returns ErrEmptyTokenization when text yields no tokens.
	Encode(text string) (*Encoding, error)

	// EmbedEncoding runs inference on a previously encoded input.
	EmbedEncoding(ctx context.Context, enc *Encoding) ([]float32, error)
}

// Initializer is implemented by embedders that need explicit setup before first use.
type Initializer interface {
	Initialize() error
}

// Encoding is a tokenized model input padded to a fixed sequence length.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
	TypeIDs       []int64
	Tokens        []string // Token strings including special tokens, without padding
}

// Len returns the padded sequence length.
func (e *Encoding) Len() int {
	return len(e.IDs)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
