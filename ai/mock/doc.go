// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder and ai.AIProvider
// for use in unit tests. The mocks allow tests to run without a model file or
// an embedding service and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Pin vectors for specific texts
//	emb := mock.NewMockEmbedderWithDimension(3)
//	emb.Vectors = map[string][]float32{"cat": {1, 0, 0}}
//
//	// Check call counts
//	count := emb.CallCount()
//
// # Default Behavior
//
// MockEmbedder returns unit-length vectors derived from an FNV hash of the
// text, so the same text always embeds to the same vector.
package mock
