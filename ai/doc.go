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


// Package ai provides abstractions for the embedding model used by phrasebook.
//
// The embedding model is an external collaborator with a single capability:
// map text to a fixed-length float vector. This package defines that contract
// and the strategies shared by every implementation for handling model
// output: resolving the output tensor name and extracting exactly D components.
//
// # Design Principles
//
// The package is designed around a small set of interfaces:
//
//   - Embedder: Generates D-dimensional vectors from text
//   - Encoder: Optional split between tokenization and inference
//   - AIProvider: Owns an Embedder and its resources
//
// # Implementation Packages
//
//   - ai/onnx: Local inference through ONNX Runtime with a WordPiece tokenizer
//   - ai/openai: Remote inference through OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without a model
//   - ai/tokenizer: BERT WordPiece tokenizer used by ai/onnx
//
// # Constructor Return Type Pattern
//
// Public constructors (onnx.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations.
//
//	provider, err := onnx.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder) return CONCRETE types to
// enable test assertions and behavior injection.
//
// # Error Handling
//
// Model errors carry both the expected and the observed values:
//
//   - DimensionMismatchError: the model returned fewer than D components
//   - OutputNameError: the configured or preferred output tensor is not declared
//   - ErrEmptyTokenization: the input produced no tokens
//
// Vectors are never padded or truncated below D, and output names are never guessed.
//
// # Usage Example
//
//	config := ai.NewConfig(
//	    ai.WithModelPath("models/minilm/model.onnx"),
//	    ai.WithVocabPath("models/minilm/vocab.txt"),
//	)
//	provider, err := onnx.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "good morning")
package ai
