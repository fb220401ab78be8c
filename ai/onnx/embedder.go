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


package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/ai/tokenizer"
)

// Embedder implements ai.Embedder with a local ONNX sentence-embedding model.
//
// Tokenization runs without holding any lock; inference calls share a single
// session and are serialized.
type Embedder struct {
	config    *ai.Config
	tokenizer *tokenizer.WordPiece
	runtime   runtime

	mu         sync.Mutex
	session    session
	outputName string
	declared   []string
	closed     bool

	logger *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	tok, err := tokenizer.Load(config.VocabPath)
	if err != nil {
		return nil, err
	}
	return newEmbedderWithRuntime(config, tok, &ortRuntime{library: config.RuntimeLibrary}), nil
}

func newEmbedderWithRuntime(config *ai.Config, tok *tokenizer.WordPiece, rt runtime) *Embedder {
	return &Embedder{
		config:    config,
		tokenizer: tok,
		runtime:   rt,
		logger:    slog.Default().With("component", "onnx-embedder"),
	}
}

// NewEmbedder creates an initialized embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	e, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	if err := e.Initialize(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// Initialize loads the model and resolves the output tensor name.
// Calling Initialize on an initialized embedder is a no-op.
func (e *Embedder) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ai.ErrClosed
	}
	if e.session != nil {
		return nil
	}

	inputs, outputs, err := e.runtime.Describe(e.config.ModelPath)
	if err != nil {
		return err
	}
	name, err := ai.ResolveOutputName(outputs, e.config.OutputName)
	if err != nil {
		return err
	}
	sess, err := e.runtime.Open(e.config.ModelPath, inputs, name)
	if err != nil {
		return err
	}

	e.session = sess
	e.outputName = name
	e.declared = outputs
	e.logger.Info("loaded embedding model",
		"model", e.config.ModelID,
		"output", name,
		"sequence_length", e.config.SequenceLength,
		"dimension", e.config.Dimension)
	return nil
}

// Encode tokenizes text into a fixed-length model input.
func (e *Embedder) Encode(text string) (*ai.Encoding, error) {
	return e.tokenizer.Encode(text, e.config.SequenceLength)
}

// EmbedEncoding runs inference for a prepared encoding and keeps the first
// Dimension() output components.
func (e *Embedder) EmbedEncoding(ctx context.Context, enc *ai.Encoding) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if enc.Len() != e.config.SequenceLength {
		return nil, fmt.Errorf("encoding length %d does not match sequence length %d", enc.Len(), e.config.SequenceLength)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ai.ErrClosed
	}
	if e.session == nil {
		return nil, ai.ErrNotInitialized
	}

	raw, err := e.session.Run(enc)
	if err != nil {
		if ai.IsUnknownOutputError(err) {
			return nil, &ai.OutputNameError{Expected: e.outputName, Actual: e.declared, Err: err}
		}
		e.logger.Error("inference failed", "err", err)
		return nil, fmt.Errorf("run embedding model: %w", err)
	}
	return ai.ExtractEmbedding(raw, e.config.Dimension)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	enc, err := e.Encode(text)
	if err != nil {
		return nil, err
	}
	return e.EmbedEncoding(ctx, enc)
}

// EmbedTexts embeds texts one at a time in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured embedding dimension.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}

// ModelID returns the configured model identifier.
func (e *Embedder) ModelID() string {
	return e.config.ModelID
}

// OutputName returns the resolved output tensor name, empty before Initialize.
func (e *Embedder) OutputName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputName
}

// Close destroys the session and releases the runtime.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if rerr := e.runtime.Release(); err == nil {
		err = rerr
	}
	return err
}
