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


package ai

import (
	"errors"
	"path/filepath"
	"strings"
)

// Backend selects the embedding implementation.
type Backend string

const (
	// BackendONNX runs a local sentence-embedding model through ONNX Runtime.
	BackendONNX Backend = "onnx"
	// BackendOpenAI calls an OpenAI-compatible embeddings endpoint.
	BackendOpenAI Backend = "openai"
)

const (
	// DefaultSequenceLength is the fixed token sequence length fed to the model.
	DefaultSequenceLength = 128
	// DefaultDimension is the number of embedding components kept per vector.
	DefaultDimension = 384
)

// Config holds configuration for embedding providers.
type Config struct {
	// Backend selects the provider implementation.
	// Default: onnx
	Backend Backend `yaml:"backend"`

	// ModelPath is the path to the ONNX model file.
	ModelPath string `yaml:"model_path"`

	// VocabPath is the path to the WordPiece vocabulary (vocab.txt).
	VocabPath string `yaml:"vocab_path"`

	// RuntimeLibrary is the path to the ONNX Runtime shared library.
	// Empty uses the platform default search path.
	RuntimeLibrary string `yaml:"runtime_library"`

	// OutputName is the output tensor to read. Empty resolves it from the
	// model's declared outputs.
	OutputName string `yaml:"output_name"`

	// ModelID labels the embedding space stored with every index.
	// Defaults to the model file name (onnx) or EmbeddingModel (openai).
	ModelID string `yaml:"model_id"`

	// SequenceLength is the padded token sequence length.
	// Default: 128
	SequenceLength int `yaml:"sequence_length"`

	// Dimension is the number of leading output components kept.
	// Default: 384
	Dimension int `yaml:"dimension"`

	// EmbeddingHost is the base URL for an OpenAI-compatible embedding API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `yaml:"embedding_host"`

	// EmbeddingModel is the remote model identifier.
	// Example: "all-minilm", "text-embedding-3-small"
	EmbeddingModel string `yaml:"embedding_model"`

	// APIToken authenticates against the remote API. Local servers accept "none".
	APIToken string `yaml:"api_token"`

	// RequestsPerSecond throttles remote embedding calls. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend sets the provider backend.
func WithBackend(backend Backend) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithModelPath sets the ONNX model file.
func WithModelPath(path string) ConfigOption {
	return func(c *Config) {
		c.ModelPath = path
	}
}

// WithVocabPath sets the WordPiece vocabulary file.
func WithVocabPath(path string) ConfigOption {
	return func(c *Config) {
		c.VocabPath = path
	}
}

// WithRuntimeLibrary sets the ONNX Runtime shared library path.
func WithRuntimeLibrary(path string) ConfigOption {
	return func(c *Config) {
		c.RuntimeLibrary = path
	}
}

// WithOutputName pins the model output tensor name.
func WithOutputName(name string) ConfigOption {
	return func(c *Config) {
		c.OutputName = name
	}
}

// WithModelID sets the embedding space label.
func WithModelID(id string) ConfigOption {
	return func(c *Config) {
		c.ModelID = id
	}
}

// WithSequenceLength sets the padded token sequence length.
func WithSequenceLength(n int) ConfigOption {
	return func(c *Config) {
		c.SequenceLength = n
	}
}

// WithDimension sets the embedding dimensionality.
func WithDimension(n int) ConfigOption {
	return func(c *Config) {
		c.Dimension = n
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the remote embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIToken sets the remote API token.
func WithAPIToken(token string) ConfigOption {
	return func(c *Config) {
		c.APIToken = token
	}
}

// WithRequestsPerSecond throttles remote embedding requests.
func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

// DefaultConfig returns a Config with defaults for a local MiniLM-class model.
// Model and vocabulary paths must still be provided for the onnx backend.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendONNX,
		SequenceLength: DefaultSequenceLength,
		Dimension:      DefaultDimension,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "all-minilm",
		APIToken:       "none",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithModelPath("models/minilm/model.onnx"),
//	    WithVocabPath("models/minilm/vocab.txt"),
//	)
//
// Example with a remote backend:
//
//	cfg := NewConfig(
//	    WithBackend(BackendOpenAI),
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("all-minilm"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It fills zero values with defaults, derives ModelID, and adds the /v1 suffix
// to the embedding host which OpenAI-compatible servers expect.
func (c *Config) Normalize() {
	c.Backend = Backend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Backend == "" {
		c.Backend = BackendONNX
	}
	if c.SequenceLength == 0 {
		c.SequenceLength = DefaultSequenceLength
	}
	if c.Dimension == 0 {
		c.Dimension = DefaultDimension
	}
	if c.APIToken == "" {
		c.APIToken = "none"
	}
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.ModelID == "" {
		switch c.Backend {
		case BackendONNX:
			if c.ModelPath != "" {
				base := filepath.Base(filepath.Dir(c.ModelPath))
				name := strings.TrimSuffix(filepath.Base(c.ModelPath), filepath.Ext(c.ModelPath))
				if base != "." && base != string(filepath.Separator) {
					name = base + "/" + name
				}
				c.ModelID = name
			}
		case BackendOpenAI:
			c.ModelID = c.EmbeddingModel
		}
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.SequenceLength < 3 {
		return errors.New("ai config: SequenceLength must be at least 3")
	}
	if c.Dimension < 1 {
		return errors.New("ai config: Dimension must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond cannot be negative")
	}

	switch c.Backend {
	case BackendONNX:
		if c.ModelPath == "" {
			return errors.New("ai config: ModelPath is required for the onnx backend")
		}
		if c.VocabPath == "" {
			return errors.New("ai config: VocabPath is required for the onnx backend")
		}
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required for the openai backend")
		}
		if c.EmbeddingModel == "" {
			return errors.New("ai config: EmbeddingModel is required for the openai backend")
		}
	default:
		return errors.New("ai config: Backend must be one of onnx, openai")
	}
	return nil
}
