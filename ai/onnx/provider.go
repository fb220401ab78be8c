package onnx

import (
	"log/slog"

	"github.com/poiesic/phrasebook/ai"
)

// Provider implements ai.AIProvider with a local ONNX model.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider loads the model described by config and returns a ready provider.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	if err := embedder.Initialize(); err != nil {
		embedder.Close()
		return nil, err
	}
	return &Provider{
		config:   config,
		embedder: embedder,
		logger:   slog.Default().With("component", "onnx-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases the model session.
func (p *Provider) Close() error {
	p.logger.Debug("closing ONNX provider")
	return p.embedder.Close()
}
