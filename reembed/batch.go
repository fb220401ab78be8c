package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/core"
)

// BatchProcessor embeds one column of a batch of pairs.
type BatchProcessor struct {
	embedder       ai.Embedder
	column         core.Column
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(embedder ai.Embedder, column core.Column, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		embedder:       embedder,
		column:         column,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process sets the Vector of every pair in the batch from the text of the processor's column.
func (bp *BatchProcessor) Process(ctx context.Context, pairs []*core.TranslationPair) error {
	if len(pairs) == 0 {
		return nil
	}

	texts := make([]string, len(pairs))
	for i, pair := range pairs {
		texts[i] = pair.Text(bp.column)
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings for pairs %d-%d: %w", pairs[0].Id, pairs[len(pairs)-1].Id, err)
	}

	if len(embeddings) != len(pairs) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(pairs), len(embeddings))
	}

	dim := bp.embedder.Dimension()
	for i, pair := range pairs {
		if len(embeddings[i]) != dim {
			return fmt.Errorf("pair %d: %w: expected %d, got %d", pair.Id, ai.ErrDimensionMismatch, dim, len(embeddings[i]))
		}
		pair.Vector = embeddings[i]
	}
	return nil
}
