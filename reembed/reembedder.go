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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/lang"
	"github.com/poiesic/phrasebook/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of pairs embedded per call
	BatchSize int

	// ReportInterval is how often to report progress (number of pairs)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 256,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder rebuilds indexes with a new embedder or embedded column.
type Reembedder struct {
	corpus   storage.CorpusRepository
	embedder ai.Embedder
	analyzer *lang.Analyzer
	config   *Config
	progress io.Writer
	iterator *PairIterator
	logger   *slog.Logger
}

// NewReembedder creates a new reembedder. embedder may be nil when indexes are
// only rebuilt as lexical-only. progress receives terminal progress output and may be nil.
func NewReembedder(
	corpus storage.CorpusRepository,
	embedder ai.Embedder,
	languages *lang.Registry,
	config *Config,
	progress io.Writer,
) (*Reembedder, error) {
	if corpus == nil {
		return nil, ErrCorpusRepositoryRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		corpus:   corpus,
		embedder: embedder,
		analyzer: lang.NewAnalyzer(lang.NewNormalizer(languages)),
		config:   config,
		progress: progress,
		iterator: NewPairIterator(corpus, config.BatchSize),
		logger:   slog.Default().With("component", "reembed"),
	}, nil
}

// Run rebuilds the named index embedding column with the configured embedder.
// ColumnNone rebuilds it as a lexical-only index. Pair IDs are preserved.
// On success the new revision replaces the old one in a single step; on
// failure the old revision stays active.
func (r *Reembedder) Run(ctx context.Context, name string, column core.Column) (*core.IndexInfo, error) {
	info, err := r.corpus.GetIndex(ctx, name)
	if err != nil {
		return nil, err
	}

	spec := storage.BuildSpec{
		Name:       info.Name,
		SourceLang: info.SourceLang,
		TargetLang: info.TargetLang,
		Embedded:   column,
	}
	var processor *BatchProcessor
	switch column {
	case core.ColumnNone:
	case core.ColumnSource, core.ColumnTarget:
		if r.embedder == nil {
			return nil, ErrEmbedderRequired
		}
		spec.ModelID = r.embedder.ModelID()
		spec.Dimension = r.embedder.Dimension()
		processor = NewBatchProcessor(r.embedder, column, r.config.MaxRetries, r.config.RetryDelay)
	default:
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidColumn, column)
	}

	newGeneration := core.Generation{ModelID: spec.ModelID, Dimension: spec.Dimension}
	logger := r.logger.With("index", name)
	logger.Info("reembedding index",
		"pairs", info.Count,
		"from", info.Generation(), "from_column", info.Embedded,
		"to", newGeneration, "to_column", column)

	builder, err := r.corpus.NewBuild(ctx, spec)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(r.progress, "Reembedding %s: %d pairs, %s (%s) -> %s (%s)\n",
		name, info.Count, info.Generation(), info.Embedded, newGeneration, column)

	tracker := NewProgressTracker(r.progress, name, info.Count, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, info, func(pairs []*core.TranslationPair) error {
		if processor != nil {
			if err := processor.Process(ctx, pairs); err != nil {
				return err
			}
		}
		for _, pair := range pairs {
			sourceTerms := r.analyzer.Terms(pair.SourceText, pair.SourceLang)
			targetTerms := r.analyzer.Terms(pair.TargetText, pair.TargetLang)
			if _, err := builder.Add(ctx, pair, sourceTerms, targetTerms); err != nil {
				return fmt.Errorf("pair %d: %w", pair.Id, err)
			}
		}
		processed += len(pairs)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		tracker.Abandon()
		if abortErr := builder.Abort(); abortErr != nil {
			logger.Warn("error aborting build", "err", abortErr)
		}
		logger.Error("reembedding aborted", "processed", processed, "err", err)
		return nil, err
	}

	tracker.Finish()
	rebuilt, err := builder.Commit(ctx)
	if err != nil {
		return nil, err
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d pairs in %v (%.1f pairs/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/max(elapsed.Seconds(), 1e-9))
	logger.Info("reembedding complete", "revision", rebuilt.Revision, "elapsed", elapsed)
	return rebuilt, nil
}
