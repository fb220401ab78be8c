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

	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/storage"
)

const (
	// DefaultBatchSize is the default number of pairs embedded per call
	DefaultBatchSize = 64
)

// PairIterator iterates over the pairs of an index revision in batches.
type PairIterator struct {
	corpus    storage.CorpusRepository
	batchSize int
}

// NewPairIterator creates a new pair iterator.
// batchSize: number of pairs per batch; non-positive values use DefaultBatchSize
func NewPairIterator(corpus storage.CorpusRepository, batchSize int) *PairIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &PairIterator{
		corpus:    corpus,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches of the revision's pairs in ID order.
// Iteration stops on the first error from fn or on context cancellation.
func (it *PairIterator) ForEach(ctx context.Context, index *core.IndexInfo, fn func([]*core.TranslationPair) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]*core.TranslationPair, 0, it.batchSize)
	err := it.corpus.ForEachPair(ctx, index, func(pair *core.TranslationPair) error {
		batch = append(batch, pair)
		if len(batch) < it.batchSize {
			return nil
		}
		full := batch
		batch = make([]*core.TranslationPair, 0, it.batchSize)
		return fn(full)
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return err
		}
	}
	return ctx.Err()
}
