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


package badger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/storage"
)

// indexBuilder stages a revision through a WriteBatch. Keys of the staged
// revision are unreachable until Commit points the index at it.
type indexBuilder struct {
	repo     *CorpusRepository
	spec     storage.BuildSpec
	revision string
	batch    *badger.WriteBatch
	graph    *hnsw.Graph[uint64]
	logger   *slog.Logger

	mu      sync.Mutex
	ids     map[core.ID]struct{}
	nextID  core.ID
	stats   map[core.Column]*core.ColumnStats
	closed  bool
	flushed bool
}

var _ storage.IndexBuilder = (*indexBuilder)(nil)

// NewBuild starts staging a new revision of spec.Name.
func (r *CorpusRepository) NewBuild(ctx context.Context, spec storage.BuildSpec) (storage.IndexBuilder, error) {
	if err := validateBuildSpec(&spec); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	revision := uuid.NewString()
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := saveBuildRecord(tx, revision, spec.Name, storage.BuildStaging); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	b := &indexBuilder{
		repo:     r,
		spec:     spec,
		revision: revision,
		batch:    r.backend.NewWriteBatch(),
		logger:   r.logger.With("index", spec.Name, "revision", revision),
		ids:      make(map[core.ID]struct{}),
		stats: map[core.Column]*core.ColumnStats{
			core.ColumnSource: {},
			core.ColumnTarget: {},
		},
	}
	if spec.Embedded != core.ColumnNone {
		b.graph = newGraph()
	}
	b.logger.Debug("started index build", "embedded", spec.Embedded, "model", spec.ModelID)
	return b, nil
}

func validateBuildSpec(spec *storage.BuildSpec) error {
	if err := core.ValidateIndexName(spec.Name); err != nil {
		return err
	}
	if err := core.ValidateLanguages(spec.SourceLang, spec.TargetLang); err != nil {
		return err
	}
	switch spec.Embedded {
	case core.ColumnNone:
		spec.ModelID = ""
		spec.Dimension = 0
	case core.ColumnSource, core.ColumnTarget:
		if spec.ModelID == "" {
			return fmt.Errorf("%w: embedded index requires a model ID", storage.ErrInvalidQuery)
		}
		if spec.Dimension <= 0 {
			return fmt.Errorf("%w: embedded index requires a positive dimension", storage.ErrInvalidQuery)
		}
	default:
		return fmt.Errorf("%w: %d", core.ErrInvalidColumn, spec.Embedded)
	}
	return nil
}

// Add stages a pair, its postings, exact-match keys and vector.
func (b *indexBuilder) Add(ctx context.Context, pair *core.TranslationPair, sourceTerms, targetTerms []string) (core.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, storage.ErrBuildClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if pair != nil && pair.SourceLang == "" && pair.TargetLang == "" {
		pair.SourceLang, pair.TargetLang = b.spec.SourceLang, b.spec.TargetLang
	}
	if err := core.ValidatePair(pair, b.spec.Dimension); err != nil {
		return 0, err
	}
	if pair.SourceLang != b.spec.SourceLang || pair.TargetLang != b.spec.TargetLang {
		return 0, fmt.Errorf("%w: pair languages %s-%s do not match index %s-%s",
			core.ErrInvalidPair, pair.SourceLang, pair.TargetLang, b.spec.SourceLang, b.spec.TargetLang)
	}
	if b.spec.Embedded != core.ColumnNone && len(pair.Vector) != b.spec.Dimension {
		return 0, &storage.DimensionMismatchError{Expected: b.spec.Dimension, Actual: len(pair.Vector)}
	}

	id := pair.Id
	if id == 0 {
		id = b.nextID + 1
		for {
			if _, taken := b.ids[id]; !taken {
				break
			}
			id++
		}
	} else if _, taken := b.ids[id]; taken {
		return 0, fmt.Errorf("%w: duplicate pair ID %d", core.ErrInvalidPair, id)
	}

	stored := *pair
	stored.Id = id
	stored.Vector = nil
	stored.UserContributed = false
	if stored.InsertedAt.IsZero() {
		stored.InsertedAt = time.Now().UTC()
	}

	if err := b.batch.Set(makePairKey(b.revision, id), storage.MarshalPair(&stored)); err != nil {
		return 0, err
	}
	for _, side := range []struct {
		column core.Column
		terms  []string
	}{
		{core.ColumnSource, sourceTerms},
		{core.ColumnTarget, targetTerms},
	} {
		if err := b.stageColumn(id, side.column, stored.Text(side.column), side.terms); err != nil {
			return 0, err
		}
	}
	if b.spec.Embedded != core.ColumnNone {
		vec := normalizeVector(pair.Vector)
		if err := b.batch.Set(makeVectorKey(b.revision, id), storage.MarshalVector(vec)); err != nil {
			return 0, err
		}
		b.graph.Add(hnsw.MakeNode(uint64(id), vec))
	}

	b.ids[id] = struct{}{}
	if id > b.nextID {
		b.nextID = id
	}
	pair.Id = id
	return id, nil
}

func (b *indexBuilder) stageColumn(id core.ID, column core.Column, text string, terms []string) error {
	tf := termFrequencies(terms)
	docLength := uint64(0)
	for _, n := range tf {
		docLength += n
	}
	for term, freq := range tf {
		key := makePostingKey(b.revision, column, term, id)
		if err := b.batch.Set(key, storage.MarshalPosting(storage.Posting{TermFreq: freq, DocLength: docLength})); err != nil {
			return err
		}
	}
	stats := b.stats[column]
	stats.Docs++
	stats.Terms += docLength

	return b.batch.Set(makeExactKey(b.revision, column, text, id), nil)
}

// Count returns the number of staged pairs.
func (b *indexBuilder) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ids)
}

// Commit flushes the revision and activates it.
func (b *indexBuilder) Commit(ctx context.Context) (*core.IndexInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, storage.ErrBuildClosed
	}
	b.closed = true

	if err := ctx.Err(); err != nil {
		b.discard()
		return nil, err
	}

	count := len(b.ids)
	if b.graph != nil && count > b.repo.graphThreshold {
		if err := writeGraph(b.batch, b.revision, b.graph); err != nil {
			b.discard()
			return nil, err
		}
	}
	b.flushed = true
	if err := b.batch.Flush(); err != nil {
		b.discard()
		return nil, fmt.Errorf("flush index build: %w", err)
	}

	info := &core.IndexInfo{
		Name:        b.spec.Name,
		SourceLang:  b.spec.SourceLang,
		TargetLang:  b.spec.TargetLang,
		Embedded:    b.spec.Embedded,
		ModelID:     b.spec.ModelID,
		Dimension:   b.spec.Dimension,
		Count:       count,
		Revision:    b.revision,
		SourceStats: *b.stats[core.ColumnSource],
		TargetStats: *b.stats[core.ColumnTarget],
		CreatedAt:   time.Now().UTC(),
	}

	var previous *core.IndexInfo
	err := b.repo.backend.WithWriteLock(func() error {
		return b.repo.backend.WithTx(func(tx *badger.Txn) error {
			var err error
			previous, err = readIndexInfo(tx, b.spec.Name)
			if err != nil {
				return err
			}
			if err := tx.Set(makeIndexKey(b.spec.Name), storage.MarshalIndexInfo(info)); err != nil {
				return err
			}
			if err := tx.Delete(makeBuildKey(b.revision)); err != nil {
				return err
			}
			if previous != nil {
				if err := saveBuildRecord(tx, previous.Revision, previous.Name, storage.BuildRetired); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
	})
	if err != nil {
		b.discard()
		return nil, fmt.Errorf("activate index revision: %w", err)
	}

	b.logger.Info("committed index build", "pairs", count, "graph", b.graph != nil && count > b.repo.graphThreshold)
	b.graph = nil

	if previous != nil {
		if err := b.repo.dropRevision(previous.Revision); err != nil {
			// The retired record keeps the revision scheduled for removal at next open.
			b.logger.Warn("failed to drop previous revision", "previous", previous.Revision, "err", err)
		}
	}
	return info, nil
}

// Abort discards the staged revision.
func (b *indexBuilder) Abort() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrBuildClosed
	}
	b.closed = true
	b.logger.Info("aborted index build", "staged", len(b.ids))
	return b.discard()
}

// discard cancels unflushed writes and removes whatever reached the store.
func (b *indexBuilder) discard() error {
	if !b.flushed {
		b.batch.Cancel()
	}
	b.graph = nil
	if err := b.repo.dropRevision(b.revision); err != nil {
		b.logger.Warn("failed to drop staged revision", "err", err)
		return err
	}
	return nil
}
