package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/storage"
)

// DefaultGraphThreshold is the corpus size above which a build persists an HNSW graph.
// Smaller revisions are answered by comparing every vector.
const DefaultGraphThreshold = 1000

// CorpusRepository implements storage.CorpusRepository for BadgerDB.
type CorpusRepository struct {
	backend        *Backend
	vectors        *vectorCache
	graphThreshold int
	logger         *slog.Logger
}

var _ storage.CorpusRepository = (*CorpusRepository)(nil)

// Option configures a CorpusRepository.
type Option func(*CorpusRepository) error

// WithLogger sets a custom logger for the repository.
// If nil, uses slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *CorpusRepository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "corpus-repository")
		return nil
	}
}

// WithGraphThreshold sets the corpus size above which builds persist an HNSW graph.
func WithGraphThreshold(n int) Option {
	return func(r *CorpusRepository) error {
		if n < 0 {
			return fmt.Errorf("graph threshold must not be negative, got %d", n)
		}
		r.graphThreshold = n
		return nil
	}
}

// NewCorpusRepository creates a corpus repository and purges revisions left
// behind by interrupted builds.
//
// Returns storage.CorpusRepository interface to enforce abstraction.
func NewCorpusRepository(backend *Backend, opts ...Option) (storage.CorpusRepository, error) {
	return newCorpusRepository(backend, opts...)
}

func newCorpusRepository(backend *Backend, opts ...Option) (*CorpusRepository, error) {
	r := &CorpusRepository{
		backend:        backend,
		vectors:        newVectorCache(),
		graphThreshold: DefaultGraphThreshold,
		logger:         slog.Default().With("component", "corpus-repository"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if err := r.purgeBuilds(); err != nil {
		return nil, fmt.Errorf("purge unfinished builds: %w", err)
	}
	return r, nil
}

// Close releases cached vector indexes.
func (r *CorpusRepository) Close() error {
	r.vectors.clear()
	return nil
}

// GetIndex returns the active revision of the named index.
func (r *CorpusRepository) GetIndex(ctx context.Context, name string) (*core.IndexInfo, error) {
	var info *core.IndexInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		info, err = readIndexInfo(tx, name)
		if err != nil {
			return err
		}
		if info == nil {
			return fmt.Errorf("%w: %s", storage.ErrIndexNotFound, name)
		}
		return nil
	}, false)
	return info, err
}

// ListIndexes returns all indexes ordered by name.
func (r *CorpusRepository) ListIndexes(ctx context.Context) ([]*core.IndexInfo, error) {
	var infos []*core.IndexInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				info, err := storage.UnmarshalIndexInfo(val)
				if err != nil {
					return err
				}
				infos = append(infos, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return infos, err
}

// DeleteIndex removes the named index and all of its data.
func (r *CorpusRepository) DeleteIndex(ctx context.Context, name string) error {
	var revision string
	err := r.backend.WithWriteLock(func() error {
		return r.backend.WithTx(func(tx *badger.Txn) error {
			info, err := readIndexInfo(tx, name)
			if err != nil {
				return err
			}
			if info == nil {
				return fmt.Errorf("%w: %s", storage.ErrIndexNotFound, name)
			}
			revision = info.Revision
			if err := saveBuildRecord(tx, revision, name, storage.BuildRetired); err != nil {
				return err
			}
			if err := tx.Delete(makeIndexKey(name)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
	if err != nil {
		return err
	}

	r.logger.Info("deleted index", "index", name, "revision", revision)
	return r.dropRevision(revision)
}

// GetPair retrieves a corpus pair by ID.
func (r *CorpusRepository) GetPair(ctx context.Context, index *core.IndexInfo, id core.ID) (*core.TranslationPair, error) {
	var pair *core.TranslationPair
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		pair, err = readPair(tx, makePairKey(index.Revision, id))
		if err != nil {
			return err
		}
		if pair == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return pair, err
}

// GetPairs retrieves multiple pairs in the order of ids.
func (r *CorpusRepository) GetPairs(ctx context.Context, index *core.IndexInfo, ids ...core.ID) ([]*core.TranslationPair, error) {
	pairs := make([]*core.TranslationPair, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			pair, err := readPair(tx, makePairKey(index.Revision, id))
			if err != nil {
				return err
			}
			if pair != nil {
				pairs = append(pairs, pair)
			}
		}
		return nil
	}, false)
	return pairs, err
}

// ForEachPair calls fn for every pair of the revision in ID order.
func (r *CorpusRepository) ForEachPair(ctx context.Context, index *core.IndexInfo, fn func(*core.TranslationPair) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePairPrefix(index.Revision)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var pair *core.TranslationPair
			err := iter.Item().Value(func(val []byte) error {
				var err error
				pair, err = storage.UnmarshalPair(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(pair); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// SearchLexical ranks pairs of the revision by BM25 over the column's postings.
func (r *CorpusRepository) SearchLexical(ctx context.Context, index *core.IndexInfo, column core.Column, terms []string, limit int) ([]storage.LexicalHit, error) {
	if column != core.ColumnSource && column != core.ColumnTarget {
		return nil, fmt.Errorf("%w: column %s", storage.ErrInvalidQuery, column)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", storage.ErrInvalidQuery)
	}

	var hits []storage.LexicalHit
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := func(term string) []byte {
			return makePostingPrefix(index.Revision, column, term)
		}
		var err error
		hits, err = rankBM25(tx, prefix, terms, index.Stats(column), limit, nil)
		return err
	}, false)
	return hits, err
}

// LookupExact returns IDs of pairs whose column text equals text after trimming and case folding.
func (r *CorpusRepository) LookupExact(ctx context.Context, index *core.IndexInfo, column core.Column, text string) ([]core.ID, error) {
	if column != core.ColumnSource && column != core.ColumnTarget {
		return nil, fmt.Errorf("%w: column %s", storage.ErrInvalidQuery, column)
	}
	folded := core.FoldText(text)
	if folded == "" {
		return []core.ID{}, nil
	}

	ids := []core.ID{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		candidates, err := scanIDs(tx, makeExactPrefix(index.Revision, column, text))
		if err != nil {
			return err
		}
		for _, id := range candidates {
			pair, err := readPair(tx, makePairKey(index.Revision, id))
			if err != nil {
				return err
			}
			if pair != nil && core.FoldText(pair.Text(column)) == folded {
				ids = append(ids, id)
			}
		}
		return nil
	}, false)
	return ids, err
}

// SearchSemantic returns up to k pairs nearest to vector.
func (r *CorpusRepository) SearchSemantic(ctx context.Context, index *core.IndexInfo, vector []float32, k, searchRadius int) ([]storage.SemanticHit, error) {
	if index.Embedded == core.ColumnNone {
		return []storage.SemanticHit{}, nil
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) != index.Dimension {
		return nil, &storage.DimensionMismatchError{Expected: index.Dimension, Actual: len(vector)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vi, err := r.vectors.get(index.Revision, func() (*vectorIndex, error) {
		var loaded *vectorIndex
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			var err error
			loaded, err = loadVectorIndex(tx, index)
			return err
		}, false)
		if err == nil {
			r.logger.Debug("loaded vector index",
				"index", index.Name,
				"revision", index.Revision,
				"vectors", len(loaded.ids),
				"graph", loaded.graph != nil)
		}
		return loaded, err
	})
	if err != nil {
		return nil, err
	}
	return vi.search(normalizeVector(vector), k, searchRadius), nil
}

// readIndexInfo returns nil, nil when the index does not exist.
func readIndexInfo(tx *badger.Txn, name string) (*core.IndexInfo, error) {
	item, err := tx.Get(makeIndexKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var info *core.IndexInfo
	err = item.Value(func(val []byte) error {
		var err error
		info, err = storage.UnmarshalIndexInfo(val)
		return err
	})
	return info, err
}

// readPair returns nil, nil when the key does not exist.
func readPair(tx *badger.Txn, key []byte) (*core.TranslationPair, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var pair *core.TranslationPair
	err = item.Value(func(val []byte) error {
		var err error
		pair, err = storage.UnmarshalPair(val)
		return err
	})
	return pair, err
}

// scanIDs collects the trailing IDs of every key under prefix.
func scanIDs(tx *badger.Txn, prefix []byte) ([]core.ID, error) {
	var ids []core.ID
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		ids = append(ids, idFromKey(iter.Item().Key()))
	}
	return ids, nil
}
