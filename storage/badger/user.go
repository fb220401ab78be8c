package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/storage"
)

// UserPairRepository implements storage.UserPairRepository for BadgerDB.
type UserPairRepository struct {
	backend *Backend
	logger  *slog.Logger

	// lastInserted is guarded by the backend write lock.
	lastInserted time.Time
}

var _ storage.UserPairRepository = (*UserPairRepository)(nil)

// NewUserPairRepository creates a repository over the user partition of backend.
//
// Returns storage.UserPairRepository interface to enforce abstraction.
func NewUserPairRepository(backend *Backend) (storage.UserPairRepository, error) {
	return &UserPairRepository{
		backend: backend,
		logger:  slog.Default().With("component", "user-repository"),
	}, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *UserPairRepository) Close() error {
	return nil
}

// UserPairID derives the ID of a user pair from its languages and folded texts.
func UserPairID(pair *core.TranslationPair) core.ID {
	return core.IDFromContent(string(pair.SourceLang) + "\x00" + core.FoldText(pair.SourceText) + "\x00" +
		string(pair.TargetLang) + "\x00" + core.FoldText(pair.TargetText))
}

// AddUserPair stores pair under its content ID, replacing an identical pair.
func (r *UserPairRepository) AddUserPair(ctx context.Context, pair *core.TranslationPair, sourceTerms, targetTerms []string) (*core.TranslationPair, error) {
	if err := core.ValidatePair(pair, 0); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := *pair
	stored.Id = UserPairID(pair)
	stored.Vector = nil
	stored.UserContributed = true

	err := r.backend.WithWriteLock(func() error {
		stored.InsertedAt = r.nextInsertTime()
		return r.backend.WithTx(func(tx *badger.Txn) error {
			existing, err := readPair(tx, makeUserPairKey(stored.Id))
			if err != nil {
				return err
			}
			if existing != nil {
				// Keep the original position in insertion order.
				stored.InsertedAt = existing.InsertedAt
				if err := r.unindex(tx, existing); err != nil {
					return err
				}
			}
			if err := tx.Set(makeUserPairKey(stored.Id), storage.MarshalPair(&stored)); err != nil {
				return err
			}
			if err := tx.Set(makeUserTermsKey(stored.Id), storage.MarshalTerms(sourceTerms, targetTerms)); err != nil {
				return err
			}
			if err := r.indexSide(tx, stored.Id, stored.SourceLang, stored.SourceText, sourceTerms); err != nil {
				return err
			}
			if err := r.indexSide(tx, stored.Id, stored.TargetLang, stored.TargetText, targetTerms); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("added user pair", "id", stored.Id, "source_lang", stored.SourceLang, "target_lang", stored.TargetLang)
	return &stored, nil
}

// nextInsertTime returns a timestamp strictly after the previous one at the
// microsecond resolution timestamps are stored with.
func (r *UserPairRepository) nextInsertTime() time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(r.lastInserted) {
		now = r.lastInserted.Add(time.Microsecond)
	}
	r.lastInserted = now
	return now
}

func (r *UserPairRepository) indexSide(tx *badger.Txn, id core.ID, language core.Language, text string, terms []string) error {
	tf := termFrequencies(terms)
	docLength := uint64(0)
	for _, n := range tf {
		docLength += n
	}
	for term, freq := range tf {
		value := storage.MarshalPosting(storage.Posting{TermFreq: freq, DocLength: docLength})
		if err := tx.Set(makeUserPostingKey(language, term, id), value); err != nil {
			return err
		}
	}
	if err := tx.Set(makeUserExactKey(language, text, id), nil); err != nil {
		return err
	}
	return updateUserStats(tx, language, 1, int64(docLength))
}

// unindex removes postings, exact keys and statistics of an existing pair.
func (r *UserPairRepository) unindex(tx *badger.Txn, pair *core.TranslationPair) error {
	sourceTerms, targetTerms, err := readUserTerms(tx, pair.Id)
	if err != nil {
		return err
	}
	for _, side := range []struct {
		language core.Language
		text     string
		terms    []string
	}{
		{pair.SourceLang, pair.SourceText, sourceTerms},
		{pair.TargetLang, pair.TargetText, targetTerms},
	} {
		tf := termFrequencies(side.terms)
		docLength := int64(0)
		for term, n := range tf {
			docLength += int64(n)
			if err := tx.Delete(makeUserPostingKey(side.language, term, pair.Id)); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeUserExactKey(side.language, side.text, pair.Id)); err != nil {
			return err
		}
		if err := updateUserStats(tx, side.language, -1, -docLength); err != nil {
			return err
		}
	}
	return tx.Delete(makeUserTermsKey(pair.Id))
}

// GetUserPair retrieves a user pair by ID.
func (r *UserPairRepository) GetUserPair(ctx context.Context, id core.ID) (*core.TranslationPair, error) {
	var pair *core.TranslationPair
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		pair, err = readPair(tx, makeUserPairKey(id))
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

// GetUserPairs retrieves multiple user pairs in the order of ids.
func (r *UserPairRepository) GetUserPairs(ctx context.Context, ids ...core.ID) ([]*core.TranslationPair, error) {
	pairs := make([]*core.TranslationPair, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			pair, err := readPair(tx, makeUserPairKey(id))
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

// DeleteUserPair removes a user pair and its index entries.
func (r *UserPairRepository) DeleteUserPair(ctx context.Context, id core.ID) error {
	return r.backend.WithWriteLock(func() error {
		return r.backend.WithTx(func(tx *badger.Txn) error {
			pair, err := readPair(tx, makeUserPairKey(id))
			if err != nil {
				return err
			}
			if pair == nil {
				return storage.ErrNotFound
			}
			if err := r.unindex(tx, pair); err != nil {
				return err
			}
			if err := tx.Delete(makeUserPairKey(id)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
}

// ListUserPairs returns pairs between source and target, oriented from source,
// ordered by insertion time.
func (r *UserPairRepository) ListUserPairs(ctx context.Context, source, target core.Language) ([]*core.TranslationPair, error) {
	var pairs []*core.TranslationPair
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userPairPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var pair *core.TranslationPair
			err := iter.Item().Value(func(val []byte) error {
				var err error
				pair, err = storage.UnmarshalPair(val)
				return err
			})
			if err != nil {
				return err
			}
			if oriented, ok := orientPair(pair, source, target); ok {
				pairs = append(pairs, oriented)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(pairs, func(a, b *core.TranslationPair) int {
		if c := a.InsertedAt.Compare(b.InsertedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
	return pairs, nil
}

// orientPair views pair from source toward target. Empty languages match anything.
func orientPair(pair *core.TranslationPair, source, target core.Language) (*core.TranslationPair, bool) {
	switch {
	case source == "" && target == "":
		return pair, true
	case source == "":
		switch target {
		case pair.TargetLang:
			return pair, true
		case pair.SourceLang:
			return pair.Oriented(pair.TargetLang)
		}
		return nil, false
	default:
		oriented, ok := pair.Oriented(source)
		if !ok || (target != "" && oriented.TargetLang != target) {
			return nil, false
		}
		return oriented, true
	}
}

// SearchUserLexical ranks user pairs by BM25 over their text in language,
// keeping only pairs that translate into other. An empty other keeps every pair.
func (r *UserPairRepository) SearchUserLexical(ctx context.Context, language, other core.Language, terms []string, limit int) ([]storage.LexicalHit, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", storage.ErrInvalidQuery)
	}
	var hits []storage.LexicalHit
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		stats, err := readUserStats(tx, language)
		if err != nil {
			return err
		}
		prefix := func(term string) []byte {
			return makeUserPostingPrefix(language, term)
		}
		var accept func(core.ID) (bool, error)
		if other != "" {
			accept = func(id core.ID) (bool, error) {
				pair, err := readPair(tx, makeUserPairKey(id))
				if err != nil || pair == nil {
					return false, err
				}
				oriented, ok := pair.Oriented(language)
				return ok && oriented.TargetLang == other, nil
			}
		}
		hits, err = rankBM25(tx, prefix, terms, stats, limit, accept)
		return err
	}, false)
	return hits, err
}

// LookupUserExact returns IDs of user pairs whose text in language equals text
// after trimming and case folding.
func (r *UserPairRepository) LookupUserExact(ctx context.Context, language core.Language, text string) ([]core.ID, error) {
	folded := core.FoldText(text)
	if folded == "" {
		return []core.ID{}, nil
	}

	ids := []core.ID{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		candidates, err := scanIDs(tx, makeUserExactPrefix(language, text))
		if err != nil {
			return err
		}
		for _, id := range candidates {
			pair, err := readPair(tx, makeUserPairKey(id))
			if err != nil {
				return err
			}
			if pair == nil {
				continue
			}
			if oriented, ok := pair.Oriented(language); ok && core.FoldText(oriented.SourceText) == folded {
				ids = append(ids, id)
			}
		}
		return nil
	}, false)
	return ids, err
}

func readUserTerms(tx *badger.Txn, id core.ID) ([]string, []string, error) {
	item, err := tx.Get(makeUserTermsKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var source, target []string
	err = item.Value(func(val []byte) error {
		var err error
		source, target, err = storage.UnmarshalTerms(val)
		return err
	})
	return source, target, err
}

func readUserStats(tx *badger.Txn, language core.Language) (core.ColumnStats, error) {
	item, err := tx.Get(makeUserStatsKey(language))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.ColumnStats{}, nil
		}
		return core.ColumnStats{}, err
	}
	var stats core.ColumnStats
	err = item.Value(func(val []byte) error {
		var err error
		stats, err = storage.UnmarshalColumnStats(val)
		return err
	})
	return stats, err
}

func updateUserStats(tx *badger.Txn, language core.Language, docs, terms int64) error {
	stats, err := readUserStats(tx, language)
	if err != nil {
		return err
	}
	stats.Docs = addClamped(stats.Docs, docs)
	stats.Terms = addClamped(stats.Terms, terms)
	if stats.Docs == 0 {
		return tx.Delete(makeUserStatsKey(language))
	}
	return tx.Set(makeUserStatsKey(language), storage.MarshalColumnStats(stats))
}

func addClamped(v uint64, delta int64) uint64 {
	if delta < 0 && uint64(-delta) > v {
		return 0
	}
	return uint64(int64(v) + delta)
}
