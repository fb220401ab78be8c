package storage

import (
	"context"
	"time"

	"github.com/poiesic/phrasebook/core"
)

// BuildSpec describes a new revision of a named corpus index.
type BuildSpec struct {
	Name       string
	SourceLang core.Language
	TargetLang core.Language
	Embedded   core.Column // Column whose text produced the vectors; ColumnNone for a lexical-only index
	ModelID    string      // Empty when Embedded is ColumnNone
	Dimension  int         // Zero when Embedded is ColumnNone
}

// LexicalHit is one result of a keyword query.
type LexicalHit struct {
	Id    core.ID
	Rank  int     // 1-based native rank
	Score float64 // BM25 relevance, higher is better
}

// SemanticHit is one result of a vector query.
type SemanticHit struct {
	Id       core.ID
	Distance float32 // cosine distance, lower is better
}

// BuildState tracks the lifecycle of a revision that is not yet (or no longer) active.
type BuildState uint8

const (
	// BuildStaging marks a revision being written by a builder.
	BuildStaging BuildState = iota + 1
	// BuildRetired marks a revision replaced or deleted and awaiting removal.
	BuildRetired
)

// BuildRecord is persisted for every revision whose keys may need to be purged.
type BuildRecord struct {
	Revision  string
	Index     string
	State     BuildState
	StartedAt time.Time
}

// IndexCatalog lists and removes corpus indexes by identifier.
type IndexCatalog interface {
	// GetIndex returns the active revision of the named index.
	// Returns ErrIndexNotFound if the index does not exist.
	GetIndex(ctx context.Context, name string) (*core.IndexInfo, error)

	// ListIndexes returns all indexes ordered by name.
	ListIndexes(ctx context.Context) ([]*core.IndexInfo, error)

	// DeleteIndex removes the named index and all of its data.
	// Returns ErrIndexNotFound if the index does not exist.
	DeleteIndex(ctx context.Context, name string) error
}

// CorpusRepository stores corpus indexes and answers lexical and vector queries
// against a specific index revision. Queries are read-only.
type CorpusRepository interface {
	IndexCatalog

	// NewBuild starts staging a new revision of spec.Name. Nothing becomes
	// visible to readers until Commit.
	NewBuild(ctx context.Context, spec BuildSpec) (IndexBuilder, error)

	// GetPair retrieves a corpus pair by ID.
	// Returns ErrNotFound if the pair doesn't exist.
	GetPair(ctx context.Context, index *core.IndexInfo, id core.ID) (*core.TranslationPair, error)

	// GetPairs retrieves multiple pairs in the order of ids.
	// Returns only the pairs that exist (no error for missing pairs).
	GetPairs(ctx context.Context, index *core.IndexInfo, ids ...core.ID) ([]*core.TranslationPair, error)

	// ForEachPair calls fn for every pair of the revision in ID order.
	// Iteration stops at the first error returned by fn.
	ForEachPair(ctx context.Context, index *core.IndexInfo, fn func(*core.TranslationPair) error) error

	// SearchLexical ranks pairs whose column text contains any of terms.
	// Results are ordered by descending relevance, ties by ascending ID.
	// No matching pairs is an empty result, not an error.
	SearchLexical(ctx context.Context, index *core.IndexInfo, column core.Column, terms []string, limit int) ([]LexicalHit, error)

	// LookupExact returns the IDs of pairs whose column text equals text after
	// trimming and case folding.
	LookupExact(ctx context.Context, index *core.IndexInfo, column core.Column, text string) ([]core.ID, error)

	// SearchSemantic returns up to k pairs nearest to vector by ascending cosine
	// distance. searchRadius widens the approximate search (higher recall, more latency).
	// Returns ErrGenerationMismatch if stored vectors do not match the index dimension
	// and ErrDimensionMismatch if vector does not.
	SearchSemantic(ctx context.Context, index *core.IndexInfo, vector []float32, k, searchRadius int) ([]SemanticHit, error)

	// Close releases repository resources. The backend stays open.
	Close() error
}

// IndexBuilder stages one index revision. Exactly one of Commit or Abort
// ends a build; later calls return ErrBuildClosed.
type IndexBuilder interface {
	// Add stages a pair with the analyzed terms of both columns. Pairs with
	// Id zero are assigned the next sequential ID.
	Add(ctx context.Context, pair *core.TranslationPair, sourceTerms, targetTerms []string) (core.ID, error)

	// Count returns the number of staged pairs.
	Count() int

	// Commit flushes the staged revision and makes it the active revision of
	// the index in a single step. The previous revision is removed.
	Commit(ctx context.Context) (*core.IndexInfo, error)

	// Abort discards everything staged. The active revision is untouched.
	Abort() error
}

// UserPairRepository stores user-contributed pairs in a partition shared by
// all indexes and keyed by language.
type UserPairRepository interface {
	// AddUserPair stores pair under a content-derived ID. Adding identical
	// content again replaces the stored pair.
	AddUserPair(ctx context.Context, pair *core.TranslationPair, sourceTerms, targetTerms []string) (*core.TranslationPair, error)

	// GetUserPair retrieves a user pair by ID.
	// Returns ErrNotFound if the pair doesn't exist.
	GetUserPair(ctx context.Context, id core.ID) (*core.TranslationPair, error)

	// GetUserPairs retrieves multiple user pairs in the order of ids, skipping missing ones.
	GetUserPairs(ctx context.Context, ids ...core.ID) ([]*core.TranslationPair, error)

	// DeleteUserPair removes a user pair.
	// Returns ErrNotFound if the pair doesn't exist.
	DeleteUserPair(ctx context.Context, id core.ID) error

	// ListUserPairs returns pairs between source and target, oriented from
	// source, in insertion order. Empty languages match every pair.
	ListUserPairs(ctx context.Context, source, target core.Language) ([]*core.TranslationPair, error)

	// SearchUserLexical ranks user pairs whose text in language contains any of
	// terms and whose other side is in other. An empty other matches any language.
	SearchUserLexical(ctx context.Context, language, other core.Language, terms []string, limit int) ([]LexicalHit, error)

	// LookupUserExact returns IDs of user pairs whose text in language equals text
	// after trimming and case folding.
	LookupUserExact(ctx context.Context, language core.Language, text string) ([]core.ID, error)

	// Close releases repository resources. The backend stays open.
	Close() error
}
