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


package phrasebook

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/ai/onnx"
	"github.com/poiesic/phrasebook/ai/openai"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/ingestion"
	"github.com/poiesic/phrasebook/lang"
	"github.com/poiesic/phrasebook/reembed"
	"github.com/poiesic/phrasebook/search"
	"github.com/poiesic/phrasebook/storage"
	"github.com/poiesic/phrasebook/storage/badger"
)

// ErrExportLanguages is returned when an export does not name both languages.
var ErrExportLanguages = errors.New("export requires a source and a target language")

// Database owns the store, its repositories and the embedding provider.
type Database struct {
	backend   *badger.Backend
	corpus    storage.CorpusRepository
	users     storage.UserPairRepository
	provider  ai.AIProvider
	languages *lang.Registry
	analyzer  *lang.Analyzer
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig   *ai.Config
	provider   ai.AIProvider
	languages  *lang.Registry
	inMemory   bool
	corpusOpts []badger.Option
	logger     *slog.Logger
}

// WithAIConfig creates an embedding provider from cfg. Without it (or
// WithAIProvider) the database only builds and queries lexical indexes.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses an existing provider. The database closes it on Close.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithLanguages sets the language profile registry.
// Default is lang.NewRegistry().
func WithLanguages(registry *lang.Registry) DatabaseOption {
	return func(o *databaseOptions) {
		o.languages = registry
	}
}

// WithInMemory keeps all data in memory. The file path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithGraphThreshold sets the corpus size above which builds persist an HNSW graph.
func WithGraphThreshold(n int) DatabaseOption {
	return func(o *databaseOptions) {
		o.corpusOpts = append(o.corpusOpts, badger.WithGraphThreshold(n))
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewProvider creates the embedding provider selected by cfg.Backend.
func NewProvider(cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case ai.BackendOpenAI:
		return openai.NewProvider(cfg)
	default:
		return onnx.NewProvider(cfg)
	}
}

// NewDatabase opens the store at filePath and its repositories.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.languages == nil {
		options.languages = lang.NewRegistry()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	corpusOpts := append([]badger.Option{badger.WithLogger(options.logger)}, options.corpusOpts...)
	corpus, err := badger.NewCorpusRepository(backend, corpusOpts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	users, err := badger.NewUserPairRepository(backend)
	if err != nil {
		corpus.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil && options.aiConfig != nil {
		provider, err = NewProvider(options.aiConfig)
		if err != nil {
			users.Close()
			corpus.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:   backend,
		corpus:    corpus,
		users:     users,
		provider:  provider,
		languages: options.languages,
		analyzer:  lang.NewAnalyzer(lang.NewNormalizer(options.languages)),
		logger:    options.logger.With("component", "database"),
	}, nil
}

// Close releases the provider, the repositories and the store, in that order.
func (db *Database) Close() error {
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}

	if err := db.users.Close(); err != nil {
		db.logger.Error("error closing user pair repository", "err", err)
		return err
	}
	if err := db.corpus.Close(); err != nil {
		db.logger.Error("error closing corpus repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) CorpusRepository() storage.CorpusRepository {
	return db.corpus
}

func (db *Database) UserPairRepository() storage.UserPairRepository {
	return db.users
}

// Languages returns the language profile registry shared by all components.
func (db *Database) Languages() *lang.Registry {
	return db.languages
}

// Embedder returns the configured embedder, or nil for a lexical-only database.
func (db *Database) Embedder() ai.Embedder {
	if db.provider == nil {
		return nil
	}
	return db.provider.Embedder()
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.corpus, db.provider, db.languages, opts...)
}

// NewSearcher returns a searcher bound to the named index.
func (db *Database) NewSearcher(index string, opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.corpus, db.users, db.provider, db.languages, index, opts...)
}

func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.corpus, db.Embedder(), db.languages, config, progress)
}

// Indexes lists every corpus index ordered by name.
func (db *Database) Indexes(ctx context.Context) ([]*core.IndexInfo, error) {
	return db.corpus.ListIndexes(ctx)
}

// DeleteIndex removes a corpus index. User pairs are not affected.
func (db *Database) DeleteIndex(ctx context.Context, name string) error {
	return db.corpus.DeleteIndex(ctx, name)
}

// AddUserPair stores a user-contributed translation. Adding the same pair
// again returns the same ID.
func (db *Database) AddUserPair(ctx context.Context, source, target string, sourceLang, targetLang core.Language) (core.ID, error) {
	pair := &core.TranslationPair{
		SourceText: strings.TrimSpace(source),
		TargetText: strings.TrimSpace(target),
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}
	if err := core.ValidatePair(pair, 0); err != nil {
		return 0, err
	}

	stored, err := db.users.AddUserPair(ctx, pair,
		db.analyzer.Terms(pair.SourceText, sourceLang),
		db.analyzer.Terms(pair.TargetText, targetLang))
	if err != nil {
		return 0, err
	}
	db.logger.Debug("added user pair", "id", stored.Id, "source", sourceLang, "target", targetLang)
	return stored.Id, nil
}

// ListUserPairs returns user pairs between the two languages, oriented from
// sourceLang, in insertion order. Empty languages match every pair.
func (db *Database) ListUserPairs(ctx context.Context, sourceLang, targetLang core.Language) ([]*core.TranslationPair, error) {
	return db.users.ListUserPairs(ctx, sourceLang, targetLang)
}

// DeleteUserPair removes a user pair.
// Returns storage.ErrNotFound if it does not exist.
func (db *Database) DeleteUserPair(ctx context.Context, id core.ID) error {
	return db.users.DeleteUserPair(ctx, id)
}

// ExportUserPairs writes the user pairs between the two languages as two
// line-aligned texts that can be ingested again. It returns the number of pairs written.
func (db *Database) ExportUserPairs(ctx context.Context, sourceLang, targetLang core.Language, sourceW, targetW io.Writer) (int, error) {
	if sourceLang == "" || targetLang == "" {
		return 0, ErrExportLanguages
	}
	pairs, err := db.users.ListUserPairs(ctx, sourceLang, targetLang)
	if err != nil {
		return 0, err
	}

	src, tgt := bufio.NewWriter(sourceW), bufio.NewWriter(targetW)
	for _, pair := range pairs {
		if _, err := fmt.Fprintln(src, core.SingleLine(pair.SourceText)); err != nil {
			return 0, err
		}
		if _, err := fmt.Fprintln(tgt, core.SingleLine(pair.TargetText)); err != nil {
			return 0, err
		}
	}
	if err := src.Flush(); err != nil {
		return 0, err
	}
	if err := tgt.Flush(); err != nil {
		return 0, err
	}
	return len(pairs), nil
}
