package phrasebook

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/ai/mock"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/ingestion"
	"github.com/poiesic/phrasebook/reembed"
	"github.com/poiesic/phrasebook/search"
	"github.com/poiesic/phrasebook/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	en core.Language = "en"
	es core.Language = "es"
)

func newTestDatabase(t *testing.T, opts ...DatabaseOption) *Database {
	t.Helper()
	db, err := NewDatabase("", append([]DatabaseOption{WithInMemory()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ingest(t *testing.T, db *Database, name string, embed core.Column, source, target []string) *core.IndexInfo {
	t.Helper()
	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	rows := make([]ingestion.Row, len(source))
	for i := range source {
		rows[i] = ingestion.Row{Line: i + 1, Source: source[i], Target: target[i]}
	}
	req := ingestion.Request{Index: name, SourceLang: en, TargetLang: es, Embed: embed}
	info, err := pipeline.IngestCorpus(context.Background(), req, &ingestion.Corpus{Rows: rows}, nil)
	require.NoError(t, err)
	return info
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		assert.NotNil(t, db.CorpusRepository())
		assert.NotNil(t, db.UserPairRepository())
		assert.NotNil(t, db.Languages())
		assert.Nil(t, db.Embedder())
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("invalid AI config", func(t *testing.T) {
		cfg := ai.NewConfig()
		db, err := NewDatabase("", WithInMemory(), WithAIConfig(cfg))
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("provider is closed with the database", func(t *testing.T) {
		provider := mock.NewMockProvider()
		db, err := NewDatabase("", WithInMemory(), WithAIProvider(provider))
		require.NoError(t, err)
		assert.NotNil(t, db.Embedder())
		require.NoError(t, db.Close())
		assert.True(t, provider.(*mock.MockProvider).Closed())
	})
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db := newTestDatabase(t)
	ingest(t, db, "phrases", core.ColumnNone, []string{"good morning"}, []string{"buenos días"})

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewIngestionPipeline()
		require.NoError(t, err)
		pipeline.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher("phrases")
		require.NoError(t, err)
		assert.Equal(t, "phrases", searcher.Index().Name)

		_, err = db.NewSearcher("missing")
		assert.ErrorIs(t, err, storage.ErrIndexNotFound)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		r, err := db.NewReembedder(nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, r)
	})
}

func TestDatabase_EndToEnd(t *testing.T) {
	ctx := context.Background()
	embedder := mock.NewMockEmbedderWithDimension(8)
	db := newTestDatabase(t, WithAIProvider(mock.NewMockProviderWithEmbedder(embedder)))

	ingest(t, db, "phrases", core.ColumnSource,
		[]string{"good morning", "good night", "thank you very much"},
		[]string{"buenos días", "buenas noches", "muchas gracias"})

	id, err := db.AddUserPair(ctx, "  good morning ", "buen día", en, es)
	require.NoError(t, err)

	searcher, err := db.NewSearcher("phrases")
	require.NoError(t, err)
	result, err := searcher.Translate(ctx, search.Query{Text: "Good morning", Source: en, Target: es})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(result.Lexical), 2)
	assert.Equal(t, id, result.Lexical[0].Pair.Id)
	assert.True(t, result.Lexical[0].Signals.Has(core.SignalUser|core.SignalExact))
	assert.Equal(t, "buenos días", result.Lexical[1].Pair.TargetText)
	assert.True(t, result.Lexical[1].Signals.Has(core.SignalExact))
	assert.False(t, result.SemanticSkipped)

	// Reembedding the target column leaves user pairs alone.
	r, err := db.NewReembedder(&reembed.Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 1}, nil)
	require.NoError(t, err)
	info, err := r.Run(ctx, "phrases", core.ColumnTarget)
	require.NoError(t, err)
	assert.Equal(t, core.ColumnTarget, info.Embedded)

	pairs, err := db.ListUserPairs(ctx, en, es)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "good morning", pairs[0].SourceText)
	assert.Nil(t, pairs[0].Vector)
}

func TestDatabase_UserPairs(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	first, err := db.AddUserPair(ctx, "see you", "hasta luego", en, es)
	require.NoError(t, err)
	again, err := db.AddUserPair(ctx, "See you", "Hasta luego", en, es)
	require.NoError(t, err)
	assert.Equal(t, first, again, "content IDs ignore case")

	_, err = db.AddUserPair(ctx, "line one\nline two", "línea uno\nlínea dos", en, es)
	require.NoError(t, err)

	_, err = db.AddUserPair(ctx, " ", "vacío", en, es)
	assert.ErrorIs(t, err, core.ErrInvalidPair)
	_, err = db.AddUserPair(ctx, "same", "same", en, en)
	assert.ErrorIs(t, err, core.ErrSameLanguage)

	reversed, err := db.ListUserPairs(ctx, es, en)
	require.NoError(t, err)
	require.Len(t, reversed, 2)
	assert.Equal(t, "Hasta luego", reversed[0].SourceText)
	assert.Equal(t, es, reversed[0].SourceLang)

	var src, tgt bytes.Buffer
	n, err := db.ExportUserPairs(ctx, en, es, &src, &tgt)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "See you\nline one line two\n", src.String())
	assert.Equal(t, "Hasta luego\nlínea uno línea dos\n", tgt.String())

	// The export is a valid corpus.
	corpus, err := ingestion.ReadCorpusFrom(strings.NewReader(src.String()), strings.NewReader(tgt.String()), nil)
	require.NoError(t, err)
	assert.Len(t, corpus.Rows, 2)

	_, err = db.ExportUserPairs(ctx, en, "", &src, &tgt)
	assert.ErrorIs(t, err, ErrExportLanguages)

	require.NoError(t, db.DeleteUserPair(ctx, first))
	assert.ErrorIs(t, db.DeleteUserPair(ctx, first), storage.ErrNotFound)
}

func TestDatabase_Indexes(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	ingest(t, db, "b-index", core.ColumnNone, []string{"yes"}, []string{"sí"})
	ingest(t, db, "a-index", core.ColumnNone, []string{"no"}, []string{"no"})

	infos, err := db.Indexes(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a-index", infos[0].Name)

	require.NoError(t, db.DeleteIndex(ctx, "a-index"))
	assert.ErrorIs(t, db.DeleteIndex(ctx, "a-index"), storage.ErrIndexNotFound)

	infos, err = db.Indexes(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}
