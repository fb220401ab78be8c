package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/ai/mock"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/lang"
	"github.com/poiesic/phrasebook/storage"
	"github.com/poiesic/phrasebook/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	en core.Language = "en"
	fr core.Language = "fr"
)

func newTestCorpus(t *testing.T) storage.CorpusRepository {
	t.Helper()
	corpus, users, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		users.Close()
		corpus.Close()
		backend.Close()
	})
	return corpus
}

func newTestPipeline(t *testing.T, corpus storage.CorpusRepository, provider ai.AIProvider, opts ...Option) *Pipeline {
	t.Helper()
	pipeline, err := NewPipeline(corpus, provider, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)
	return pipeline
}

func testRequest(t *testing.T, name string) Request {
	t.Helper()
	dir := t.TempDir()
	return Request{
		Index:      name,
		SourcePath: writeLines(t, dir, "en.txt", "hello", "", "good morning", "thank you very much"),
		TargetPath: writeLines(t, dir, "fr.txt", "bonjour", "", "bonjour", "merci beaucoup"),
		SourceLang: en,
		TargetLang: fr,
		Embed:      core.ColumnSource,
	}
}

func allPairs(t *testing.T, corpus storage.CorpusRepository, info *core.IndexInfo) []*core.TranslationPair {
	t.Helper()
	var pairs []*core.TranslationPair
	require.NoError(t, corpus.ForEachPair(context.Background(), info, func(p *core.TranslationPair) error {
		pairs = append(pairs, p)
		return nil
	}))
	return pairs
}

func TestNewPipeline(t *testing.T) {
	t.Run("requires corpus repository", func(t *testing.T) {
		_, err := NewPipeline(nil, nil, nil)
		assert.ErrorIs(t, err, ErrCorpusRepositoryRequired)
	})

	t.Run("rejects negative prefetch window", func(t *testing.T) {
		_, err := NewPipeline(newTestCorpus(t), nil, nil, WithPrefetchWindow(-1))
		assert.Error(t, err)
	})

	t.Run("options", func(t *testing.T) {
		p := newTestPipeline(t, newTestCorpus(t), nil, WithPoolSize(2), WithPrefetchWindow(0), WithLogger(nil))
		assert.Equal(t, 2, p.prefetchPool.Cap())
		assert.Zero(t, p.window)
		assert.NotNil(t, p.logger)
		assert.Nil(t, p.embedder)
	})
}

func TestIngest(t *testing.T) {
	corpus := newTestCorpus(t)
	embedder := mock.NewMockEmbedderWithDimension(4)
	pipeline := newTestPipeline(t, corpus, mock.NewMockProviderWithEmbedder(embedder))

	var mu sync.Mutex
	var updates [][2]int
	info, err := pipeline.Ingest(context.Background(), testRequest(t, "greetings"), func(current, total int) {
		mu.Lock()
		updates = append(updates, [2]int{current, total})
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, "greetings", info.Name)
	assert.Equal(t, 3, info.Count)
	assert.Equal(t, core.ColumnSource, info.Embedded)
	assert.Equal(t, core.Generation{ModelID: mock.DefaultModelID, Dimension: 4}, info.Generation())
	assert.Equal(t, []string{"hello", "good morning", "thank you very much"}, embedder.Texts())

	mu.Lock()
	require.NotEmpty(t, updates)
	assert.Equal(t, [2]int{3, 3}, updates[len(updates)-1])
	mu.Unlock()

	active, err := corpus.GetIndex(context.Background(), "greetings")
	require.NoError(t, err)
	assert.Equal(t, info.Revision, active.Revision)

	pairs := allPairs(t, corpus, active)
	require.Len(t, pairs, 3)
	assert.Equal(t, "good morning", pairs[1].SourceText)
	assert.Equal(t, "bonjour", pairs[1].TargetText)
	assert.Equal(t, en, pairs[1].SourceLang)

	// Both columns are searchable by keyword.
	terms := pipeline.analyzer.Terms("merci", fr)
	hits, err := corpus.SearchLexical(context.Background(), active, core.ColumnTarget, terms, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, pairs[2].Id, hits[0].Id)
}

func TestIngest_Notes(t *testing.T) {
	corpus := newTestCorpus(t)
	pipeline := newTestPipeline(t, corpus, nil)

	dir := t.TempDir()
	req := Request{
		Index:      "noted",
		SourcePath: writeLines(t, dir, "en.txt", "hello", "goodbye"),
		TargetPath: writeLines(t, dir, "fr.txt", "bonjour", "au revoir"),
		NotesPath:  writeLines(t, dir, "notes.txt", "greeting", "farewell"),
		SourceLang: en,
		TargetLang: fr,
	}
	info, err := pipeline.Ingest(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, core.ColumnNone, info.Embedded)
	assert.Empty(t, info.ModelID)

	pairs := allPairs(t, corpus, info)
	require.Len(t, pairs, 2)
	assert.Equal(t, "farewell", pairs[1].Note)
}

func TestIngest_TargetColumn(t *testing.T) {
	corpus := newTestCorpus(t)
	embedder := mock.NewMockEmbedderWithDimension(4)
	pipeline := newTestPipeline(t, corpus, mock.NewMockProviderWithEmbedder(embedder))

	req := testRequest(t, "by-target")
	req.Embed = core.ColumnTarget
	info, err := pipeline.Ingest(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, core.ColumnTarget, info.Embedded)
	assert.Equal(t, []string{"bonjour", "bonjour", "merci beaucoup"}, embedder.Texts())
}

func TestIngest_LineCountMismatchWritesNothing(t *testing.T) {
	corpus := newTestCorpus(t)
	embedder := mock.NewMockEmbedderWithDimension(4)
	pipeline := newTestPipeline(t, corpus, mock.NewMockProviderWithEmbedder(embedder))

	dir := t.TempDir()
	req := Request{
		Index:      "broken",
		SourcePath: writeLines(t, dir, "en.txt", "a", "b", "c", "d", "e"),
		TargetPath: writeLines(t, dir, "fr.txt", "a", "b", "c", "d"),
		SourceLang: en,
		TargetLang: fr,
		Embed:      core.ColumnSource,
	}
	_, err := pipeline.Ingest(context.Background(), req, nil)

	var mismatch *LineCountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 5, mismatch.SourceCount)
	assert.Equal(t, 4, mismatch.TargetCount)
	assert.Zero(t, embedder.CallCount())

	indexes, err := corpus.ListIndexes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, indexes)
}

func TestIngest_EmbedFailureKeepsPreviousRevision(t *testing.T) {
	corpus := newTestCorpus(t)
	embedder := mock.NewMockEmbedderWithDimension(4)
	pipeline := newTestPipeline(t, corpus, mock.NewMockProviderWithEmbedder(embedder))

	first, err := pipeline.Ingest(context.Background(), testRequest(t, "greetings"), nil)
	require.NoError(t, err)

	boom := errors.New("model unavailable")
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "good morning" {
			return nil, boom
		}
		return mock.DeterministicVector(text, 4), nil
	}
	_, err = pipeline.Ingest(context.Background(), testRequest(t, "greetings"), nil)
	require.ErrorIs(t, err, boom)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Line)

	active, err := corpus.GetIndex(context.Background(), "greetings")
	require.NoError(t, err)
	assert.Equal(t, first.Revision, active.Revision)
	assert.Len(t, allPairs(t, corpus, active), 3)
}

func TestIngest_Canceled(t *testing.T) {
	corpus := newTestCorpus(t)
	pipeline := newTestPipeline(t, corpus, mock.NewMockProviderWithEmbedder(mock.NewMockEmbedderWithDimension(4)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.Ingest(ctx, testRequest(t, "greetings"), nil)
	require.ErrorIs(t, err, context.Canceled)

	_, err = corpus.GetIndex(context.Background(), "greetings")
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func TestIngest_CanceledMidway(t *testing.T) {
	corpus := newTestCorpus(t)
	embedder := mock.NewMockEmbedderWithDimension(4)
	pipeline := newTestPipeline(t, corpus, mock.NewMockProviderWithEmbedder(embedder))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		if text == "good morning" {
			cancel()
		}
		return mock.DeterministicVector(text, 4), nil
	}
	_, err := pipeline.Ingest(ctx, testRequest(t, "greetings"), nil)
	require.ErrorIs(t, err, context.Canceled)

	_, err = corpus.GetIndex(context.Background(), "greetings")
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func TestIngest_RequestValidation(t *testing.T) {
	corpus := newTestCorpus(t)
	lexicalOnly := newTestPipeline(t, corpus, nil)

	tests := []struct {
		name   string
		modify func(*Request)
		want   error
	}{
		{"bad index name", func(r *Request) { r.Index = "no spaces" }, core.ErrInvalidIndexName},
		{"same language", func(r *Request) { r.TargetLang = en }, core.ErrSameLanguage},
		{"missing language", func(r *Request) { r.SourceLang = "" }, core.ErrInvalidLanguage},
		{"embedding without embedder", func(r *Request) { r.Embed = core.ColumnTarget }, ErrEmbedderRequired},
		{"unknown column", func(r *Request) { r.Embed = core.Column(9) }, core.ErrInvalidColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t, "valid")
			req.Embed = core.ColumnNone
			tt.modify(&req)
			_, err := lexicalOnly.Ingest(context.Background(), req, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIngestCorpus_Empty(t *testing.T) {
	pipeline := newTestPipeline(t, newTestCorpus(t), nil)
	req := Request{Index: "empty", SourceLang: en, TargetLang: fr}

	_, err := pipeline.IngestCorpus(context.Background(), req, &Corpus{}, nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

// encodingEmbedder is a mock embedder that also splits tokenization from inference.
type encodingEmbedder struct {
	*mock.MockEmbedder

	mu          sync.Mutex
	encoded     int
	inFlight    int
	maxInFlight int
	reject      string
}

func (e *encodingEmbedder) Encode(text string) (*ai.Encoding, error) {
	e.mu.Lock()
	e.encoded++
	e.inFlight++
	e.maxInFlight = max(e.maxInFlight, e.inFlight)
	e.mu.Unlock()

	time.Sleep(time.Millisecond)

	e.mu.Lock()
	e.inFlight--
	e.mu.Unlock()

	if text == e.reject {
		return nil, ai.ErrEmptyTokenization
	}
	return &ai.Encoding{Tokens: []string{text}}, nil
}

func (e *encodingEmbedder) EmbedEncoding(ctx context.Context, enc *ai.Encoding) ([]float32, error) {
	return e.EmbedText(ctx, enc.Tokens[0])
}

type encodingProvider struct {
	embedder *encodingEmbedder
}

func (p *encodingProvider) Embedder() ai.Embedder { return p.embedder }
func (p *encodingProvider) Close() error          { return nil }

func TestIngest_PrefetchTokenization(t *testing.T) {
	corpus := newTestCorpus(t)
	embedder := &encodingEmbedder{MockEmbedder: mock.NewMockEmbedderWithDimension(4)}
	pipeline := newTestPipeline(t, corpus, &encodingProvider{embedder: embedder},
		WithPoolSize(1), WithPrefetchWindow(2))

	info, err := pipeline.Ingest(context.Background(), testRequest(t, "prefetched"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Count)

	embedder.mu.Lock()
	assert.Equal(t, 3, embedder.encoded)
	assert.Equal(t, 1, embedder.maxInFlight)
	embedder.mu.Unlock()
	assert.Equal(t, []string{"hello", "good morning", "thank you very much"}, embedder.Texts())
}

func TestIngest_PrefetchTokenizationFailure(t *testing.T) {
	corpus := newTestCorpus(t)
	embedder := &encodingEmbedder{MockEmbedder: mock.NewMockEmbedderWithDimension(4), reject: "thank you very much"}
	pipeline := newTestPipeline(t, corpus, &encodingProvider{embedder: embedder}, WithPrefetchWindow(4))

	_, err := pipeline.Ingest(context.Background(), testRequest(t, "prefetched"), nil)
	require.ErrorIs(t, err, ai.ErrEmptyTokenization)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 4, rowErr.Line)

	_, err = corpus.GetIndex(context.Background(), "prefetched")
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func TestNewPipeline_LanguageRegistry(t *testing.T) {
	registry := lang.NewRegistry()
	pipeline, err := NewPipeline(newTestCorpus(t), nil, registry)
	require.NoError(t, err)
	defer pipeline.Release()
	assert.Equal(t, []string{"hello"}, pipeline.analyzer.Terms("Hello", en))
}
