package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/ai/mock"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/lang"
	"github.com/poiesic/phrasebook/storage"
	"github.com/poiesic/phrasebook/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	corpus   storage.CorpusRepository
	users    storage.UserPairRepository
	embedder *mock.MockEmbedder
	provider ai.AIProvider
	analyzer *lang.Analyzer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	corpus, users, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		users.Close()
		corpus.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedderWithDimension(3)
	embedder.Vectors = map[string][]float32{}
	return &fixture{
		corpus:   corpus,
		users:    users,
		embedder: embedder,
		provider: mock.NewMockProviderWithEmbedder(embedder),
		analyzer: lang.NewAnalyzer(lang.NewNormalizer(nil)),
	}
}

// build indexes rows, embedding the given column with the mock embedder.
func (f *fixture) build(t *testing.T, name string, source, target core.Language, embedded core.Column, rows [][2]string) *core.IndexInfo {
	t.Helper()
	ctx := context.Background()
	spec := storage.BuildSpec{Name: name, SourceLang: source, TargetLang: target, Embedded: embedded}
	if embedded != core.ColumnNone {
		spec.ModelID = f.embedder.ModelID()
		spec.Dimension = f.embedder.Dimension()
	}
	builder, err := f.corpus.NewBuild(ctx, spec)
	require.NoError(t, err)

	for _, row := range rows {
		pair := &core.TranslationPair{SourceText: row[0], TargetText: row[1]}
		if embedded != core.ColumnNone {
			pair.Vector, err = f.embedder.EmbedText(ctx, pair.Text(embedded))
			require.NoError(t, err)
		}
		_, err := builder.Add(ctx, pair, f.analyzer.Terms(row[0], source), f.analyzer.Terms(row[1], target))
		require.NoError(t, err)
	}
	info, err := builder.Commit(ctx)
	require.NoError(t, err)
	f.embedder.Reset()
	return info
}

func (f *fixture) addUser(t *testing.T, source, target string, sourceLang, targetLang core.Language) {
	t.Helper()
	_, err := f.users.AddUserPair(context.Background(), &core.TranslationPair{
		SourceText: source,
		TargetText: target,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}, f.analyzer.Terms(source, sourceLang), f.analyzer.Terms(target, targetLang))
	require.NoError(t, err)
}

func (f *fixture) searcher(t *testing.T, index string, opts ...Option) *Searcher {
	t.Helper()
	s, err := NewSearcher(f.corpus, f.users, f.provider, nil, index, opts...)
	require.NoError(t, err)
	return s
}

func sources(cands []*core.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Pair.SourceText
	}
	return out
}

func TestNewSearcher(t *testing.T) {
	f := newFixture(t)
	f.build(t, "greetings", "en", "fr", core.ColumnSource, [][2]string{{"hello", "bonjour"}})

	t.Run("valid configuration", func(t *testing.T) {
		s, err := NewSearcher(f.corpus, f.users, f.provider, lang.NewRegistry(), "greetings")
		require.NoError(t, err)
		assert.Equal(t, "greetings", s.Index().Name)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		_, err := NewSearcher(f.corpus, f.users, f.provider, nil, "greetings", WithLogger(nil))
		require.NoError(t, err)
	})

	t.Run("nil corpus repository", func(t *testing.T) {
		_, err := NewSearcher(nil, f.users, f.provider, nil, "greetings")
		assert.Equal(t, ErrCorpusRepositoryRequired, err)
	})

	t.Run("nil user repository", func(t *testing.T) {
		_, err := NewSearcher(f.corpus, nil, f.provider, nil, "greetings")
		assert.Equal(t, ErrUserRepositoryRequired, err)
	})

	t.Run("missing index", func(t *testing.T) {
		_, err := NewSearcher(f.corpus, f.users, f.provider, nil, "missing")
		assert.ErrorIs(t, err, storage.ErrIndexNotFound)
	})

	t.Run("empty index name", func(t *testing.T) {
		_, err := NewSearcher(f.corpus, f.users, f.provider, nil, "")
		assert.Equal(t, ErrIndexNameRequired, err)
	})

	t.Run("invalid options", func(t *testing.T) {
		for _, opt := range []Option{
			WithLexicalLimit(0),
			WithSemanticK(-1),
			WithSearchRadius(0),
			WithShortListSize(0),
			WithScoring(-0.1, 0.7),
			WithScoring(0.3, 0),
			WithScoring(0.3, 1.5),
		} {
			_, err := NewSearcher(f.corpus, f.users, f.provider, nil, "greetings", opt)
			assert.ErrorIs(t, err, ErrInvalidOption)
		}
	})

	t.Run("generation mismatch", func(t *testing.T) {
		other := mock.NewMockEmbedderWithDimension(3)
		other.Model = "other/model"
		_, err := NewSearcher(f.corpus, f.users, mock.NewMockProviderWithEmbedder(other), nil, "greetings")
		var genErr *storage.GenerationMismatchError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "mock/embedder@3", genErr.Stored)
		assert.Equal(t, "other/model@3", genErr.Current)
		assert.ErrorIs(t, err, storage.ErrGenerationMismatch)

		_, err = NewSearcher(f.corpus, f.users, mock.NewMockProviderWithEmbedder(mock.NewMockEmbedderWithDimension(4)), nil, "greetings")
		assert.ErrorIs(t, err, storage.ErrGenerationMismatch)
	})

	t.Run("nil provider searches lexically", func(t *testing.T) {
		s, err := NewSearcher(f.corpus, f.users, nil, nil, "greetings")
		require.NoError(t, err)

		res, err := s.Translate(context.Background(), Query{Text: "hello", Source: "en", Target: "fr"})
		require.NoError(t, err)
		assert.True(t, res.SemanticSkipped)
		assert.Equal(t, []string{"hello"}, sources(res.Lexical))
	})
}

func TestTranslate_ExactMatchFirst(t *testing.T) {
	f := newFixture(t)
	f.build(t, "greetings", "en", "fr", core.ColumnSource, [][2]string{
		{"hello", "xxx"},
		{"good morning", "yyy"},
		{"thank you", "zzz"},
	})
	s := f.searcher(t, "greetings")

	res, err := s.Translate(context.Background(), Query{Text: "Hello", Source: "en", Target: "fr"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Lexical)

	first := res.Lexical[0]
	assert.Equal(t, "hello", first.Pair.SourceText)
	assert.Equal(t, "xxx", first.Pair.TargetText)
	assert.True(t, first.Signals.Has(core.SignalExact))
	assert.Same(t, first, res.Exact())
	assert.False(t, res.SemanticSkipped)
	assert.Equal(t, 1, f.embedder.CallCount())
}

func TestTranslate_ExactMatchBeatsNativeRank(t *testing.T) {
	f := newFixture(t)
	f.build(t, "greetings", "en", "fr", core.ColumnSource, [][2]string{
		{"hello hello hello", "bonjour bonjour bonjour"},
		{"hello", "bonjour"},
	})
	s := f.searcher(t, "greetings")

	res, err := s.Translate(context.Background(), Query{Text: "  HELLO ", Source: "en", Target: "fr"})
	require.NoError(t, err)
	require.Len(t, res.Lexical, 2)
	assert.Equal(t, "hello", res.Lexical[0].Pair.SourceText)
	assert.Equal(t, 2, res.Lexical[0].LexicalRank)
	assert.True(t, res.Lexical[0].Signals.Has(core.SignalExact))
	assert.Equal(t, 1, res.Lexical[1].LexicalRank)
	assert.False(t, res.Lexical[1].Signals.Has(core.SignalExact))
}

func TestTranslate_ExactLoanwordSurvivesLanguageFilter(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnNone, [][2]string{
		{"a coffee", "un café"},
		{"café", "café"},
		{"déjà vu", "déjà vu"},
	})
	s := f.searcher(t, "en-fr")

	for _, text := range []string{"café", "Déjà vu"} {
		t.Run(text, func(t *testing.T) {
			res, err := s.Translate(context.Background(), Query{Text: text, Source: "en", Target: "fr"})
			require.NoError(t, err)
			require.NotEmpty(t, res.Lexical)
			exact := res.Exact()
			require.NotNil(t, exact)
			assert.Same(t, res.Lexical[0], exact)
			assert.Equal(t, core.FoldText(text), core.FoldText(exact.Pair.SourceText))
		})
	}
}

func TestTranslate_NonEmbeddedDirection(t *testing.T) {
	f := newFixture(t)
	f.build(t, "greetings", "en", "fr", core.ColumnSource, [][2]string{
		{"hello", "bonjour"},
		{"good evening", "bonsoir"},
	})
	s := f.searcher(t, "greetings")

	res, err := s.Translate(context.Background(), Query{Text: "bonjour", Source: "fr", Target: "en"})
	require.NoError(t, err)
	assert.True(t, res.SemanticSkipped)
	assert.Empty(t, res.Semantic)
	require.Len(t, res.Lexical, 1)
	assert.Equal(t, "bonjour", res.Lexical[0].Pair.SourceText)
	assert.Equal(t, "hello", res.Lexical[0].Pair.TargetText)
	assert.Equal(t, core.Language("fr"), res.Lexical[0].Pair.SourceLang)
	assert.Zero(t, f.embedder.CallCount())
}

func TestTranslate_UserPairsFirst(t *testing.T) {
	f := newFixture(t)
	f.build(t, "fr-en", "fr", "en", core.ColumnSource, [][2]string{
		{"bonjour", "hello"},
		{"bonjour madame", "hello madam"},
	})
	f.addUser(t, "bonjour", "xyz", "fr", "en")
	s := f.searcher(t, "fr-en")

	res, err := s.Translate(context.Background(), Query{Text: "bonjour", Source: "fr", Target: "en"})
	require.NoError(t, err)
	require.Len(t, res.Lexical, 3)

	user := res.Lexical[0]
	assert.Equal(t, "xyz", user.Pair.TargetText)
	assert.True(t, user.Signals.Has(core.SignalUser))
	assert.True(t, user.Signals.Has(core.SignalExact))
	assert.Zero(t, user.Score)

	assert.Equal(t, "hello", res.Lexical[1].Pair.TargetText)
	assert.True(t, res.Lexical[1].Signals.Has(core.SignalExact))
	assert.False(t, res.Lexical[1].Signals.Has(core.SignalUser))
	assert.Equal(t, "hello madam", res.Lexical[2].Pair.TargetText)
}

func TestTranslate_UserPairOrientation(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"thanks", "merci"}})
	f.addUser(t, "merci beaucoup", "thanks a lot", "fr", "en")
	f.addUser(t, "thanks", "danke", "en", "de")
	s := f.searcher(t, "en-fr")

	res, err := s.Translate(context.Background(), Query{Text: "thanks", Source: "en", Target: "fr"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Lexical)

	user := res.Lexical[0]
	assert.True(t, user.Signals.Has(core.SignalUser))
	assert.Equal(t, "thanks a lot", user.Pair.SourceText)
	assert.Equal(t, "merci beaucoup", user.Pair.TargetText)
	for _, c := range res.Lexical {
		assert.NotEqual(t, "danke", c.Pair.TargetText)
	}
}

func TestTranslate_UserPairHidesDuplicateCorpusEntry(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "bonjour"}})
	f.addUser(t, "Hello", "Bonjour", "en", "fr")
	s := f.searcher(t, "en-fr")

	res, err := s.Translate(context.Background(), Query{Text: "hello", Source: "en", Target: "fr"})
	require.NoError(t, err)
	require.Len(t, res.Lexical, 1)
	assert.True(t, res.Lexical[0].Signals.Has(core.SignalUser))
	assert.Empty(t, res.Semantic)
}

func TestTranslate_SemanticLengthPenalty(t *testing.T) {
	f := newFixture(t)
	f.embedder.Vectors["good day"] = []float32{1, 0, 0}
	f.embedder.Vectors["greetings"] = []float32{0.8, 0.6, 0}
	f.embedder.Vectors["salutations"] = []float32{0.8, -0.6, 0}
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{
		{"salutations", "bonne journée à vous tous"},
		{"greetings", "bonne journée"},
	})
	s := f.searcher(t, "en-fr")

	res, err := s.Translate(context.Background(), Query{Text: "good day", Source: "en", Target: "fr"})
	require.NoError(t, err)
	assert.Empty(t, res.Lexical)
	require.Len(t, res.Semantic, 2)

	a, b := res.Semantic[0], res.Semantic[1]
	assert.Equal(t, "greetings", a.Pair.SourceText)
	assert.Equal(t, "salutations", b.Pair.SourceText)
	assert.InDelta(t, 0.2, a.Distance, 1e-5)
	assert.InDelta(t, a.Distance, b.Distance, 1e-6)
	assert.Less(t, a.Score, b.Score)
	assert.InDelta(t, 0.2, a.Score, 1e-5)
	assert.InDelta(t, 0.2*1.3, b.Score, 1e-5)
}

func TestTranslate_LexicalAgreementBoost(t *testing.T) {
	f := newFixture(t)
	f.embedder.Vectors["good day"] = []float32{1, 0, 0}
	f.embedder.Vectors["day one"] = []float32{0.8, 0.6, 0}
	f.embedder.Vectors["greetings"] = []float32{0.8, -0.6, 0}
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{
		{"greetings", "salut vous"},
		{"day one", "jour un"},
	})
	s := f.searcher(t, "en-fr")

	res, err := s.Translate(context.Background(), Query{Text: "good day", Source: "en", Target: "fr"})
	require.NoError(t, err)
	require.Len(t, res.Semantic, 2)
	assert.Equal(t, "day one", res.Semantic[0].Pair.SourceText)
	assert.True(t, res.Semantic[0].Signals.Has(core.SignalLexical|core.SignalSemantic))
	assert.InDelta(t, 0.14, res.Semantic[0].Score, 1e-5)
	assert.False(t, res.Semantic[1].Signals.Has(core.SignalLexical))
}

func TestTranslate_ShortListSize(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{
		{"cat", "chat"},
		{"black cat", "chat noir"},
		{"white cat", "chat blanc"},
		{"the big cat", "le gros chat"},
		{"a small grey cat", "un petit chat gris"},
	})

	res, err := f.searcher(t, "en-fr").Translate(context.Background(), Query{Text: "cat", Source: "en", Target: "fr"})
	require.NoError(t, err)
	assert.Len(t, res.Lexical, 3)
	assert.Len(t, res.Semantic, 3)

	res, err = f.searcher(t, "en-fr", WithShortListSize(5)).Translate(context.Background(), Query{Text: "cat", Source: "en", Target: "fr"})
	require.NoError(t, err)
	assert.Len(t, res.Lexical, 5)
	assert.Equal(t, "cat", res.Lexical[0].Pair.SourceText)
}

func TestTranslate_LanguageFilter(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{
		{"the cat", "le chat"},
		{"le cat est avec la souris", "the cat is with the mouse"},
	})
	monitor := &recordingMonitor{}
	s := f.searcher(t, "en-fr", WithMonitor(monitor))

	res, err := s.Translate(context.Background(), Query{Text: "cat", Source: "en", Target: "fr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"the cat"}, sources(res.Lexical))
	for _, c := range res.Semantic {
		assert.Equal(t, "the cat", c.Pair.SourceText)
	}
	assert.NotEmpty(t, monitor.filtered)
}

func TestTranslate_NoMatchIsNotAnError(t *testing.T) {
	f := newFixture(t)
	f.build(t, "plain", "en", "fr", core.ColumnNone, [][2]string{{"hello", "bonjour"}})
	s := f.searcher(t, "plain")

	res, err := s.Translate(context.Background(), Query{Text: "zebra", Source: "en", Target: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.True(t, res.SemanticSkipped)
	assert.Nil(t, res.Exact())
	assert.Zero(t, f.embedder.CallCount())
}

func TestTranslate_InputErrors(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "bonjour"}})
	s := f.searcher(t, "en-fr")
	ctx := context.Background()

	_, err := s.Translate(ctx, Query{Text: "   ", Source: "en", Target: "fr"})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Translate(ctx, Query{Text: "hallo", Source: "de", Target: "fr"})
	assert.ErrorIs(t, err, ErrUnsupportedDirection)

	_, err = s.Translate(ctx, Query{Text: "hello", Source: "en", Target: "en"})
	assert.ErrorIs(t, err, ErrUnsupportedDirection)
}

func TestTranslate_EmbedderErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "bonjour"}})
	s := f.searcher(t, "en-fr")

	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, &ai.DimensionMismatchError{Expected: 3, Actual: 2}
	}
	_, err := s.Translate(context.Background(), Query{Text: "hello", Source: "en", Target: "fr"})
	assert.ErrorIs(t, err, ai.ErrDimensionMismatch)
}

func TestTranslate_RevalidatesNewRevision(t *testing.T) {
	f := newFixture(t)
	first := f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "bonjour"}})
	s := f.searcher(t, "en-fr")
	ctx := context.Background()
	query := Query{Text: "hello", Source: "en", Target: "fr"}

	_, err := s.Translate(ctx, query)
	require.NoError(t, err)

	second := f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "salut"}})
	res, err := s.Translate(ctx, query)
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)
	assert.Equal(t, second.Revision, res.Index.Revision)
	assert.Equal(t, "salut", res.Lexical[0].Pair.TargetText)

	f.embedder.Model = "replacement/model"
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "salut"}})
	f.embedder.Model = ""
	_, err = s.Translate(ctx, query)
	assert.ErrorIs(t, err, storage.ErrGenerationMismatch)
}

func TestTranslate_Canceled(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "bonjour"}})
	s := f.searcher(t, "en-fr")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Translate(ctx, Query{Text: "hello", Source: "en", Target: "fr"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTranslate_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{
		{"hello", "bonjour"},
		{"good evening", "bonsoir"},
	})
	s := f.searcher(t, "en-fr", WithLogger(slog.Default()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Translate(context.Background(), Query{Text: "hello", Source: "en", Target: "fr"})
			assert.NoError(t, err)
			if assert.NotEmpty(t, res.Lexical) {
				assert.Equal(t, "hello", res.Lexical[0].Pair.SourceText)
			}
		}()
	}
	wg.Wait()
}

type recordingMonitor struct {
	noopMonitor
	started  int
	skipped  []string
	filtered []*core.TranslationPair
	exact    []*core.Candidate
	finished *Result
}

func (m *recordingMonitor) Start(Query) { m.started++ }

func (m *recordingMonitor) SemanticSkipped(reason string) {
	m.skipped = append(m.skipped, reason)
}

func (m *recordingMonitor) ExactMatch(c *core.Candidate) {
	m.exact = append(m.exact, c)
}

func (m *recordingMonitor) LanguageFiltered(p *core.TranslationPair, _ core.Signal) {
	m.filtered = append(m.filtered, p)
}

func (m *recordingMonitor) Finish(r *Result) { m.finished = r }

func TestTranslate_Monitor(t *testing.T) {
	f := newFixture(t)
	f.build(t, "en-fr", "en", "fr", core.ColumnSource, [][2]string{{"hello", "bonjour"}})
	monitor := &recordingMonitor{}
	s := f.searcher(t, "en-fr", WithMonitor(monitor))

	res, err := s.Translate(context.Background(), Query{Text: "bonjour", Source: "fr", Target: "en"})
	require.NoError(t, err)
	assert.Equal(t, 1, monitor.started)
	assert.Len(t, monitor.skipped, 1)
	assert.Len(t, monitor.exact, 1)
	assert.Same(t, res, monitor.finished)

	log := NewLogMonitor(nil)
	s = f.searcher(t, "en-fr", WithMonitor(log))
	_, err = s.Translate(context.Background(), Query{Text: "hello", Source: "en", Target: "fr"})
	require.NoError(t, err)
}
