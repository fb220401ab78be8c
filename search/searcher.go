package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/lang"
	"github.com/poiesic/phrasebook/storage"
	"golang.org/x/sync/errgroup"
)

// Default retrieval limits.
const (
	DefaultLexicalLimit  = 20
	DefaultSemanticK     = 50
	DefaultSearchRadius  = 10
	DefaultShortListSize = 3
)

// Query is one translation request.
type Query struct {
	Text   string
	Source core.Language
	Target core.Language
}

// Result holds the two short-lists of a query.
type Result struct {
	Query Query
	Index *core.IndexInfo

	// Lexical holds user pairs first, then corpus keyword matches with the
	// exact match, if any, at the front of the corpus part.
	Lexical []*core.Candidate

	// Semantic holds corpus vector matches ordered by ascending score.
	Semantic []*core.Candidate

	// SemanticSkipped is set when the query's source column carries no vectors.
	SemanticSkipped bool
}

// Empty reports whether neither short-list has a match.
func (r *Result) Empty() bool {
	return len(r.Lexical) == 0 && len(r.Semantic) == 0
}

// Exact returns the first exact-match candidate of the lexical short-list, or nil.
func (r *Result) Exact() *core.Candidate {
	for _, c := range r.Lexical {
		if c.Signals.Has(core.SignalExact) {
			return c
		}
	}
	return nil
}

// Searcher provides hybrid lexical and semantic search over one corpus index.
type Searcher struct {
	corpus    storage.CorpusRepository
	users     storage.UserPairRepository
	embedder  ai.Embedder
	analyzer  *lang.Analyzer
	detector  *lang.Detector
	indexName string

	lexicalLimit  int
	semanticK     int
	searchRadius  int
	shortListSize int
	scorer        Scorer
	monitor       SearchMonitor
	logger        *slog.Logger

	mu    sync.Mutex
	index *core.IndexInfo
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// WithMonitor sets the monitor observing every query.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// WithLexicalLimit sets how many keyword hits are requested per query.
func WithLexicalLimit(n int) Option {
	return func(s *Searcher) error {
		if n <= 0 {
			return fmt.Errorf("%w: lexical limit must be positive, got %d", ErrInvalidOption, n)
		}
		s.lexicalLimit = n
		return nil
	}
}

// WithSemanticK sets how many nearest neighbours are requested per query.
func WithSemanticK(k int) Option {
	return func(s *Searcher) error {
		if k <= 0 {
			return fmt.Errorf("%w: semantic k must be positive, got %d", ErrInvalidOption, k)
		}
		s.semanticK = k
		return nil
	}
}

// WithSearchRadius sets the fan-out of the approximate vector search.
func WithSearchRadius(radius int) Option {
	return func(s *Searcher) error {
		if radius < 1 {
			return fmt.Errorf("%w: search radius must be at least 1, got %d", ErrInvalidOption, radius)
		}
		s.searchRadius = radius
		return nil
	}
}

// WithShortListSize sets the length of each short-list.
func WithShortListSize(n int) Option {
	return func(s *Searcher) error {
		if n <= 0 {
			return fmt.Errorf("%w: short-list size must be positive, got %d", ErrInvalidOption, n)
		}
		s.shortListSize = n
		return nil
	}
}

// WithScoring sets the length penalty weight alpha and the lexical boost beta.
func WithScoring(alpha, beta float64) Option {
	return func(s *Searcher) error {
		if alpha < 0 {
			return fmt.Errorf("%w: alpha must not be negative, got %g", ErrInvalidOption, alpha)
		}
		if beta <= 0 || beta > 1 {
			return fmt.Errorf("%w: beta must be in (0, 1], got %g", ErrInvalidOption, beta)
		}
		s.scorer = Scorer{Alpha: alpha, Beta: beta}
		return nil
	}
}

// NewSearcher creates a searcher over the named index. The provider may be nil,
// in which case only keyword search runs. The index must exist and, when it
// carries vectors, must have been built by the provider's embedding model.
func NewSearcher(
	corpus storage.CorpusRepository,
	users storage.UserPairRepository,
	provider ai.AIProvider,
	languages *lang.Registry,
	index string,
	opts ...Option,
) (*Searcher, error) {
	if corpus == nil {
		return nil, ErrCorpusRepositoryRequired
	}
	if users == nil {
		return nil, ErrUserRepositoryRequired
	}
	if index == "" {
		return nil, ErrIndexNameRequired
	}
	if languages == nil {
		languages = lang.NewRegistry()
	}

	s := &Searcher{
		corpus:        corpus,
		users:         users,
		analyzer:      lang.NewAnalyzer(lang.NewNormalizer(languages)),
		detector:      lang.NewDetector(languages),
		indexName:     index,
		lexicalLimit:  DefaultLexicalLimit,
		semanticK:     DefaultSemanticK,
		searchRadius:  DefaultSearchRadius,
		shortListSize: DefaultShortListSize,
		scorer:        DefaultScorer(),
		monitor:       &noopMonitor{},
		logger:        slog.Default().With("component", "searcher"),
	}
	if provider != nil {
		s.embedder = provider.Embedder()
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if _, err := s.loadIndex(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Index returns the index revision the searcher last validated.
func (s *Searcher) Index() *core.IndexInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// loadIndex reads the active revision and validates its generation whenever
// the revision differs from the one validated before.
func (s *Searcher) loadIndex(ctx context.Context) (*core.IndexInfo, error) {
	info, err := s.corpus.GetIndex(ctx, s.indexName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil && s.index.Revision == info.Revision {
		return s.index, nil
	}
	if err := s.checkGeneration(info); err != nil {
		return nil, err
	}
	if s.index != nil {
		s.logger.Info("index revision changed", "index", info.Name, "previous", s.index.Revision, "revision", info.Revision)
	}
	s.index = info
	return info, nil
}

func (s *Searcher) checkGeneration(info *core.IndexInfo) error {
	if info.Embedded == core.ColumnNone || s.embedder == nil {
		return nil
	}
	current := core.Generation{ModelID: s.embedder.ModelID(), Dimension: s.embedder.Dimension()}
	if current != info.Generation() {
		return &storage.GenerationMismatchError{
			Index:    info.Name,
			Revision: info.Revision,
			Stored:   info.Generation().String(),
			Current:  current.String(),
		}
	}
	return nil
}

type lexicalResult struct {
	hits      []storage.LexicalHit
	exact     []core.ID
	pairs     map[core.ID]*core.TranslationPair
	userHits  []storage.LexicalHit
	userExact []core.ID
	userPairs map[core.ID]*core.TranslationPair
}

type semanticResult struct {
	hits  []storage.SemanticHit
	pairs map[core.ID]*core.TranslationPair
}

// Translate runs the keyword and vector searches concurrently and merges
// them into the two short-lists.
func (s *Searcher) Translate(ctx context.Context, query Query) (*Result, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	column, ok := info.ColumnFor(query.Source)
	if !ok || query.Target != info.LanguageOf(column.Other()) {
		return nil, fmt.Errorf("%w: %s to %s on index %s (%s-%s)",
			ErrUnsupportedDirection, query.Source, query.Target, info.Name, info.SourceLang, info.TargetLang)
	}

	s.monitor.Start(query)
	terms := s.analyzer.Terms(query.Text, query.Source)
	semantic := info.Embedded == column && s.embedder != nil

	var (
		lex lexicalResult
		sem semanticResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lex, err = s.searchLexical(gctx, info, column, query, terms)
		return err
	})
	if semantic {
		g.Go(func() error {
			var err error
			sem, err = s.searchSemantic(gctx, info, query)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("search failed", "index", info.Name, "query", query.Text, "err", err)
		return nil, err
	}

	result := &Result{Query: query, Index: info, Semantic: []*core.Candidate{}, SemanticSkipped: !semantic}
	folded := core.FoldText(query.Text)

	s.monitor.AfterLexicalSearch(lex.hits, lex.exact)
	s.monitor.AfterUserSearch(lex.userHits, lex.userExact)
	users := s.userShortList(query, folded, lex)
	shown := make(map[string]struct{}, len(users))
	for _, c := range users {
		shown[pairKey(c.Pair)] = struct{}{}
	}

	corpus, inLexical := s.lexicalShortList(query, folded, lex, shown)
	result.Lexical = append(users, corpus...)

	if semantic {
		s.monitor.AfterSemanticSearch(sem.hits)
		result.Semantic = s.semanticShortList(query, sem, inLexical, shown)
	} else {
		reason := fmt.Sprintf("%s column of index %s has no vectors", column, info.Name)
		if s.embedder == nil && info.Embedded == column {
			reason = "no embedder configured"
		}
		s.monitor.SemanticSkipped(reason)
	}

	s.monitor.Finish(result)
	s.logger.Debug("translated",
		"index", info.Name,
		"lexical", len(result.Lexical),
		"semantic", len(result.Semantic),
		"semantic_skipped", result.SemanticSkipped)
	return result, nil
}

func (s *Searcher) searchLexical(ctx context.Context, info *core.IndexInfo, column core.Column, query Query, terms []string) (lexicalResult, error) {
	var res lexicalResult
	var err error

	res.hits, err = s.corpus.SearchLexical(ctx, info, column, terms, s.lexicalLimit)
	if err != nil {
		return res, fmt.Errorf("lexical search: %w", err)
	}
	res.exact, err = s.corpus.LookupExact(ctx, info, column, query.Text)
	if err != nil {
		return res, fmt.Errorf("exact lookup: %w", err)
	}
	pairs, err := s.corpus.GetPairs(ctx, info, hitIDs(res.hits, res.exact)...)
	if err != nil {
		return res, fmt.Errorf("load lexical candidates: %w", err)
	}
	res.pairs = byID(pairs)

	res.userHits, err = s.users.SearchUserLexical(ctx, query.Source, query.Target, terms, s.lexicalLimit)
	if err != nil {
		return res, fmt.Errorf("user pair search: %w", err)
	}
	res.userExact, err = s.users.LookupUserExact(ctx, query.Source, query.Text)
	if err != nil {
		return res, fmt.Errorf("user pair exact lookup: %w", err)
	}
	userPairs, err := s.users.GetUserPairs(ctx, hitIDs(res.userHits, res.userExact)...)
	if err != nil {
		return res, fmt.Errorf("load user pairs: %w", err)
	}
	res.userPairs = byID(userPairs)
	return res, nil
}

func (s *Searcher) searchSemantic(ctx context.Context, info *core.IndexInfo, query Query) (semanticResult, error) {
	var res semanticResult

	vector, err := s.embedder.EmbedText(ctx, query.Text)
	if err != nil {
		return res, fmt.Errorf("embed query: %w", err)
	}
	res.hits, err = s.corpus.SearchSemantic(ctx, info, vector, s.semanticK, s.searchRadius)
	if err != nil {
		return res, fmt.Errorf("semantic search: %w", err)
	}
	ids := make([]core.ID, len(res.hits))
	for i, hit := range res.hits {
		ids[i] = hit.Id
	}
	pairs, err := s.corpus.GetPairs(ctx, info, ids...)
	if err != nil {
		return res, fmt.Errorf("load semantic candidates: %w", err)
	}
	res.pairs = byID(pairs)
	return res, nil
}

// userShortList orients matching user pairs toward the query direction.
// User pairs are authoritative and score 0.
func (s *Searcher) userShortList(query Query, folded string, lex lexicalResult) []*core.Candidate {
	ranks := make(map[core.ID]storage.LexicalHit, len(lex.userHits))
	for _, hit := range lex.userHits {
		ranks[hit.Id] = hit
	}

	out := make([]*core.Candidate, 0, s.shortListSize)
	seen := make(map[core.ID]struct{})
	add := func(id core.ID) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		pair := lex.userPairs[id]
		if pair == nil {
			return
		}
		oriented, ok := pair.Oriented(query.Source)
		if !ok || oriented.TargetLang != query.Target {
			return
		}
		hit := ranks[id]
		c := &core.Candidate{
			Pair:         oriented,
			LexicalRank:  hit.Rank,
			LexicalScore: hit.Score,
			Signals:      core.SignalLexical | core.SignalUser,
		}
		if isExact(oriented, folded) {
			c.Signals |= core.SignalExact
			s.monitor.ExactMatch(c)
		}
		out = append(out, c)
	}
	for _, id := range lex.userExact {
		add(id)
	}
	for _, hit := range lex.userHits {
		add(hit.Id)
	}
	if len(out) > s.shortListSize {
		out = out[:s.shortListSize]
	}
	return out
}

// lexicalShortList filters corpus keyword hits by language, forces the exact
// match to the front and truncates. It also returns the IDs of every
// filtered keyword hit for the semantic boost.
func (s *Searcher) lexicalShortList(query Query, folded string, lex lexicalResult, shown map[string]struct{}) ([]*core.Candidate, map[core.ID]bool) {
	inLexical := make(map[core.ID]bool, len(lex.hits)+len(lex.exact))
	var candidates []*core.Candidate

	add := func(id core.ID, rank int, score float64) {
		if inLexical[id] {
			return
		}
		pair := lex.pairs[id]
		if pair == nil {
			return
		}
		oriented, ok := pair.Oriented(query.Source)
		if !ok {
			return
		}
		// An exact match in the source column is kept even when its letters look foreign.
		if !isExact(oriented, folded) && !s.detector.Consistent(oriented.SourceText, query.Source, query.Target) {
			s.monitor.LanguageFiltered(oriented, core.SignalLexical)
			return
		}
		inLexical[id] = true
		candidates = append(candidates, &core.Candidate{
			Pair:         oriented,
			LexicalRank:  rank,
			LexicalScore: score,
			Signals:      core.SignalLexical,
		})
	}
	for _, hit := range lex.hits {
		add(hit.Id, hit.Rank, hit.Score)
	}
	// Exact matches the ranking missed join at the end; the exact pass below moves one forward.
	for _, id := range lex.exact {
		add(id, 0, 0)
	}

	if i := slices.IndexFunc(candidates, func(c *core.Candidate) bool { return isExact(c.Pair, folded) }); i >= 0 {
		exact := candidates[i]
		exact.Signals |= core.SignalExact
		candidates = slices.Delete(candidates, i, i+1)
		candidates = slices.Insert(candidates, 0, exact)
		s.monitor.ExactMatch(exact)
	}

	out := make([]*core.Candidate, 0, s.shortListSize)
	for _, c := range candidates {
		if _, dup := shown[pairKey(c.Pair)]; dup {
			continue
		}
		out = append(out, c)
		if len(out) == s.shortListSize {
			break
		}
	}
	return out, inLexical
}

// semanticShortList filters and scores vector hits and keeps the best ones.
func (s *Searcher) semanticShortList(query Query, sem semanticResult, inLexical map[core.ID]bool, shown map[string]struct{}) []*core.Candidate {
	queryTokens := core.TokenCount(query.Text)
	seen := make(map[core.ID]struct{}, len(sem.hits))

	scored := make([]*core.Candidate, 0, len(sem.hits))
	for _, hit := range sem.hits {
		if _, dup := seen[hit.Id]; dup {
			continue
		}
		seen[hit.Id] = struct{}{}

		pair := sem.pairs[hit.Id]
		if pair == nil {
			continue
		}
		oriented, ok := pair.Oriented(query.Source)
		if !ok {
			continue
		}
		if !s.detector.Consistent(oriented.SourceText, query.Source, query.Target) {
			s.monitor.LanguageFiltered(oriented, core.SignalSemantic)
			continue
		}
		if _, dup := shown[pairKey(oriented)]; dup {
			continue
		}

		targetTokens := core.TokenCount(oriented.TargetText)
		lexical := inLexical[hit.Id]
		c := &core.Candidate{
			Pair:     oriented,
			Distance: hit.Distance,
			Score:    s.scorer.Score(hit.Distance, queryTokens, targetTokens, lexical),
			Signals:  core.SignalSemantic,
		}
		if lexical {
			c.Signals |= core.SignalLexical
		}
		s.monitor.Scored(c, s.scorer.LengthPenalty(queryTokens, targetTokens))
		scored = append(scored, c)
	}

	slices.SortStableFunc(scored, func(a, b *core.Candidate) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Pair.Id, b.Pair.Id)
	})
	if len(scored) > s.shortListSize {
		scored = scored[:s.shortListSize]
	}
	return scored
}

// hitIDs returns the IDs of hits followed by extra IDs, without duplicates.
func hitIDs(hits []storage.LexicalHit, extra []core.ID) []core.ID {
	seen := make(map[core.ID]struct{}, len(hits)+len(extra))
	ids := make([]core.ID, 0, len(hits)+len(extra))
	for _, hit := range hits {
		if _, ok := seen[hit.Id]; !ok {
			seen[hit.Id] = struct{}{}
			ids = append(ids, hit.Id)
		}
	}
	for _, id := range extra {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func byID(pairs []*core.TranslationPair) map[core.ID]*core.TranslationPair {
	m := make(map[core.ID]*core.TranslationPair, len(pairs))
	for _, p := range pairs {
		m[p.Id] = p
	}
	return m
}
