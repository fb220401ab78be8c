package search

import (
	"log/slog"

	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/storage"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// Hooks are called from the goroutine running Translate, in stage order.
type SearchMonitor interface {
	Start(query Query)
	AfterLexicalSearch(hits []storage.LexicalHit, exact []core.ID)
	AfterUserSearch(hits []storage.LexicalHit, exact []core.ID)
	LanguageFiltered(pair *core.TranslationPair, signal core.Signal)
	ExactMatch(candidate *core.Candidate)
	SemanticSkipped(reason string)
	AfterSemanticSearch(hits []storage.SemanticHit)
	Scored(candidate *core.Candidate, lengthPenalty float64)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)                                         {}
func (n *noopMonitor) AfterLexicalSearch(_ []storage.LexicalHit, _ []core.ID) {}
func (n *noopMonitor) AfterUserSearch(_ []storage.LexicalHit, _ []core.ID)    {}
func (n *noopMonitor) LanguageFiltered(_ *core.TranslationPair, _ core.Signal) {}
func (n *noopMonitor) ExactMatch(_ *core.Candidate)                          {}
func (n *noopMonitor) SemanticSkipped(_ string)                              {}
func (n *noopMonitor) AfterSemanticSearch(_ []storage.SemanticHit)           {}
func (n *noopMonitor) Scored(_ *core.Candidate, _ float64)                   {}
func (n *noopMonitor) Finish(_ *Result)                                      {}

// LogMonitor reports every stage to a logger at debug level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ SearchMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a monitor writing to logger, or slog.Default() if nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "search-monitor")}
}

func (m *LogMonitor) Start(query Query) {
	m.logger.Debug("search started", "query", query.Text, "source", query.Source, "target", query.Target)
}

func (m *LogMonitor) AfterLexicalSearch(hits []storage.LexicalHit, exact []core.ID) {
	m.logger.Debug("lexical search", "hits", len(hits), "exact", exact)
}

func (m *LogMonitor) AfterUserSearch(hits []storage.LexicalHit, exact []core.ID) {
	m.logger.Debug("user pair search", "hits", len(hits), "exact", exact)
}

func (m *LogMonitor) LanguageFiltered(pair *core.TranslationPair, signal core.Signal) {
	m.logger.Debug("dropped by language filter", "id", pair.Id, "source", pair.SourceText, "semantic", signal.Has(core.SignalSemantic))
}

func (m *LogMonitor) ExactMatch(candidate *core.Candidate) {
	m.logger.Debug("exact match", "id", candidate.Pair.Id, "user", candidate.Signals.Has(core.SignalUser))
}

func (m *LogMonitor) SemanticSkipped(reason string) {
	m.logger.Debug("semantic search skipped", "reason", reason)
}

func (m *LogMonitor) AfterSemanticSearch(hits []storage.SemanticHit) {
	m.logger.Debug("semantic search", "hits", len(hits))
}

func (m *LogMonitor) Scored(candidate *core.Candidate, lengthPenalty float64) {
	m.logger.Debug("scored",
		"id", candidate.Pair.Id,
		"distance", candidate.Distance,
		"length_penalty", lengthPenalty,
		"lexical", candidate.Signals.Has(core.SignalLexical),
		"score", candidate.Score)
}

func (m *LogMonitor) Finish(result *Result) {
	m.logger.Debug("search finished",
		"lexical", len(result.Lexical),
		"semantic", len(result.Semantic),
		"semantic_skipped", result.SemanticSkipped)
}
