package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/lang"
	"github.com/poiesic/phrasebook/storage"
)

// DefaultPrefetchWindow is how many rows ahead tokenization may run.
const DefaultPrefetchWindow = 8

// Pipeline builds corpus indexes from aligned text files.
type Pipeline struct {
	corpus       storage.CorpusRepository
	embedder     ai.Embedder
	analyzer     *lang.Analyzer
	prefetchPool *ants.Pool
	window       int
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of tokenization workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.prefetchPool != nil {
			p.prefetchPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.prefetchPool = pool
		return nil
	}
}

// WithPrefetchWindow sets how many rows ahead tokenization may run. Zero disables prefetching.
func WithPrefetchWindow(n int) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			return fmt.Errorf("prefetch window must not be negative, got %d", n)
		}
		p.window = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. The provider may be nil when
// only lexical indexes are built.
func NewPipeline(
	corpus storage.CorpusRepository,
	provider ai.AIProvider,
	languages *lang.Registry,
	opts ...Option,
) (*Pipeline, error) {
	if corpus == nil {
		return nil, ErrCorpusRepositoryRequired
	}
	if languages == nil {
		languages = lang.NewRegistry()
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		corpus:       corpus,
		analyzer:     lang.NewAnalyzer(lang.NewNormalizer(languages)),
		prefetchPool: pool,
		window:       DefaultPrefetchWindow,
		logger:       slog.Default().With("component", "ingestion"),
	}
	if provider != nil {
		p.embedder = provider.Embedder()
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Request describes one ingestion.
type Request struct {
	Index      string
	SourcePath string
	TargetPath string
	NotesPath  string // optional third aligned file
	SourceLang core.Language
	TargetLang core.Language
	Embed      core.Column // ColumnNone builds a lexical-only index
}

func (p *Pipeline) validate(req *Request) error {
	if err := core.ValidateIndexName(req.Index); err != nil {
		return err
	}
	if err := core.ValidateLanguages(req.SourceLang, req.TargetLang); err != nil {
		return err
	}
	switch req.Embed {
	case core.ColumnNone:
	case core.ColumnSource, core.ColumnTarget:
		if p.embedder == nil {
			return ErrEmbedderRequired
		}
	default:
		return fmt.Errorf("%w: %d", core.ErrInvalidColumn, req.Embed)
	}
	return nil
}

// Ingest reads and validates the corpus files, then builds a new revision of
// req.Index. Either every row is committed or the previous revision, if any,
// stays active. onProgress may be nil.
func (p *Pipeline) Ingest(ctx context.Context, req Request, onProgress ProgressFunc) (*core.IndexInfo, error) {
	if err := p.validate(&req); err != nil {
		return nil, err
	}
	corpus, err := ReadCorpus(req.SourcePath, req.TargetPath, req.NotesPath)
	if err != nil {
		return nil, err
	}
	return p.IngestCorpus(ctx, req, corpus, onProgress)
}

// IngestCorpus builds a new revision of req.Index from an already validated corpus.
// The file paths of req are ignored.
func (p *Pipeline) IngestCorpus(ctx context.Context, req Request, corpus *Corpus, onProgress ProgressFunc) (*core.IndexInfo, error) {
	if err := p.validate(&req); err != nil {
		return nil, err
	}
	total := len(corpus.Rows)
	if total == 0 {
		return nil, ErrEmptyCorpus
	}

	spec := storage.BuildSpec{
		Name:       req.Index,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Embedded:   req.Embed,
	}
	if req.Embed != core.ColumnNone {
		spec.ModelID = p.embedder.ModelID()
		spec.Dimension = p.embedder.Dimension()
	}

	logger := p.logger.With("index", req.Index)
	logger.Info("ingesting corpus", "rows", total, "embedded", req.Embed, "model", spec.ModelID)
	start := time.Now()

	builder, err := p.corpus.NewBuild(ctx, spec)
	if err != nil {
		return nil, err
	}
	progress, err := newProgressReporter(onProgress, logger)
	if err != nil {
		builder.Abort()
		return nil, err
	}

	var proc processor
	if req.Embed != core.ColumnNone {
		texts := make([]string, total)
		for i, row := range corpus.Rows {
			if req.Embed == core.ColumnSource {
				texts[i] = row.Source
			} else {
				texts[i] = row.Target
			}
		}
		proc = newEmbeddingProcessor(p.embedder, texts, p.prefetchPool, p.window, logger)
		defer proc.release()
	}

	fail := func(err error) (*core.IndexInfo, error) {
		progress.stop()
		if abortErr := builder.Abort(); abortErr != nil {
			logger.Warn("error aborting build", "err", abortErr)
		}
		logger.Error("ingestion aborted", "err", err)
		return nil, err
	}

	for i, row := range corpus.Rows {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		pair := &core.TranslationPair{
			SourceText: row.Source,
			TargetText: row.Target,
			Note:       row.Note,
			SourceLang: req.SourceLang,
			TargetLang: req.TargetLang,
		}
		if proc != nil {
			vector, err := proc.process(ctx, i)
			if err != nil {
				return fail(&RowError{Line: row.Line, Err: err})
			}
			pair.Vector = vector
		}

		sourceTerms := p.analyzer.Terms(row.Source, req.SourceLang)
		targetTerms := p.analyzer.Terms(row.Target, req.TargetLang)
		if _, err := builder.Add(ctx, pair, sourceTerms, targetTerms); err != nil {
			return fail(&RowError{Line: row.Line, Err: err})
		}
		progress.report(i+1, total)
	}

	progress.finish(total)
	info, err := builder.Commit(ctx)
	if err != nil {
		logger.Error("ingestion commit failed", "err", err)
		return nil, err
	}

	logger.Info("ingestion complete", "pairs", info.Count, "revision", info.Revision, "elapsed", time.Since(start))
	return info, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.prefetchPool != nil {
		p.prefetchPool.Release()
	}
}
