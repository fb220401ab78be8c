package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/phrasebook"
	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/config"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/ingestion"
	"github.com/poiesic/phrasebook/reembed"
	"github.com/poiesic/phrasebook/search"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the configuration file, if any, and applies flags that were explicitly set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet("db") {
		cfg.Store.Path = c.String("db")
	}

	embeddingFlags := []string{"embedding-backend", "model-path", "vocab-path", "embedding-host", "embedding-model"}
	for _, name := range embeddingFlags {
		if !c.IsSet(name) {
			continue
		}
		if cfg.Embedding == nil {
			cfg.Embedding = ai.DefaultConfig()
		}
		value := c.String(name)
		switch name {
		case "embedding-backend":
			cfg.Embedding.Backend = ai.Backend(value)
		case "model-path":
			cfg.Embedding.ModelPath = value
		case "vocab-path":
			cfg.Embedding.VocabPath = value
		case "embedding-host":
			cfg.Embedding.EmbeddingHost = value
		case "embedding-model":
			cfg.Embedding.EmbeddingModel = value
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDatabase opens the configured store. The embedding provider is only
// created for commands that embed text.
func (env *environment) openDatabase(c *cli.Context, withEmbedder bool) (*phrasebook.Database, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}

	opts := []phrasebook.DatabaseOption{
		phrasebook.WithLanguages(registry),
		phrasebook.WithGraphThreshold(cfg.Store.GraphThreshold),
	}
	if withEmbedder && cfg.Embedding != nil {
		opts = append(opts, phrasebook.WithAIConfig(cfg.Embedding))
	}
	if withEmbedder {
		opts = append(opts, env.dbOptions...)
	}

	db, err := phrasebook.NewDatabase(cfg.Store.Path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}

func languages(c *cli.Context) (core.Language, core.Language, error) {
	var source, target core.Language
	var err error
	if s := c.String("from"); s != "" {
		if source, err = core.ParseLanguage(s); err != nil {
			return "", "", err
		}
	}
	if s := c.String("to"); s != "" {
		if target, err = core.ParseLanguage(s); err != nil {
			return "", "", err
		}
	}
	return source, target, nil
}

func (env *environment) ingestCommand(c *cli.Context) error {
	source, target, err := languages(c)
	if err != nil {
		return err
	}

	db, _, err := env.openDatabase(c, true)
	if err != nil {
		return err
	}
	defer db.Close()

	column := core.ColumnNone
	if c.IsSet("embed") {
		if column, err = core.ParseColumn(c.String("embed")); err != nil {
			return err
		}
	} else if db.Embedder() != nil {
		column = core.ColumnSource
	}

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	name := c.String("index")
	req := ingestion.Request{
		Index:      name,
		SourcePath: c.String("source-file"),
		TargetPath: c.String("target-file"),
		NotesPath:  c.String("notes-file"),
		SourceLang: source,
		TargetLang: target,
		Embed:      column,
	}
	var onProgress ingestion.ProgressFunc
	if env.progress {
		onProgress = func(current, total int) {
			fmt.Fprintf(env.stderr, "\rIngesting %s: %d/%d", name, current, total)
			if current == total {
				fmt.Fprintln(env.stderr)
			}
		}
	}
	info, err := pipeline.Ingest(c.Context, req, onProgress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(env.stdout, "Indexed %d pairs into %s (%s-%s, embedded: %s)\n",
		info.Count, info.Name, info.SourceLang, info.TargetLang, describeEmbedding(info))
	return nil
}

func (env *environment) translateCommand(c *cli.Context) error {
	ctx := c.Context
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a phrase to translate is required")
	}
	source, target, err := languages(c)
	if err != nil {
		return err
	}

	db, cfg, err := env.openDatabase(c, true)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := cfg.Search.Options()
	if c.IsSet("results") {
		opts = append(opts, search.WithShortListSize(c.Int("results")))
	}
	if c.Bool("explain") {
		logger := slog.New(slog.NewTextHandler(env.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, search.WithMonitor(search.NewLogMonitor(logger)))
	}

	searcher, err := db.NewSearcher(c.String("index"), opts...)
	if err != nil {
		return err
	}
	result, err := searcher.Translate(ctx, search.Query{Text: query, Source: source, Target: target})
	if err != nil {
		return err
	}

	writeResult(env.stdout, result)
	return nil
}

func (env *environment) addCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: phrasebook add --from LANG --to LANG SOURCE TARGET")
	}
	source, target, err := languages(c)
	if err != nil {
		return err
	}

	db, _, err := env.openDatabase(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.AddUserPair(c.Context, c.Args().Get(0), c.Args().Get(1), source, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Added user pair %d\n", id)
	return nil
}

func (env *environment) userListCommand(c *cli.Context) error {
	source, target, err := languages(c)
	if err != nil {
		return err
	}

	db, _, err := env.openDatabase(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	pairs, err := db.ListUserPairs(c.Context, source, target)
	if err != nil {
		return err
	}
	return writeUserPairs(env.stdout, pairs)
}

func (env *environment) userDeleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: phrasebook user delete ID")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user pair ID %q", c.Args().First())
	}

	db, _, err := env.openDatabase(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteUserPair(c.Context, core.ID(id)); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Deleted user pair %d\n", id)
	return nil
}

func (env *environment) userExportCommand(c *cli.Context) (err error) {
	source, target, err := languages(c)
	if err != nil {
		return err
	}

	db, _, err := env.openDatabase(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	srcFile, err := os.Create(c.String("source-out"))
	if err != nil {
		return err
	}
	defer closeFile(srcFile, &err)
	tgtFile, err := os.Create(c.String("target-out"))
	if err != nil {
		return err
	}
	defer closeFile(tgtFile, &err)

	n, err := db.ExportUserPairs(c.Context, source, target, srcFile, tgtFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Exported %d user pairs (%s-%s)\n", n, source, target)
	return nil
}

func closeFile(f *os.File, err *error) {
	if cerr := f.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func (env *environment) indexesCommand(c *cli.Context) error {
	db, _, err := env.openDatabase(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	infos, err := db.Indexes(c.Context)
	if err != nil {
		return err
	}
	return writeIndexes(env.stdout, infos)
}

func (env *environment) dropCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: phrasebook drop INDEX")
	}
	db, _, err := env.openDatabase(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	name := c.Args().First()
	if err := db.DeleteIndex(c.Context, name); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Dropped index %s\n", name)
	return nil
}

func (env *environment) reembedCommand(c *cli.Context) error {
	column, err := core.ParseColumn(c.String("embed"))
	if err != nil {
		return err
	}
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, _, err := env.openDatabase(c, column != core.ColumnNone)
	if err != nil {
		return err
	}
	defer db.Close()

	var progress io.Writer
	if env.progress {
		progress = env.stderr
	}
	reembedder, err := db.NewReembedder(reembedConfig, progress)
	if err != nil {
		return err
	}
	info, err := reembedder.Run(c.Context, c.String("index"), column)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(env.stdout, "Rebuilt %s (%d pairs, embedded: %s)\n", info.Name, info.Count, describeEmbedding(info))
	return nil
}
