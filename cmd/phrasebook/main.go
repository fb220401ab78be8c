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


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/phrasebook"
	"github.com/poiesic/phrasebook/reembed"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// environment carries the output streams and database options shared by all commands.
type environment struct {
	stdout    io.Writer
	stderr    io.Writer
	progress  bool // draw progress lines on stderr
	dbOptions []phrasebook.DatabaseOption
}

func main() {
	app := newApp(&environment{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		progress: term.IsTerminal(int(os.Stderr.Fd())),
	})
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(env *environment) *cli.App {
	languageFlags := func(required bool) []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "from",
				Aliases:  []string{"f"},
				Usage:    "Source language code (e.g. en)",
				Required: required,
			},
			&cli.StringFlag{
				Name:     "to",
				Aliases:  []string{"t"},
				Usage:    "Target language code (e.g. fr)",
				Required: required,
			},
		}
	}
	indexFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "index",
			Aliases:  []string{"i"},
			Usage:    "Corpus index name",
			Required: true,
		}
	}

	return &cli.App{
		Name:      "phrasebook",
		Usage:     "Retrieval-based translation over aligned phrase corpora",
		Writer:    env.stdout,
		ErrWriter: env.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"PHRASEBOOK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the database directory (overrides store.path)",
				EnvVars: []string{"PHRASEBOOK_DB"},
			},
			&cli.StringFlag{
				Name:  "embedding-backend",
				Usage: "Embedding backend (onnx, openai)",
			},
			&cli.StringFlag{
				Name:  "model-path",
				Usage: "ONNX sentence-embedding model file",
			},
			&cli.StringFlag{
				Name:  "vocab-path",
				Usage: "WordPiece vocabulary of the ONNX model",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "OpenAI-compatible embedding service URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Remote embedding model name",
			},
		},
		Before: func(c *cli.Context) error {
			return setupLogger(c, env.stderr)
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Build or replace a corpus index from line-aligned files",
				ArgsUsage: " ",
				Action:    env.ingestCommand,
				Flags: append([]cli.Flag{
					indexFlag(),
					&cli.StringFlag{
						Name:     "source-file",
						Usage:    "File with one source phrase per line",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target-file",
						Usage:    "File with the aligned target phrases",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "notes-file",
						Usage: "Optional file with one aligned note per line",
					},
					&cli.StringFlag{
						Name:  "embed",
						Usage: "Column to embed (source, target, none); defaults to source when an embedder is configured",
					},
				}, languageFlags(true)...),
			},
			{
				Name:      "translate",
				Usage:     "Look up translations of a phrase",
				ArgsUsage: "PHRASE...",
				Action:    env.translateCommand,
				Flags: append([]cli.Flag{
					indexFlag(),
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Log every search stage to stderr",
					},
					&cli.IntFlag{
						Name:    "results",
						Aliases: []string{"n"},
						Usage:   "Short-list size (overrides search.short_list_size)",
					},
				}, languageFlags(true)...),
			},
			{
				Name:      "add",
				Usage:     "Add a user translation pair shared by all indexes",
				ArgsUsage: "SOURCE TARGET",
				Action:    env.addCommand,
				Flags:     languageFlags(true),
			},
			{
				Name:  "user",
				Usage: "Manage user translation pairs",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List user pairs in insertion order",
						Action: env.userListCommand,
						Flags:  languageFlags(false),
					},
					{
						Name:      "delete",
						Usage:     "Delete a user pair by ID",
						ArgsUsage: "ID",
						Action:    env.userDeleteCommand,
					},
					{
						Name:   "export",
						Usage:  "Write user pairs as two line-aligned files",
						Action: env.userExportCommand,
						Flags: append([]cli.Flag{
							&cli.StringFlag{
								Name:     "source-out",
								Usage:    "Output file for the source phrases",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "target-out",
								Usage:    "Output file for the target phrases",
								Required: true,
							},
						}, languageFlags(true)...),
					},
				},
			},
			{
				Name:   "indexes",
				Usage:  "List corpus indexes",
				Action: env.indexesCommand,
			},
			{
				Name:      "drop",
				Usage:     "Delete a corpus index",
				ArgsUsage: "INDEX",
				Action:    env.dropCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild an index with the configured embedding model",
				Action: env.reembedCommand,
				Flags: []cli.Flag{
					indexFlag(),
					&cli.StringFlag{
						Name:  "embed",
						Usage: "Column to embed (source, target, none)",
						Value: "source",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of pairs to embed per request",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N pairs",
						Value: 256,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each embedding request",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context, w io.Writer) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
