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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	userFlag := &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Identity to query as",
		EnvVars:  []string{"CLEARANCE_USER"},
		Required: true,
	}
	maxResultsFlag := &cli.IntFlag{
		Name:    "max-results",
		Aliases: []string{"k"},
		Usage:   "Maximum candidates to retrieve (0 uses the configured default)",
	}

	return &cli.App{
		Name:  "clearance",
		Usage: "Role-gated question answering over department documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"CLEARANCE_DB"},
				Value:   "./clearance_db",
			},
			&cli.StringFlag{
				Name:    "access",
				Usage:   "Access file with users, roles and password hashes (built-in roles if empty)",
				EnvVars: []string{"CLEARANCE_ACCESS_FILE"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "OpenAI-compatible service host URL for both embedding and generation",
				EnvVars: []string{"CLEARANCE_HOST"},
				Value:   "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL (defaults to --host)",
			},
			&cli.StringFlag{
				Name:  "generation-host",
				Usage: "Generation service host URL (defaults to --host)",
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name; must match the model used at ingestion",
				EnvVars: []string{"CLEARANCE_EMBEDDING_MODEL"},
				Value:   "embeddinggemma",
			},
			&cli.StringFlag{
				Name:    "generation-model",
				Usage:   "Generation model name",
				EnvVars: []string{"CLEARANCE_GENERATION_MODEL"},
				Value:   "qwen2.5:3b",
			},
			&cli.StringFlag{
				Name:    "api-token",
				Usage:   "Bearer token for the model service",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer one question as a user",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					userFlag,
					maxResultsFlag,
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print retrieval diagnostics",
					},
				},
			},
			{
				Name:   "chat",
				Usage:  "Ask questions interactively after signing in",
				Action: chatCommand,
				Flags: []cli.Flag{
					userFlag,
					maxResultsFlag,
				},
			},
			{
				Name:      "retrieve",
				Usage:     "Show what would be sent to the model, without generating",
				ArgsUsage: "<question>",
				Action:    retrieveCommand,
				Flags: []cli.Flag{
					userFlag,
					maxResultsFlag,
				},
			},
			{
				Name:   "ingest",
				Usage:  "Load department folders into their collections",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Usage:    "Data root with one folder per department",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Delete each collection before ingesting",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-ingest files even when unchanged",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Keep running and re-ingest departments whose files change",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a changed department is re-ingested",
						Value: 2 * time.Second,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent embedding workers (0 uses half the CPUs)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Chunks per embedding call",
						Value: 32,
					},
				},
			},
			{
				Name:   "collections",
				Usage:  "List stored collections with counts and sample chunks",
				Action: collectionsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "samples",
						Usage: "Sample chunks to show per collection",
						Value: 3,
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Check storage and report collections the roles expect but are missing",
				Action: healthCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Recompute stored vectors with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "collection",
						Aliases: []string{"c"},
						Usage:   "Collection to reembed (repeatable; all when omitted)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "hash-password",
				Usage:  "Print a bcrypt hash for the access file",
				Action: hashPasswordCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "cost",
						Usage: "bcrypt cost (0 uses the default)",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
