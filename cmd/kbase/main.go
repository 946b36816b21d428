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
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/kbase"
	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/ai/openai"
	"github.com/poiesic/kbase/category"
	"github.com/poiesic/kbase/config"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/reembed"
	"github.com/poiesic/kbase/search"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kbase",
		Usage: "Business knowledge base with semantic and lexical retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "knowledge-root",
				Usage: "Override the knowledge base root directory",
			},
			&cli.StringFlag{
				Name:  "persist-dir",
				Usage: "Override the vector store directory",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search the knowledge base",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of results (0 uses the configured default)",
					},
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Restrict results to a document type",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log every search stage at debug level",
					},
				},
			},
			{
				Name:      "context",
				Usage:     "Print framework context for a business category",
				ArgsUsage: "<category>",
				Action:    contextCommand,
			},
			{
				Name:   "hypothesis",
				Usage:  "Print hypothesis validation context",
				Action: hypothesisCommand,
			},
			{
				Name:      "benchmarks",
				Usage:     "Print industry benchmarks",
				ArgsUsage: "<industry>",
				Action:    benchmarksCommand,
			},
			{
				Name:   "categories",
				Usage:  "List the known business categories",
				Action: categoriesCommand,
			},
			{
				Name:   "rebuild",
				Usage:  "Re-ingest every knowledge source",
				Action: rebuildCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show the active backend and index size",
				Action: statsCommand,
			},
			{
				Name:   "watch",
				Usage:  "Rebuild whenever a knowledge source changes",
				Action: watchCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every stored chunk with another embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (defaults to the configured host)",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
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
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if root := c.String("knowledge-root"); root != "" {
		cfg.Knowledge.Root = root
	}
	if dir := c.String("persist-dir"); dir != "" {
		cfg.VectorDB.PersistDirectory = dir
	}
	return cfg, nil
}

func openEngine(c *cli.Context, opts ...kbase.Option) (*kbase.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	engine, err := kbase.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(c.Context); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to initialize knowledge base: %w", err)
	}
	return engine, nil
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func searchCommand(c *cli.Context) error {
	query, err := requireArg(c, "query")
	if err != nil {
		return err
	}

	var opts []kbase.Option
	if c.Bool("trace") {
		opts = append(opts, kbase.WithMonitor(&search.LoggingMonitor{}))
	}
	engine, err := openEngine(c, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	results := engine.Search(c.Context, query, c.Int("k"), c.String("type"))
	printResults(c.App.Writer, results)
	return nil
}

func contextCommand(c *cli.Context) error {
	name, err := requireArg(c, "category")
	if err != nil {
		return err
	}
	if !category.Known(name) {
		slog.Warn("unknown category, searching verbatim", "category", name, "known", category.Names())
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintln(c.App.Writer, engine.CategoryContext(c.Context, name))
	return nil
}

func hypothesisCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintln(c.App.Writer, engine.HypothesisValidationContext(c.Context))
	return nil
}

func benchmarksCommand(c *cli.Context) error {
	industry, err := requireArg(c, "industry")
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	printResults(c.App.Writer, engine.IndustryBenchmarks(c.Context, industry))
	return nil
}

func categoriesCommand(c *cli.Context) error {
	for _, name := range category.Names() {
		fmt.Fprintf(c.App.Writer, "%-12s %s\n", name, category.Query(name))
	}
	return nil
}

func rebuildCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Rebuild(c.Context); err != nil {
		return err
	}
	printStats(c.App.Writer, engine.Stats(c.Context))
	return nil
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	printStats(c.App.Writer, engine.Stats(c.Context))
	return nil
}

func watchCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return engine.Watch(ctx)
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Create reembedding config
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Backoff: reembed.Backoff{
			MaxAttempts: c.Int("max-retries"),
			BaseDelay:   c.Duration("retry-delay"),
			MaxDelay:    reembed.DefaultBackoff().MaxDelay,
		},
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.Backoff.MaxAttempts <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	host := c.String("embedding-host")
	if host == "" {
		host = cfg.Embedding.Host
	}
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(host),
		ai.WithEmbeddingModels(c.String("embedding-model")),
		ai.WithAPIToken(cfg.Embedding.APIToken),
		ai.WithRequestsPerSecond(cfg.Embedding.RequestsPerSecond),
		ai.WithProbeTimeout(time.Duration(cfg.Embedding.ProbeTimeout)),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	resolution, err := ai.Resolve(c.Context, nil, openai.Strategies(aiConfig)...)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	engine, err := kbase.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Initialize(c.Context); err != nil {
		return fmt.Errorf("failed to initialize knowledge base: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Collection: %s\n", cfg.VectorDB.CollectionName)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", aiConfig.PrimaryModel())
	fmt.Fprintln(os.Stderr)

	if _, err := engine.Reembed(c.Context, resolution, reembedConfig, os.Stderr); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func printResults(w io.Writer, results []core.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, result := range results {
		fmt.Fprintf(w, "[%d] score=%.4f type=%s source=%s\n%s\n\n",
			i+1, result.Score, result.Metadata.DocType, result.Metadata.SourcePath,
			strings.TrimSpace(result.Content))
	}
}

func printStats(w io.Writer, stats core.Stats) {
	fmt.Fprintf(w, "Backend:    %s\n", stats.ActiveBackend)
	fmt.Fprintf(w, "Chunks:     %d\n", stats.ChunkCount)
	fmt.Fprintf(w, "Collection: %s\n", stats.CollectionName)
	if stats.Store != "" {
		fmt.Fprintf(w, "Store:      %s\n", stats.Store)
	}
	if stats.EmbeddingStrategy != "" {
		fmt.Fprintf(w, "Embedding:  %s\n", stats.EmbeddingStrategy)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
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
