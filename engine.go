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


package kbase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/ai/openai"
	"github.com/poiesic/kbase/category"
	"github.com/poiesic/kbase/chunker"
	"github.com/poiesic/kbase/config"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/reembed"
	"github.com/poiesic/kbase/search"
)

// Engine serves searches over the knowledge base through whichever backend
// Initialize selected.
type Engine struct {
	cfg                 *config.Config
	embeddingStrategies []ai.Strategy
	storeStrategies     []search.StoreStrategy
	monitor             search.SearchMonitor
	logger              *slog.Logger

	initMu      sync.Mutex
	initialized bool

	// rebuildMu serializes Rebuild and Reembed.
	rebuildMu sync.Mutex

	mu                sync.RWMutex
	backend           search.Backend
	embeddingStrategy string
}

// New creates an engine for cfg. A nil cfg selects config.Default().
// Nothing is opened until Initialize.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.embeddingStrategies == nil {
		e.embeddingStrategies = openai.Strategies(cfg.AI())
	}
	if e.storeStrategies == nil {
		e.storeStrategies = search.StoreStrategies(cfg.VectorDB.PersistDirectory)
	}
	return e, nil
}

// Initialize selects the backend. Semantic search is tried first: an
// embedding model must resolve, a vector store must open, and an empty
// collection must be populated from the knowledge base. Any failure along
// the way selects the lexical backend instead. The selection is final.
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized {
		return ErrAlreadyInitialized
	}

	semantic, strategy, err := e.initSemantic(ctx)
	if err == nil {
		e.setBackend(semantic, strategy)
		e.initialized = true
		e.logger.Info("knowledge base ready", "backend", semantic.Kind().String(),
			"store", semantic.StoreName(), "embedding", strategy)
		return nil
	}
	e.logger.Info("semantic search unavailable, using lexical fallback", "err", err)

	chunks, err := e.loadChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	lexical, err := search.NewLexicalBackend(chunks,
		search.WithLexicalLogger(e.logger),
		search.WithLexicalMonitor(e.monitor))
	if err != nil {
		return err
	}

	e.setBackend(lexical, "")
	e.initialized = true
	e.logger.Info("knowledge base ready", "backend", lexical.Kind().String(), "chunks", len(chunks))
	return nil
}

func (e *Engine) initSemantic(ctx context.Context) (*search.SemanticBackend, string, error) {
	resolution, err := ai.Resolve(ctx, e.logger, e.embeddingStrategies...)
	if err != nil {
		return nil, "", err
	}

	pipeline, err := e.newPipeline(resolution.Embedder)
	if err != nil {
		return nil, "", err
	}

	store, err := search.ResolveStore(ctx, e.logger, e.storeStrategies...)
	if err != nil {
		pipeline.Release()
		return nil, "", err
	}

	backend, err := search.NewSemanticBackend(ctx, store, e.cfg.VectorDB.CollectionName, pipeline,
		search.WithLogger(e.logger),
		search.WithMonitor(e.monitor),
		search.WithEmbeddingModel(resolution.Model))
	if err != nil {
		pipeline.Release()
		store.Close()
		return nil, "", err
	}

	count, err := backend.Count(ctx)
	if err != nil {
		backend.Close()
		return nil, "", err
	}
	if count > 0 {
		if err := backend.VerifyEmbedding(ctx); err != nil {
			e.logger.Warn("existing collection does not match the embedding model, run reembed to migrate it",
				"collection", e.cfg.VectorDB.CollectionName, "model", resolution.Model, "err", err)
			backend.Close()
			return nil, "", err
		}
		e.logger.Info("using existing collection", "collection", e.cfg.VectorDB.CollectionName, "chunks", count)
		return backend, resolution.Strategy, nil
	}

	chunks, err := e.loadChunks(ctx)
	if err == nil {
		err = backend.Add(ctx, chunks)
	}
	if err != nil {
		backend.Close()
		return nil, "", fmt.Errorf("failed to populate collection: %w", err)
	}
	e.logger.Info("collection populated", "collection", e.cfg.VectorDB.CollectionName, "chunks", len(chunks))
	return backend, resolution.Strategy, nil
}

func (e *Engine) newPipeline(embedder ai.Embedder) (*ingestion.Pipeline, error) {
	opts := []ingestion.Option{
		ingestion.WithBatchSize(e.cfg.Embedding.BatchSize),
		ingestion.WithLogger(e.logger),
	}
	if e.cfg.Embedding.PoolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(e.cfg.Embedding.PoolSize))
	}
	return ingestion.NewPipeline(embedder, opts...)
}

// loadChunks reads every configured source and splits it into chunks.
func (e *Engine) loadChunks(ctx context.Context) ([]core.Chunk, error) {
	loader, err := ingestion.NewLoader(e.cfg.Sources(), ingestion.WithLoaderLogger(e.logger))
	if err != nil {
		return nil, err
	}
	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(e.cfg.Embedding.ChunkSize),
		chunker.WithOverlap(e.cfg.Embedding.ChunkOverlap))
	if err != nil {
		return nil, err
	}
	chunks, err := splitter.SplitAll(docs)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("knowledge base loaded", "documents", len(docs), "chunks", len(chunks))
	return chunks, nil
}

func (e *Engine) setBackend(backend search.Backend, strategy string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend = backend
	e.embeddingStrategy = strategy
}

func (e *Engine) current() search.Backend {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backend
}

// Search returns up to k chunks most similar to query, restricted to
// docType when it is non-empty. k <= 0 selects the configured default.
// Errors are logged and yield an empty result.
func (e *Engine) Search(ctx context.Context, query string, k int, docType string) []core.SearchResult {
	if k <= 0 {
		k = e.cfg.Retrieval.DefaultK
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.backend == nil {
		return []core.SearchResult{}
	}

	results, err := e.backend.Search(ctx, query, k, docType)
	if err != nil {
		e.logger.Error("search failed", "backend", e.backend.Kind().String(), "query", query, "err", err)
		return []core.SearchResult{}
	}
	return results
}

// CategoryContext returns framework passages for a business category,
// joined by blank lines.
func (e *Engine) CategoryContext(ctx context.Context, name string) string {
	results := e.Search(ctx, category.Query(name), category.ContextK, category.TypeFramework)
	return category.Join(results)
}

// HypothesisValidationContext returns passages on validating business
// hypotheses, joined by blank lines.
func (e *Engine) HypothesisValidationContext(ctx context.Context) string {
	results := e.Search(ctx, category.HypothesisValidationQuery, category.ContextK, "")
	return category.Join(results)
}

// IndustryBenchmarks returns benchmark passages for an industry.
func (e *Engine) IndustryBenchmarks(ctx context.Context, industry string) []core.SearchResult {
	return e.Search(ctx, category.IndustryBenchmarkQuery(industry), category.BenchmarkK, category.TypeBenchmark)
}

// Rebuild re-ingests every source into a new index and swaps it in. On
// failure the previous index stays active and the error is returned.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	backend := e.current()
	if backend == nil {
		return ErrNotInitialized
	}

	start := time.Now()
	chunks, err := e.loadChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	if err := backend.Rebuild(ctx, chunks); err != nil {
		e.logger.Error("rebuild failed, keeping previous index", "backend", backend.Kind().String(), "err", err)
		return fmt.Errorf("rebuild failed: %w", err)
	}

	e.logger.Info("knowledge base rebuilt", "backend", backend.Kind().String(),
		"chunks", len(chunks), "elapsed", time.Since(start))
	return nil
}

// Reembed replaces every stored vector with one produced by the resolved
// embedder, then serves queries with it. Only the semantic backend stores
// vectors. A nil reembedConfig selects reembed.DefaultConfig with the
// configured batch size.
func (e *Engine) Reembed(ctx context.Context, resolution *ai.Resolution, reembedConfig *reembed.Config, progress io.Writer) (int, error) {
	if resolution == nil || resolution.Embedder == nil {
		return 0, reembed.ErrEmbedderRequired
	}

	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	semantic, ok := e.current().(*search.SemanticBackend)
	if !ok {
		return 0, ErrNotSemantic
	}

	pipeline, err := e.newPipeline(resolution.Embedder)
	if err != nil {
		return 0, err
	}

	if reembedConfig == nil {
		reembedConfig = reembed.DefaultConfig()
		reembedConfig.BatchSize = e.cfg.Embedding.BatchSize
	}
	n, err := reembed.NewReembedder(semantic.Collection(), resolution.Embedder, reembedConfig, progress).Run(ctx)
	if err != nil {
		pipeline.Release()
		return n, err
	}

	model := resolution.Model
	if model == "" {
		model = ai.ModelName(resolution.Embedder, resolution.Strategy)
	}
	semantic.SetPipeline(pipeline, model)
	if err := semantic.Stamp(ctx); err != nil {
		e.logger.Warn("failed to record embedding model", "model", model, "err", err)
	}
	e.mu.Lock()
	e.embeddingStrategy = resolution.Strategy
	e.mu.Unlock()
	return n, nil
}

// Watch rebuilds the knowledge base whenever a source changes, until ctx
// is canceled. Rebuild failures are logged and watching continues.
func (e *Engine) Watch(ctx context.Context) error {
	if e.current() == nil {
		return ErrNotInitialized
	}

	watcher, err := ingestion.NewWatcher(e.cfg.Sources(), time.Duration(e.cfg.Knowledge.WatchDebounce), e.Rebuild)
	if err != nil {
		return err
	}
	e.logger.Info("watching knowledge base", "directories", watcher.Watched())

	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stats reports the active backend and its size.
func (e *Engine) Stats(ctx context.Context) core.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := core.Stats{
		CollectionName:    e.cfg.VectorDB.CollectionName,
		EmbeddingStrategy: e.embeddingStrategy,
	}
	if e.backend == nil {
		return stats
	}

	stats.ActiveBackend = e.backend.Kind()
	if semantic, ok := e.backend.(*search.SemanticBackend); ok {
		stats.Store = semantic.StoreName()
	}
	count, err := e.backend.Count(ctx)
	if err != nil {
		e.logger.Error("failed to count chunks", "err", err)
	}
	stats.ChunkCount = count
	return stats
}

// Close closes the active backend. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	if err != nil {
		e.logger.Error("error closing backend", "err", err)
	}
	return err
}
