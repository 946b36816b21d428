package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/reembed"
	"github.com/poiesic/kbase/storage"
)

const (
	// InsertBatchSize bounds the records written per store call.
	InsertBatchSize = 100

	// MaxSemanticResults caps k for semantic queries.
	MaxSemanticResults = 10
)

// SemanticBackend retrieves chunks by embedding similarity.
type SemanticBackend struct {
	store      storage.VectorStore
	collection storage.Collection
	monitor    SearchMonitor
	logger     *slog.Logger

	mu       sync.RWMutex
	pipeline *ingestion.Pipeline
	model    string

	clockMu sync.Mutex
	lastMs  int64
	now     func() time.Time
}

var _ Backend = (*SemanticBackend)(nil)

// Option configures a SemanticBackend.
type Option func(*SemanticBackend) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *SemanticBackend) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "semantic-backend")
		return nil
	}
}

// WithMonitor sets a monitor that observes every search.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *SemanticBackend) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// WithEmbeddingModel names the model behind the pipeline. It is recorded in
// the collection metadata when vectors are written and checked by
// VerifyEmbedding. Default is empty, which skips the model check.
func WithEmbeddingModel(model string) Option {
	return func(s *SemanticBackend) error {
		s.model = model
		return nil
	}
}

// NewSemanticBackend opens (or creates) the named collection in store.
// The backend owns store and closes it on Close.
func NewSemanticBackend(
	ctx context.Context,
	store storage.VectorStore,
	collectionName string,
	pipeline *ingestion.Pipeline,
	opts ...Option,
) (*SemanticBackend, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	s := &SemanticBackend{
		store:    store,
		pipeline: pipeline,
		monitor:  &noopMonitor{},
		logger:   slog.Default().With("component", "semantic-backend"),
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	collection, err := OpenCollection(ctx, store, collectionName, s.logger)
	if err != nil {
		return nil, err
	}
	s.collection = collection
	return s, nil
}

func (s *SemanticBackend) Kind() core.Backend { return core.BackendSemantic }

// StoreName reports which vector store implementation holds the collection.
func (s *SemanticBackend) StoreName() string { return s.store.Name() }

// Collection returns the underlying collection.
func (s *SemanticBackend) Collection() storage.Collection { return s.collection }

// SetPipeline replaces the embedding pipeline and model name, releasing the
// previous pipeline. Used after the collection has been re-embedded with
// another model.
func (s *SemanticBackend) SetPipeline(pipeline *ingestion.Pipeline, model string) {
	s.mu.Lock()
	previous := s.pipeline
	s.pipeline = pipeline
	s.model = model
	s.mu.Unlock()

	if previous != nil && previous != pipeline {
		previous.Release()
	}
}

func (s *SemanticBackend) currentPipeline() *ingestion.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

func (s *SemanticBackend) currentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// dimensions embeds a fixed text to learn the vector length of the current
// pipeline.
func (s *SemanticBackend) dimensions(ctx context.Context) (int, error) {
	vector, err := s.currentPipeline().Embedder().EmbedText(ctx, "dimensions")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ingestion.ErrEmbeddingFailed, err)
	}
	if len(vector) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ingestion.ErrEmbeddingFailed)
	}
	return len(vector), nil
}

// VerifyEmbedding checks that the vectors already in the collection were
// produced by the current model with the current dimensions. It returns
// ErrEmbeddingMismatch when the recorded model or dimensions differ. A
// collection without a record is stamped with the current values.
func (s *SemanticBackend) VerifyEmbedding(ctx context.Context) error {
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	model := s.currentModel()

	metadata := s.collection.Metadata()
	recordedModel := metadata[storage.MetadataEmbeddingModel]
	recordedDims := metadata[storage.MetadataDimensions]

	if recordedModel != "" && model != "" && recordedModel != model {
		return fmt.Errorf("%w: collection built with %s, current model is %s",
			ErrEmbeddingMismatch, recordedModel, model)
	}
	if recordedDims != "" && recordedDims != strconv.Itoa(dims) {
		return fmt.Errorf("%w: collection holds %s-dimensional vectors, current model produces %d",
			ErrEmbeddingMismatch, recordedDims, dims)
	}
	if recordedDims == "" || (recordedModel == "" && model != "") {
		s.stamp(ctx, dims)
	}
	return nil
}

// Stamp records the current model and its dimensions in the collection
// metadata.
func (s *SemanticBackend) Stamp(ctx context.Context) error {
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	s.stamp(ctx, dims)
	return nil
}

// stamp writes the embedding fingerprint. Stores that reject the metadata
// keep working unstamped.
func (s *SemanticBackend) stamp(ctx context.Context, dims int) {
	metadata := s.collection.Metadata()
	if model := s.currentModel(); model != "" {
		metadata[storage.MetadataEmbeddingModel] = model
	}
	metadata[storage.MetadataDimensions] = strconv.Itoa(dims)

	if err := s.collection.SetMetadata(ctx, metadata); err != nil {
		s.logger.Warn("failed to record embedding model", "collection", s.collection.Name(), "err", err)
	}
}

// Count returns the number of chunks in the active generation.
func (s *SemanticBackend) Count(ctx context.Context) (int, error) {
	return s.collection.Count(ctx)
}

// Add embeds chunks and inserts them into the active generation.
func (s *SemanticBackend) Add(ctx context.Context, chunks []core.Chunk) error {
	records, err := s.records(ctx, chunks)
	if err != nil {
		return err
	}
	if err := insertBatches(ctx, records, s.collection.Add); err != nil {
		return err
	}
	if len(records) > 0 {
		s.stamp(ctx, len(records[0].Vector))
	}
	return nil
}

// Rebuild embeds chunks into a staged generation and swaps it in. On any
// failure the staged generation is discarded and the active one is kept.
func (s *SemanticBackend) Rebuild(ctx context.Context, chunks []core.Chunk) error {
	staging, err := s.collection.Stage(ctx)
	if err != nil {
		return fmt.Errorf("failed to stage generation: %w", err)
	}

	dims, err := s.fill(ctx, staging, chunks)
	if err == nil {
		err = staging.Commit(ctx)
	}
	if err != nil {
		if discardErr := staging.Discard(ctx); discardErr != nil {
			s.logger.Warn("failed to discard staged generation", "generation", staging.ID(), "err", discardErr)
		}
		return err
	}

	if dims > 0 {
		s.stamp(ctx, dims)
	}
	s.logger.Info("collection rebuilt", "generation", staging.ID(), "chunks", len(chunks))
	return nil
}

// fill writes chunks into staging and returns the vector length used.
func (s *SemanticBackend) fill(ctx context.Context, staging storage.Staging, chunks []core.Chunk) (int, error) {
	records, err := s.records(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if err := insertBatches(ctx, records, staging.Add); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return len(records[0].Vector), nil
}

// records embeds chunks and wraps them in storage records with fresh ids.
func (s *SemanticBackend) records(ctx context.Context, chunks []core.Chunk) ([]*storage.Record, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vectors, err := s.currentPipeline().Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	ms := s.tick()
	records := make([]*storage.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = &storage.Record{
			ID:       fmt.Sprintf("doc_%d_%d", ms, i),
			Chunk:    chunk,
			SourceID: core.SourceID(chunk.Metadata.SourcePath),
			Vector:   vectors[i],
		}
	}
	return records, nil
}

// tick returns the current unix millisecond, strictly greater than any
// value it returned before.
func (s *SemanticBackend) tick() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	ms := s.now().UnixMilli()
	if ms <= s.lastMs {
		ms = s.lastMs + 1
	}
	s.lastMs = ms
	return ms
}

func insertBatches(ctx context.Context, records []*storage.Record, add func(context.Context, ...*storage.Record) error) error {
	for _, batch := range ingestion.Batches(len(records), InsertBatchSize) {
		if err := add(ctx, records[batch.Start:batch.End]...); err != nil {
			return fmt.Errorf("%w: batch %d: %w", ErrInsertFailed, batch.Index, err)
		}
	}
	return nil
}

// Search embeds query and returns the nearest chunks. k is clamped to
// [1, MaxSemanticResults].
func (s *SemanticBackend) Search(ctx context.Context, query string, k int, docType string) ([]core.SearchResult, error) {
	k = min(max(k, 1), MaxSemanticResults)
	s.monitor.Start(core.BackendSemantic, query, k, docType)

	vector, err := s.currentPipeline().Embedder().EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating query embedding", "err", err)
		return nil, fmt.Errorf("%w: %w", ingestion.ErrEmbeddingFailed, err)
	}
	vector = reembed.NormalizeVector(vector)
	s.monitor.AfterQueryEmbedding(vector)

	matches, err := s.collection.Query(ctx, vector, k, storage.Filter{DocType: docType})
	if err != nil {
		return nil, err
	}
	s.monitor.AfterRetrieval(len(matches))

	results := make([]core.SearchResult, len(matches))
	for i, match := range matches {
		results[i] = core.SearchResult{
			Content:  match.Record.Chunk.Content,
			Metadata: match.Record.Chunk.Metadata,
			Score:    match.Score,
		}
	}
	s.monitor.Finish(results)
	return results, nil
}

// Close releases the embedding pool and closes the store.
func (s *SemanticBackend) Close() error {
	s.currentPipeline().Release()
	return s.store.Close()
}
