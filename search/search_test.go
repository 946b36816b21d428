package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/ai/mock"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/reembed"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/badger"
	"github.com/poiesic/kbase/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noRetry = reembed.Backoff{MaxAttempts: 1, BaseDelay: time.Millisecond}

func chunk(content, docType string) core.Chunk {
	return core.Chunk{
		Content: content,
		Metadata: core.Metadata{
			SourcePath: "knowledge_base/" + docType + "/" + content + ".md",
			DocType:    docType,
			Filename:   content + ".md",
		},
	}
}

func corpus() []core.Chunk {
	return []core.Chunk{
		chunk("demand validation framework for founders", "framework"),
		chunk("moat analysis framework", "framework"),
		chunk("demand case study of a bakery", "case_study"),
		chunk("business plan template", "template"),
	}
}

// toggleEmbedder delegates to a hashing embedder until told to fail.
type toggleEmbedder struct {
	inner *mock.HashingEmbedder
	fail  atomic.Bool
}

func (e *toggleEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.inner.EmbedText(ctx, text)
}

func (e *toggleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail.Load() {
		return nil, mock.ErrUnavailable
	}
	return e.inner.EmbedTexts(ctx, texts)
}

func newPipeline(t *testing.T, embedder ai.Embedder) *ingestion.Pipeline {
	t.Helper()
	pipeline, err := ingestion.NewPipeline(embedder, ingestion.WithPoolSize(2), ingestion.WithBackoff(noRetry))
	require.NoError(t, err)
	return pipeline
}

func newSemantic(t *testing.T, embedder ai.Embedder, opts ...Option) *SemanticBackend {
	t.Helper()
	store, err := badger.OpenMemory()
	require.NoError(t, err)

	backend, err := NewSemanticBackend(context.Background(), store, "test_collection", newPipeline(t, embedder), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestNewSemanticBackend_Validation(t *testing.T) {
	ctx := context.Background()
	pipeline, err := ingestion.NewPipeline(mock.NewHashingEmbedder())
	require.NoError(t, err)
	defer pipeline.Release()

	_, err = NewSemanticBackend(ctx, nil, "c", pipeline)
	assert.Equal(t, ErrStoreRequired, err)

	store, err := badger.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	_, err = NewSemanticBackend(ctx, store, "c", nil)
	assert.Equal(t, ErrPipelineRequired, err)

	_, err = NewSemanticBackend(ctx, store, "bad name!", pipeline)
	assert.ErrorIs(t, err, storage.ErrInvalidCollectionName)
}

func TestSemanticBackend_EmptyIndex(t *testing.T) {
	backend := newSemantic(t, mock.NewHashingEmbedder())
	ctx := context.Background()

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	results, err := backend.Search(ctx, "anything", 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, core.BackendSemantic, backend.Kind())
	assert.Equal(t, badger.MemoryStoreName, backend.StoreName())
}

func TestSemanticBackend_Scenario(t *testing.T) {
	backend := newSemantic(t, mock.NewHashingEmbedder())
	ctx := context.Background()

	require.NoError(t, backend.Add(ctx, []core.Chunk{chunk("新生儿一天喂奶8到12次。", "faq")}))

	results, err := backend.Search(ctx, "喂奶次数", 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "新生儿一天喂奶8到12次。", results[0].Content)
	assert.Equal(t, "faq", results[0].Metadata.DocType)
	assert.Greater(t, results[0].Score, float32(0))
}

func TestSemanticBackend_VerifyEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps model and dimensions on add", func(t *testing.T) {
		backend := newSemantic(t, mock.NewHashingEmbedder(), WithEmbeddingModel("hashing"))
		require.NoError(t, backend.Add(ctx, corpus()))

		metadata := backend.Collection().Metadata()
		assert.Equal(t, storage.DistanceCosine, metadata[storage.MetadataDistance])
		assert.Equal(t, "hashing", metadata[storage.MetadataEmbeddingModel])
		assert.Equal(t, "256", metadata[storage.MetadataDimensions])
		assert.NoError(t, backend.VerifyEmbedding(ctx))
	})

	t.Run("rejects another model", func(t *testing.T) {
		backend := newSemantic(t, mock.NewHashingEmbedder(), WithEmbeddingModel("hashing"))
		require.NoError(t, backend.Add(ctx, corpus()))

		backend.SetPipeline(newPipeline(t, mock.NewHashingEmbedder()), "embeddinggemma")
		assert.ErrorIs(t, backend.VerifyEmbedding(ctx), ErrEmbeddingMismatch)
	})

	t.Run("rejects other dimensions", func(t *testing.T) {
		backend := newSemantic(t, mock.NewHashingEmbedder())
		require.NoError(t, backend.Add(ctx, corpus()))

		backend.SetPipeline(newPipeline(t, mock.NewMockEmbedder()), "")
		assert.ErrorIs(t, backend.VerifyEmbedding(ctx), ErrEmbeddingMismatch)

		_, err := backend.Search(ctx, "需求", 3, "")
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

		require.NoError(t, backend.Stamp(ctx))
		assert.Equal(t, "384", backend.Collection().Metadata()[storage.MetadataDimensions])
		assert.NoError(t, backend.VerifyEmbedding(ctx))
	})

	t.Run("stamps an unrecorded collection", func(t *testing.T) {
		backend := newSemantic(t, mock.NewHashingEmbedder(), WithEmbeddingModel("hashing"))
		require.NoError(t, backend.Collection().Add(ctx, storagetest.NewRecord("legacy", "framework", 0, 256)))
		assert.Empty(t, backend.Collection().Metadata()[storage.MetadataDimensions])

		require.NoError(t, backend.VerifyEmbedding(ctx))
		metadata := backend.Collection().Metadata()
		assert.Equal(t, "hashing", metadata[storage.MetadataEmbeddingModel])
		assert.Equal(t, "256", metadata[storage.MetadataDimensions])
	})
}

func TestSemanticBackend_TypeFilter(t *testing.T) {
	backend := newSemantic(t, mock.NewHashingEmbedder())
	ctx := context.Background()
	require.NoError(t, backend.Add(ctx, corpus()))

	results, err := backend.Search(ctx, "demand framework", 10, "framework")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "framework", r.Metadata.DocType)
	}
}

func TestSemanticBackend_ClampsK(t *testing.T) {
	backend := newSemantic(t, mock.NewHashingEmbedder())
	ctx := context.Background()

	chunks := make([]core.Chunk, 15)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("note number %d", i), "framework")
	}
	require.NoError(t, backend.Add(ctx, chunks))

	results, err := backend.Search(ctx, "note", 50, "")
	require.NoError(t, err)
	assert.Len(t, results, MaxSemanticResults)

	results, err = backend.Search(ctx, "note", 0, "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSemanticBackend_AddAssignsUniqueIDs(t *testing.T) {
	backend := newSemantic(t, mock.NewHashingEmbedder())
	frozen := time.UnixMilli(1700000000000)
	backend.now = func() time.Time { return frozen }
	ctx := context.Background()

	require.NoError(t, backend.Add(ctx, corpus()[:2]))
	require.NoError(t, backend.Add(ctx, corpus()[:2]))

	records, err := backend.Collection().Records(ctx)
	require.NoError(t, err)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
		assert.Equal(t, core.SourceID(r.Chunk.Metadata.SourcePath), r.SourceID)
	}
	assert.Equal(t, []string{
		"doc_1700000000000_0",
		"doc_1700000000000_1",
		"doc_1700000000001_0",
		"doc_1700000000001_1",
	}, ids)
}

func TestSemanticBackend_RebuildIdempotent(t *testing.T) {
	backend := newSemantic(t, mock.NewHashingEmbedder())
	ctx := context.Background()

	require.NoError(t, backend.Rebuild(ctx, corpus()))
	first, err := backend.Search(ctx, "moat analysis", 1, "")
	require.NoError(t, err)

	require.NoError(t, backend.Rebuild(ctx, corpus()))
	second, err := backend.Search(ctx, "moat analysis", 1, "")
	require.NoError(t, err)

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(corpus()), count)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Content, second[0].Content)
}

func TestSemanticBackend_RebuildReplacesSource(t *testing.T) {
	backend := newSemantic(t, mock.NewHashingEmbedder())
	ctx := context.Background()

	original := chunk("pricing notes", "framework")
	require.NoError(t, backend.Rebuild(ctx, []core.Chunk{original, chunk("other notes", "template")}))

	retyped := original
	retyped.Metadata.DocType = "case_study"
	require.NoError(t, backend.Rebuild(ctx, []core.Chunk{retyped}))

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := backend.Search(ctx, "pricing", 5, "framework")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticBackend_FailedRebuildKeepsIndex(t *testing.T) {
	embedder := &toggleEmbedder{inner: mock.NewHashingEmbedder()}
	backend := newSemantic(t, embedder)
	ctx := context.Background()

	require.NoError(t, backend.Rebuild(ctx, corpus()))

	embedder.fail.Store(true)
	err := backend.Rebuild(ctx, []core.Chunk{chunk("replacement", "framework")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ingestion.ErrEmbeddingFailed)

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(corpus()), count)

	results, err := backend.Search(ctx, "moat analysis", 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "moat analysis framework", results[0].Content)
}

func TestInsertBatches_NamesFailingBatch(t *testing.T) {
	records := make([]*storage.Record, 350)
	for i := range records {
		records[i] = &storage.Record{ID: fmt.Sprintf("r%d", i)}
	}

	boom := errors.New("disk full")
	var calls int
	err := insertBatches(context.Background(), records, func(_ context.Context, batch ...*storage.Record) error {
		calls++
		if batch[0].ID == "r200" {
			return boom
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsertFailed)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "batch 2")
	assert.Equal(t, 3, calls)
}

type recordingMonitor struct {
	started    bool
	embedded   int
	candidates int
	finished   int
}

func (m *recordingMonitor) Start(core.Backend, string, int, string) { m.started = true }
func (m *recordingMonitor) AfterQueryEmbedding(v []float32)          { m.embedded = len(v) }
func (m *recordingMonitor) AfterRetrieval(n int)                     { m.candidates = n }
func (m *recordingMonitor) Finish(r []core.SearchResult)             { m.finished = len(r) }

func TestSemanticBackend_Monitor(t *testing.T) {
	store, err := badger.OpenMemory()
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(mock.NewHashingEmbedder())
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	backend, err := NewSemanticBackend(context.Background(), store, "monitored", pipeline,
		WithMonitor(monitor), WithLogger(nil))
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, backend.Add(ctx, corpus()))
	_, err = backend.Search(ctx, "demand", 2, "")
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.Equal(t, 256, monitor.embedded)
	assert.Equal(t, 2, monitor.candidates)
	assert.Equal(t, 2, monitor.finished)
}
