// Package storagetest holds behavior checks shared by every
// storage.VectorStore implementation.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// OpenFunc returns a fresh, empty store. The suite closes it.
type OpenFunc func(t *testing.T) storage.VectorStore

// NewRecord builds a record whose vector points along axis of a dims-sized space.
func NewRecord(id, docType string, axis, dims int) *storage.Record {
	vector := make([]float32, dims)
	vector[axis%dims] = 1
	return &storage.Record{
		ID: id,
		Chunk: core.Chunk{
			Content: "content of " + id,
			Metadata: core.Metadata{
				SourcePath: "knowledge_base/" + id + ".md",
				DocType:    docType,
				Filename:   id + ".md",
			},
		},
		SourceID: core.SourceID("knowledge_base/" + id + ".md"),
		Vector:   vector,
	}
}

func axisVector(axis, dims int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1
	return v
}

// Run exercises a store implementation against the storage contract.
func Run(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	cosine := map[string]string{storage.MetadataDistance: storage.DistanceCosine}

	t.Run("GetMissingCollection", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		_, err := store.GetCollection(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		created, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)
		assert.Equal(t, "kb", created.Name())
		assert.Equal(t, cosine, created.Metadata())

		_, err = store.CreateCollection(ctx, "kb", cosine)
		assert.ErrorIs(t, err, storage.ErrCollectionExists)

		got, err := store.GetCollection(ctx, "kb")
		require.NoError(t, err)
		assert.Equal(t, cosine, got.Metadata())

		count, err := got.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("InvalidName", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		_, err := store.CreateCollection(ctx, "bad name", nil)
		assert.ErrorIs(t, err, storage.ErrInvalidCollectionName)
	})

	t.Run("AddCountsDistinctIDs", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)

		require.NoError(t, coll.Add(ctx, NewRecord("a", "framework", 0, 4), NewRecord("b", "framework", 1, 4)))
		require.NoError(t, coll.Add(ctx, NewRecord("a", "template", 2, 4)))

		count, err := coll.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		records, err := coll.Records(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "a", records[0].ID)
		assert.Equal(t, "template", records[0].Chunk.Metadata.DocType)
		assert.Equal(t, "b", records[1].ID)
	})

	t.Run("AddRejectsInvalidRecord", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)

		err = coll.Add(ctx, &storage.Record{ID: "x"})
		assert.ErrorIs(t, err, storage.ErrInvalidRecord)
	})

	t.Run("QueryRanksAndFilters", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)

		require.NoError(t, coll.Add(ctx,
			NewRecord("a", "framework", 0, 4),
			NewRecord("b", "benchmark", 1, 4),
			NewRecord("c", "framework", 1, 4),
		))

		query := []float32{0.2, 0.9, 0, 0}
		matches, err := coll.Query(ctx, query, 2, storage.Filter{})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "b", matches[0].Record.ID)
		assert.Equal(t, "c", matches[1].Record.ID)
		assert.InDelta(t, 0.9, matches[0].Score, 1e-6)

		matches, err = coll.Query(ctx, query, 10, storage.Filter{DocType: "framework"})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "c", matches[0].Record.ID)
		assert.Equal(t, "a", matches[1].Record.ID)

		matches, err = coll.Query(ctx, query, 10, storage.Filter{DocType: "case_study"})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("QueryRejectsDimensionMismatch", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)
		require.NoError(t, coll.Add(ctx, NewRecord("a", "framework", 0, 4)))

		_, err = coll.Query(ctx, axisVector(0, 8), 10, storage.Filter{})
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})

	t.Run("SetMetadata", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)

		stamped := map[string]string{
			storage.MetadataDistance:       storage.DistanceCosine,
			storage.MetadataEmbeddingModel: "all-minilm",
			storage.MetadataDimensions:     "4",
		}
		require.NoError(t, coll.SetMetadata(ctx, stamped))
		assert.Equal(t, stamped, coll.Metadata())

		reopened, err := store.GetCollection(ctx, "kb")
		require.NoError(t, err)
		assert.Equal(t, stamped, reopened.Metadata())

		err = coll.SetMetadata(ctx, map[string]string{"hnsw:space": "cosine"})
		assert.ErrorIs(t, err, storage.ErrUnsupportedMetadata)
		assert.Equal(t, stamped, coll.Metadata())
	})

	t.Run("ConcurrentReadsDuringCommit", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		const size = 20
		generation := func(prefix string) []*storage.Record {
			records := make([]*storage.Record, size)
			for i := range records {
				records[i] = NewRecord(fmt.Sprintf("%s-%02d", prefix, i), "framework", i, 4)
			}
			return records
		}

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)
		require.NoError(t, coll.Add(ctx, generation("g0")...))

		var (
			wg        sync.WaitGroup
			done      atomic.Bool
			reads     atomic.Int64
			failures  atomic.Int64
			wrongSize atomic.Int64
			mixed     atomic.Int64
		)
		defer done.Store(true)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for !done.Load() {
					count, err := coll.Count(ctx)
					if err != nil {
						failures.Add(1)
						continue
					}
					if count != size {
						wrongSize.Add(1)
					}

					matches, err := coll.Query(ctx, axisVector(0, 4), 0, storage.Filter{})
					if err != nil {
						failures.Add(1)
						continue
					}
					if len(matches) != size {
						wrongSize.Add(1)
					}
					prefixes := make(map[string]bool)
					for _, match := range matches {
						prefixes[match.Record.ID[:2]] = true
					}
					if len(prefixes) > 1 {
						mixed.Add(1)
					}
					reads.Add(1)
				}
			}()
		}

		for i := 1; i <= 30; i++ {
			staging, err := coll.Stage(ctx)
			require.NoError(t, err)
			require.NoError(t, staging.Add(ctx, generation(fmt.Sprintf("g%d", i%10))...))
			require.NoError(t, staging.Commit(ctx))
		}
		require.Eventually(t, func() bool {
			return reads.Load() > 0 || failures.Load() > 0
		}, 5*time.Second, time.Millisecond)
		done.Store(true)
		wg.Wait()

		assert.Positive(t, reads.Load())
		assert.Zero(t, failures.Load(), "reads failed during commit")
		assert.Zero(t, wrongSize.Load(), "reads saw a partial generation")
		assert.Zero(t, mixed.Load(), "reads mixed two generations")
	})

	t.Run("StageCommitSwaps", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)
		require.NoError(t, coll.Add(ctx, NewRecord("old", "framework", 0, 4)))

		staging, err := coll.Stage(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, staging.ID())

		for i := range 3 {
			require.NoError(t, staging.Add(ctx, NewRecord(fmt.Sprintf("new-%d", i), "framework", i, 4)))
		}

		// Staged records stay invisible until commit.
		count, err := coll.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		matches, err := coll.Query(ctx, axisVector(1, 4), 10, storage.Filter{})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "old", matches[0].Record.ID)

		require.NoError(t, staging.Commit(ctx))
		require.NoError(t, staging.Discard(ctx))

		count, err = coll.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		records, err := coll.Records(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)
		for _, record := range records {
			assert.NotEqual(t, "old", record.ID)
		}

		reopened, err := store.GetCollection(ctx, "kb")
		require.NoError(t, err)
		count, err = reopened.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		assert.ErrorIs(t, staging.Add(ctx, NewRecord("late", "framework", 0, 4)), storage.ErrStagingClosed)
	})

	t.Run("StageDiscardKeepsActive", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)
		require.NoError(t, coll.Add(ctx, NewRecord("kept", "framework", 0, 4)))

		staging, err := coll.Stage(ctx)
		require.NoError(t, err)
		require.NoError(t, staging.Add(ctx, NewRecord("dropped", "framework", 1, 4)))
		require.NoError(t, staging.Discard(ctx))

		records, err := coll.Records(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "kept", records[0].ID)

		assert.ErrorIs(t, staging.Commit(ctx), storage.ErrStagingClosed)
	})

	t.Run("DeleteCollection", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		coll, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)
		require.NoError(t, coll.Add(ctx, NewRecord("a", "framework", 0, 4)))

		require.NoError(t, store.DeleteCollection(ctx, "kb"))
		_, err = store.GetCollection(ctx, "kb")
		assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
		assert.ErrorIs(t, store.DeleteCollection(ctx, "kb"), storage.ErrCollectionNotFound)

		recreated, err := store.CreateCollection(ctx, "kb", cosine)
		require.NoError(t, err)
		count, err := recreated.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.Close())

		_, err := store.GetCollection(ctx, "kb")
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
	})
}
