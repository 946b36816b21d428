package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreStrategies_Order(t *testing.T) {
	strategies := StoreStrategies(t.TempDir())
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"badger", "sqlite", "badger-memory"}, names)
}

func TestResolveStore_PrimaryWins(t *testing.T) {
	dir := t.TempDir()
	store, err := ResolveStore(context.Background(), nil, StoreStrategies(dir)...)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "badger", store.Name())
}

func TestResolveStore_FallsBackToSQLite(t *testing.T) {
	dir := t.TempDir()

	// Hold the badger directory lock so the primary strategy fails.
	held, err := badger.Open(filepath.Join(dir, "badger"))
	require.NoError(t, err)
	defer held.Close()

	store, err := ResolveStore(context.Background(), nil, StoreStrategies(dir)...)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "sqlite", store.Name())
}

func TestResolveStore_StopsAtFirstSuccess(t *testing.T) {
	var invoked []string
	build := func(name string, fail bool) StoreStrategy {
		return StoreStrategy{
			Name: name,
			Build: func(context.Context) (storage.VectorStore, error) {
				invoked = append(invoked, name)
				if fail {
					return nil, errors.New(name + " down")
				}
				return badger.OpenMemory()
			},
		}
	}

	store, err := ResolveStore(context.Background(), nil,
		build("first", true), build("second", false), build("third", false))
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, []string{"first", "second"}, invoked)
}

func TestResolveStore_AllFail(t *testing.T) {
	fail := StoreStrategy{
		Name: "broken",
		Build: func(context.Context) (storage.VectorStore, error) {
			return nil, errors.New("no disk")
		},
	}
	_, err := ResolveStore(context.Background(), nil, fail, fail)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, core.ErrAllStrategiesFailed)
}

// untaggedStore rejects collection metadata, like a store without
// distance support.
type untaggedStore struct {
	storage.VectorStore
}

func (s untaggedStore) CreateCollection(ctx context.Context, name string, metadata map[string]string) (storage.Collection, error) {
	if len(metadata) > 0 {
		return nil, storage.ErrUnsupportedMetadata
	}
	return s.VectorStore.CreateCollection(ctx, name, nil)
}

func TestOpenCollection(t *testing.T) {
	ctx := context.Background()
	store, err := badger.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	t.Run("creates tagged collection", func(t *testing.T) {
		collection, err := OpenCollection(ctx, store, "tagged", nil)
		require.NoError(t, err)
		assert.Equal(t, storage.DistanceCosine, collection.Metadata()[storage.MetadataDistance])
	})

	t.Run("opens existing collection", func(t *testing.T) {
		collection, err := OpenCollection(ctx, store, "tagged", nil)
		require.NoError(t, err)
		assert.Equal(t, "tagged", collection.Name())
	})

	t.Run("retries untagged", func(t *testing.T) {
		collection, err := OpenCollection(ctx, untaggedStore{store}, "plain", nil)
		require.NoError(t, err)
		assert.Empty(t, collection.Metadata())
	})
}
