package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/badger"
	"github.com/poiesic/kbase/storage/sqlite"
)

// StoreStrategy builds a vector store.
type StoreStrategy = core.Strategy[storage.VectorStore]

// StoreStrategies returns the default store cascade rooted at persistDir:
// a persistent badger store, then a SQLite database, then an in-memory
// badger store.
func StoreStrategies(persistDir string) []StoreStrategy {
	return []StoreStrategy{
		{
			Name: badger.StoreName,
			Build: func(context.Context) (storage.VectorStore, error) {
				return badger.Open(filepath.Join(persistDir, "badger"))
			},
		},
		{
			Name: sqlite.StoreName,
			Build: func(context.Context) (storage.VectorStore, error) {
				return sqlite.Open(filepath.Join(persistDir, "kbase.db"))
			},
		},
		{
			Name: badger.MemoryStoreName,
			Build: func(context.Context) (storage.VectorStore, error) {
				return badger.OpenMemory()
			},
		},
	}
}

// ResolveStore opens the first vector store whose strategy succeeds.
func ResolveStore(ctx context.Context, logger *slog.Logger, strategies ...StoreStrategy) (storage.VectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store-resolver")

	store, name, err := core.Cascade(ctx, logger, strategies...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: strategy %s returned no store", ErrStoreUnavailable, name)
	}

	logger.Info("vector store resolved", "strategy", name, "store", store.Name())
	return store, nil
}

// OpenCollection returns the named collection, creating it tagged for
// cosine distance when it does not exist. If the store rejects the tag the
// collection is created untagged.
func OpenCollection(ctx context.Context, store storage.VectorStore, name string, logger *slog.Logger) (storage.Collection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	collection, err := store.GetCollection(ctx, name)
	if err == nil {
		return collection, nil
	}
	if !errors.Is(err, storage.ErrCollectionNotFound) {
		return nil, err
	}

	collection, err = store.CreateCollection(ctx, name,
		map[string]string{storage.MetadataDistance: storage.DistanceCosine})
	if err == nil {
		logger.Info("collection created", "collection", name)
		return collection, nil
	}

	logger.Warn("tagged collection creation failed, retrying untagged", "collection", name, "err", err)
	collection, err = store.CreateCollection(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return collection, nil
}
