package badger

import (
	"context"

	"github.com/poiesic/kbase/storage"
)

// NewMemoryCollection creates an in-memory store holding one empty cosine
// collection, for testing. Caller must close the store when done.
func NewMemoryCollection(name string) (*Store, storage.Collection, error) {
	store, err := OpenMemory()
	if err != nil {
		return nil, nil, err
	}

	collection, err := store.CreateCollection(context.Background(), name,
		map[string]string{storage.MetadataDistance: storage.DistanceCosine})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return store, collection, nil
}
