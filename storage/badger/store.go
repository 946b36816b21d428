package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/kbase/storage"
)

const (
	// StoreName is reported by persistent stores.
	StoreName = "badger"
	// MemoryStoreName is reported by in-memory stores.
	MemoryStoreName = "badger-memory"
)

// collectionMeta is persisted under the collection key.
type collectionMeta struct {
	Name       string            `json:"name"`
	Metadata   map[string]string `json:"metadata"`
	Generation string            `json:"generation"`
	Count      int               `json:"count"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Store implements storage.VectorStore on BadgerDB.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Open opens a persistent store in the directory at path.
func Open(path string) (*Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// OpenMemory opens a store that lives only in memory.
func OpenMemory() (*Store, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// NewStore wraps an open backend. The store owns the backend and closes it.
func NewStore(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}
}

// Name implements storage.VectorStore.
func (s *Store) Name() string {
	if s.backend.InMemory() {
		return MemoryStoreName
	}
	return StoreName
}

// Close implements storage.VectorStore.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) checkOpen() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// GetCollection implements storage.VectorStore.
func (s *Store) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := storage.ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var meta *collectionMeta
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		meta, err = loadMeta(tx, name)
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	return &Collection{store: s, name: name, metadata: meta.Metadata}, nil
}

// CreateCollection implements storage.VectorStore.
func (s *Store) CreateCollection(ctx context.Context, name string, metadata map[string]string) (storage.Collection, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := storage.ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if err := storage.ValidateMetadata(metadata); err != nil {
		return nil, err
	}

	meta := &collectionMeta{
		Name:       name,
		Metadata:   storage.CloneMetadata(metadata),
		Generation: uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeCollectionKey(name))
		if err == nil {
			return fmt.Errorf("%w: %s", storage.ErrCollectionExists, name)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := saveMeta(tx, meta); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("created collection", "collection", name, "metadata", meta.Metadata)
	return &Collection{store: s, name: name, metadata: meta.Metadata}, nil
}

// DeleteCollection implements storage.VectorStore.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := storage.ValidateCollectionName(name); err != nil {
		return err
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := loadMeta(tx, name); err != nil {
			return err
		}
		if err := tx.Delete(makeCollectionKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	return s.backend.PurgePrefix(makeCollectionRecordsPrefix(name))
}

func loadMeta(tx *badger.Txn, name string) (*collectionMeta, error) {
	item, err := tx.Get(makeCollectionKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
		}
		return nil, err
	}

	var meta collectionMeta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return &meta, nil
}

func saveMeta(tx *badger.Txn, meta *collectionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return tx.Set(makeCollectionKey(meta.Name), data)
}
