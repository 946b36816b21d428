package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/kbase/storage"
)

// Collection implements storage.Collection. The active generation is read
// from the collection metadata inside every transaction, so a Collection
// value stays valid across staged swaps.
type Collection struct {
	store *Store
	name  string

	mu       sync.RWMutex
	metadata map[string]string
}

var _ storage.Collection = (*Collection)(nil)

// Name implements storage.Collection.
func (c *Collection) Name() string {
	return c.name
}

// Metadata implements storage.Collection.
func (c *Collection) Metadata() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return storage.CloneMetadata(c.metadata)
}

// SetMetadata implements storage.Collection.
func (c *Collection) SetMetadata(ctx context.Context, metadata map[string]string) error {
	if err := c.store.checkOpen(); err != nil {
		return err
	}
	if err := storage.ValidateMetadata(metadata); err != nil {
		return err
	}

	metadata = storage.CloneMetadata(metadata)
	err := c.store.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := loadMeta(tx, c.name)
		if err != nil {
			return err
		}
		meta.Metadata = metadata
		if err := saveMeta(tx, meta); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.metadata = metadata
	c.mu.Unlock()
	return nil
}

// Count implements storage.Collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if err := c.store.checkOpen(); err != nil {
		return 0, err
	}

	var count int
	err := c.store.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := loadMeta(tx, c.name)
		if err != nil {
			return err
		}
		count = meta.Count
		return nil
	}, false)
	return count, err
}

// Add implements storage.Collection.
func (c *Collection) Add(ctx context.Context, records ...*storage.Record) error {
	if err := c.store.checkOpen(); err != nil {
		return err
	}
	encoded, err := encodeRecords(records)
	if err != nil {
		return err
	}

	return c.store.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := loadMeta(tx, c.name)
		if err != nil {
			return err
		}
		added, err := putRecords(tx, c.name, meta.Generation, records, encoded)
		if err != nil {
			return err
		}
		meta.Count += added
		if err := saveMeta(tx, meta); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Query implements storage.Collection.
func (c *Collection) Query(ctx context.Context, vector []float32, k int, filter storage.Filter) ([]*storage.Match, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}

	var matches []*storage.Match
	err := c.forEach(func(record *storage.Record) error {
		if !filter.Matches(record) {
			return nil
		}
		score, err := storage.DotProduct(vector, record.Vector)
		if err != nil {
			return fmt.Errorf("scoring %s: %w", record.ID, err)
		}
		matches = append(matches, &storage.Match{Record: record, Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return storage.RankMatches(matches, k), nil
}

// Records implements storage.Collection.
func (c *Collection) Records(ctx context.Context) ([]*storage.Record, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}

	var records []*storage.Record
	err := c.forEach(func(record *storage.Record) error {
		records = append(records, record)
		return nil
	})
	return records, err
}

// forEach visits the active generation in key order.
func (c *Collection) forEach(fn func(*storage.Record) error) error {
	return c.store.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := loadMeta(tx, c.name)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeGenerationPrefix(c.name, meta.Generation)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *storage.Record
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Stage implements storage.Collection.
func (c *Collection) Stage(ctx context.Context) (storage.Staging, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := c.Count(ctx); err != nil {
		return nil, err
	}
	return &Staging{collection: c, generation: uuid.NewString()}, nil
}

// Staging implements storage.Staging.
type Staging struct {
	collection *Collection
	generation string

	mu    sync.Mutex
	count int
	done  bool
}

var _ storage.Staging = (*Staging)(nil)

// ID implements storage.Staging.
func (s *Staging) ID() string {
	return s.generation
}

// Add implements storage.Staging.
func (s *Staging) Add(ctx context.Context, records ...*storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return storage.ErrStagingClosed
	}

	encoded, err := encodeRecords(records)
	if err != nil {
		return err
	}

	var added int
	err = s.collection.store.backend.WithTx(func(tx *badger.Txn) error {
		added, err = putRecords(tx, s.collection.name, s.generation, records, encoded)
		if err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	s.count += added
	return nil
}

// Commit implements storage.Staging.
func (s *Staging) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return storage.ErrStagingClosed
	}

	backend := s.collection.store.backend
	var previous string
	err := backend.WithTx(func(tx *badger.Txn) error {
		meta, err := loadMeta(tx, s.collection.name)
		if err != nil {
			return err
		}
		previous = meta.Generation
		meta.Generation = s.generation
		meta.Count = s.count
		if err := saveMeta(tx, meta); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}
	s.done = true

	if previous != "" && previous != s.generation {
		if err := backend.PurgePrefix(makeGenerationPrefix(s.collection.name, previous)); err != nil {
			// The swap already happened; stale records are unreachable.
			s.collection.store.logger.Warn("failed to purge previous generation",
				"collection", s.collection.name, "generation", previous, "err", err)
		}
	}
	return nil
}

// Discard implements storage.Staging.
func (s *Staging) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	return s.collection.store.backend.PurgePrefix(makeGenerationPrefix(s.collection.name, s.generation))
}

func encodeRecords(records []*storage.Record) ([][]byte, error) {
	encoded := make([][]byte, len(records))
	for i, record := range records {
		data, err := storage.MarshalRecord(record)
		if err != nil {
			return nil, err
		}
		encoded[i] = data
	}
	return encoded, nil
}

// putRecords writes records and returns how many keys were new.
func putRecords(tx *badger.Txn, name, generation string, records []*storage.Record, encoded [][]byte) (int, error) {
	added := 0
	for i, record := range records {
		key := makeRecordKey(name, generation, record.ID)
		_, err := tx.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			added++
		case err != nil:
			return 0, err
		}
		if err := tx.Set(key, encoded[i]); err != nil {
			return 0, err
		}
	}
	return added, nil
}
