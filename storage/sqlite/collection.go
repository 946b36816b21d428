package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/poiesic/kbase/storage"
)

// Collection implements storage.Collection.
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
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	res, err := c.store.db.ExecContext(ctx,
		"UPDATE collections SET metadata = ? WHERE name = ?", string(metadataJSON), c.name)
	if err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, c.name)
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
	err := c.store.withReadTx(ctx, func(tx *sql.Tx) error {
		generation, err := activeGeneration(ctx, tx, c.name)
		if err != nil {
			return err
		}
		err = tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM chunks WHERE collection = ? AND generation = ?",
			c.name, generation).Scan(&count)
		if err != nil {
			return fmt.Errorf("counting chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Add implements storage.Collection.
func (c *Collection) Add(ctx context.Context, records ...*storage.Record) error {
	if err := c.store.checkOpen(); err != nil {
		return err
	}

	return c.store.withTx(ctx, func(tx *sql.Tx) error {
		generation, err := activeGeneration(ctx, tx, c.name)
		if err != nil {
			return err
		}
		return insertRecords(ctx, tx, c.name, generation, records)
	})
}

// Query implements storage.Collection.
func (c *Collection) Query(ctx context.Context, vector []float32, k int, filter storage.Filter) ([]*storage.Match, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}

	records, err := c.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	matches := make([]*storage.Match, 0, len(records))
	for _, record := range records {
		score, err := storage.DotProduct(vector, record.Vector)
		if err != nil {
			return nil, fmt.Errorf("scoring %s: %w", record.ID, err)
		}
		matches = append(matches, &storage.Match{Record: record, Score: score})
	}
	return storage.RankMatches(matches, k), nil
}

// Records implements storage.Collection.
func (c *Collection) Records(ctx context.Context) ([]*storage.Record, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}
	return c.load(ctx, storage.Filter{})
}

// load reads the active generation. The generation lookup and the chunk
// select share one transaction so a concurrent Commit is seen entirely or
// not at all.
func (c *Collection) load(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	var records []*storage.Record
	err := c.store.withReadTx(ctx, func(tx *sql.Tx) error {
		generation, err := activeGeneration(ctx, tx, c.name)
		if err != nil {
			return err
		}

		query := "SELECT body FROM chunks WHERE collection = ? AND generation = ?"
		args := []any{c.name, generation}
		if filter.DocType != "" {
			query += " AND doc_type = ?"
			args = append(args, filter.DocType)
		}
		query += " ORDER BY id"

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying chunks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var body []byte
			if err := rows.Scan(&body); err != nil {
				return fmt.Errorf("scanning chunk: %w", err)
			}
			record, err := storage.UnmarshalRecord(body)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Stage implements storage.Collection.
func (c *Collection) Stage(ctx context.Context) (storage.Staging, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := activeGeneration(ctx, c.store.db, c.name); err != nil {
		return nil, err
	}
	return &Staging{collection: c, generation: uuid.NewString()}, nil
}

// Staging implements storage.Staging.
type Staging struct {
	collection *Collection
	generation string

	mu   sync.Mutex
	done bool
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

	return s.collection.store.withTx(ctx, func(tx *sql.Tx) error {
		return insertRecords(ctx, tx, s.collection.name, s.generation, records)
	})
}

// Commit implements storage.Staging.
func (s *Staging) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return storage.ErrStagingClosed
	}

	name := s.collection.name
	err := s.collection.store.withTx(ctx, func(tx *sql.Tx) error {
		previous, err := activeGeneration(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE collections SET generation = ? WHERE name = ?", s.generation, name); err != nil {
			return fmt.Errorf("switching generation: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE collection = ? AND generation = ?", name, previous); err != nil {
			return fmt.Errorf("purging generation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.done = true
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

	_, err := s.collection.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND generation = ?", s.collection.name, s.generation)
	if err != nil {
		return fmt.Errorf("discarding generation: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, name, generation string, records []*storage.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, generation, id, doc_type, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, generation, id) DO UPDATE SET
			doc_type = excluded.doc_type,
			body = excluded.body
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		body, err := storage.MarshalRecord(record)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, name, generation, record.ID, record.Chunk.Metadata.DocType, body); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", record.ID, err)
		}
	}
	return nil
}
