package storage

import (
	"context"

	"github.com/poiesic/kbase/core"
)

// Record is a chunk as persisted in a vector store.
type Record struct {
	ID       string     `json:"id"`
	Chunk    core.Chunk `json:"chunk"`
	SourceID core.ID    `json:"source_id"`
	Vector   []float32  `json:"vector"`
}

// Match is a record returned by a similarity query.
type Match struct {
	Record *Record
	Score  float32
}

// Filter restricts query candidates. Zero value matches everything.
type Filter struct {
	DocType string
}

// Matches reports whether a record passes the filter.
func (f Filter) Matches(r *Record) bool {
	return f.DocType == "" || r.Chunk.Metadata.DocType == f.DocType
}

// VectorStore manages named collections.
type VectorStore interface {
	// Name identifies the implementation, e.g. "badger" or "sqlite".
	Name() string

	// GetCollection opens an existing collection.
	// Returns ErrCollectionNotFound if it does not exist.
	GetCollection(ctx context.Context, name string) (Collection, error)

	// CreateCollection creates a collection tagged with metadata.
	// Returns ErrUnsupportedMetadata if the store cannot honor the metadata.
	CreateCollection(ctx context.Context, name string, metadata map[string]string) (Collection, error)

	// DeleteCollection removes a collection and every record in it.
	DeleteCollection(ctx context.Context, name string) error

	Close() error
}

// Collection is a set of records searchable by vector similarity.
type Collection interface {
	Name() string
	Metadata() map[string]string

	// SetMetadata replaces the collection metadata.
	// Returns ErrUnsupportedMetadata if the store cannot honor it.
	SetMetadata(ctx context.Context, metadata map[string]string) error

	// Count returns the number of records in the active generation.
	Count(ctx context.Context) (int, error)

	// Add inserts or replaces records in the active generation.
	Add(ctx context.Context, records ...*Record) error

	// Query returns up to k records of the active generation most similar
	// to vector, best first. k <= 0 returns every match.
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]*Match, error)

	// Records returns every record of the active generation ordered by ID.
	Records(ctx context.Context) ([]*Record, error)

	// Stage opens a new, empty generation.
	Stage(ctx context.Context) (Staging, error)
}

// Staging is a generation under construction.
type Staging interface {
	// ID returns the generation identifier.
	ID() string

	// Add inserts records into the staged generation.
	Add(ctx context.Context, records ...*Record) error

	// Commit makes the staged generation active and purges the previous one.
	Commit(ctx context.Context) error

	// Discard drops the staged generation. Discard after Commit is a no-op.
	Discard(ctx context.Context) error
}
