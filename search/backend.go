package search

import (
	"context"

	"github.com/poiesic/kbase/core"
)

// Backend is a searchable index of knowledge chunks.
type Backend interface {
	// Kind identifies the retrieval method.
	Kind() core.Backend

	// Search returns up to k chunks most similar to query, best first.
	// A non-empty docType restricts results to chunks of that type.
	Search(ctx context.Context, query string, k int, docType string) ([]core.SearchResult, error)

	// Rebuild replaces the indexed chunks. On failure the previous index
	// stays active.
	Rebuild(ctx context.Context, chunks []core.Chunk) error

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	Close() error
}
