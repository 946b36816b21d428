package reembed

import (
	"context"

	"github.com/poiesic/kbase/storage"
)

// DefaultBatchSize is the number of records handed to each callback.
const DefaultBatchSize = 100

// RecordIterator walks the active generation of a collection in batches.
type RecordIterator struct {
	collection storage.Collection
	batchSize  int
}

// NewRecordIterator creates an iterator. A batchSize below 1 selects
// DefaultBatchSize.
func NewRecordIterator(collection storage.Collection, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{
		collection: collection,
		batchSize:  batchSize,
	}
}

// ForEach calls fn with consecutive batches in ID order. It stops at the
// first error from fn and checks ctx between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*storage.Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := it.collection.Records(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += it.batchSize {
		end := min(start+it.batchSize, len(records))
		if err := fn(records[start:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
