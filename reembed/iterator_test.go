package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/kbase/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIterator_Batches(t *testing.T) {
	coll := setupCollection(t, 7)

	var sizes []int
	var ids []string
	err := NewRecordIterator(coll, 3).ForEach(context.Background(), func(records []*storage.Record) error {
		sizes = append(sizes, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, ids)
}

func TestRecordIterator_Empty(t *testing.T) {
	coll := setupCollection(t, 0)

	called := false
	err := NewRecordIterator(coll, 3).ForEach(context.Background(), func([]*storage.Record) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRecordIterator_StopsOnError(t *testing.T) {
	coll := setupCollection(t, 5)
	boom := errors.New("boom")

	calls := 0
	err := NewRecordIterator(coll, 2).ForEach(context.Background(), func([]*storage.Record) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRecordIterator_Cancelled(t *testing.T) {
	coll := setupCollection(t, 5)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := NewRecordIterator(coll, 2).ForEach(ctx, func([]*storage.Record) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRecordIterator_DefaultBatchSize(t *testing.T) {
	coll := setupCollection(t, 1)
	it := NewRecordIterator(coll, 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)
}
