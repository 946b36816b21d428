package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/poiesic/kbase/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReembedder_Run(t *testing.T) {
	ctx := context.Background()
	coll := setupCollection(t, 10)

	var buf bytes.Buffer
	config := &Config{BatchSize: 3, ReportInterval: 3, Backoff: fastBackoff}
	embedder := &mock.MockEmbedder{Dimensions: 32}

	n, err := NewReembedder(coll, embedder, config, &buf).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 4, embedder.CallCount(), "ten records in batches of three")

	records, err := coll.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 10)
	for _, record := range records {
		assert.Len(t, record.Vector, 32)
		assert.InDelta(t, 1.0, magnitude(record.Vector), 1e-5)
	}

	count, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	assert.Contains(t, buf.String(), "Starting reembedding of 10 records")
	assert.Contains(t, buf.String(), "Reembedding complete")
}

func TestReembedder_EmptyCollection(t *testing.T) {
	coll := setupCollection(t, 0)

	var buf bytes.Buffer
	embedder := mock.NewMockEmbedder()
	n, err := NewReembedder(coll, embedder, nil, &buf).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, buf.String(), "0 records")
}

func TestReembedder_FailureKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	coll := setupCollection(t, 5)

	before, err := coll.Records(ctx)
	require.NoError(t, err)

	calls := 0
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("model unloaded")
			}
			return mock.NewMockEmbedder().EmbedTexts(ctx, texts)
		},
	}
	config := &Config{BatchSize: 2, ReportInterval: 2, Backoff: Backoff{MaxAttempts: 1}}

	_, err = NewReembedder(coll, embedder, config, nil).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 1")

	after, err := coll.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReembedder_Cancelled(t *testing.T) {
	coll := setupCollection(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReembedder(coll, mock.NewMockEmbedder(), nil, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 100, config.ReportInterval)
	assert.Equal(t, 3, config.Backoff.MaxAttempts)
}
