package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/kbase/ai/mock"
	"github.com/poiesic/kbase/reembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noRetry = reembed.Backoff{MaxAttempts: 1, BaseDelay: time.Millisecond}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk %d", i)
	}
	return out
}

func TestBatches(t *testing.T) {
	assert.Nil(t, Batches(0, 100))
	assert.Equal(t, []Batch{{Index: 0, Start: 0, End: 100}}, Batches(100, 100))
	assert.Equal(t, []Batch{
		{Index: 0, Start: 0, End: 100},
		{Index: 1, Start: 100, End: 200},
		{Index: 2, Start: 200, End: 250},
	}, Batches(250, 100))
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(mock.NewMockEmbedder(), WithBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestPipeline_EmbedKeepsOrder(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p, err := NewPipeline(embedder, WithPoolSize(4), WithBatchSize(10), WithBackoff(noRetry))
	require.NoError(t, err)
	defer p.Release()

	in := texts(95)
	vectors, err := p.Embed(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, vectors, 95)
	assert.Equal(t, 10, embedder.CallCount())

	reference := mock.NewMockEmbedder()
	for i, text := range in {
		want, err := reference.EmbedText(context.Background(), text)
		require.NoError(t, err)
		assert.InDeltaSlice(t, reembed.NormalizeVector(want), vectors[i], 1e-6, "text %d", i)
	}
}

func TestPipeline_EmbedEmpty(t *testing.T) {
	p, err := NewPipeline(mock.NewMockEmbedder())
	require.NoError(t, err)
	defer p.Release()

	vectors, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestPipeline_ErrorNamesBatch(t *testing.T) {
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(_ context.Context, batch []string) ([][]float32, error) {
			for _, text := range batch {
				if text == "chunk 25" {
					return nil, errors.New("context length exceeded")
				}
			}
			return mock.NewMockEmbedder().EmbedTexts(context.Background(), batch)
		},
	}
	p, err := NewPipeline(embedder, WithPoolSize(2), WithBatchSize(10), WithBackoff(noRetry))
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Embed(context.Background(), texts(40))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "batch 2")
	assert.Contains(t, err.Error(), "context length exceeded")
}

func TestPipeline_RunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(_ context.Context, batch []string) ([][]float32, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return mock.NewMockEmbedder().EmbedTexts(context.Background(), batch)
		},
	}
	p, err := NewPipeline(embedder, WithPoolSize(3), WithBatchSize(1), WithBackoff(noRetry))
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Embed(context.Background(), texts(6))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestPipeline_Released(t *testing.T) {
	p, err := NewPipeline(mock.NewMockEmbedder())
	require.NoError(t, err)
	p.Release()

	_, err = p.Embed(context.Background(), texts(3))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "batch 0"))
}
