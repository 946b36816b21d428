package mock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("deterministic unit vectors", func(t *testing.T) {
		m := NewMockEmbedder()
		v1, err := m.EmbedText(ctx, "hello")
		require.NoError(t, err)
		v2, err := m.EmbedText(ctx, "hello")
		require.NoError(t, err)

		assert.Equal(t, v1, v2)
		assert.Len(t, v1, 384)
		assert.InDelta(t, 1.0, dot(v1, v1), 1e-4)
		assert.Equal(t, 2, m.CallCount())
	})

	t.Run("batch matches single", func(t *testing.T) {
		m := NewMockEmbedder()
		single, err := m.EmbedText(ctx, "b")
		require.NoError(t, err)
		batch, err := m.EmbedTexts(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, batch, 2)
		assert.Equal(t, single, batch[1])
	})

	t.Run("concurrent calls are counted", func(t *testing.T) {
		m := NewMockEmbedder()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = m.EmbedTexts(ctx, []string{"x"})
			}()
		}
		wg.Wait()
		assert.Equal(t, 20, m.CallCount())

		m.Reset()
		assert.Zero(t, m.CallCount())
	})
}

func TestHashingEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashingEmbedder()

	doc, err := h.EmbedText(ctx, "新生儿一天喂奶8到12次。")
	require.NoError(t, err)
	query, err := h.EmbedText(ctx, "喂奶次数")
	require.NoError(t, err)
	other, err := h.EmbedText(ctx, "竞争优势")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, dot(doc, doc), 1e-4)
	assert.Greater(t, dot(doc, query), float32(0))
	assert.Greater(t, dot(doc, query), dot(doc, other))
}

func TestFailingEmbedder(t *testing.T) {
	f := NewFailingEmbedder()
	_, err := f.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = f.EmbedTexts(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
