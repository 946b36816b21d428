package mock

import (
	"context"
	"hash/fnv"
	"math"
	"unicode"
)

// HashingEmbedder embeds text by hashing its characters and adjacent
// character pairs into a fixed number of buckets. Texts that share
// characters always have positive cosine similarity, which makes it a
// convenient stand-in for a real model when tests assert on ranking.
type HashingEmbedder struct {
	Dimensions int
}

// NewHashingEmbedder returns a HashingEmbedder producing 256-dimensional vectors.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{Dimensions: 256}
}

// EmbedText implements ai.Embedder.
func (h *HashingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(text), nil
}

// EmbedTexts implements ai.Embedder.
func (h *HashingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *HashingEmbedder) embed(text string) []float32 {
	dim := h.Dimensions
	if dim <= 0 {
		dim = 256
	}
	vector := make([]float32, dim)

	var prev rune
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			prev = 0
			continue
		}
		r = unicode.ToLower(r)
		vector[bucket(string(r), dim)]++
		if prev != 0 {
			vector[bucket(string([]rune{prev, r}), dim)]++
		}
		prev = r
	}
	return normalize(vector)
}

func bucket(feature string, dim int) int {
	f := fnv.New32a()
	f.Write([]byte(feature))
	return int(f.Sum32() % uint32(dim))
}

func sqrt(x float64) float64 {
	return math.Sqrt(x)
}
