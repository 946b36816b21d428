package mock

import (
	"context"
	"errors"

	"github.com/poiesic/kbase/ai"
)

// ErrUnavailable is the error returned by failing test doubles.
var ErrUnavailable = errors.New("mock: embedding service unavailable")

// FailingEmbedder fails every call with Err.
type FailingEmbedder struct {
	Err error
}

// NewFailingEmbedder returns an embedder that always fails with ErrUnavailable.
func NewFailingEmbedder() *FailingEmbedder {
	return &FailingEmbedder{Err: ErrUnavailable}
}

// EmbedText implements ai.Embedder.
func (f *FailingEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, f.Err
}

// EmbedTexts implements ai.Embedder.
func (f *FailingEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, f.Err
}

// Strategy wraps an embedder in a strategy that always succeeds.
func Strategy(name string, embedder ai.Embedder) ai.Strategy {
	return ai.Strategy{
		Name: name,
		Build: func(context.Context) (ai.Embedder, error) {
			return embedder, nil
		},
	}
}

// FailingStrategy returns a strategy whose construction always fails.
func FailingStrategy(name string) ai.Strategy {
	return ai.Strategy{
		Name: name,
		Build: func(context.Context) (ai.Embedder, error) {
			return nil, ErrUnavailable
		},
	}
}
