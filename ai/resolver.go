package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/kbase/core"
)

// ErrEmbeddingUnavailable is returned by Resolve when no strategy produced a
// working embedder. It disables semantic retrieval but is not fatal.
var ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

// Strategy is one named way of obtaining a working Embedder.
type Strategy = core.Strategy[Embedder]

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Embedder Embedder
	Strategy string
	// Model names the embedding model. It falls back to Strategy when the
	// embedder does not implement ModelNamer.
	Model string
}

// Resolve tries each strategy in order and returns the first embedder that
// could be built.
func Resolve(ctx context.Context, logger *slog.Logger, strategies ...Strategy) (*Resolution, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedding-resolver")

	embedder, name, err := core.Cascade(ctx, logger, strategies...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: strategy %s returned no embedder", ErrEmbeddingUnavailable, name)
	}

	logger.Info("embedding backend resolved", "strategy", name)
	return &Resolution{Embedder: embedder, Strategy: name, Model: ModelName(embedder, name)}, nil
}

// ModelName returns the embedder's model, or fallback when it does not
// report one.
func ModelName(embedder Embedder, fallback string) string {
	if named, ok := embedder.(ModelNamer); ok && named.Model() != "" {
		return named.Model()
	}
	return fallback
}
