package kbase

import (
	"log/slog"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/search"
)

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "engine")
		return nil
	}
}

// WithEmbeddingStrategies replaces the embedding resolver cascade.
// Default is openai.Strategies for the configured host and models.
func WithEmbeddingStrategies(strategies ...ai.Strategy) Option {
	return func(e *Engine) error {
		e.embeddingStrategies = strategies
		return nil
	}
}

// WithStoreStrategies replaces the vector store cascade.
// Default is search.StoreStrategies under the configured persist directory.
func WithStoreStrategies(strategies ...search.StoreStrategy) Option {
	return func(e *Engine) error {
		e.storeStrategies = strategies
		return nil
	}
}

// WithMonitor sets a monitor that observes every search.
func WithMonitor(monitor search.SearchMonitor) Option {
	return func(e *Engine) error {
		e.monitor = monitor
		return nil
	}
}
