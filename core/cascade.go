package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Strategy is one named, fallible way of building a T.
type Strategy[T any] struct {
	Name  string
	Build func(ctx context.Context) (T, error)
}

// Cascade evaluates strategies in order and returns the value built by the
// first one that succeeds along with its name. Strategies run strictly one
// after another. When every strategy fails the returned error wraps
// ErrAllStrategiesFailed and each individual reason.
func Cascade[T any](ctx context.Context, logger *slog.Logger, strategies ...Strategy[T]) (T, string, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}

	reasons := make([]error, 0, len(strategies))
	for i, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, err)
			break
		}

		value, err := strategy.Build(ctx)
		if err == nil {
			logger.Info("strategy succeeded", "strategy", strategy.Name, "attempt", i+1)
			return value, strategy.Name, nil
		}

		logger.Warn("strategy failed", "strategy", strategy.Name, "attempt", i+1, "err", err)
		reasons = append(reasons, fmt.Errorf("%s: %w", strategy.Name, err))
	}

	return zero, "", fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errors.Join(reasons...))
}
