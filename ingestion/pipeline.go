package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/reembed"
)

// Pipeline embeds chunk texts concurrently in fixed-size batches.
type Pipeline struct {
	embedder      ai.Embedder
	embeddingPool *ants.Pool
	processor     *reembed.BatchProcessor
	batchSize     int
	backoff       reembed.Backoff
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets the number of texts per embedding request.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithBackoff sets the retry policy for embedding requests.
// Default is reembed.DefaultBackoff().
func WithBackoff(backoff reembed.Backoff) Option {
	return func(p *Pipeline) error {
		p.backoff = backoff
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an embedding pipeline. Call Release when done.
func NewPipeline(embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		embedder:      embedder,
		embeddingPool: pool,
		batchSize:     DefaultBatchSize,
		backoff:       reembed.DefaultBackoff(),
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Built after options so it sees the final retry policy.
	p.processor = reembed.NewBatchProcessor(embedder, p.backoff)
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Embedder returns the embedder the pipeline was built with.
func (p *Pipeline) Embedder() ai.Embedder {
	return p.embedder
}

// BatchSize returns the number of texts per embedding request.
func (p *Pipeline) BatchSize() int {
	return p.batchSize
}

// Embed returns one unit-length vector per text, in input order. Batches
// run concurrently on the worker pool. If any batch fails, the error names
// the lowest failing batch index.
func (p *Pipeline) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	batches := Batches(len(texts), p.batchSize)
	if len(batches) == 0 {
		return [][]float32{}, nil
	}

	p.logger.Debug("embedding texts", "texts", len(texts), "batches", len(batches))

	vectors := make([][]float32, len(texts))
	errs := make([]error, len(batches))
	var wg sync.WaitGroup

	for _, batch := range batches {
		wg.Add(1)
		submitErr := p.embeddingPool.Submit(func() {
			defer wg.Done()
			out, err := p.processor.Embed(ctx, texts[batch.Start:batch.End])
			if err != nil {
				errs[batch.Index] = err
				return
			}
			copy(vectors[batch.Start:batch.End], out)
		})
		if submitErr != nil {
			wg.Done()
			errs[batch.Index] = submitErr
			break
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			p.logger.Error("error generating embeddings", "batch", i, "err", err)
			return nil, fmt.Errorf("%w: batch %d: %w", ErrEmbeddingFailed, i, err)
		}
	}
	return vectors, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
