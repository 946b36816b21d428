package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/storage"
)

// BatchProcessor embeds batches of texts with retry and normalization.
type BatchProcessor struct {
	embedder ai.Embedder
	backoff  Backoff
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(embedder ai.Embedder, backoff Backoff) *BatchProcessor {
	return &BatchProcessor{
		embedder: embedder,
		backoff:  backoff,
	}
}

// Embed returns one unit-length vector per text, in order.
func (bp *BatchProcessor) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if bp.embedder == nil {
		return nil, ErrEmbedderRequired
	}

	var embeddings [][]float32
	err := bp.backoff.Retry(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.backoff.MaxAttempts, err)
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(texts), len(embeddings))
	}

	for i := range embeddings {
		embeddings[i] = NormalizeVector(embeddings[i])
	}
	return embeddings, nil
}

// Process re-embeds records and writes them to staging. The input records
// are not modified.
func (bp *BatchProcessor) Process(ctx context.Context, staging storage.Staging, records []*storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Chunk.Content
	}

	vectors, err := bp.Embed(ctx, texts)
	if err != nil {
		return err
	}

	updated := make([]*storage.Record, len(records))
	for i, record := range records {
		clone := *record
		clone.Vector = vectors[i]
		updated[i] = &clone
	}

	if err := staging.Add(ctx, updated...); err != nil {
		return fmt.Errorf("failed to stage records: %w", err)
	}
	return nil
}
