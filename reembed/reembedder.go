// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// Backoff governs retries of failed embedding requests
	Backoff Backoff
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Backoff:        DefaultBackoff(),
	}
}

// Reembedder replaces every vector of a collection with one produced by a
// different embedder.
type Reembedder struct {
	collection storage.Collection
	config     *Config
	progress   io.Writer
	processor  *BatchProcessor
	iterator   *RecordIterator
	logger     *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it.
func NewReembedder(collection storage.Collection, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		collection: collection,
		config:     config,
		progress:   progress,
		processor:  NewBatchProcessor(embedder, config.Backoff),
		iterator:   NewRecordIterator(collection, config.BatchSize),
		logger:     slog.Default().With("component", "reembedder"),
	}
}

// Run re-embeds the collection into a staged generation and commits it.
// On any failure the staged generation is discarded and the collection is
// left as it was. Returns the number of records re-embedded.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in collection %s (0 records)\n", r.collection.Name())
		return 0, nil
	}

	staging, err := r.collection.Stage(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to stage generation: %w", err)
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d records (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	batch := 0
	err = r.iterator.ForEach(ctx, func(records []*storage.Record) error {
		if err := r.processor.Process(ctx, staging, records); err != nil {
			return fmt.Errorf("batch %d: %w", batch, err)
		}
		batch++
		processed += len(records)
		tracker.Update(processed)
		return nil
	})
	if err == nil {
		err = staging.Commit(ctx)
	}
	if err != nil {
		if discardErr := staging.Discard(ctx); discardErr != nil {
			r.logger.Warn("failed to discard staged generation", "generation", staging.ID(), "err", discardErr)
		}
		return 0, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/max(elapsed.Seconds(), 1e-9))

	r.logger.Info("collection reembedded", "collection", r.collection.Name(), "records", processed, "generation", staging.ID())
	return processed, nil
}
