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

	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks to embed per provider call
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got %v", c.RetryDelay)
	}
	return nil
}

// CollectionSummary describes one reembedded collection.
type CollectionSummary struct {
	Collection core.CollectionID
	Chunks     int
	Dimension  int
}

// Summary describes a completed run.
type Summary struct {
	Collections []CollectionSummary
	Elapsed     time.Duration
}

// Chunks returns the number of chunks reembedded across all collections.
func (s *Summary) Chunks() int {
	n := 0
	for _, c := range s.Collections {
		n += c.Chunks
	}
	return n
}

// Reembedder recomputes the stored vectors of whole collections, for example
// after switching embedding models.
type Reembedder struct {
	repo      storage.ChunkRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.ChunkRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewChunkIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembed"),
	}, nil
}

// Run reembeds the named collections, or every collection when none are
// named. Collections are processed one after another; the first failure
// stops the run and earlier collections keep their new vectors.
func (r *Reembedder) Run(ctx context.Context, collections ...core.CollectionID) (*Summary, error) {
	start := time.Now()

	if len(collections) == 0 {
		all, err := r.repo.Collections(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list collections: %w", err)
		}
		for _, c := range all {
			collections = append(collections, c.Name)
		}
	}

	summary := &Summary{}
	if len(collections) == 0 {
		fmt.Fprintf(r.progress, "No collections found (0 chunks)\n")
		return summary, nil
	}

	for _, collection := range collections {
		cs, err := r.runCollection(ctx, collection)
		if err != nil {
			summary.Elapsed = time.Since(start)
			return summary, fmt.Errorf("%s: %w", collection, err)
		}
		summary.Collections = append(summary.Collections, *cs)
	}

	summary.Elapsed = time.Since(start)
	total := summary.Chunks()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %d collections in %v\n",
		total, len(summary.Collections), summary.Elapsed.Round(time.Millisecond))
	r.logger.Info("reembedding complete", "collections", len(summary.Collections), "chunks", total, "elapsed", summary.Elapsed)
	return summary, nil
}

func (r *Reembedder) runCollection(ctx context.Context, collection core.CollectionID) (*CollectionSummary, error) {
	total, err := r.repo.Count(ctx, collection)
	if err != nil {
		return nil, err
	}

	cs := &CollectionSummary{Collection: collection}
	if total == 0 {
		fmt.Fprintf(r.progress, "%s: no chunks\n", collection)
		return cs, nil
	}

	fmt.Fprintf(r.progress, "Reembedding %s: %d chunks (batch size: %d)\n", collection, total, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, string(collection), total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, collection, func(chunks []*core.Chunk) error {
		dim, err := r.processor.Process(ctx, chunks)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		if cs.Dimension != 0 && dim != cs.Dimension {
			return fmt.Errorf("%w: %d then %d", ErrDimensionMismatch, cs.Dimension, dim)
		}
		cs.Dimension = dim
		cs.Chunks += len(chunks)
		tracker.Add(len(chunks))
		return nil
	})
	if err != nil {
		return cs, err
	}

	tracker.Finish()
	r.logger.Debug("collection reembedded", "collection", collection, "chunks", cs.Chunks, "dimension", cs.Dimension)
	return cs, nil
}
