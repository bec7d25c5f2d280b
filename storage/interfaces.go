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


package storage

import (
	"context"

	"github.com/poiesic/clearance/core"
)

// VectorIndex is the per-collection nearest-neighbour contract used by retrieval.
type VectorIndex interface {
	// Count returns the number of chunks stored in a collection.
	// Returns ErrCollectionNotFound if the collection was never created.
	Count(ctx context.Context, collection core.CollectionID) (int, error)

	// Query returns up to k chunks nearest to vector, closest first.
	// Distances are cosine distances (1 - cosine similarity), so they lie in [0, 2].
	// Chunks without a vector are never returned.
	// Returns ErrCollectionNotFound if the collection was never created.
	Query(ctx context.Context, collection core.CollectionID, vector []float32, k int) ([]core.Hit, error)
}

// ChunkLister provides full-scan access to a collection's chunks.
type ChunkLister interface {
	// ListChunks returns every chunk in a collection in storage order.
	// Returns ErrCollectionNotFound if the collection was never created.
	ListChunks(ctx context.Context, collection core.CollectionID) ([]*core.Chunk, error)
}

// ChunkRepository provides operations for managing collections and their chunks.
type ChunkRepository interface {
	VectorIndex
	ChunkLister

	// CreateCollection registers a collection. Creating an existing collection
	// is not an error; the existing record is returned.
	CreateCollection(ctx context.Context, name core.CollectionID) (*core.Collection, error)

	// DeleteCollection removes a collection and all of its chunks.
	// Returns ErrCollectionNotFound if the collection doesn't exist.
	DeleteCollection(ctx context.Context, name core.CollectionID) error

	// Collections lists all known collections ordered by name.
	Collections(ctx context.Context) ([]*core.Collection, error)

	// AddChunks stores chunks, creating their collections as needed.
	// Chunks with ID=0 get an ID derived from their collection and content.
	// Existing chunks with the same ID are replaced.
	// Sets InsertedAt if not already set.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks replaces existing chunks and sets UpdatedAt.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// DeleteChunks removes chunks by ID. Missing IDs are ignored.
	// Returns ErrCollectionNotFound if the collection doesn't exist.
	DeleteChunks(ctx context.Context, collection core.CollectionID, ids ...core.ID) error

	// GetChunk retrieves a single chunk.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, collection core.CollectionID, id core.ID) (*core.Chunk, error)

	// ForEachChunk streams a collection's chunks to fn in batches of at most batchSize.
	// Iteration stops at the first error returned by fn.
	ForEachChunk(ctx context.Context, collection core.CollectionID, batchSize int, fn func([]*core.Chunk) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ManifestRepository tracks which source files have been ingested.
type ManifestRepository interface {
	// SaveSource persists the record for a source file and sets UpdatedAt.
	SaveSource(ctx context.Context, record *core.SourceRecord) error

	// LoadSource retrieves the record for a source file.
	// Returns nil, nil if the file was never ingested.
	LoadSource(ctx context.Context, collection core.CollectionID, source string) (*core.SourceRecord, error)

	// Sources lists every record for a collection ordered by source name.
	Sources(ctx context.Context, collection core.CollectionID) ([]*core.SourceRecord, error)

	// DeleteSource removes the record for a single source file.
	DeleteSource(ctx context.Context, collection core.CollectionID, source string) error

	// ClearSources removes every record for a collection.
	ClearSources(ctx context.Context, collection core.CollectionID) error
}
