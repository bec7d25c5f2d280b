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


package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
)

// ChunkRepository stores collections and their chunks in BadgerDB.
type ChunkRepository struct {
	backend     *Backend
	ownsBackend bool
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewRepository opens a BadgerDB database at path and returns a repository
// that owns it. Closing the repository closes the database.
func NewRepository(path string) (storage.ChunkRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return &ChunkRepository{backend: backend, ownsBackend: true}, nil
}

// NewChunkRepository creates a ChunkRepository over an existing backend.
// The caller keeps ownership of the backend.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("badger: backend is required")
	}
	return &ChunkRepository{backend: backend}, nil
}

// Close closes the backend if the repository owns it.
func (r *ChunkRepository) Close() error {
	if r.ownsBackend {
		return r.backend.Close()
	}
	return nil
}

// CreateCollection registers a collection if it doesn't exist yet.
func (r *ChunkRepository) CreateCollection(ctx context.Context, name core.CollectionID) (*core.Collection, error) {
	if err := core.ValidateCollectionID(name); err != nil {
		return nil, err
	}

	var result *core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readCollection(tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}
		result = &core.Collection{Name: name, CreatedAt: time.Now().UTC()}
		if err := tx.Set(makeCollectionKey(name), storage.MarshalCollection(result)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return result, err
}

// DeleteCollection removes a collection marker and all of its chunks.
func (r *ChunkRepository) DeleteCollection(ctx context.Context, name core.CollectionID) error {
	if err := r.requireCollection(name); err != nil {
		return err
	}
	if err := r.backend.DeletePrefix(makeChunkPrefix(name)); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCollectionKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Collections lists all known collections ordered by name.
func (r *ChunkRepository) Collections(ctx context.Context) ([]*core.Collection, error) {
	var results []*core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionScanPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var c *core.Collection
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				c, err = storage.UnmarshalCollection(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, c)
		}
		return nil
	}, false)
	return results, err
}

// Count returns the number of chunks in a collection.
func (r *ChunkRepository) Count(ctx context.Context, name core.CollectionID) (int, error) {
	if err := r.requireCollection(name); err != nil {
		return 0, err
	}

	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(name)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Query returns up to k chunks nearest to vector by cosine distance.
func (r *ChunkRepository) Query(ctx context.Context, name core.CollectionID, vector []float32, k int) ([]core.Hit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}
	if err := r.requireCollection(name); err != nil {
		return nil, err
	}
	return r.backend.FindNearest(ctx, makeChunkPrefix(name), vector, k)
}

// ListChunks returns every chunk in a collection in key order.
func (r *ChunkRepository) ListChunks(ctx context.Context, name core.CollectionID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.ForEachChunk(ctx, name, 0, func(batch []*core.Chunk) error {
		results = append(results, batch...)
		return nil
	})
	return results, err
}

// ForEachChunk streams a collection's chunks to fn in batches.
// A batchSize of zero or less delivers everything in a single batch.
func (r *ChunkRepository) ForEachChunk(ctx context.Context, name core.CollectionID, batchSize int, fn func([]*core.Chunk) error) error {
	if err := r.requireCollection(name); err != nil {
		return err
	}

	var batch []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.Chunk
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			}); err != nil {
				return err
			}
			batch = append(batch, chunk)
			if batchSize > 0 && len(batch) >= batchSize {
				if err := fn(batch); err != nil {
					return err
				}
				batch = nil
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// AddChunks stores chunks, creating their collections as needed.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	seen := make(map[core.CollectionID]bool)
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		if !seen[chunk.Collection] {
			if _, err := r.CreateCollection(ctx, chunk.Collection); err != nil {
				return nil, err
			}
			seen[chunk.Collection] = true
		}
	}

	wb := r.backend.NewWriteBatch()
	defer wb.Cancel()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if chunk.Id == 0 {
			chunk.Id = core.IDFromContent(string(chunk.Collection) + "\x00" + chunk.Content)
		}
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = now
		}
		if err := wb.Set(makeChunkKey(chunk.Collection, chunk.Id), storage.MarshalChunk(chunk)); err != nil {
			return nil, err
		}
	}
	if err := wb.Flush(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpdateChunks replaces existing chunks.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}
			key := makeChunkKey(chunk.Collection, chunk.Id)
			if _, err := tx.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: chunk %d in %s", storage.ErrNotFound, chunk.Id, chunk.Collection)
				}
				return err
			}
			chunk.UpdatedAt = now
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// DeleteChunks removes chunks by ID. IDs that are not stored are ignored.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, name core.CollectionID, ids ...core.ID) error {
	if err := r.requireCollection(name); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	wb := r.backend.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(makeChunkKey(name, id)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// GetChunk retrieves a single chunk.
func (r *ChunkRepository) GetChunk(ctx context.Context, name core.CollectionID, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeChunkKey(name, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			result, err = storage.UnmarshalChunk(val)
			return err
		})
	}, false)
	return result, err
}

// requireCollection returns ErrCollectionNotFound unless the collection was created.
func (r *ChunkRepository) requireCollection(name core.CollectionID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		c, err := readCollection(tx, name)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
		}
		return nil
	}, false)
}

// readCollection returns nil, nil when the collection marker is absent.
func readCollection(tx *badger.Txn, name core.CollectionID) (*core.Collection, error) {
	item, err := tx.Get(makeCollectionKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var c *core.Collection
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		c, unmarshalErr = storage.UnmarshalCollection(val)
		return unmarshalErr
	})
	return c, err
}
