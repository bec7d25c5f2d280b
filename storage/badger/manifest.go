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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
)

// ManifestRepository implements storage.ManifestRepository for BadgerDB.
type ManifestRepository struct {
	backend *Backend
}

var _ storage.ManifestRepository = (*ManifestRepository)(nil)

// NewManifestRepository creates a new ManifestRepository.
func NewManifestRepository(backend *Backend) *ManifestRepository {
	return &ManifestRepository{
		backend: backend,
	}
}

// SaveSource persists the ingestion record for a source file.
func (r *ManifestRepository) SaveSource(ctx context.Context, record *core.SourceRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		record.UpdatedAt = time.Now().UTC()
		key := makeSourceKey(record.Collection, record.Source)
		if err := tx.Set(key, storage.MarshalSourceRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadSource retrieves the ingestion record for a source file.
// Returns nil, nil if none exists.
func (r *ManifestRepository) LoadSource(ctx context.Context, collection core.CollectionID, source string) (*core.SourceRecord, error) {
	var record *core.SourceRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSourceKey(collection, source))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalSourceRecord(val)
			return unmarshalErr
		})
	}, false)

	return record, err
}

// Sources lists a collection's ingestion records in key order.
func (r *ManifestRepository) Sources(ctx context.Context, collection core.CollectionID) ([]*core.SourceRecord, error) {
	var records []*core.SourceRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSourcePrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := iter.Item().Value(func(val []byte) error {
				record, err := storage.UnmarshalSourceRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	return records, err
}

// DeleteSource removes the ingestion record for one source file.
func (r *ManifestRepository) DeleteSource(ctx context.Context, collection core.CollectionID, source string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeSourceKey(collection, source)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ClearSources removes every ingestion record for a collection.
func (r *ManifestRepository) ClearSources(ctx context.Context, collection core.CollectionID) error {
	return r.backend.DeletePrefix(makeSourcePrefix(collection))
}
