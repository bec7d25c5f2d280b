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


// Package storage provides the storage abstraction layer for clearance.
//
// The corpus is partitioned into named collections. Retrieval only needs two
// narrow capabilities, so they are split out of the full repository:
//
//   - VectorIndex: collection size and nearest-neighbour queries
//   - ChunkLister: full collection scans for lexical matching
//   - ChunkRepository: everything ingestion and maintenance tools need
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the ChunkRepository interface:
//
//	repo, err := badger.NewRepository("/path/to/db")  // returns storage.ChunkRepository
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use. Retrieval
// queries collections in parallel.
package storage
