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
	"encoding/binary"

	"github.com/poiesic/clearance/core"
)

const (
	collectionPrefix = "colrec"
	chunkPrefix      = "chkrec"
	sourcePrefix     = "srcrec"
)

// makeCollectionKey generates the key holding a collection's marker record.
func makeCollectionKey(name core.CollectionID) []byte {
	return []byte(collectionPrefix + ":" + string(name))
}

// makeCollectionScanPrefix generates the prefix shared by all collection markers.
func makeCollectionScanPrefix() []byte {
	return []byte(collectionPrefix + ":")
}

// makeChunkPrefix generates the prefix shared by all chunks in a collection.
// Format: prefix:collection:
func makeChunkPrefix(name core.CollectionID) []byte {
	return []byte(chunkPrefix + ":" + string(name) + ":")
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:collection:id
func makeChunkKey(name core.CollectionID, id core.ID) []byte {
	prefix := makeChunkPrefix(name)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian keeps iteration order stable and numeric
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeSourcePrefix generates the prefix shared by a collection's ingestion records.
func makeSourcePrefix(name core.CollectionID) []byte {
	return []byte(sourcePrefix + ":" + string(name) + ":")
}

// makeSourceKey generates the key for a source file's ingestion record.
// Format: prefix:collection:source
func makeSourceKey(name core.CollectionID, source string) []byte {
	return append(makeSourcePrefix(name), source...)
}
