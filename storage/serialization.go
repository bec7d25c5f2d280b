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
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/clearance/core"
)

// Records are encoded field by field in MUS format. Timestamps are stored as
// Unix microseconds, with 0 standing for the zero time.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, chunkSize(chunk))
	n := varint.Uint64.Marshal(uint64(chunk.Id), buf)
	n += ord.String.Marshal(string(chunk.Collection), buf[n:])
	n += ord.String.Marshal(chunk.Content, buf[n:])
	n += varint.Int.Marshal(len(chunk.Vector), buf[n:])
	for _, f := range chunk.Vector {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	keys := sortedKeys(chunk.Metadata)
	n += varint.Int.Marshal(len(keys), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(chunk.Metadata[k], buf[n:])
	}
	n += varint.Int64.Marshal(toMicros(chunk.InsertedAt), buf[n:])
	varint.Int64.Marshal(toMicros(chunk.UpdatedAt), buf[n:])
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	d := decoder{data: data}
	chunk := &core.Chunk{}
	chunk.Id = core.ID(d.readUint64())
	chunk.Collection = core.CollectionID(d.readString())
	chunk.Content = d.readString()
	if count := d.readLength(); count > 0 {
		chunk.Vector = make([]float32, count)
		for i := range chunk.Vector {
			chunk.Vector[i] = d.readFloat32()
		}
	}
	if count := d.readLength(); count > 0 {
		chunk.Metadata = make(map[string]string, count)
		for range count {
			k := d.readString()
			chunk.Metadata[k] = d.readString()
		}
	}
	chunk.InsertedAt = fromMicros(d.readInt64())
	chunk.UpdatedAt = fromMicros(d.readInt64())
	if d.err != nil {
		return nil, d.err
	}
	return chunk, nil
}

// MarshalCollection serializes a Collection to bytes.
func MarshalCollection(c *core.Collection) []byte {
	createdAt := toMicros(c.CreatedAt)
	buf := make([]byte, ord.String.Size(string(c.Name))+varint.Int64.Size(createdAt))
	n := ord.String.Marshal(string(c.Name), buf)
	varint.Int64.Marshal(createdAt, buf[n:])
	return buf
}

// UnmarshalCollection deserializes a Collection from bytes.
func UnmarshalCollection(data []byte) (*core.Collection, error) {
	d := decoder{data: data}
	c := &core.Collection{
		Name:      core.CollectionID(d.readString()),
		CreatedAt: fromMicros(d.readInt64()),
	}
	if d.err != nil {
		return nil, d.err
	}
	return c, nil
}

// MarshalSourceRecord serializes a SourceRecord to bytes.
func MarshalSourceRecord(r *core.SourceRecord) []byte {
	updatedAt := toMicros(r.UpdatedAt)
	size := ord.String.Size(string(r.Collection)) + ord.String.Size(r.Source) +
		varint.Uint64.Size(uint64(r.Digest)) + varint.Int.Size(r.Chunks) + varint.Int64.Size(updatedAt)
	buf := make([]byte, size)
	n := ord.String.Marshal(string(r.Collection), buf)
	n += ord.String.Marshal(r.Source, buf[n:])
	n += varint.Uint64.Marshal(uint64(r.Digest), buf[n:])
	n += varint.Int.Marshal(r.Chunks, buf[n:])
	varint.Int64.Marshal(updatedAt, buf[n:])
	return buf
}

// UnmarshalSourceRecord deserializes a SourceRecord from bytes.
func UnmarshalSourceRecord(data []byte) (*core.SourceRecord, error) {
	d := decoder{data: data}
	r := &core.SourceRecord{
		Collection: core.CollectionID(d.readString()),
		Source:     d.readString(),
		Digest:     core.ID(d.readUint64()),
	}
	r.Chunks = d.readCount()
	r.UpdatedAt = fromMicros(d.readInt64())
	if d.err != nil {
		return nil, d.err
	}
	return r, nil
}

func chunkSize(chunk *core.Chunk) int {
	size := varint.Uint64.Size(uint64(chunk.Id))
	size += ord.String.Size(string(chunk.Collection))
	size += ord.String.Size(chunk.Content)
	size += varint.Int.Size(len(chunk.Vector))
	for _, f := range chunk.Vector {
		size += raw.Float32.Size(f)
	}
	size += varint.Int.Size(len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	size += varint.Int64.Size(toMicros(chunk.InsertedAt))
	size += varint.Int64.Size(toMicros(chunk.UpdatedAt))
	return size
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// decoder walks a MUS buffer and keeps the first error it hits.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (d *decoder) readUint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.data[d.off:])
	if err != nil {
		d.fail(err)
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) readInt64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.data[d.off:])
	if err != nil {
		d.fail(err)
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) readLength() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.data[d.off:])
	if err != nil {
		d.fail(err)
		return 0
	}
	// Every encoded element takes at least one byte.
	if v < 0 || v > len(d.data)-d.off-n {
		d.fail(ErrTruncatedData)
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) readCount() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.data[d.off:])
	if err != nil {
		d.fail(err)
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) readString() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.data[d.off:])
	if err != nil {
		d.fail(err)
		return ""
	}
	d.off += n
	return v
}

func (d *decoder) readFloat32() float32 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(d.data[d.off:])
	if err != nil {
		d.fail(err)
		return 0
	}
	d.off += n
	return v
}
