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


package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for a document chunk.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role is the access tag an identity resolves to.
type Role string

// CollectionID names a partition of the corpus, e.g. "finance_docs".
// The same names are used by ingestion and retrieval.
type CollectionID string

// CollectionForDepartment returns the collection fed by a department folder.
func CollectionForDepartment(department string) CollectionID {
	return CollectionID(strings.ToLower(strings.TrimSpace(department)) + "_docs")
}

// Well-known metadata keys attached to chunks.
const (
	MetadataSource     = "source"
	MetadataDepartment = "department"
	MetadataType       = "type"
)

// Chunk is the unit of retrieval: a passage of text owned by a collection.
type Chunk struct {
	Id         ID
	Collection CollectionID
	Content    string
	Vector     []float32         // Embedding vector (populated during ingestion)
	Metadata   map[string]string // source filename, department, document type
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Source returns the source filename recorded for the chunk, if any.
func (c *Chunk) Source() string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetadataSource]
}

// Collection describes a collection known to the index.
type Collection struct {
	Name      CollectionID
	CreatedAt time.Time
}

// SourceRecord remembers what was last ingested from one source file, so
// unchanged files can be skipped on the next run.
type SourceRecord struct {
	Collection CollectionID
	Source     string
	Digest     ID // content hash of the file
	Chunks     int
	UpdatedAt  time.Time
}

// Hit is a single nearest-neighbour result from a vector index query.
// Distance is the raw cosine distance reported by the index.
type Hit struct {
	Chunk    *Chunk
	Distance float64
}

// Method identifies how a candidate was found.
type Method int

const (
	// MethodSemantic marks candidates found by embedding similarity.
	MethodSemantic Method = iota + 1
	// MethodLexical marks candidates found by keyword overlap.
	MethodLexical
)

func (m Method) String() string {
	switch m {
	case MethodSemantic:
		return "semantic"
	case MethodLexical:
		return "lexical"
	default:
		return "unknown"
	}
}

// Candidate is a scored passage produced by retrieval and consumed by assembly.
type Candidate struct {
	Content    string
	Score      float64 // always within [0,1]
	Collection CollectionID
	Metadata   map[string]string
	Method     Method
	Rank       int // position within the originating collection's result list
}

// Source returns the source filename of the candidate, if known.
func (c Candidate) Source() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetadataSource]
}

// Outcome is the terminal state of an answered query.
type Outcome int

const (
	// OutcomeAnswered means context was assembled and an answer produced.
	OutcomeAnswered Outcome = iota + 1
	// OutcomeInsufficientInformation means nothing relevant was found in the
	// caller's authorized collections. It is a valid result, not an error.
	OutcomeInsufficientInformation
	// OutcomeGenerationFailed means context was assembled but no answer could
	// be generated. The result still carries the context and its sources.
	OutcomeGenerationFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeInsufficientInformation:
		return "insufficient_information"
	case OutcomeGenerationFailed:
		return "generation_failed"
	default:
		return "unknown"
	}
}

// Diagnostics describes how a query was processed. It is meant for logs and
// debugging tools, not for end users.
type Diagnostics struct {
	CollectionsAttempted []CollectionID
	CollectionsFound     []CollectionID
	CollectionsNotFound  []CollectionID
	CollectionsEmpty     []CollectionID
	CollectionErrors     map[CollectionID]string
	DocumentsScanned     int
	TopSimilarities      []float64
	EmbeddingError       string

	Escalated     bool
	StrategiesRun []string

	CandidatesConsidered int
	DocumentsUsed        int
	BelowThreshold       bool // marginal candidates were used because none met the minimum confidence
}

// AnswerResult is the outcome of a single question.
type AnswerResult struct {
	Outcome             Outcome
	Answer              string
	Confidence          float64
	Sources             []string       // distinct source filenames (collection name when unknown)
	SourceCollections   []CollectionID // distinct collections the used context came from
	CollectionsSearched []CollectionID
	DocumentsUsed       int
	Role                Role
	Context             string // the documents sent to the generator
	Diagnostics         Diagnostics
}

// Insufficient reports whether the result carries no answer.
func (r *AnswerResult) Insufficient() bool {
	return r.Outcome == OutcomeInsufficientInformation
}
