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


package retrieval

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// topSimilarityCount is how many leading scores are kept in diagnostics.
const topSimilarityCount = 5

type collectionStatus int

const (
	statusFound collectionStatus = iota
	statusNotFound
	statusEmpty
	statusFailed
)

type collectionResult struct {
	status     collectionStatus
	size       int
	candidates []core.Candidate
	err        error
}

// Retriever performs semantic search across a set of collections.
type Retriever struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	config   *Config
	settings
}

var _ Strategy = (*Retriever)(nil)

// NewRetriever creates a semantic retriever. A nil config selects DefaultConfig().
func NewRetriever(index storage.VectorIndex, embedder ai.Embedder, config *Config, opts ...Option) (*Retriever, error) {
	if index == nil {
		return nil, ErrIndexRequired
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

	r := &Retriever{
		index:    index,
		embedder: embedder,
		config:   config,
		settings: defaultSettings("retriever"),
	}
	if err := r.apply(opts); err != nil {
		return nil, err
	}
	return r, nil
}

// Name implements Strategy.
func (r *Retriever) Name() string {
	return "semantic"
}

// Applies implements Strategy. Semantic search always applies.
func (r *Retriever) Applies(_ *Request) bool {
	return true
}

// Search implements Strategy.
func (r *Retriever) Search(ctx context.Context, req *Request, diag *core.Diagnostics) ([]core.Candidate, error) {
	return r.search(ctx, req.Query, req.Collections, req.TopK, diag)
}

// Retrieve embeds query once and returns the topK most similar chunks across
// collections, highest similarity first. Missing, empty and failing
// collections are skipped and recorded in the diagnostics, as is an embedding
// failure. The error is non-nil only when ctx is done.
func (r *Retriever) Retrieve(ctx context.Context, query string, collections []core.CollectionID, topK int) ([]core.Candidate, *core.Diagnostics, error) {
	diag := &core.Diagnostics{}
	candidates, err := r.search(ctx, query, collections, topK, diag)
	return candidates, diag, err
}

func (r *Retriever) search(ctx context.Context, query string, collections []core.CollectionID, topK int, diag *core.Diagnostics) ([]core.Candidate, error) {
	collections = uniqueCollections(collections)
	diag.CollectionsAttempted = append(diag.CollectionsAttempted, collections...)
	if len(collections) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = r.config.TopK
	}

	ctx, span := r.tracer.Start(ctx, "clearance.retrieval.semantic", trace.WithAttributes(
		attribute.Int("collections", len(collections)),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, ctxErr.Error())
			return nil, ctxErr
		}
		span.RecordError(err)
		diag.EmbeddingError = err.Error()
		r.logger.Warn("query embedding failed, semantic search skipped", "err", err)
		return nil, nil
	}

	results := make([]collectionResult, len(collections))
	var g errgroup.Group
	if r.config.MaxConcurrency > 0 {
		g.SetLimit(r.config.MaxConcurrency)
	}
	for i, collection := range collections {
		g.Go(func() error {
			results[i] = r.queryCollection(ctx, collection, vector, topK)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var merged []core.Candidate
	for i, res := range results {
		collection := collections[i]
		switch res.status {
		case statusNotFound:
			diag.CollectionsNotFound = append(diag.CollectionsNotFound, collection)
			r.logger.Warn("collection not found, skipping", "collection", collection)
			r.monitor.CollectionSkipped(collection, skipNotFound)
			continue
		case statusFailed:
			recordCollectionError(diag, collection, res.err)
			r.logger.Warn("collection query failed, skipping", "collection", collection, "err", res.err)
			r.monitor.CollectionSkipped(collection, res.err.Error())
			continue
		}

		diag.CollectionsFound = append(diag.CollectionsFound, collection)
		if res.status == statusEmpty {
			diag.CollectionsEmpty = append(diag.CollectionsEmpty, collection)
			r.logger.Warn("collection is empty, skipping", "collection", collection)
			r.monitor.CollectionSkipped(collection, skipEmpty)
			continue
		}
		diag.DocumentsScanned += res.size
		merged = append(merged, res.candidates...)
	}

	merged = rankCandidates(merged, topK)

	diag.TopSimilarities = diag.TopSimilarities[:0]
	for i := 0; i < len(merged) && i < topSimilarityCount; i++ {
		diag.TopSimilarities = append(diag.TopSimilarities, merged[i].Score)
	}

	span.SetAttributes(attribute.Int("candidates", len(merged)))
	r.logger.Debug("semantic search finished",
		"collections", len(collections),
		"found", len(diag.CollectionsFound),
		"candidates", len(merged),
		"top", diag.TopSimilarities)

	return merged, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.config.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.EmbedTimeout)
		defer cancel()
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ai.ErrEmbeddingUnavailable
	}
	return vector, nil
}

func (r *Retriever) queryCollection(ctx context.Context, collection core.CollectionID, vector []float32, topK int) collectionResult {
	size, err := r.index.Count(ctx, collection)
	if err != nil {
		return failedResult(err)
	}
	if size == 0 {
		return collectionResult{status: statusEmpty}
	}

	hits, err := r.index.Query(ctx, collection, vector, min(topK, size))
	if err != nil {
		return failedResult(err)
	}

	candidates := make([]core.Candidate, 0, len(hits))
	for rank, hit := range hits {
		if hit.Chunk == nil {
			continue
		}
		candidates = append(candidates, core.Candidate{
			Content:    hit.Chunk.Content,
			Score:      Similarity(hit.Distance),
			Collection: collection,
			Metadata:   maps.Clone(hit.Chunk.Metadata),
			Method:     core.MethodSemantic,
			Rank:       rank,
		})
	}
	return collectionResult{status: statusFound, size: size, candidates: candidates}
}

func failedResult(err error) collectionResult {
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return collectionResult{status: statusNotFound}
	}
	return collectionResult{status: statusFailed, err: err}
}

// rankCandidates sorts by score descending, breaking ties by per-collection
// rank and then by input order, drops repeated content and truncates to limit.
func rankCandidates(candidates []core.Candidate, limit int) []core.Candidate {
	slices.SortStableFunc(candidates, func(a, b core.Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})

	seen := make(map[string]struct{}, len(candidates))
	ranked := candidates[:0]
	for _, c := range candidates {
		if _, dup := seen[c.Content]; dup {
			continue
		}
		seen[c.Content] = struct{}{}
		ranked = append(ranked, c)
	}

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func uniqueCollections(collections []core.CollectionID) []core.CollectionID {
	out := make([]core.CollectionID, 0, len(collections))
	for _, c := range collections {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
