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
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LexicalMatcher scores raw chunks by keyword overlap with the query.
// It reads chunks directly from the collection store and never touches the vector index.
type LexicalMatcher struct {
	lister        storage.ChunkLister
	minScore      float64
	limit         int
	dropStopWords bool
	settings
}

var _ Strategy = (*LexicalMatcher)(nil)

// NewLexicalMatcher creates a lexical matcher. A nil config selects DefaultConfig().
func NewLexicalMatcher(lister storage.ChunkLister, config *Config, opts ...Option) (*LexicalMatcher, error) {
	if lister == nil {
		return nil, ErrListerRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &LexicalMatcher{
		lister:        lister,
		minScore:      config.LexicalMinScore,
		limit:         config.LexicalCap,
		dropStopWords: config.IgnoreStopWords,
		settings:      defaultSettings("lexical-matcher"),
	}
	if err := m.apply(opts); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements Strategy.
func (m *LexicalMatcher) Name() string {
	return "lexical"
}

// Applies implements Strategy.
func (m *LexicalMatcher) Applies(_ *Request) bool {
	return true
}

// Search implements Strategy using the configured minimum score.
func (m *LexicalMatcher) Search(ctx context.Context, req *Request, diag *core.Diagnostics) ([]core.Candidate, error) {
	return m.scan(ctx, req.Query, req.Collections, m.minScore, diag)
}

// Match returns chunks from collections whose keyword overlap with query
// exceeds minScore, best first, capped at the configured limit.
func (m *LexicalMatcher) Match(ctx context.Context, query string, collections []core.CollectionID, minScore float64) ([]core.Candidate, error) {
	return m.scan(ctx, query, collections, minScore, nil)
}

func (m *LexicalMatcher) scan(ctx context.Context, query string, collections []core.CollectionID, minScore float64, diag *core.Diagnostics) ([]core.Candidate, error) {
	tokens := tokenize(query, m.dropStopWords)
	if len(tokens) == 0 || len(collections) == 0 {
		return nil, nil
	}

	ctx, span := m.tracer.Start(ctx, "clearance.retrieval.lexical", trace.WithAttributes(
		attribute.Int("collections", len(collections)),
		attribute.Int("tokens", len(tokens)),
	))
	defer span.End()

	var results []core.Candidate
	for _, collection := range uniqueCollections(collections) {
		chunks, err := listChunks(ctx, m.lister, collection)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.recordFailure(collection, err, diag)
			continue
		}

		for rank, chunk := range chunks {
			score := overlap(strings.ToLower(chunk.Content), tokens)
			if score <= minScore {
				continue
			}
			results = append(results, newLexicalCandidate(chunk, collection, clamp01(score), rank))
		}
	}

	results = sortByScore(results, m.limit)
	span.SetAttributes(attribute.Int("candidates", len(results)))
	m.logger.Debug("lexical scan finished", "tokens", len(tokens), "candidates", len(results))
	return results, nil
}

func (m *LexicalMatcher) recordFailure(collection core.CollectionID, err error, diag *core.Diagnostics) {
	if errors.Is(err, storage.ErrCollectionNotFound) {
		m.logger.Debug("collection not found, skipping", "collection", collection)
		m.monitor.CollectionSkipped(collection, skipNotFound)
		return
	}
	m.logger.Warn("failed to list chunks", "collection", collection, "err", err)
	m.monitor.CollectionSkipped(collection, err.Error())
	recordCollectionError(diag, collection, fmt.Errorf("lexical: %w", err))
}

// DomainMatcher boosts keyword-dense documents of a single collection for a single role.
type DomainMatcher struct {
	lister storage.ChunkLister
	boost  DomainBoost
	settings
}

var _ Strategy = (*DomainMatcher)(nil)

// NewDomainMatcher creates a domain keyword matcher for boost.
func NewDomainMatcher(lister storage.ChunkLister, boost DomainBoost, opts ...Option) (*DomainMatcher, error) {
	if lister == nil {
		return nil, ErrListerRequired
	}
	boost.Keywords = slices.Clone(boost.Keywords)
	boost.normalize()
	if err := boost.validate(); err != nil {
		return nil, err
	}

	m := &DomainMatcher{
		lister:   lister,
		boost:    boost,
		settings: defaultSettings("domain-matcher"),
	}
	if err := m.apply(opts); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements Strategy.
func (m *DomainMatcher) Name() string {
	return "domain:" + string(m.boost.Collection)
}

// Applies reports whether the caller has the boost's role and may read its collection.
func (m *DomainMatcher) Applies(req *Request) bool {
	return req.Role == m.boost.Role && slices.Contains(req.Collections, m.boost.Collection)
}

// Search implements Strategy. A document qualifies when it contains any
// domain keyword or any query word; its score grows with the keyword count.
func (m *DomainMatcher) Search(ctx context.Context, req *Request, diag *core.Diagnostics) ([]core.Candidate, error) {
	if !m.Applies(req) {
		return nil, nil
	}

	ctx, span := m.tracer.Start(ctx, "clearance.retrieval.domain", trace.WithAttributes(
		attribute.String("collection", string(m.boost.Collection)),
	))
	defer span.End()

	chunks, err := listChunks(ctx, m.lister, m.boost.Collection)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, storage.ErrCollectionNotFound) {
			m.monitor.CollectionSkipped(m.boost.Collection, skipNotFound)
			return nil, nil
		}
		m.logger.Warn("failed to list chunks", "collection", m.boost.Collection, "err", err)
		m.monitor.CollectionSkipped(m.boost.Collection, err.Error())
		recordCollectionError(diag, m.boost.Collection, fmt.Errorf("domain: %w", err))
		return nil, nil
	}

	words := tokenize(req.Query, false)
	var results []core.Candidate
	for rank, chunk := range chunks {
		doc := strings.ToLower(chunk.Content)
		matches := countContained(doc, m.boost.Keywords)
		if matches == 0 && countContained(doc, words) == 0 {
			continue
		}
		score := min(float64(matches)*m.boost.PerMatch+m.boost.BaseScore, 1)
		results = append(results, newLexicalCandidate(chunk, m.boost.Collection, clamp01(score), rank))
	}

	results = sortByScore(results, m.boost.Cap)
	span.SetAttributes(attribute.Int("candidates", len(results)))
	return results, nil
}

func listChunks(ctx context.Context, lister storage.ChunkLister, collection core.CollectionID) ([]*core.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return lister.ListChunks(ctx, collection)
}

func newLexicalCandidate(chunk *core.Chunk, collection core.CollectionID, score float64, rank int) core.Candidate {
	return core.Candidate{
		Content:    chunk.Content,
		Score:      score,
		Collection: collection,
		Metadata:   maps.Clone(chunk.Metadata),
		Method:     core.MethodLexical,
		Rank:       rank,
	}
}

func sortByScore(candidates []core.Candidate, limit int) []core.Candidate {
	slices.SortStableFunc(candidates, func(a, b core.Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func recordCollectionError(diag *core.Diagnostics, collection core.CollectionID, err error) {
	if diag == nil {
		return
	}
	if diag.CollectionErrors == nil {
		diag.CollectionErrors = make(map[core.CollectionID]string)
	}
	if _, exists := diag.CollectionErrors[collection]; !exists {
		diag.CollectionErrors[collection] = err.Error()
	}
}
