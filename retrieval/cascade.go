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
	"context"
	"slices"

	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Request is the input to a retrieval strategy.
type Request struct {
	Query       string
	Role        core.Role
	Collections []core.CollectionID // authorized collections, never widened by a strategy
	TopK        int                 // zero selects the strategy default
}

// Strategy is one way of finding candidates.
type Strategy interface {
	Name() string

	// Applies reports whether the strategy may run for req.
	Applies(req *Request) bool

	// Search returns candidates drawn only from req.Collections, recording
	// skipped collections in diag. The error is non-nil only when ctx is done.
	Search(ctx context.Context, req *Request, diag *core.Diagnostics) ([]core.Candidate, error)
}

// Gate decides whether a fallback stage runs given the current candidates.
type Gate func(current []core.Candidate) bool

// BelowThreshold opens when there are no candidates or every candidate
// scores below threshold.
func BelowThreshold(threshold float64) Gate {
	return func(current []core.Candidate) bool {
		for _, c := range current {
			if c.Score >= threshold {
				return false
			}
		}
		return true
	}
}

// Stage pairs a strategy with the gate that admits it.
type Stage struct {
	Strategy Strategy
	Gate     Gate // nil always admits
}

// Result is the output of a cascade run.
type Result struct {
	Candidates  []core.Candidate
	Diagnostics core.Diagnostics
}

// Cascade runs an ordered list of strategies. The first stage always runs.
// Later stages are fallbacks: each runs at most once, only while its gate is
// open, and replaces the current candidates when it finds any. If fallbacks
// ran and none found anything, the primary candidates are discarded.
type Cascade struct {
	stages []Stage
	settings
}

// NewCascade creates a cascade over stages.
func NewCascade(stages []Stage, opts ...Option) (*Cascade, error) {
	if len(stages) == 0 {
		return nil, ErrNoStrategies
	}
	for _, s := range stages {
		if s.Strategy == nil {
			return nil, ErrNoStrategies
		}
	}

	c := &Cascade{
		stages:   slices.Clone(stages),
		settings: defaultSettings("cascade"),
	}
	if err := c.apply(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Store is what the standard cascade needs from storage.
type Store interface {
	storage.VectorIndex
	storage.ChunkLister
}

// New builds the standard cascade: semantic search, then lexical matching,
// then each configured domain boost, all gated on config.EscalationThreshold.
func New(store Store, embedder ai.Embedder, config *Config, opts ...Option) (*Cascade, error) {
	if store == nil {
		return nil, ErrIndexRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	semantic, err := NewRetriever(store, embedder, config, opts...)
	if err != nil {
		return nil, err
	}
	lexical, err := NewLexicalMatcher(store, config, opts...)
	if err != nil {
		return nil, err
	}

	gate := BelowThreshold(config.EscalationThreshold)
	stages := []Stage{{Strategy: semantic}, {Strategy: lexical, Gate: gate}}
	for _, boost := range config.DomainBoosts {
		domain, err := NewDomainMatcher(store, boost, opts...)
		if err != nil {
			return nil, err
		}
		stages = append(stages, Stage{Strategy: domain, Gate: gate})
	}

	return NewCascade(stages, opts...)
}

// Run executes the cascade for req.
func (c *Cascade) Run(ctx context.Context, req Request) (*Result, error) {
	req.Collections = uniqueCollections(req.Collections)
	result := &Result{}
	diag := &result.Diagnostics

	c.monitor.Start(req.Query, req.Collections)
	if len(req.Collections) == 0 {
		c.monitor.Finish(nil, diag)
		return result, nil
	}

	ctx, span := c.tracer.Start(ctx, "clearance.retrieval.cascade", trace.WithAttributes(
		attribute.String("role", string(req.Role)),
		attribute.Int("collections", len(req.Collections)),
	))
	defer span.End()

	var current []core.Candidate
	escalated, recovered := false, false

	for i, stage := range c.stages {
		if i > 0 {
			if stage.Gate != nil && !stage.Gate(current) {
				continue
			}
			if !stage.Strategy.Applies(&req) {
				continue
			}
			if !escalated {
				escalated = true
				diag.Escalated = true
				c.monitor.Escalated(bestScore(current), len(current))
				c.logger.Info("low confidence, escalating to fallback strategies",
					"best", bestScore(current), "candidates", len(current))
			}
		}

		found, err := stage.Strategy.Search(ctx, &req, diag)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		name := stage.Strategy.Name()
		diag.StrategiesRun = append(diag.StrategiesRun, name)
		c.monitor.StrategyFinished(name, found)

		if i == 0 {
			current = found
			continue
		}
		if len(found) > 0 {
			current = found
			recovered = true
		}
	}

	if escalated && !recovered {
		c.logger.Info("fallback strategies found nothing, dropping low confidence candidates", "dropped", len(current))
		current = nil
	}

	result.Candidates = c.authorizedOnly(current, req.Collections)
	span.SetAttributes(
		attribute.Bool("escalated", escalated),
		attribute.Int("candidates", len(result.Candidates)),
	)
	c.monitor.Finish(result.Candidates, diag)
	return result, nil
}

// authorizedOnly drops any candidate from a collection outside allowed.
func (c *Cascade) authorizedOnly(candidates []core.Candidate, allowed []core.CollectionID) []core.Candidate {
	kept := candidates[:0]
	for _, cand := range candidates {
		if slices.Contains(allowed, cand.Collection) {
			kept = append(kept, cand)
			continue
		}
		c.logger.Error("dropping candidate from unauthorized collection", "collection", cand.Collection)
	}
	return kept
}

func bestScore(candidates []core.Candidate) float64 {
	best := 0.0
	for _, c := range candidates {
		best = max(best, c.Score)
	}
	return best
}
