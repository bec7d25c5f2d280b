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


package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/clearance/access"
	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/assembly"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/retrieval"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/poiesic/clearance/query"

// Report is the retrieval half of a query, without generation.
type Report struct {
	Role        core.Role
	Collections []core.CollectionID
	Candidates  []core.Candidate
	Context     *assembly.Context
	Diagnostics core.Diagnostics
}

// Engine answers questions on behalf of an identity, using only the
// collections the identity's role may read.
type Engine struct {
	registry  access.Registry
	cascade   *retrieval.Cascade
	assembler *assembly.Assembler
	generator ai.Generator
	config    *Config

	logger           *slog.Logger
	tracer           trace.Tracer
	observer         StateObserver
	retrievalMonitor retrieval.Monitor
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used for query spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) error {
		if tracer == nil {
			tracer = otel.Tracer(tracerName)
		}
		e.tracer = tracer
		return nil
	}
}

// WithStateObserver registers a callback for state transitions.
func WithStateObserver(observer StateObserver) Option {
	return func(e *Engine) error {
		e.observer = observer
		return nil
	}
}

// WithRetrievalMonitor installs hooks on the retrieval cascade.
func WithRetrievalMonitor(monitor retrieval.Monitor) Option {
	return func(e *Engine) error {
		e.retrievalMonitor = monitor
		return nil
	}
}

// NewEngine creates a query engine. A nil config selects DefaultConfig().
func NewEngine(registry access.Registry, store retrieval.Store, provider ai.AIProvider, config *Config, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		registry:  registry,
		generator: provider.Generator(),
		config:    config,
		logger:    slog.Default().With("component", "query-engine"),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	cascade, err := retrieval.New(store, provider.Embedder(), config.Retrieval,
		retrieval.WithLogger(e.logger),
		retrieval.WithMonitor(e.retrievalMonitor),
		retrieval.WithTracer(e.tracer),
	)
	if err != nil {
		return nil, err
	}
	assembler, err := assembly.NewAssembler(config.Assembly, assembly.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	e.cascade = cascade
	e.assembler = assembler
	return e, nil
}

// AnswerQuery resolves identity to a role, retrieves from the role's
// collections, assembles context and generates an answer.
//
// Access errors wrap core.ErrAccessDenied and stop before any retrieval.
// Finding nothing relevant is not an error: the result has
// OutcomeInsufficientInformation and zero confidence. When generation fails
// the result carries the context, sources and confidence alongside an error
// wrapping ai.ErrGenerationUnavailable.
func (e *Engine) AnswerQuery(ctx context.Context, identity, question string, maxResults int) (*core.AnswerResult, error) {
	ctx, span := e.tracer.Start(ctx, "clearance.query.answer", trace.WithAttributes(
		attribute.Int("max_results", maxResults),
	))
	defer span.End()

	report, err := e.retrieve(ctx, identity, question, maxResults, span)
	if err != nil {
		return nil, err
	}

	result := &core.AnswerResult{
		Role:                report.Role,
		CollectionsSearched: report.Collections,
		Diagnostics:         report.Diagnostics,
	}

	ac := report.Context
	if ac.Insufficient() {
		result.Outcome = core.OutcomeInsufficientInformation
		result.Answer = ac.Message
		e.transition(StateInsufficientInformation)
		e.finish(span, result)
		return result, nil
	}

	result.Confidence = ac.Confidence
	result.Sources = ac.Sources
	result.SourceCollections = ac.Collections
	result.DocumentsUsed = len(ac.Documents)
	result.Context = ac.Text()

	answer, err := e.generate(ctx, ac, question)
	if err != nil {
		result.Outcome = core.OutcomeGenerationFailed
		e.transition(StateGenerationFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("answer generation failed", "role", report.Role, "err", err)
		e.finish(span, result)
		return result, err
	}

	result.Outcome = core.OutcomeAnswered
	result.Answer = answer
	e.transition(StateAnswered)
	e.finish(span, result)
	return result, nil
}

// Retrieve runs everything up to and including assembly, without calling
// the generator.
func (e *Engine) Retrieve(ctx context.Context, identity, question string, maxResults int) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "clearance.query.retrieve")
	defer span.End()
	return e.retrieve(ctx, identity, question, maxResults, span)
}

func (e *Engine) retrieve(ctx context.Context, identity, question string, maxResults int, span trace.Span) (*Report, error) {
	e.transition(StateUnauthenticated)
	role, err := e.registry.Authorize(identity)
	if err != nil {
		span.SetStatus(codes.Error, "access denied")
		e.logger.Warn("query rejected: unknown identity")
		return nil, err
	}
	e.transition(StateAuthenticated)
	span.SetAttributes(attribute.String("role", string(role)))

	collections := e.registry.CollectionsFor(role)
	if len(collections) == 0 {
		span.SetStatus(codes.Error, "access denied")
		e.logger.Warn("query rejected: role has no collections", "role", role)
		return nil, fmt.Errorf("%w: %w: role %q", core.ErrAccessDenied, core.ErrNoCollections, role)
	}
	e.transition(StateCollectionsResolved)

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if maxResults <= 0 {
		maxResults = e.config.DefaultMaxResults
	}

	e.transition(StateRetrieving)
	res, err := e.cascade.Run(ctx, retrieval.Request{
		Query:       question,
		Role:        role,
		Collections: collections,
		TopK:        maxResults,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res.Diagnostics.Escalated {
		e.transition(StateEscalating)
		e.transition(StateFallbackRetrieving)
	}
	if len(res.Candidates) > 0 {
		e.transition(StateSufficient)
	}

	e.transition(StateAssembling)
	ac := e.assembler.Assemble(res.Candidates, role)

	diag := res.Diagnostics
	diag.CandidatesConsidered = ac.Considered
	diag.DocumentsUsed = len(ac.Documents)
	diag.BelowThreshold = ac.BelowThreshold

	return &Report{
		Role:        role,
		Collections: collections,
		Candidates:  res.Candidates,
		Context:     ac,
		Diagnostics: diag,
	}, nil
}

func (e *Engine) generate(ctx context.Context, ac *assembly.Context, question string) (string, error) {
	if e.config.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.GenerateTimeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := e.generator.Generate(ctx,
		e.assembler.SystemPrompt(ac.Role),
		e.assembler.UserPrompt(ac, question),
	)
	if err != nil {
		if !errors.Is(err, ai.ErrGenerationUnavailable) {
			err = fmt.Errorf("%w: %w", ai.ErrGenerationUnavailable, err)
		}
		return "", err
	}
	e.logger.Debug("answer generated", "elapsed", time.Since(start), "length", len(answer))
	return answer, nil
}

func (e *Engine) transition(s State) {
	if e.observer != nil {
		e.observer(s)
	}
}

func (e *Engine) finish(span trace.Span, result *core.AnswerResult) {
	span.SetAttributes(
		attribute.String("outcome", result.Outcome.String()),
		attribute.Float64("confidence", result.Confidence),
		attribute.Int("documents_used", result.DocumentsUsed),
		attribute.Bool("escalated", result.Diagnostics.Escalated),
	)
	e.logger.Info("query finished",
		"role", result.Role,
		"outcome", result.Outcome,
		"confidence", result.Confidence,
		"documents", result.DocumentsUsed,
		"escalated", result.Diagnostics.Escalated)
}
