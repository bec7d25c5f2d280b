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

package clearance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/poiesic/clearance/access"
	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/ai/openai"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/ingestion"
	"github.com/poiesic/clearance/query"
	"github.com/poiesic/clearance/reembed"
	"github.com/poiesic/clearance/storage"
	"github.com/poiesic/clearance/storage/badger"
)

// ErrNoCredentials is returned by Authenticate when no access file with
// password hashes was configured.
var ErrNoCredentials = errors.New("no credentials configured")

// previewLength is the number of characters shown per sample chunk.
const previewLength = 100

// Assistant wires storage, the model provider and the role registry into a
// query engine. It is the entry point used by the command line tool.
type Assistant struct {
	backend  *badger.Backend
	chunks   *badger.ChunkRepository
	manifest *badger.ManifestRepository
	provider ai.AIProvider
	registry access.Registry
	auth     *access.Authenticator
	engine   *query.Engine
	logger   *slog.Logger
}

// Option configures an Assistant.
type Option func(*options)

type options struct {
	aiConfig    *ai.Config
	queryConfig *query.Config
	provider    ai.AIProvider
	registry    access.Registry
	auth        *access.Authenticator
	inMemory    bool
	engineOpts  []query.Option
}

// WithAIConfig sets the model provider configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = config
	}
}

// WithAIProvider supplies a ready provider instead of building an
// OpenAI-compatible one. The Assistant closes it on Close.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithQueryConfig sets retrieval, assembly and generation tuning.
func WithQueryConfig(config *query.Config) Option {
	return func(o *options) {
		o.queryConfig = config
	}
}

// WithAccess sets the role registry and, optionally, the authenticator.
// Default is the built-in registry with no credentials.
func WithAccess(registry access.Registry, auth *access.Authenticator) Option {
	return func(o *options) {
		o.registry = registry
		o.auth = auth
	}
}

// WithInMemory keeps all data in memory. The path given to NewAssistant is ignored.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithEngineOptions passes options through to the query engine.
func WithEngineOptions(opts ...query.Option) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// NewAssistant opens the store at filePath and builds the query engine.
func NewAssistant(filePath string, opts ...Option) (*Assistant, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = access.DefaultRegistry()
	}

	backend, err := badger.OpenBackend(filePath, o.inMemory)
	if err != nil {
		return nil, err
	}

	chunks, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		aiConfig := o.aiConfig
		if aiConfig == nil {
			aiConfig = ai.DefaultConfig()
		}
		provider, err = openai.NewProvider(aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	engine, err := query.NewEngine(o.registry, chunks, provider, o.queryConfig, o.engineOpts...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Assistant{
		backend:  backend,
		chunks:   chunks,
		manifest: badger.NewManifestRepository(backend),
		provider: provider,
		registry: o.registry,
		auth:     o.auth,
		engine:   engine,
		logger:   slog.Default().With("component", "assistant"),
	}, nil
}

// Close releases the provider and the store.
func (a *Assistant) Close() error {
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}
	if err := a.chunks.Close(); err != nil {
		a.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// AnswerQuery answers question for identity. See query.Engine.AnswerQuery.
func (a *Assistant) AnswerQuery(ctx context.Context, identity, question string, maxResults int) (*core.AnswerResult, error) {
	return a.engine.AnswerQuery(ctx, identity, question, maxResults)
}

// Retrieve runs retrieval and assembly without generation.
func (a *Assistant) Retrieve(ctx context.Context, identity, question string, maxResults int) (*query.Report, error) {
	return a.engine.Retrieve(ctx, identity, question, maxResults)
}

// HasCredentials reports whether the access configuration holds password hashes.
func (a *Assistant) HasCredentials() bool {
	return a.auth != nil && a.auth.HasCredentials()
}

// Authenticate verifies a password and returns the identity's role.
func (a *Assistant) Authenticate(identity, password string) (core.Role, error) {
	if !a.HasCredentials() {
		return "", ErrNoCredentials
	}
	return a.auth.Authenticate(identity, password)
}

// Registry returns the role registry queries are checked against.
func (a *Assistant) Registry() access.Registry {
	return a.registry
}

// ChunkRepository returns the underlying chunk store.
func (a *Assistant) ChunkRepository() storage.ChunkRepository {
	return a.chunks
}

// NewIngestionPipeline creates a pipeline writing into this assistant's store.
func (a *Assistant) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(a.chunks, a.manifest, a.provider, opts...)
}

// NewReembedder creates a reembedder using this assistant's embedder.
func (a *Assistant) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(a.chunks, a.provider.Embedder(), config, progress)
}

// Sample is a short preview of a stored chunk.
type Sample struct {
	Source  string
	Preview string
}

// CollectionStatus describes one stored collection.
type CollectionStatus struct {
	Name    core.CollectionID
	Count   int
	Samples []Sample
}

// Collections lists every stored collection with its chunk count and up
// to samples previews.
func (a *Assistant) Collections(ctx context.Context, samples int) ([]CollectionStatus, error) {
	collections, err := a.chunks.Collections(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]CollectionStatus, 0, len(collections))
	for _, c := range collections {
		status := CollectionStatus{Name: c.Name}
		err := a.chunks.ForEachChunk(ctx, c.Name, 0, func(batch []*core.Chunk) error {
			status.Count = len(batch)
			for _, chunk := range batch[:min(samples, len(batch))] {
				status.Samples = append(status.Samples, Sample{
					Source:  chunk.Source(),
					Preview: preview(chunk.Content, previewLength),
				})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Health reports whether storage is reachable and which collections exist.
type Health struct {
	StorageOK   bool
	Error       string
	Collections map[core.CollectionID]int
	Missing     []core.CollectionID // named by the registry but never created
}

// Health checks the store and compares it with the registry.
func (a *Assistant) Health(ctx context.Context) *Health {
	h := &Health{Collections: make(map[core.CollectionID]int)}

	collections, err := a.chunks.Collections(ctx)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.StorageOK = true
	for _, c := range collections {
		n, err := a.chunks.Count(ctx, c.Name)
		if err != nil {
			h.StorageOK = false
			h.Error = err.Error()
			return h
		}
		h.Collections[c.Name] = n
	}

	if u, ok := a.registry.(interface{ Universe() []core.CollectionID }); ok {
		for _, name := range u.Universe() {
			if _, exists := h.Collections[name]; !exists {
				h.Missing = append(h.Missing, name)
			}
		}
	}
	return h
}

// preview shortens s to at most limit runes, adding "..." when cut.
func preview(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
