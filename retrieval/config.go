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
	"errors"
	"slices"
	"time"

	"github.com/poiesic/clearance/core"
)

// DomainBoost configures a keyword scan restricted to one collection, run only
// for one role. Documents score BaseScore plus PerMatch for every keyword they
// contain, capped at 1.
type DomainBoost struct {
	Role       core.Role
	Collection core.CollectionID
	Keywords   []string
	BaseScore  float64
	PerMatch   float64
	Cap        int
}

// Config holds the retrieval tuning knobs.
type Config struct {
	// TopK is the default number of candidates returned by semantic search.
	// Default: 10
	TopK int

	// EscalationThreshold is the similarity every semantic candidate must fall
	// below before fallback strategies run.
	// Default: 0.4
	EscalationThreshold float64

	// LexicalMinScore is the keyword overlap a chunk must exceed to be kept.
	// Default: 0.2
	LexicalMinScore float64

	// LexicalCap bounds the number of lexical candidates.
	// Default: 7
	LexicalCap int

	// IgnoreStopWords drops common English words from lexical queries.
	// Default: false
	IgnoreStopWords bool

	// EmbedTimeout bounds the query embedding call. Zero disables the timeout.
	// Default: 30s
	EmbedTimeout time.Duration

	// MaxConcurrency bounds concurrent per-collection index queries.
	// Zero means one goroutine per collection.
	MaxConcurrency int

	// DomainBoosts are the domain keyword strategies, run in order.
	DomainBoosts []DomainBoost
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithTopK sets the default semantic result count.
func WithTopK(k int) ConfigOption {
	return func(c *Config) {
		c.TopK = k
	}
}

// WithEscalationThreshold sets the similarity below which fallbacks run.
func WithEscalationThreshold(t float64) ConfigOption {
	return func(c *Config) {
		c.EscalationThreshold = t
	}
}

// WithLexicalMinScore sets the minimum keyword overlap.
func WithLexicalMinScore(s float64) ConfigOption {
	return func(c *Config) {
		c.LexicalMinScore = s
	}
}

// WithLexicalCap sets the lexical result cap.
func WithLexicalCap(n int) ConfigOption {
	return func(c *Config) {
		c.LexicalCap = n
	}
}

// WithIgnoreStopWords enables stop word filtering for lexical queries.
func WithIgnoreStopWords(ignore bool) ConfigOption {
	return func(c *Config) {
		c.IgnoreStopWords = ignore
	}
}

// WithEmbedTimeout sets the query embedding timeout.
func WithEmbedTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.EmbedTimeout = d
	}
}

// WithMaxConcurrency bounds concurrent collection queries.
func WithMaxConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.MaxConcurrency = n
	}
}

// WithDomainBoosts replaces the domain keyword strategies.
func WithDomainBoosts(boosts ...DomainBoost) ConfigOption {
	return func(c *Config) {
		c.DomainBoosts = boosts
	}
}

// DefaultEngineeringBoost returns the built-in boost for the engineering role.
func DefaultEngineeringBoost() DomainBoost {
	return DomainBoost{
		Role:       "engineering",
		Collection: "engineering_docs",
		Keywords: []string{
			"agile", "methodology", "scrum", "development", "technical",
			"architecture", "software", "engineering", "process", "code",
		},
		BaseScore: 0.3,
		PerMatch:  0.2,
		Cap:       5,
	}
}

// DefaultConfig returns a Config with the default thresholds.
func DefaultConfig() *Config {
	return &Config{
		TopK:                10,
		EscalationThreshold: 0.4,
		LexicalMinScore:     0.2,
		LexicalCap:          7,
		EmbedTimeout:        30 * time.Second,
		DomainBoosts:        []DomainBoost{DefaultEngineeringBoost()},
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize lowercases and dedupes domain keywords.
func (c *Config) Normalize() {
	for i := range c.DomainBoosts {
		c.DomainBoosts[i].normalize()
	}
}

func (b *DomainBoost) normalize() {
	keywords := make([]string, 0, len(b.Keywords))
	for _, k := range b.Keywords {
		k = normalizeToken(k)
		if k != "" && !slices.Contains(keywords, k) {
			keywords = append(keywords, k)
		}
	}
	b.Keywords = keywords
}

func (b DomainBoost) validate() error {
	if err := core.ValidateRole(b.Role); err != nil {
		return err
	}
	if err := core.ValidateCollectionID(b.Collection); err != nil {
		return err
	}
	if len(b.Keywords) == 0 {
		return errors.New("retrieval config: domain boost needs keywords")
	}
	if b.Cap <= 0 {
		return errors.New("retrieval config: domain boost Cap must be positive")
	}
	if b.BaseScore < 0 || b.PerMatch < 0 {
		return errors.New("retrieval config: domain boost scores cannot be negative")
	}
	return nil
}

// Validate checks that the configuration is usable.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.TopK <= 0 {
		return errors.New("retrieval config: TopK must be positive")
	}
	if c.EscalationThreshold < 0 || c.EscalationThreshold > 1 {
		return errors.New("retrieval config: EscalationThreshold must be between 0 and 1")
	}
	if c.LexicalMinScore < 0 || c.LexicalMinScore >= 1 {
		return errors.New("retrieval config: LexicalMinScore must be in [0, 1)")
	}
	if c.LexicalCap <= 0 {
		return errors.New("retrieval config: LexicalCap must be positive")
	}
	if c.EmbedTimeout < 0 {
		return errors.New("retrieval config: EmbedTimeout cannot be negative")
	}
	if c.MaxConcurrency < 0 {
		return errors.New("retrieval config: MaxConcurrency cannot be negative")
	}
	for _, b := range c.DomainBoosts {
		if err := b.validate(); err != nil {
			return err
		}
	}
	return nil
}
