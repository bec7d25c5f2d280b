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


package assembly

import (
	"errors"
	"strings"
)

// Config holds the answer policy.
type Config struct {
	// MinConfidence is the score a candidate needs to be used as context.
	// Default: 0.15
	MinConfidence float64

	// FallbackTopN is how many unfiltered candidates are used when none reach
	// MinConfidence. Zero disables the fallback.
	// Default: 5
	FallbackTopN int

	// MaxDocuments caps the documents placed in the context.
	// Default: 5
	MaxDocuments int

	// MaxContentLength caps each document body, in characters.
	// Default: 1000
	MaxContentLength int

	// Organization is named in the system prompt.
	// Default: "FinSolve Technologies"
	Organization string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithMinConfidence sets the minimum candidate score.
func WithMinConfidence(v float64) ConfigOption {
	return func(c *Config) {
		c.MinConfidence = v
	}
}

// WithFallbackTopN sets how many marginal candidates may be used.
func WithFallbackTopN(n int) ConfigOption {
	return func(c *Config) {
		c.FallbackTopN = n
	}
}

// WithMaxDocuments sets the context document cap.
func WithMaxDocuments(n int) ConfigOption {
	return func(c *Config) {
		c.MaxDocuments = n
	}
}

// WithMaxContentLength sets the per-document character cap.
func WithMaxContentLength(n int) ConfigOption {
	return func(c *Config) {
		c.MaxContentLength = n
	}
}

// WithOrganization sets the organisation named in prompts.
func WithOrganization(name string) ConfigOption {
	return func(c *Config) {
		c.Organization = name
	}
}

// DefaultConfig returns a Config with the default policy.
func DefaultConfig() *Config {
	return &Config{
		MinConfidence:    0.15,
		FallbackTopN:     5,
		MaxDocuments:     5,
		MaxContentLength: 1000,
		Organization:     "FinSolve Technologies",
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

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	c.Organization = strings.TrimSpace(c.Organization)

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("assembly config: MinConfidence must be between 0 and 1")
	}
	if c.FallbackTopN < 0 {
		return errors.New("assembly config: FallbackTopN cannot be negative")
	}
	if c.MaxDocuments <= 0 {
		return errors.New("assembly config: MaxDocuments must be positive")
	}
	if c.MaxContentLength <= 0 {
		return errors.New("assembly config: MaxContentLength must be positive")
	}
	if c.Organization == "" {
		return errors.New("assembly config: Organization is required")
	}
	return nil
}
