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
	"errors"
	"time"

	"github.com/poiesic/clearance/assembly"
	"github.com/poiesic/clearance/retrieval"
)

// Config holds the query pipeline configuration.
type Config struct {
	// DefaultMaxResults is used when a caller passes zero max results.
	// Default: 10
	DefaultMaxResults int

	// GenerateTimeout bounds the answer generation call. Zero disables it.
	// Default: 60s
	GenerateTimeout time.Duration

	// Retrieval configures the strategy cascade.
	Retrieval *retrieval.Config

	// Assembly configures the answer policy.
	Assembly *assembly.Config
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDefaultMaxResults sets the fallback result count.
func WithDefaultMaxResults(n int) ConfigOption {
	return func(c *Config) {
		c.DefaultMaxResults = n
	}
}

// WithGenerateTimeout sets the generation timeout.
func WithGenerateTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.GenerateTimeout = d
	}
}

// WithRetrievalConfig replaces the retrieval configuration.
func WithRetrievalConfig(cfg *retrieval.Config) ConfigOption {
	return func(c *Config) {
		c.Retrieval = cfg
	}
}

// WithAssemblyConfig replaces the assembly configuration.
func WithAssemblyConfig(cfg *assembly.Config) ConfigOption {
	return func(c *Config) {
		c.Assembly = cfg
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DefaultMaxResults: 10,
		GenerateTimeout:   60 * time.Second,
		Retrieval:         retrieval.DefaultConfig(),
		Assembly:          assembly.DefaultConfig(),
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

// Validate checks the configuration, including the nested ones.
func (c *Config) Validate() error {
	if c.DefaultMaxResults <= 0 {
		return errors.New("query config: DefaultMaxResults must be positive")
	}
	if c.GenerateTimeout < 0 {
		return errors.New("query config: GenerateTimeout cannot be negative")
	}
	if c.Retrieval == nil {
		c.Retrieval = retrieval.DefaultConfig()
	}
	if c.Assembly == nil {
		c.Assembly = assembly.DefaultConfig()
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	return c.Assembly.Validate()
}
