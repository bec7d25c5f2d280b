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
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/clearance/core"
)

const truncationMarker = "..."

// Document is one candidate prepared for the prompt.
type Document struct {
	Content    string
	Source     string
	Collection core.CollectionID
	Score      float64
	Method     core.Method
	Truncated  bool
}

// Context is the assembled, generation-ready evidence for one question.
type Context struct {
	Role           core.Role
	Documents      []Document
	Confidence     float64
	Sources        []string
	Collections    []core.CollectionID
	Considered     int  // candidates offered to the assembler
	BelowThreshold bool // documents were taken from below MinConfidence
	Message        string
}

// Insufficient reports whether nothing usable was found.
func (c *Context) Insufficient() bool {
	return len(c.Documents) == 0
}

// Assembler turns retrieval candidates into a prompt context.
// It performs no I/O and is safe for concurrent use.
type Assembler struct {
	config *Config
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAssembler creates an assembler. A nil config selects DefaultConfig().
func NewAssembler(config *Config, opts ...Option) (*Assembler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &Assembler{
		config: config,
		logger: slog.Default().With("component", "assembler"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Assemble applies the confidence policy to candidates.
//
// Candidates scoring below MinConfidence are dropped. If that drops all of
// them, the best FallbackTopN are used anyway and BelowThreshold is set. Up to
// MaxDocuments survivors become documents and the confidence is the mean of
// their scores. With no candidates at all the context is insufficient, has
// zero confidence and carries a message naming the role.
func (a *Assembler) Assemble(candidates []core.Candidate, role core.Role) *Context {
	out := &Context{Role: role, Considered: len(candidates)}

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(x, y core.Candidate) int {
		return cmp.Compare(y.Score, x.Score)
	})

	selected := make([]core.Candidate, 0, len(ranked))
	for _, c := range ranked {
		if c.Score >= a.config.MinConfidence {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 && len(ranked) > 0 && a.config.FallbackTopN > 0 {
		selected = ranked[:min(a.config.FallbackTopN, len(ranked))]
		out.BelowThreshold = true
		a.logger.Warn("using candidates below confidence threshold",
			"threshold", a.config.MinConfidence, "best", ranked[0].Score)
	}

	if len(selected) == 0 {
		out.Message = InsufficientMessage(role)
		a.logger.Info("no usable candidates", "role", role, "considered", len(candidates))
		return out
	}

	if len(selected) > a.config.MaxDocuments {
		selected = selected[:a.config.MaxDocuments]
	}

	var total float64
	for _, c := range selected {
		content, truncated := truncate(strings.TrimSpace(c.Content), a.config.MaxContentLength)
		source := c.Source()
		if source == "" {
			source = string(c.Collection)
		}

		out.Documents = append(out.Documents, Document{
			Content:    content,
			Source:     source,
			Collection: c.Collection,
			Score:      c.Score,
			Method:     c.Method,
			Truncated:  truncated,
		})
		if !slices.Contains(out.Sources, source) {
			out.Sources = append(out.Sources, source)
		}
		if !slices.Contains(out.Collections, c.Collection) {
			out.Collections = append(out.Collections, c.Collection)
		}
		total += c.Score
	}
	out.Confidence = clamp01(total / float64(len(selected)))

	a.logger.Debug("context assembled",
		"documents", len(out.Documents),
		"confidence", out.Confidence,
		"below_threshold", out.BelowThreshold)
	return out
}

// InsufficientMessage is the user-facing explanation for an empty context.
func InsufficientMessage(role core.Role) string {
	return fmt.Sprintf("I don't have access to relevant information in your authorized document collections (%s role) to answer this question. Please check if:\n"+
		"1. The question relates to your department's domain\n"+
		"2. The relevant documents have been uploaded to the system\n"+
		"3. You have the necessary permissions to access this information", role)
}

// truncate limits s to limit characters, appending a marker when shortened.
func truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]) + truncationMarker, true
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
