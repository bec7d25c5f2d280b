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


package ai

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingEmbedder keeps recent query embeddings in an LRU cache.
//
// Keys combine the embedding model with the exact text, so vectors from a
// previous model are never served after a model change. Batch embedding
// (used by ingestion) is passed through uncached.
type CachingEmbedder struct {
	next  Embedder
	model string
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder wraps next with a cache of the given size.
func NewCachingEmbedder(next Embedder, model string, size int) (*CachingEmbedder, error) {
	if next == nil {
		return nil, ErrEmbedderRequired
	}
	if model == "" {
		return nil, errors.New("ai: cache requires an embedding model name")
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachingEmbedder{next: next, model: model, cache: cache}, nil
}

// EmbedText returns a cached vector when one exists for this model and text.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.cache.Get(key); ok {
		return clone(v), nil
	}

	v, err := c.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) > 0 {
		c.cache.Add(key, clone(v))
	}
	return v, nil
}

// EmbedTexts delegates to the wrapped embedder.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedTexts(ctx, texts)
}

// Len returns the number of cached vectors.
func (c *CachingEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachingEmbedder) key(text string) string {
	return c.model + "\x00" + text
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
