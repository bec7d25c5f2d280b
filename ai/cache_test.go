package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestCachingEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated query hits cache", func(t *testing.T) {
		inner := &countingEmbedder{}
		cached, err := NewCachingEmbedder(inner, "embeddinggemma", 8)
		require.NoError(t, err)

		v1, err := cached.EmbedText(ctx, "leave policy")
		require.NoError(t, err)
		v2, err := cached.EmbedText(ctx, "leave policy")
		require.NoError(t, err)

		assert.Equal(t, v1, v2)
		assert.Equal(t, 1, inner.calls)
		assert.Equal(t, 1, cached.Len())
	})

	t.Run("text must match exactly", func(t *testing.T) {
		inner := &countingEmbedder{}
		cached, err := NewCachingEmbedder(inner, "embeddinggemma", 8)
		require.NoError(t, err)

		_, _ = cached.EmbedText(ctx, "leave policy")
		_, _ = cached.EmbedText(ctx, "Leave policy")

		assert.Equal(t, 2, inner.calls)
	})

	t.Run("callers cannot mutate cached vectors", func(t *testing.T) {
		inner := &countingEmbedder{}
		cached, err := NewCachingEmbedder(inner, "embeddinggemma", 8)
		require.NoError(t, err)

		v, _ := cached.EmbedText(ctx, "abc")
		v[0] = 999
		again, _ := cached.EmbedText(ctx, "abc")

		assert.Equal(t, float32(3), again[0])
	})

	t.Run("errors are not cached", func(t *testing.T) {
		inner := &countingEmbedder{err: errors.New("provider down")}
		cached, err := NewCachingEmbedder(inner, "embeddinggemma", 8)
		require.NoError(t, err)

		_, err = cached.EmbedText(ctx, "q")
		assert.Error(t, err)
		_, err = cached.EmbedText(ctx, "q")
		assert.Error(t, err)
		assert.Equal(t, 2, inner.calls)
		assert.Zero(t, cached.Len())
	})

	t.Run("batch calls bypass cache", func(t *testing.T) {
		inner := &countingEmbedder{}
		cached, err := NewCachingEmbedder(inner, "embeddinggemma", 8)
		require.NoError(t, err)

		_, err = cached.EmbedTexts(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Zero(t, cached.Len())
	})

	t.Run("constructor validation", func(t *testing.T) {
		_, err := NewCachingEmbedder(nil, "m", 8)
		assert.ErrorIs(t, err, ErrEmbedderRequired)

		_, err = NewCachingEmbedder(&countingEmbedder{}, "", 8)
		assert.Error(t, err)

		_, err = NewCachingEmbedder(&countingEmbedder{}, "m", 0)
		assert.Error(t, err)
	})
}

func TestCachingEmbedder_KeyIncludesModel(t *testing.T) {
	a := &CachingEmbedder{model: "model-a"}
	b := &CachingEmbedder{model: "model-b"}

	assert.NotEqual(t, a.key("same text"), b.key("same text"))
}
