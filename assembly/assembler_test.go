package assembly

import (
	"strings"
	"testing"

	"github.com/poiesic/clearance/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(content string, score float64, collection core.CollectionID, source string) core.Candidate {
	c := core.Candidate{Content: content, Score: score, Collection: collection, Method: core.MethodSemantic}
	if source != "" {
		c.Metadata = map[string]string{core.MetadataSource: source}
	}
	return c
}

func newTestAssembler(t *testing.T, opts ...ConfigOption) *Assembler {
	t.Helper()
	a, err := NewAssembler(NewConfig(opts...))
	require.NoError(t, err)
	return a
}

func TestAssemble_MeanConfidence(t *testing.T) {
	a := newTestAssembler(t)

	ctx := a.Assemble([]core.Candidate{
		candidate("Campaign reach grew", 0.55, "marketing_docs", ""),
		candidate("Spend by channel", 0.42, "marketing_docs", ""),
		candidate("Brand guidelines", 0.20, "marketing_docs", ""),
	}, "marketing")

	require.False(t, ctx.Insufficient())
	assert.Len(t, ctx.Documents, 3)
	assert.InDelta(t, 0.39, ctx.Confidence, 1e-9)
	assert.Equal(t, []core.CollectionID{"marketing_docs"}, ctx.Collections)
	assert.Equal(t, []string{"marketing_docs"}, ctx.Sources, "collection stands in for a missing filename")
	assert.False(t, ctx.BelowThreshold)
	assert.Equal(t, 3, ctx.Considered)
}

func TestAssemble_FiltersBelowMinimum(t *testing.T) {
	a := newTestAssembler(t)

	ctx := a.Assemble([]core.Candidate{
		candidate("strong", 0.8, "hr_docs", "leave.md"),
		candidate("weak", 0.1, "hr_docs", "misc.md"),
		candidate("edge", 0.15, "general_docs", "faq.md"),
	}, "hr")

	require.Len(t, ctx.Documents, 2)
	assert.Equal(t, "strong", ctx.Documents[0].Content)
	assert.Equal(t, "edge", ctx.Documents[1].Content, "threshold is inclusive")
	assert.InDelta(t, 0.475, ctx.Confidence, 1e-9)
	assert.Equal(t, []string{"leave.md", "faq.md"}, ctx.Sources)
	assert.Equal(t, []core.CollectionID{"hr_docs", "general_docs"}, ctx.Collections)
}

func TestAssemble_FallsBackToTopUnfiltered(t *testing.T) {
	a := newTestAssembler(t)

	var candidates []core.Candidate
	for _, s := range []float64{0.05, 0.12, 0.01, 0.10, 0.02, 0.07, 0.03} {
		candidates = append(candidates, candidate("doc", s, "general_docs", ""))
	}
	ctx := a.Assemble(candidates, "employee")

	require.False(t, ctx.Insufficient())
	assert.True(t, ctx.BelowThreshold)
	require.Len(t, ctx.Documents, 5)
	assert.Equal(t, 0.12, ctx.Documents[0].Score)
	assert.InDelta(t, (0.12+0.10+0.07+0.05+0.03)/5, ctx.Confidence, 1e-9)
}

func TestAssemble_FallbackDisabled(t *testing.T) {
	a := newTestAssembler(t, WithFallbackTopN(0))

	ctx := a.Assemble([]core.Candidate{candidate("doc", 0.05, "general_docs", "")}, "employee")
	assert.True(t, ctx.Insufficient())
	assert.False(t, ctx.BelowThreshold)
}

func TestAssemble_NoCandidates(t *testing.T) {
	a := newTestAssembler(t)

	ctx := a.Assemble(nil, "employee")
	assert.True(t, ctx.Insufficient())
	assert.Zero(t, ctx.Confidence)
	assert.Empty(t, ctx.Sources)
	assert.Contains(t, ctx.Message, "(employee role)")
}

func TestAssemble_CapsDocumentsAndTruncates(t *testing.T) {
	a := newTestAssembler(t, WithMaxDocuments(2), WithMaxContentLength(10))

	ctx := a.Assemble([]core.Candidate{
		candidate("  0123456789abcdef  ", 0.9, "finance_docs", "long.md"),
		candidate("short", 0.8, "finance_docs", "short.md"),
		candidate("dropped", 0.7, "finance_docs", "dropped.md"),
	}, "finance")

	require.Len(t, ctx.Documents, 2)
	assert.Equal(t, "0123456789...", ctx.Documents[0].Content)
	assert.True(t, ctx.Documents[0].Truncated)
	assert.Equal(t, "short", ctx.Documents[1].Content)
	assert.False(t, ctx.Documents[1].Truncated)
	assert.InDelta(t, 0.85, ctx.Confidence, 1e-9)
	assert.NotContains(t, ctx.Sources, "dropped.md")
}

func TestAssemble_TruncatesOnCharacters(t *testing.T) {
	a := newTestAssembler(t, WithMaxContentLength(3))

	ctx := a.Assemble([]core.Candidate{candidate("€€€€", 0.9, "finance_docs", "")}, "finance")
	assert.Equal(t, "€€€...", ctx.Documents[0].Content)
}

func TestAssemble_SortsUnorderedInput(t *testing.T) {
	a := newTestAssembler(t, WithMaxDocuments(1))

	ctx := a.Assemble([]core.Candidate{
		candidate("low", 0.3, "general_docs", ""),
		candidate("high", 0.9, "general_docs", ""),
	}, "employee")
	assert.Equal(t, "high", ctx.Documents[0].Content)
}

func TestNewAssembler_InvalidConfig(t *testing.T) {
	_, err := NewAssembler(NewConfig(WithMinConfidence(2)))
	assert.Error(t, err)

	_, err = NewAssembler(NewConfig(WithOrganization("  ")))
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	a := newTestAssembler(t)
	ctx := a.Assemble([]core.Candidate{
		candidate("Q3 revenue was 12M", 0.81, "finance_docs", "q3.md"),
		candidate("Q2 revenue was 10M", 0.64, "finance_docs", "q2.md"),
	}, "finance")

	system := a.SystemPrompt("finance")
	assert.Contains(t, system, "FinSolve Technologies")
	assert.Contains(t, system, "'finance' role")

	user := a.UserPrompt(ctx, "  What was Q3 revenue? ")
	assert.True(t, strings.HasPrefix(user, "Context Documents:\nDocument 1 (Source: q3.md, Relevance: 0.81):\nQ3 revenue was 12M"))
	assert.Contains(t, user, "Document 2 (Source: q2.md, Relevance: 0.64):\nQ2 revenue was 10M")
	assert.Contains(t, user, "==========")
	assert.Contains(t, user, "\n\nQuestion: What was Q3 revenue?\n\n")
	assert.True(t, strings.HasSuffix(user, "based on the context above:"))
}
