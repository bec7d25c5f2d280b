package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, 0.4, cfg.EscalationThreshold)
	assert.Equal(t, 0.2, cfg.LexicalMinScore)
	assert.Equal(t, 7, cfg.LexicalCap)
	require.Len(t, cfg.DomainBoosts, 1)
	assert.Len(t, cfg.DomainBoosts[0].Keywords, 10)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		opt  ConfigOption
	}{
		{"zero topK", WithTopK(0)},
		{"threshold above one", WithEscalationThreshold(1.5)},
		{"negative lexical score", WithLexicalMinScore(-0.1)},
		{"zero lexical cap", WithLexicalCap(0)},
		{"negative concurrency", WithMaxConcurrency(-1)},
		{"boost without keywords", WithDomainBoosts(DomainBoost{Role: "hr", Collection: "hr_docs", Cap: 1})},
		{"boost with bad collection", WithDomainBoosts(DomainBoost{Role: "hr", Collection: "HR", Keywords: []string{"x"}, Cap: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewConfig(tt.opt).Validate())
		})
	}
}

func TestConfig_NormalizesKeywords(t *testing.T) {
	cfg := NewConfig(WithDomainBoosts(DomainBoost{
		Role: "hr", Collection: "hr_docs", Keywords: []string{" Leave ", "leave", "", "PAYROLL"}, Cap: 2,
	}))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"leave", "payroll"}, cfg.DomainBoosts[0].Keywords)
}
