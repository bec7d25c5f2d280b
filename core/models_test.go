package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "finance_docs/quarterly_report.md/markdown/0",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("hr-handbook.md-markdown-0")
	id2 := IDFromContent("hr-handbook.md-markdown-1")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestCollectionForDepartment(t *testing.T) {
	tests := []struct {
		department string
		want       CollectionID
	}{
		{"finance", "finance_docs"},
		{" HR ", "hr_docs"},
		{"general", "general_docs"},
	}

	for _, tt := range tests {
		t.Run(tt.department, func(t *testing.T) {
			if got := CollectionForDepartment(tt.department); got != tt.want {
				t.Errorf("CollectionForDepartment(%q) = %q, want %q", tt.department, got, tt.want)
			}
		})
	}
}

func TestCandidate_Source(t *testing.T) {
	c := Candidate{Metadata: map[string]string{MetadataSource: "campaign.md"}}
	if got := c.Source(); got != "campaign.md" {
		t.Errorf("Candidate.Source() = %q, want campaign.md", got)
	}

	var empty Candidate
	if got := empty.Source(); got != "" {
		t.Errorf("Candidate.Source() = %q, want empty", got)
	}
}

func TestMethodAndOutcomeStrings(t *testing.T) {
	if MethodSemantic.String() != "semantic" || MethodLexical.String() != "lexical" {
		t.Errorf("unexpected method names: %s, %s", MethodSemantic, MethodLexical)
	}
	if OutcomeInsufficientInformation.String() != "insufficient_information" {
		t.Errorf("unexpected outcome name: %s", OutcomeInsufficientInformation)
	}
	if OutcomeGenerationFailed.String() != "generation_failed" {
		t.Errorf("unexpected outcome name: %s", OutcomeGenerationFailed)
	}
	r := &AnswerResult{Outcome: OutcomeInsufficientInformation}
	if !r.Insufficient() {
		t.Errorf("Insufficient() = false for insufficient outcome")
	}
}
