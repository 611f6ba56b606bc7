package classify

import (
	"strings"
	"testing"

	"github.com/conclave-ai/conclave/pkg/models"
)

func TestClassify_Domains(t *testing.T) {
	tests := []struct {
		name string
		task string
		want Domain
	}{
		{"analyze keyword", "Analyze the quarterly sales numbers", DomainAnalytical},
		{"research keyword", "Research battery chemistry trade-offs", DomainAnalytical},
		{"create keyword", "Create a tagline for the launch", DomainCreative},
		{"write keyword", "Write a short story about winter", DomainCreative},
		{"code keyword", "Code a parser for the log format", DomainTechnical},
		{"implement keyword", "Implement retry backoff in the client", DomainTechnical},
		{"fix keyword", "Fix the flaky startup sequence", DomainProblemSolving},
		{"troubleshoot keyword", "Troubleshoot the failing deploy", DomainProblemSolving},
		{"no keyword", "Tell me about your day", DomainGeneral},
		{"mixed case", "ANALYZE the data please", DomainAnalytical},
	}

	c := NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.task)
			if got.Domain != tt.want {
				t.Errorf("Classify(%q).Domain = %v, want %v", tt.task, got.Domain, tt.want)
			}
		})
	}
}

func TestClassify_PreferredTypes(t *testing.T) {
	c := NewKeywordClassifier()

	got := c.Classify("Research and write a summary of the findings")
	if len(got.PreferredTypes) < 2 {
		t.Fatalf("expected at least 2 preferred types, got %v", got.PreferredTypes)
	}

	hasType := func(want models.AgentType) bool {
		for _, at := range got.PreferredTypes {
			if at == want {
				return true
			}
		}
		return false
	}
	if !hasType(models.AgentTypeAnalytical) {
		t.Errorf("expected analytical in preferred types, got %v", got.PreferredTypes)
	}
	if !hasType(models.AgentTypeCreative) {
		t.Errorf("expected creative in preferred types, got %v", got.PreferredTypes)
	}
}

func TestClassify_GeneralFallback(t *testing.T) {
	c := NewKeywordClassifier()

	got := c.Classify("Hello there")
	if len(got.PreferredTypes) != 1 || got.PreferredTypes[0] != models.AgentTypeGeneral {
		t.Errorf("expected general fallback, got %v", got.PreferredTypes)
	}
	if len(got.RequiredCapabilities) != 0 {
		t.Errorf("expected no required capabilities, got %v", got.RequiredCapabilities)
	}
}

func TestClassify_Complexity(t *testing.T) {
	tests := []struct {
		name string
		task string
		want Complexity
	}{
		{"high", "Do a comprehensive and thorough review", ComplexityHigh},
		{"low", "Give me a quick summary", ComplexityLow},
		{"default", "Summarize the meeting notes", ComplexityMedium},
	}

	c := NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.task)
			if got.Complexity != tt.want {
				t.Errorf("Classify(%q).Complexity = %v, want %v", tt.task, got.Complexity, tt.want)
			}
		})
	}
}

func TestComplexityScore_Bounds(t *testing.T) {
	c := NewKeywordClassifier()

	long := strings.Repeat("comprehensive detailed thorough extensive analysis ", 40)
	got := c.Classify(long)
	if got.ComplexityScore < 0 || got.ComplexityScore > 1 {
		t.Errorf("ComplexityScore = %v, want within [0, 1]", got.ComplexityScore)
	}
	if got.ComplexityScore != 1 {
		t.Errorf("ComplexityScore for saturated input = %v, want 1", got.ComplexityScore)
	}

	if s := c.Classify("hi").ComplexityScore; s < 0 || s > 0.5 {
		t.Errorf("ComplexityScore for trivial input = %v, want small", s)
	}
}

func TestClassify_Urgency(t *testing.T) {
	c := NewKeywordClassifier()

	if got := c.Classify("Fix this immediately").Urgency; got != UrgencyHigh {
		t.Errorf("urgency = %v, want high", got)
	}
	if got := c.Classify("Tidy the docs when possible").Urgency; got != UrgencyLow {
		t.Errorf("urgency = %v, want low", got)
	}
	if got := c.Classify("Summarize the report").Urgency; got != UrgencyNormal {
		t.Errorf("urgency = %v, want normal", got)
	}
}
