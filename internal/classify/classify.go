// Package classify analyzes task text to infer domain, complexity, and
// capability requirements. The baseline is a keyword heuristic; callers
// depend on the Classifier interface so it can be swapped for a model.
package classify

import (
	"strings"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Domain is the coarse task category used for expertise tracking.
type Domain string

const (
	// DomainAnalytical covers analysis, research, and evaluation tasks.
	DomainAnalytical Domain = "analytical"
	// DomainCreative covers writing, design, and ideation tasks.
	DomainCreative Domain = "creative"
	// DomainTechnical covers programming and implementation tasks.
	DomainTechnical Domain = "technical"
	// DomainProblemSolving covers troubleshooting and debugging tasks.
	DomainProblemSolving Domain = "problem_solving"
	// DomainGeneral is the fallback for everything else.
	DomainGeneral Domain = "general"
)

// Urgency is the inferred time pressure of a task.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// Complexity is the inferred difficulty band of a task.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Classification is the result of analyzing a task.
type Classification struct {
	// Domain is the coarse task category.
	Domain Domain
	// Complexity is the difficulty band derived from keyword signals.
	Complexity Complexity
	// ComplexityScore is a 0-1 difficulty estimate used for duration scaling.
	ComplexityScore float64
	// RequiredCapabilities are the capabilities the task appears to need.
	RequiredCapabilities []string
	// PreferredTypes are the agent types best suited to the task.
	PreferredTypes []models.AgentType
	// Urgency is the inferred time pressure.
	Urgency Urgency
}

// Classifier analyzes task text. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Classify(task string) Classification
}

// domainKeywords maps trigger words to the domains they indicate.
// Order matters: the first matching domain wins for the Domain field.
var domainKeywords = []struct {
	domain       Domain
	agentType    models.AgentType
	capabilities []string
	words        []string
}{
	{DomainAnalytical, models.AgentTypeAnalytical, []string{"analysis", "research"},
		[]string{"analyze", "research", "study", "evaluate"}},
	{DomainCreative, models.AgentTypeCreative, []string{"creative_writing", "design"},
		[]string{"create", "design", "write", "generate"}},
	{DomainTechnical, models.AgentTypeTechnical, []string{"programming", "system_design"},
		[]string{"code", "program", "implement", "technical"}},
	{DomainProblemSolving, models.AgentTypeProblemSolver, []string{"problem_solving", "debugging"},
		[]string{"solve", "fix", "troubleshoot"}},
}

// researchWords additionally flag research-type agents without changing
// the primary domain.
var researchWords = []string{"find", "search", "information", "facts"}

var highComplexityWords = []string{"complex", "comprehensive", "detailed", "thorough", "extensive"}
var lowComplexityWords = []string{"simple", "quick", "basic", "brief", "straightforward"}

var highUrgencyWords = []string{"urgent", "asap", "immediately"}
var lowUrgencyWords = []string{"when possible", "eventually"}

// KeywordClassifier is the baseline substring-matching classifier.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the default keyword-based classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify analyzes the task text with case-insensitive substring matching.
func (c *KeywordClassifier) Classify(task string) Classification {
	lower := strings.ToLower(task)

	result := Classification{
		Domain:     DomainGeneral,
		Complexity: ComplexityMedium,
		Urgency:    UrgencyNormal,
	}

	for _, dk := range domainKeywords {
		if !containsAny(lower, dk.words) {
			continue
		}
		if result.Domain == DomainGeneral {
			result.Domain = dk.domain
		}
		result.PreferredTypes = append(result.PreferredTypes, dk.agentType)
		result.RequiredCapabilities = append(result.RequiredCapabilities, dk.capabilities...)
	}

	if containsAny(lower, researchWords) {
		result.PreferredTypes = append(result.PreferredTypes, models.AgentTypeResearch)
		result.RequiredCapabilities = append(result.RequiredCapabilities, "information_retrieval", "research")
	}

	if len(result.PreferredTypes) == 0 {
		result.PreferredTypes = []models.AgentType{models.AgentTypeGeneral}
	}

	if containsAny(lower, highComplexityWords) {
		result.Complexity = ComplexityHigh
	} else if containsAny(lower, lowComplexityWords) {
		result.Complexity = ComplexityLow
	}
	result.ComplexityScore = complexityScore(lower)

	if containsAny(lower, highUrgencyWords) {
		result.Urgency = UrgencyHigh
	} else if containsAny(lower, lowUrgencyWords) {
		result.Urgency = UrgencyLow
	}

	return result
}

// complexityScore estimates difficulty in [0, 1] from task length and
// complexity keyword density.
func complexityScore(lower string) float64 {
	lengthFactor := float64(len(strings.Fields(lower))) / 50
	if lengthFactor > 1 {
		lengthFactor = 1
	}

	hits := 0
	for _, w := range highComplexityWords {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	keywordFactor := float64(hits) / 3
	if keywordFactor > 1 {
		keywordFactor = 1
	}

	return (lengthFactor + keywordFactor) / 2
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
