// Package runner provides the pluggable execution backends agents run on.
// The orchestrator only sees the Runner interface; what an agent actually
// does to produce its answer is opaque.
package runner

import (
	"context"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Response is what an agent execution produces.
type Response struct {
	// Text is the agent's answer.
	Text string
	// Confidence is the agent's self-assessed confidence in [0, 1].
	Confidence float64
	// Metadata carries backend-specific diagnostics.
	Metadata map[string]any
}

// Runner executes one task assignment on behalf of one agent.
// Implementations must be safe for concurrent use and must honor
// context cancellation.
type Runner interface {
	Run(ctx context.Context, spec models.AgentSpec, assignment models.TaskAssignment) (Response, error)
}

// confidence estimates a confidence score for a response the way the
// scoring pipeline expects: a base value, an agent-type adjustment, and
// small bonuses for substantive responses.
func confidence(agentType models.AgentType, response string) float64 {
	score := 0.7

	switch agentType {
	case models.AgentTypeSpecialist:
		score += 0.1
	case models.AgentTypeAnalytical, models.AgentTypeTechnical:
		score += 0.08
	case models.AgentTypeProblemSolver:
		score += 0.06
	case models.AgentTypeResearch:
		score += 0.05
	case models.AgentTypeCreative:
		score += 0.03
	}

	if len(response) > 50 {
		score += 0.05
	}
	if len(response) > 100 {
		score += 0.05
	}

	if score > 1 {
		score = 1
	}
	return score
}
