package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// typeProfiles holds the per-type processing latency and response
// template for the simulated backend.
var typeProfiles = map[models.AgentType]struct {
	latency  time.Duration
	template string
}{
	models.AgentTypeAnalytical:    {100 * time.Millisecond, "Analytical analysis: %s - Systematic evaluation completed with data-driven insights."},
	models.AgentTypeCreative:      {150 * time.Millisecond, "Creative solution: %s - Innovative approach with original ideas and creative alternatives."},
	models.AgentTypeTechnical:     {80 * time.Millisecond, "Technical implementation: %s - Detailed technical solution with implementation specifics."},
	models.AgentTypeResearch:      {200 * time.Millisecond, "Research findings: %s - Comprehensive research with verified information and sources."},
	models.AgentTypeProblemSolver: {120 * time.Millisecond, "Problem solution: %s - Systematic problem analysis with practical solution steps."},
}

const generalLatency = 100 * time.Millisecond
const generalTemplate = "General response: %s - Balanced approach addressing the request comprehensively."

// Simulated is the default backend: it produces a canned, type-flavored
// response after a type-dependent delay. Useful for development, tests,
// and any deployment that has not wired a live model.
type Simulated struct {
	// Latency overrides the per-type delay when non-zero. Tests use this
	// to simulate slow agents.
	Latency time.Duration
}

// NewSimulated creates the simulated backend with default latencies.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Run produces the canned response for the agent's type, honoring
// context cancellation during the simulated processing delay.
func (s *Simulated) Run(ctx context.Context, spec models.AgentSpec, assignment models.TaskAssignment) (Response, error) {
	latency := generalLatency
	template := generalTemplate
	if p, ok := typeProfiles[spec.Type]; ok {
		latency = p.latency
		template = p.template
	}
	if s.Latency > 0 {
		latency = s.Latency
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-timer.C:
	}

	text := fmt.Sprintf(template, assignment.Task)
	return Response{
		Text:       text,
		Confidence: confidence(spec.Type, text),
		Metadata: map[string]any{
			"agent_id":            spec.ID,
			"processing_approach": string(spec.Type),
			"specializations":     spec.Specializations,
		},
	}, nil
}
