// Package distributor decides how much priority each selected agent gets
// and in what order, using one of five distribution strategies.
package distributor

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/conclave-ai/conclave/internal/classify"
	"github.com/conclave-ai/conclave/pkg/models"
)

// ErrNoAgents indicates distribution was asked to run with no agents.
var ErrNoAgents = errors.New("no agents available for task distribution")

// baseDuration is the starting point for task duration estimates.
const baseDuration = 5 * time.Second

// historyMax bounds the distribution history; when exceeded the oldest
// half is dropped.
const historyMax = 1000

// typeDurationMultipliers scale the duration estimate per agent type.
var typeDurationMultipliers = map[models.AgentType]float64{
	models.AgentTypeAnalytical: 1.2,
	models.AgentTypeCreative:   1.5,
	models.AgentTypeTechnical:  0.8,
	models.AgentTypeResearch:   2.0,
	models.AgentTypeGeneral:    1.0,
}

// LoadReader reports an agent's live load fraction in [0, 1]. The agent
// manager implements this from in-flight task counts, so load never
// drifts from reality.
type LoadReader interface {
	CurrentLoad(agentID string) float64
}

// PerformanceReader reports an agent's 0-1 performance estimate.
type PerformanceReader interface {
	PerformanceScore(agentID string) float64
}

// Record is one entry of the distribution audit history.
type Record struct {
	Timestamp time.Time                   `json:"timestamp"`
	Task      string                      `json:"task"`
	Strategy  models.DistributionStrategy `json:"strategy"`
	AgentIDs  []string                    `json:"agent_ids"`
}

// Distributor computes task assignments. Safe for concurrent use.
type Distributor struct {
	classifier classify.Classifier
	loads      LoadReader
	perf       PerformanceReader

	mu        sync.Mutex
	rrIndex   int
	history   []Record
	lastLoads map[string]float64
}

// New creates a Distributor. A nil classifier falls back to the keyword
// baseline; loads and perf are required (the manager implements both).
func New(classifier classify.Classifier, loads LoadReader, perf PerformanceReader) *Distributor {
	if classifier == nil {
		classifier = classify.NewKeywordClassifier()
	}
	return &Distributor{
		classifier: classifier,
		loads:      loads,
		perf:       perf,
		lastLoads:  make(map[string]float64),
	}
}

// Distribute creates one prioritized assignment per agent. The
// distribution strategy is derived from the orchestration strategy, and
// the result is sorted by descending priority (ties broken by agent id
// so output is deterministic). A non-empty agent list always yields a
// non-empty assignment list.
func (d *Distributor) Distribute(task string, agents []models.AgentDescriptor, strategy models.OrchestrationStrategy, userCtx models.UserContext) ([]models.TaskAssignment, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}

	ds := models.DistributionFor(strategy)
	analysis := d.classifier.Classify(task)

	var assignments []scoredAssignment
	switch ds {
	case models.DistributionRoundRobin:
		assignments = d.roundRobin(task, agents, analysis, userCtx)
	case models.DistributionLoadBalanced:
		assignments = d.loadBalanced(task, agents, analysis, userCtx)
	case models.DistributionCapabilityMatched:
		assignments = d.capabilityMatched(task, agents, analysis, userCtx)
	case models.DistributionPerformanceOptimized:
		assignments = d.performanceOptimized(task, agents, analysis, userCtx)
	default:
		assignments = d.hybrid(task, agents, analysis, userCtx)
	}

	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].score != assignments[j].score {
			return assignments[i].score > assignments[j].score
		}
		return assignments[i].assignment.AgentID < assignments[j].assignment.AgentID
	})

	out := make([]models.TaskAssignment, 0, len(assignments))
	for _, sa := range assignments {
		out = append(out, sa.assignment)
	}

	d.record(task, ds, out)
	return out, nil
}

type scoredAssignment struct {
	assignment models.TaskAssignment
	score      float64
}

func (d *Distributor) newAssignment(task string, agent models.AgentDescriptor, analysis classify.Classification, userCtx models.UserContext, priority int, extra map[string]any) models.TaskAssignment {
	return models.TaskAssignment{
		AgentID:           agent.ID,
		Task:              task,
		Context:           userCtx,
		Priority:          priority,
		EstimatedDuration: estimateDuration(analysis, agent.Type),
		AdditionalContext: extra,
		AssignedAt:        time.Now(),
	}
}

// roundRobin gives every agent equal priority in stable rotation order.
func (d *Distributor) roundRobin(task string, agents []models.AgentDescriptor, analysis classify.Classification, userCtx models.UserContext) []scoredAssignment {
	d.mu.Lock()
	start := d.rrIndex % len(agents)
	d.rrIndex++
	d.mu.Unlock()

	out := make([]scoredAssignment, 0, len(agents))
	for i := range agents {
		agent := agents[(start+i)%len(agents)]
		a := d.newAssignment(task, agent, analysis, userCtx, 1, map[string]any{
			"assignment_method": string(models.DistributionRoundRobin),
			"position":          i,
		})
		// Score encodes rotation order so the final sort preserves it.
		out = append(out, scoredAssignment{a, float64(len(agents) - i)})
	}
	return out
}

// loadBalanced prioritizes the least loaded agents.
func (d *Distributor) loadBalanced(task string, agents []models.AgentDescriptor, analysis classify.Classification, userCtx models.UserContext) []scoredAssignment {
	byLoad := append([]models.AgentDescriptor(nil), agents...)
	loads := make(map[string]float64, len(agents))
	for _, agent := range agents {
		loads[agent.ID] = d.loads.CurrentLoad(agent.ID)
	}
	sort.SliceStable(byLoad, func(i, j int) bool {
		if loads[byLoad[i].ID] != loads[byLoad[j].ID] {
			return loads[byLoad[i].ID] < loads[byLoad[j].ID]
		}
		return byLoad[i].ID < byLoad[j].ID
	})

	d.noteLoads(loads)

	out := make([]scoredAssignment, 0, len(agents))
	for rank, agent := range byLoad {
		load := loads[agent.ID]
		priority := 5 - int(load*4)
		if priority < 1 {
			priority = 1
		}
		a := d.newAssignment(task, agent, analysis, userCtx, priority, map[string]any{
			"assignment_method": string(models.DistributionLoadBalanced),
			"current_load":      load,
			"load_rank":         rank,
		})
		out = append(out, scoredAssignment{a, 1 - load})
	}
	return out
}

// capabilityMatched prioritizes by overlap between agent capabilities
// and the task's inferred requirements.
func (d *Distributor) capabilityMatched(task string, agents []models.AgentDescriptor, analysis classify.Classification, userCtx models.UserContext) []scoredAssignment {
	out := make([]scoredAssignment, 0, len(agents))
	for _, agent := range agents {
		match := capabilityMatch(agent.Capabilities, analysis.RequiredCapabilities)
		priority := int(match * 5)
		if priority < 1 {
			priority = 1
		}
		a := d.newAssignment(task, agent, analysis, userCtx, priority, map[string]any{
			"assignment_method":     string(models.DistributionCapabilityMatched),
			"match_score":           match,
			"required_capabilities": analysis.RequiredCapabilities,
		})
		out = append(out, scoredAssignment{a, match})
	}
	return out
}

// performanceOptimized prioritizes by the agents' historical performance.
func (d *Distributor) performanceOptimized(task string, agents []models.AgentDescriptor, analysis classify.Classification, userCtx models.UserContext) []scoredAssignment {
	out := make([]scoredAssignment, 0, len(agents))
	for _, agent := range agents {
		perf := d.perf.PerformanceScore(agent.ID)
		priority := int(perf * 5)
		if priority < 1 {
			priority = 1
		}
		a := d.newAssignment(task, agent, analysis, userCtx, priority, map[string]any{
			"assignment_method": string(models.DistributionPerformanceOptimized),
			"performance_score": perf,
		})
		out = append(out, scoredAssignment{a, perf})
	}
	return out
}

// hybrid blends capability match, performance, and inverse load.
func (d *Distributor) hybrid(task string, agents []models.AgentDescriptor, analysis classify.Classification, userCtx models.UserContext) []scoredAssignment {
	loads := make(map[string]float64, len(agents))
	for _, agent := range agents {
		loads[agent.ID] = d.loads.CurrentLoad(agent.ID)
	}
	d.noteLoads(loads)

	out := make([]scoredAssignment, 0, len(agents))
	for _, agent := range agents {
		capScore := capabilityMatch(agent.Capabilities, analysis.RequiredCapabilities)
		perfScore := d.perf.PerformanceScore(agent.ID)
		loadFactor := 1 - loads[agent.ID]

		composite := 0.4*capScore + 0.3*perfScore + 0.3*loadFactor
		priority := int(composite * 5)
		if priority < 1 {
			priority = 1
		}
		a := d.newAssignment(task, agent, analysis, userCtx, priority, map[string]any{
			"assignment_method": string(models.DistributionHybrid),
			"composite_score":   composite,
			"capability_score":  capScore,
			"performance_score": perfScore,
			"load_factor":       loadFactor,
		})
		out = append(out, scoredAssignment{a, composite})
	}
	return out
}

// capabilityMatch scores how well the agent covers the required
// capabilities. With no requirements every agent is an acceptable 0.7.
func capabilityMatch(capabilities, required []string) float64 {
	if len(required) == 0 {
		return 0.7
	}

	have := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		have[c] = struct{}{}
	}
	matching := 0
	for _, c := range required {
		if _, ok := have[c]; ok {
			matching++
		}
	}

	score := float64(matching) / float64(len(required))
	if score > 1 {
		score = 1
	}
	return score
}

// estimateDuration predicts execution time from task complexity and the
// agent type's typical pace.
func estimateDuration(analysis classify.Classification, agentType models.AgentType) time.Duration {
	multiplier, ok := typeDurationMultipliers[agentType]
	if !ok {
		multiplier = 1.0
	}
	return time.Duration(float64(baseDuration) * (1 + analysis.ComplexityScore) * multiplier)
}

func (d *Distributor) noteLoads(loads map[string]float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, l := range loads {
		d.lastLoads[id] = l
	}
}

func (d *Distributor) record(task string, strategy models.DistributionStrategy, assignments []models.TaskAssignment) {
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.AgentID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, Record{
		Timestamp: time.Now(),
		Task:      task,
		Strategy:  strategy,
		AgentIDs:  ids,
	})
	if len(d.history) > historyMax {
		d.history = append([]Record(nil), d.history[len(d.history)-historyMax/2:]...)
	}
}

// Metrics summarizes distribution activity for health reporting.
type Metrics struct {
	TotalDistributions    int                `json:"total_distributions"`
	CurrentLoads          map[string]float64 `json:"current_loads"`
	LoadBalanceEfficiency float64            `json:"load_balance_efficiency"`
}

// GetMetrics returns distribution counters and a load-balance efficiency
// score derived from the coefficient of variation of recent loads.
func (d *Distributor) GetMetrics() Metrics {
	d.mu.Lock()
	defer d.mu.Unlock()

	loads := make(map[string]float64, len(d.lastLoads))
	for id, l := range d.lastLoads {
		loads[id] = l
	}

	return Metrics{
		TotalDistributions:    len(d.history),
		CurrentLoads:          loads,
		LoadBalanceEfficiency: loadBalanceEfficiency(loads),
	}
}

func loadBalanceEfficiency(loads map[string]float64) float64 {
	if len(loads) == 0 {
		return 1
	}

	var sum float64
	for _, l := range loads {
		sum += l
	}
	mean := sum / float64(len(loads))
	if mean == 0 {
		return 1
	}

	var variance float64
	for _, l := range loads {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(loads))

	cv := math.Sqrt(variance) / mean
	efficiency := 1 - cv
	if efficiency < 0 {
		efficiency = 0
	}
	return efficiency
}
