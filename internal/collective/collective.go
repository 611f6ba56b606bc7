// Package collective reduces the individual agent results of an
// orchestration to a single consensus answer and learns per-agent
// reliability from the outcomes.
package collective

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/conclave-ai/conclave/internal/classify"
	"github.com/conclave-ai/conclave/pkg/models"
)

// ErrNoResults indicates synthesis was asked to run with no results at all.
var ErrNoResults = errors.New("no results to synthesize")

// Method selection thresholds.
const (
	disagreementThreshold = 0.5
	lowVarianceThreshold  = 0.1
	highSimilarityLevel   = 0.8
	expertLevel           = 0.8
)

// Engine synthesizes consensus results. Safe for concurrent use.
type Engine struct {
	mu     sync.RWMutex
	agents map[string]*agentLearning

	histMu   sync.Mutex
	outcomes []OutcomeRecord

	store *Store
	logf  func(format string, args ...any)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches persistent learning storage. Persisted state is
// loaded immediately and future outcomes are written through.
func WithStore(store *Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithLogf routes non-fatal engine errors to the given logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(e *Engine) { e.logf = logf }
}

// New creates a consensus engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{agents: make(map[string]*agentLearning)}
	for _, opt := range opts {
		opt(e)
	}
	if e.store != nil {
		if err := e.store.LoadInto(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Synthesize reduces the results of one orchestration to a consensus
// answer. The method is chosen from the shape of the results unless the
// caller demands consensus on disagreeing agents, which forces hybrid
// synthesis. All-failed inputs produce a degraded result carrying the
// least-bad failure rather than an error, so callers always get
// something to show.
func (e *Engine) Synthesize(task string, results []models.IndividualResult, domain classify.Domain, requireConsensus bool) (models.ConsensusResult, error) {
	if len(results) == 0 {
		return models.ConsensusResult{}, ErrNoResults
	}

	successful, stats := partitionResults(results)
	if len(successful) == 0 {
		return e.degradedResult(results), nil
	}

	agreement := meanSimilarity(stats)
	method := e.selectMethod(successful, stats, domain, agreement, requireConsensus)
	result := e.apply(method, successful, domain, agreement)
	addBatchInsights(&result, results, successful, domain, agreement)
	return result, nil
}

// addBatchInsights annotates a consensus result with batch-level
// statistics alongside the method-specific insight keys.
func addBatchInsights(result *models.ConsensusResult, all, successful []models.IndividualResult, domain classify.Domain, agreement float64) {
	var confidenceSum float64
	for _, r := range successful {
		confidenceSum += r.Confidence
	}
	avgConfidence := 0.0
	if len(successful) > 0 {
		avgConfidence = confidenceSum / float64(len(successful))
	}

	if result.SynthesisInsights == nil {
		result.SynthesisInsights = make(map[string]any)
	}
	result.SynthesisInsights["total_agents"] = len(all)
	result.SynthesisInsights["successful_agents"] = len(successful)
	result.SynthesisInsights["average_confidence"] = avgConfidence
	result.SynthesisInsights["response_diversity"] = 1 - agreement
	result.SynthesisInsights["task_domain"] = string(domain)
}

// partitionResults splits results into consensus candidates (successful
// only) and the statistics pool, which additionally counts failed
// entries that still produced a response. Both are sorted by agent id
// so downstream choices are deterministic.
func partitionResults(results []models.IndividualResult) (successful, stats []models.IndividualResult) {
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
			stats = append(stats, r)
		} else if r.Response != "" {
			stats = append(stats, r)
		}
	}
	sort.Slice(successful, func(i, j int) bool {
		return successful[i].AgentID < successful[j].AgentID
	})
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].AgentID < stats[j].AgentID
	})
	return successful, stats
}

// SynthesizeWith runs a specific consensus method instead of letting the
// engine choose. Failed results are filtered the same way as Synthesize.
func (e *Engine) SynthesizeWith(method models.ConsensusMethod, results []models.IndividualResult, domain classify.Domain) (models.ConsensusResult, error) {
	if !method.Valid() {
		return models.ConsensusResult{}, fmt.Errorf("unknown consensus method %q", method)
	}
	if len(results) == 0 {
		return models.ConsensusResult{}, ErrNoResults
	}

	successful, stats := partitionResults(results)
	if len(successful) == 0 {
		return e.degradedResult(results), nil
	}

	return e.apply(method, successful, domain, meanSimilarity(stats)), nil
}

func (e *Engine) apply(method models.ConsensusMethod, successful []models.IndividualResult, domain classify.Domain, agreement float64) models.ConsensusResult {
	var result models.ConsensusResult
	switch method {
	case models.ConsensusMajorityVote:
		result = e.majorityVote(successful)
	case models.ConsensusWeightedAverage:
		result = e.weightedAverage(successful, agreement)
	case models.ConsensusConfidenceWeighted:
		result = e.confidenceWeighted(successful, agreement)
	case models.ConsensusExpertSelection:
		result = e.expertSelection(successful, domain, agreement)
	default:
		result = e.hybridSynthesis(successful, domain, agreement)
	}

	result.MethodUsed = method
	result.AgreementLevel = agreement
	result.ParticipatingAgents = agentIDs(successful)
	return result
}

// selectMethod picks the consensus algorithm from the result shape.
// Variance and agreement are computed over the statistics pool, while
// candidate counting and expertise checks use successful results only.
func (e *Engine) selectMethod(results, stats []models.IndividualResult, domain classify.Domain, agreement float64, requireConsensus bool) models.ConsensusMethod {
	if requireConsensus && agreement < disagreementThreshold {
		return models.ConsensusHybridSynthesis
	}
	if confidenceVariance(stats) < lowVarianceThreshold && agreement > highSimilarityLevel {
		return models.ConsensusConfidenceWeighted
	}
	// A lone clean result has similarity 1 and variance 0, so this rule
	// fires only when failed-but-responding entries drag the stats down.
	if len(results) == 1 {
		return models.ConsensusExpertSelection
	}
	for _, r := range results {
		if e.expertiseScore(r.AgentID, domain) > expertLevel {
			return models.ConsensusExpertSelection
		}
	}
	return models.ConsensusWeightedAverage
}

// expertiseScore blends general reliability with domain expertise.
func (e *Engine) expertiseScore(agentID string, domain classify.Domain) float64 {
	return (e.Reliability(agentID) + e.DomainExpertise(agentID, domain)) / 2
}

// majorityVote clusters similar responses and answers with the best
// response of the largest cluster.
func (e *Engine) majorityVote(results []models.IndividualResult) models.ConsensusResult {
	groups := groupBySimilarity(results)

	winner := groups[0]
	for _, g := range groups[1:] {
		if len(g) > len(winner) {
			winner = g
		}
	}
	best := bestInGroup(winner)
	groupAgreement := float64(len(winner)) / float64(len(results))

	return models.ConsensusResult{
		ConsensusAchieved: groupAgreement >= 0.5,
		FinalResponse:     best.Response,
		ConfidenceScore:   best.Confidence,
		SynthesisInsights: map[string]any{
			"response_groups":    len(groups),
			"winning_group_size": len(winner),
			"vote_share":         groupAgreement,
		},
	}
}

// weightedAverage picks the response whose confidence times learned
// reliability is highest and reports the weighted mean confidence.
func (e *Engine) weightedAverage(results []models.IndividualResult, agreement float64) models.ConsensusResult {
	weights := make(map[string]float64, len(results))
	var totalWeight, weightedConfidence float64
	best := results[0]
	bestWeight := -1.0
	for _, r := range results {
		w := r.Confidence * e.Reliability(r.AgentID)
		weights[r.AgentID] = w
		totalWeight += w
		weightedConfidence += w * r.Confidence
		if w > bestWeight {
			best = r
			bestWeight = w
		}
	}

	confidence := best.Confidence
	if totalWeight > 0 {
		confidence = weightedConfidence / totalWeight
	}

	return models.ConsensusResult{
		ConsensusAchieved: agreement > 0.6,
		FinalResponse:     best.Response,
		ConfidenceScore:   confidence,
		SynthesisInsights: map[string]any{
			"agent_weights": weights,
			"total_weight":  totalWeight,
		},
	}
}

// confidenceWeighted answers with the single most confident response,
// boosted when the agents broadly agree.
func (e *Engine) confidenceWeighted(results []models.IndividualResult, agreement float64) models.ConsensusResult {
	best := bestInGroup(results)

	confidence := best.Confidence
	boosted := false
	if agreement > 0.8 {
		confidence *= 1.1
		if confidence > 1 {
			confidence = 1
		}
		boosted = true
	}

	return models.ConsensusResult{
		ConsensusAchieved: agreement > 0.7,
		FinalResponse:     best.Response,
		ConfidenceScore:   confidence,
		SynthesisInsights: map[string]any{
			"top_confidence":  best.Confidence,
			"agreement_boost": boosted,
		},
	}
}

// expertSelection defers to the agent with the highest blended
// expertise for the task's domain.
func (e *Engine) expertSelection(results []models.IndividualResult, domain classify.Domain, agreement float64) models.ConsensusResult {
	expert := results[0]
	expertScore := e.expertiseScore(expert.AgentID, domain)
	for _, r := range results[1:] {
		if score := e.expertiseScore(r.AgentID, domain); score > expertScore {
			expert = r
			expertScore = score
		}
	}

	return models.ConsensusResult{
		ConsensusAchieved: expertScore > expertLevel,
		FinalResponse:     expert.Response,
		ConfidenceScore:   expert.Confidence,
		SynthesisInsights: map[string]any{
			"expert_agent":    expert.AgentID,
			"expertise_score": expertScore,
			"domain":          string(domain),
		},
	}
}

// hybridSynthesis runs expert selection and weighted average and keeps
// whichever produced the more confident answer.
func (e *Engine) hybridSynthesis(results []models.IndividualResult, domain classify.Domain, agreement float64) models.ConsensusResult {
	expert := e.expertSelection(results, domain, agreement)
	weighted := e.weightedAverage(results, agreement)

	chosen := weighted
	branch := "weighted_average"
	if expert.ConfidenceScore > weighted.ConfidenceScore {
		chosen = expert
		branch = "expert_selection"
	}

	return models.ConsensusResult{
		ConsensusAchieved: agreement > 0.6,
		FinalResponse:     chosen.FinalResponse,
		ConfidenceScore:   chosen.ConfidenceScore,
		SynthesisInsights: map[string]any{
			"chosen_branch":       branch,
			"expert_confidence":   expert.ConfidenceScore,
			"weighted_confidence": weighted.ConfidenceScore,
		},
	}
}

// degradedResult surfaces the least-bad failure when every agent failed.
func (e *Engine) degradedResult(results []models.IndividualResult) models.ConsensusResult {
	best := results[0]
	for _, r := range results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}

	return models.ConsensusResult{
		ConsensusAchieved:   false,
		FinalResponse:       best.Response,
		ConfidenceScore:     best.Confidence,
		MethodUsed:          models.ConsensusConfidenceWeighted,
		AgreementLevel:      0,
		ParticipatingAgents: agentIDs(results),
		Degraded:            true,
		SynthesisInsights: map[string]any{
			"all_failed": true,
			"last_error": best.Error,
		},
	}
}

func agentIDs(results []models.IndividualResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.AgentID)
	}
	return ids
}
