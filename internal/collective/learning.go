package collective

import (
	"sync"
	"time"

	"github.com/conclave-ai/conclave/internal/classify"
	"github.com/conclave-ai/conclave/pkg/models"
)

// emaAlpha weights new observations in the exponential moving averages.
const emaAlpha = 0.1

// defaultReliability is assumed for agents with no recorded history.
const defaultReliability = 0.7

// learningHistoryMax bounds the outcome history; when exceeded the
// oldest half is dropped.
const learningHistoryMax = 1000

// agentLearning is the per-agent reliability state. Each agent carries
// its own lock so concurrent outcome recording for different agents
// never contends.
type agentLearning struct {
	mu sync.Mutex
	// reliability is the EMA of per-task performance: the result's
	// confidence on success, zero on failure.
	reliability float64
	// expertise tracks a separate EMA per task domain.
	expertise map[classify.Domain]float64
	samples   int
}

// OutcomeRecord is one entry of the learning history.
type OutcomeRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	AgentID    string          `json:"agent_id"`
	Domain     classify.Domain `json:"domain"`
	Success    bool            `json:"success"`
	Confidence float64         `json:"confidence"`
}

// Reliability returns the agent's learned reliability, or the optimistic
// default when the agent has no history.
func (e *Engine) Reliability(agentID string) float64 {
	e.mu.RLock()
	al, ok := e.agents[agentID]
	e.mu.RUnlock()
	if !ok {
		return defaultReliability
	}

	al.mu.Lock()
	defer al.mu.Unlock()
	return al.reliability
}

// DomainExpertise returns the agent's learned expertise for a domain,
// or the default when nothing is recorded for it.
func (e *Engine) DomainExpertise(agentID string, domain classify.Domain) float64 {
	e.mu.RLock()
	al, ok := e.agents[agentID]
	e.mu.RUnlock()
	if !ok {
		return defaultReliability
	}

	al.mu.Lock()
	defer al.mu.Unlock()
	score, ok := al.expertise[domain]
	if !ok {
		return defaultReliability
	}
	return score
}

// RecordOutcomes feeds one orchestration's individual results into the
// reliability and expertise averages. Failed results score zero, so
// repeated failures pull an agent's reliability down quickly.
func (e *Engine) RecordOutcomes(results []models.IndividualResult, domain classify.Domain) {
	for _, r := range results {
		e.recordOutcome(r, domain)
	}
}

func (e *Engine) recordOutcome(r models.IndividualResult, domain classify.Domain) {
	al := e.agentState(r.AgentID)

	score := 0.0
	if r.Success {
		score = r.Confidence
	}

	al.mu.Lock()
	al.reliability = (1-emaAlpha)*al.reliability + emaAlpha*score
	prev, ok := al.expertise[domain]
	if !ok {
		prev = defaultReliability
	}
	al.expertise[domain] = (1-emaAlpha)*prev + emaAlpha*score
	al.samples++
	reliability := al.reliability
	domainScore := al.expertise[domain]
	samples := al.samples
	al.mu.Unlock()

	e.histMu.Lock()
	e.outcomes = append(e.outcomes, OutcomeRecord{
		Timestamp:  time.Now(),
		AgentID:    r.AgentID,
		Domain:     domain,
		Success:    r.Success,
		Confidence: r.Confidence,
	})
	if len(e.outcomes) > learningHistoryMax {
		e.outcomes = append([]OutcomeRecord(nil), e.outcomes[len(e.outcomes)-learningHistoryMax/2:]...)
	}
	e.histMu.Unlock()

	if e.store != nil {
		if err := e.store.SaveAgent(r.AgentID, reliability, samples, domain, domainScore); err != nil && e.logf != nil {
			e.logf("persist learning state for %s: %v", r.AgentID, err)
		}
	}
}

func (e *Engine) agentState(agentID string) *agentLearning {
	e.mu.RLock()
	al, ok := e.agents[agentID]
	e.mu.RUnlock()
	if ok {
		return al
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if al, ok = e.agents[agentID]; ok {
		return al
	}
	al = &agentLearning{
		reliability: defaultReliability,
		expertise:   make(map[classify.Domain]float64),
	}
	e.agents[agentID] = al
	return al
}

// seedAgent installs persisted learning state, replacing whatever is in
// memory for the agent.
func (e *Engine) seedAgent(agentID string, reliability float64, samples int, expertise map[classify.Domain]float64) {
	al := e.agentState(agentID)
	al.mu.Lock()
	defer al.mu.Unlock()
	al.reliability = reliability
	al.samples = samples
	for d, s := range expertise {
		al.expertise[d] = s
	}
}

// Outcomes returns a copy of the recent outcome history, newest last.
func (e *Engine) Outcomes() []OutcomeRecord {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	return append([]OutcomeRecord(nil), e.outcomes...)
}
