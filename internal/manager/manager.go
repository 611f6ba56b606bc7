package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conclave-ai/conclave/internal/classify"
	"github.com/conclave-ai/conclave/pkg/models"
)

var (
	// ErrAgentNotFound indicates an unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentBusy indicates the agent is at capacity or out of rotation.
	// Callers should skip the agent, not fail the orchestration.
	ErrAgentBusy = errors.New("agent busy")
	// ErrNoAgentsAvailable indicates no agent qualifies for selection at all.
	ErrNoAgentsAvailable = errors.New("no agents available")
)

// selectionHistoryMax bounds the selection history; when exceeded the
// oldest half is dropped.
const selectionHistoryMax = 1000

// SelectionRecord is one entry of the selection audit history.
type SelectionRecord struct {
	Timestamp time.Time          `json:"timestamp"`
	Task      string             `json:"task"`
	Domain    classify.Domain    `json:"domain"`
	Selected  []string           `json:"selected"`
	Scores    map[string]float64 `json:"scores"`
}

// Manager owns the registry of agents, their runtime state, and the
// selection scoring. Safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	agents     map[string]*Agent
	classifier classify.Classifier

	histMu  sync.Mutex
	history []SelectionRecord
}

// New creates a Manager using the given classifier. A nil classifier
// falls back to the keyword baseline.
func New(classifier classify.Classifier) *Manager {
	if classifier == nil {
		classifier = classify.NewKeywordClassifier()
	}
	return &Manager{
		agents:     make(map[string]*Agent),
		classifier: classifier,
	}
}

// Initialize registers and starts the given roster. An empty roster
// falls back to the built-in default agents.
func (m *Manager) Initialize(specs []models.AgentSpec) error {
	if len(specs) == 0 {
		specs = DefaultRoster()
	}

	for _, spec := range specs {
		if err := m.Register(spec); err != nil {
			return fmt.Errorf("registering agent %s: %w", spec.ID, err)
		}
	}
	return nil
}

// Register adds an agent to the registry and marks it idle. An agent
// that was taken out of service by Shutdown may be registered again,
// which restarts it under the new spec with its metrics intact; a live
// duplicate id is an error.
func (m *Manager) Register(spec models.AgentSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("agent spec missing id")
	}
	if !spec.Type.Valid() {
		return fmt.Errorf("agent %s has unknown type %q", spec.ID, spec.Type)
	}
	if spec.MaxConcurrentTasks < 1 {
		spec.MaxConcurrentTasks = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.agents[spec.ID]; ok {
		if existing.Status() != models.AgentStatusUnavailable {
			return fmt.Errorf("agent %s already registered", spec.ID)
		}
		existing.reactivate(spec)
		return nil
	}

	a := newAgent(spec)
	a.setStatus(models.AgentStatusIdle)
	m.agents[spec.ID] = a
	return nil
}

// Get returns the agent with the given id.
func (m *Manager) Get(agentID string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return a, nil
}

// SelectAgents picks up to maxAgents agents for the task, scored against
// the task's inferred requirements and the agents' track records. The
// selection enforces type diversity: the final slot is reserved for a
// type not yet chosen when one qualifies. Fewer than maxAgents may be
// returned; ErrNoAgentsAvailable is returned only when nothing qualifies.
func (m *Manager) SelectAgents(task string, _ models.UserContext, maxAgents int, preferences []string) ([]models.AgentDescriptor, error) {
	if maxAgents < 1 {
		maxAgents = 1
	}

	analysis := m.classifier.Classify(task)

	m.mu.RLock()
	candidates := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		if a.selectable() {
			candidates = append(candidates, a)
		}
	}
	m.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, ErrNoAgentsAvailable
	}

	type scored struct {
		agent *Agent
		score float64
	}
	scoredAgents := make([]scored, 0, len(candidates))
	for _, a := range candidates {
		scoredAgents = append(scoredAgents, scored{a, m.scoreAgent(a, analysis, preferences)})
	}

	// Sort by score descending; tie-break on id so selection is deterministic.
	sort.Slice(scoredAgents, func(i, j int) bool {
		if scoredAgents[i].score != scoredAgents[j].score {
			return scoredAgents[i].score > scoredAgents[j].score
		}
		return scoredAgents[i].agent.Spec().ID < scoredAgents[j].agent.Spec().ID
	})

	selected := make([]models.AgentDescriptor, 0, maxAgents)
	usedTypes := make(map[models.AgentType]struct{})
	for _, sa := range scoredAgents {
		if len(selected) >= maxAgents {
			break
		}
		agentType := sa.agent.Spec().Type
		_, typeSeen := usedTypes[agentType]
		if len(selected) < maxAgents-1 || !typeSeen {
			selected = append(selected, sa.agent.descriptor(sa.score))
			usedTypes[agentType] = struct{}{}
		}
	}

	m.recordSelection(task, analysis, selected)
	return selected, nil
}

// scoreAgent computes the selection score:
// priority, type match, capability overlap, track record, explicit
// preference, and a small recency bonus for idle agents.
func (m *Manager) scoreAgent(a *Agent, analysis classify.Classification, preferences []string) float64 {
	spec := a.Spec()
	metrics := a.Metrics()

	score := float64(spec.Priority) * 0.1

	for _, at := range analysis.PreferredTypes {
		if spec.Type == at {
			score += 0.4
			break
		}
	}

	if len(analysis.RequiredCapabilities) > 0 {
		have := make(map[string]struct{}, len(spec.Capabilities))
		for _, c := range spec.Capabilities {
			have[c] = struct{}{}
		}
		matching := 0
		for _, c := range analysis.RequiredCapabilities {
			if _, ok := have[c]; ok {
				matching++
			}
		}
		score += float64(matching) / float64(len(analysis.RequiredCapabilities)) * 0.3
	}

	if metrics.TotalTasks > 0 {
		score += metrics.SuccessRate * 0.2
		avgConf := metrics.AverageConfidence
		if avgConf > 1 {
			avgConf = 1
		}
		score += avgConf * 0.1
	}

	for _, p := range preferences {
		if p == spec.ID {
			score += 0.2
			break
		}
	}

	if !metrics.LastUsed.IsZero() {
		hoursSince := time.Since(metrics.LastUsed).Hours()
		if hoursSince > 0.1 {
			hoursSince = 0.1
		}
		score += hoursSince
	}

	return score
}

// Acquire reserves a task slot on the agent. Dispatch must call this
// before executing; selection is advisory and the slot can have been
// taken by a concurrent orchestration in the meantime.
func (m *Manager) Acquire(agentID, taskID string) error {
	a, err := m.Get(agentID)
	if err != nil {
		return err
	}
	return a.acquire(taskID)
}

// Release frees a task slot previously reserved with Acquire.
func (m *Manager) Release(agentID, taskID string) {
	if a, err := m.Get(agentID); err == nil {
		a.release(taskID)
	}
}

// RecordResult folds one task outcome into the agent's metrics.
func (m *Manager) RecordResult(agentID string, execTime time.Duration, success bool, confidence float64, errMsg string) {
	a, err := m.Get(agentID)
	if err != nil {
		return
	}
	a.recordResult(execTime, success, confidence)
	if errMsg != "" {
		a.recordError(errMsg)
	}
}

// Status returns a snapshot for one agent.
func (m *Manager) Status(agentID string) (StatusReport, error) {
	a, err := m.Get(agentID)
	if err != nil {
		return StatusReport{}, err
	}
	return a.report(), nil
}

// StatusAll returns snapshots for every registered agent.
func (m *Manager) StatusAll() map[string]StatusReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := make(map[string]StatusReport, len(m.agents))
	for id, a := range m.agents {
		reports[id] = a.report()
	}
	return reports
}

// CurrentLoad returns the agent's live load fraction in [0, 1], derived
// from its in-flight task count. Unknown agents report full load.
func (m *Manager) CurrentLoad(agentID string) float64 {
	a, err := m.Get(agentID)
	if err != nil {
		return 1
	}
	return a.load()
}

// PerformanceScore returns a 0-1 performance estimate blending success
// rate and average confidence. Agents with no history score 0.8 so new
// agents are not starved of work.
func (m *Manager) PerformanceScore(agentID string) float64 {
	a, err := m.Get(agentID)
	if err != nil {
		return 0
	}
	metrics := a.Metrics()
	if metrics.TotalTasks == 0 {
		return 0.8
	}
	avgConf := metrics.AverageConfidence
	if avgConf > 1 {
		avgConf = 1
	}
	return (metrics.SuccessRate + avgConf) / 2
}

// Count returns the number of registered agents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents)
}

// SelectionHistory returns a copy of the recent selection records.
func (m *Manager) SelectionHistory() []SelectionRecord {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	return append([]SelectionRecord(nil), m.history...)
}

func (m *Manager) recordSelection(task string, analysis classify.Classification, selected []models.AgentDescriptor) {
	rec := SelectionRecord{
		Timestamp: time.Now(),
		Task:      task,
		Domain:    analysis.Domain,
		Selected:  make([]string, 0, len(selected)),
		Scores:    make(map[string]float64, len(selected)),
	}
	for _, d := range selected {
		rec.Selected = append(rec.Selected, d.ID)
		rec.Scores[d.ID] = d.Score
	}

	m.histMu.Lock()
	defer m.histMu.Unlock()
	m.history = append(m.history, rec)
	if len(m.history) > selectionHistoryMax {
		m.history = append([]SelectionRecord(nil), m.history[len(m.history)-selectionHistoryMax/2:]...)
	}
}

// Shutdown drains in-flight tasks up to the context deadline, then marks
// every agent unavailable.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	agents := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, a)
	}
	m.mu.RUnlock()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

drain:
	for {
		allDrained := true
		for _, a := range agents {
			if !a.drained() {
				allDrained = false
				break
			}
		}
		if allDrained {
			break drain
		}
		select {
		case <-ctx.Done():
			break drain
		case <-ticker.C:
		}
	}

	for _, a := range agents {
		a.setStatus(models.AgentStatusUnavailable)
	}
}
