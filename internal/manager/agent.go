// Package manager owns the agent registry, runtime state, and the scoring
// used to select the best subset of agents for a task.
package manager

import (
	"sync"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// metricsAlpha is the smoothing factor for the metric moving averages.
const metricsAlpha = 0.1

// Agent holds the runtime state for one registered agent. All mutation
// goes through the agent's own mutex so orchestrations touching different
// agents never contend.
type Agent struct {
	mu      sync.Mutex
	spec    models.AgentSpec
	status  models.AgentStatus
	current map[string]struct{}
	metrics models.AgentMetrics
}

func newAgent(spec models.AgentSpec) *Agent {
	return &Agent{
		spec:    spec,
		status:  models.AgentStatusInitializing,
		current: make(map[string]struct{}),
	}
}

// Spec returns a copy of the agent's static definition.
func (a *Agent) Spec() models.AgentSpec {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spec
}

// Status returns the agent's current lifecycle state.
func (a *Agent) Status() models.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Metrics returns a copy of the agent's rolling performance metrics.
func (a *Agent) Metrics() models.AgentMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// descriptor snapshots the agent for selection. Callers set the score.
func (a *Agent) descriptor(score float64) models.AgentDescriptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return models.AgentDescriptor{
		ID:              a.spec.ID,
		Type:            a.spec.Type,
		Capabilities:    append([]string(nil), a.spec.Capabilities...),
		Specializations: append([]string(nil), a.spec.Specializations...),
		Score:           score,
	}
}

// selectable reports whether the agent qualifies as a selection candidate:
// idle, enabled, and below its concurrency cap.
func (a *Agent) selectable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status == models.AgentStatusIdle &&
		a.spec.Enabled &&
		len(a.current) < a.spec.MaxConcurrentTasks
}

// acquire reserves a task slot. It re-checks capacity at dispatch time so
// a stale selection never over-commits the agent.
func (a *Agent) acquire(taskID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.spec.Enabled || a.status == models.AgentStatusUnavailable || a.status == models.AgentStatusError {
		return ErrAgentBusy
	}
	if len(a.current) >= a.spec.MaxConcurrentTasks {
		return ErrAgentBusy
	}

	a.current[taskID] = struct{}{}
	a.status = models.AgentStatusBusy
	return nil
}

// release frees a task slot and flips the agent back to idle when the
// last task drains.
func (a *Agent) release(taskID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.current, taskID)
	if len(a.current) == 0 && a.status == models.AgentStatusBusy {
		a.status = models.AgentStatusIdle
	}
}

// recordResult folds one task outcome into the agent's metrics.
func (a *Agent) recordResult(execTime time.Duration, success bool, confidence float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := &a.metrics
	m.TotalTasks++
	m.LastUsed = time.Now()

	if success {
		m.SuccessfulTasks++
	} else {
		m.FailedTasks++
	}

	m.AverageResponseTime = time.Duration(
		metricsAlpha*float64(execTime) + (1-metricsAlpha)*float64(m.AverageResponseTime))
	m.AverageConfidence = metricsAlpha*confidence + (1-metricsAlpha)*m.AverageConfidence
	m.SuccessRate = float64(m.SuccessfulTasks) / float64(m.TotalTasks)
}

// load returns the agent's current load fraction in [0, 1].
func (a *Agent) load() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.spec.MaxConcurrentTasks == 0 {
		return 1
	}
	return float64(len(a.current)) / float64(a.spec.MaxConcurrentTasks)
}

// drained reports whether the agent has no in-flight tasks.
func (a *Agent) drained() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.current) == 0
}

// reactivate returns a shut-down agent to service under a new spec.
// Metrics carry over so learned track records survive a restart.
func (a *Agent) reactivate(spec models.AgentSpec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spec = spec
	a.status = models.AgentStatusIdle
	a.current = make(map[string]struct{})
}

// setStatus forces the agent into the given state.
func (a *Agent) setStatus(s models.AgentStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// setEnabled flips the roster enabled flag.
func (a *Agent) setEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spec.Enabled = enabled
}

// recordError marks the agent's last error without changing status.
func (a *Agent) recordError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.LastError = msg
}

// StatusReport is the externally visible snapshot of one agent.
type StatusReport struct {
	AgentID      string               `json:"agent_id"`
	Status       models.AgentStatus   `json:"status"`
	CurrentTasks int                  `json:"current_tasks"`
	MaxTasks     int                  `json:"max_tasks"`
	Metrics      models.AgentMetrics  `json:"metrics"`
}

func (a *Agent) report() StatusReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return StatusReport{
		AgentID:      a.spec.ID,
		Status:       a.status,
		CurrentTasks: len(a.current),
		MaxTasks:     a.spec.MaxConcurrentTasks,
		Metrics:      a.metrics,
	}
}
