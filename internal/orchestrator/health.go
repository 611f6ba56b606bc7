package orchestrator

import (
	"fmt"
	"time"
)

// HealthState is the coarse health classification.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// degradedResponseTime is the average response time above which the
// orchestrator reports itself degraded.
const degradedResponseTime = 10 * time.Second

// HealthStatus is the health-check result polled by external callers.
type HealthStatus struct {
	Status  HealthState    `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CheckHealth classifies the orchestrator's current health. Unhealthy
// means not initialized; degraded means overloaded or slow.
func (o *Orchestrator) CheckHealth() HealthStatus {
	o.mu.Lock()
	initialized := o.initialized
	activeCount := len(o.active)
	avg := o.averageResponseTimeLocked()
	o.mu.Unlock()

	details := map[string]any{
		"active_orchestrations": activeCount,
		"avg_response_time":     avg.String(),
		"registered_agents":     o.manager.Count(),
	}

	switch {
	case !initialized:
		return HealthStatus{
			Status:  HealthUnhealthy,
			Message: "orchestrator not initialized",
			Details: details,
		}
	case activeCount > o.cfg.MaxConcurrentOrchestrations:
		return HealthStatus{
			Status:  HealthDegraded,
			Message: fmt.Sprintf("%d active orchestrations exceed ceiling %d", activeCount, o.cfg.MaxConcurrentOrchestrations),
			Details: details,
		}
	case avg > degradedResponseTime:
		return HealthStatus{
			Status:  HealthDegraded,
			Message: fmt.Sprintf("average response time %s exceeds %s", avg, degradedResponseTime),
			Details: details,
		}
	default:
		return HealthStatus{
			Status:  HealthHealthy,
			Message: "ok",
			Details: details,
		}
	}
}

// GetMetrics returns an operational snapshot covering the orchestrator
// and its collaborators.
func (o *Orchestrator) GetMetrics() map[string]any {
	o.mu.Lock()
	activeCount := len(o.active)
	totalCalls := o.totalCalls
	successCalls := o.successCalls
	avg := o.averageResponseTimeLocked()
	o.mu.Unlock()

	successRate := 0.0
	if totalCalls > 0 {
		successRate = float64(successCalls) / float64(totalCalls)
	}

	distMetrics := o.dist.GetMetrics()
	ctxStats := o.contexts.Stats()

	return map[string]any{
		"total_orchestrations":    totalCalls,
		"successful":              successCalls,
		"success_rate":            successRate,
		"active_orchestrations":   activeCount,
		"avg_response_time":       avg.String(),
		"registered_agents":       o.manager.Count(),
		"agent_status":            o.manager.StatusAll(),
		"distributions":           distMetrics.TotalDistributions,
		"load_balance_efficiency": distMetrics.LoadBalanceEfficiency,
		"context_entries":         ctxStats.TotalEntries,
		"context_cache_usage":     ctxStats.CacheUsage,
		"dropped_events":          o.emitter.DroppedCount(),
	}
}

func (o *Orchestrator) averageResponseTimeLocked() time.Duration {
	if o.totalCalls == 0 {
		return 0
	}
	return o.totalDuration / time.Duration(o.totalCalls)
}
