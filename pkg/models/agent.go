package models

import "time"

// AgentType represents the specialization category of an agent.
type AgentType string

const (
	// AgentTypeGeneral handles broad tasks with no particular specialization.
	AgentTypeGeneral AgentType = "general"
	// AgentTypeSpecialist handles narrowly scoped domain tasks.
	AgentTypeSpecialist AgentType = "specialist"
	// AgentTypeCreative handles ideation, writing, and design tasks.
	AgentTypeCreative AgentType = "creative"
	// AgentTypeAnalytical handles analysis, research, and evaluation tasks.
	AgentTypeAnalytical AgentType = "analytical"
	// AgentTypeTechnical handles programming and system design tasks.
	AgentTypeTechnical AgentType = "technical"
	// AgentTypeResearch handles information gathering and verification tasks.
	AgentTypeResearch AgentType = "research"
	// AgentTypeProblemSolver handles troubleshooting and debugging tasks.
	AgentTypeProblemSolver AgentType = "problem_solver"
)

// Valid returns true if the type is a known value.
func (t AgentType) Valid() bool {
	switch t {
	case AgentTypeGeneral, AgentTypeSpecialist, AgentTypeCreative, AgentTypeAnalytical,
		AgentTypeTechnical, AgentTypeResearch, AgentTypeProblemSolver:
		return true
	default:
		return false
	}
}

// AgentStatus represents the current lifecycle state of an agent.
type AgentStatus string

const (
	// AgentStatusInitializing indicates the agent is starting up.
	AgentStatusInitializing AgentStatus = "initializing"
	// AgentStatusIdle indicates the agent is ready for work.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusBusy indicates the agent is processing one or more tasks.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusUnavailable indicates the agent has been taken out of rotation.
	AgentStatusUnavailable AgentStatus = "unavailable"
	// AgentStatusError indicates the agent failed and needs attention.
	AgentStatusError AgentStatus = "error"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusInitializing, AgentStatusIdle, AgentStatusBusy,
		AgentStatusUnavailable, AgentStatusError:
		return true
	default:
		return false
	}
}

// AgentSpec is the static definition of an agent. It is immutable after
// registration except for the Enabled flag, which the roster watcher may
// flip at runtime.
type AgentSpec struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id" yaml:"id"`
	// Type is the specialization category.
	Type AgentType `json:"type" yaml:"type"`
	// Name is the human-readable agent name.
	Name string `json:"name" yaml:"name"`
	// Description explains what the agent is good at.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Capabilities lists the coarse skills the agent advertises.
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	// Specializations lists finer-grained skills within the capabilities.
	Specializations []string `json:"specializations,omitempty" yaml:"specializations,omitempty"`
	// MaxConcurrentTasks bounds how many tasks the agent may run at once.
	MaxConcurrentTasks int `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
	// TimeoutSeconds is the per-task timeout hint for this agent.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
	// Priority ranks the agent from 1 (lowest) to 5 (highest).
	Priority int `json:"priority" yaml:"priority"`
	// Enabled controls whether the agent participates in selection.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// AgentMetrics tracks the rolling performance of an agent. Response time
// and confidence use an exponential moving average with alpha 0.1.
type AgentMetrics struct {
	// TotalTasks is the number of tasks dispatched to this agent.
	TotalTasks int `json:"total_tasks"`
	// SuccessfulTasks is the number of tasks that completed successfully.
	SuccessfulTasks int `json:"successful_tasks"`
	// FailedTasks is the number of tasks that failed or timed out.
	FailedTasks int `json:"failed_tasks"`
	// AverageResponseTime is the EMA of task execution time.
	AverageResponseTime time.Duration `json:"average_response_time"`
	// AverageConfidence is the EMA of reported confidence scores.
	AverageConfidence float64 `json:"average_confidence"`
	// LastUsed is when the agent last finished a task.
	LastUsed time.Time `json:"last_used,omitempty"`
	// SuccessRate is SuccessfulTasks / TotalTasks.
	SuccessRate float64 `json:"success_rate"`
	// LastError holds the most recent failure message, if any.
	LastError string `json:"last_error,omitempty"`
}

// AgentDescriptor is the selection-time snapshot of an agent handed from
// the manager to the distributor. It carries the selection score so the
// rest of the pipeline can audit why an agent was chosen.
type AgentDescriptor struct {
	// ID is the agent's unique identifier.
	ID string `json:"id"`
	// Type is the agent's specialization category.
	Type AgentType `json:"type"`
	// Capabilities is a copy of the agent's advertised capabilities.
	Capabilities []string `json:"capabilities"`
	// Specializations is a copy of the agent's specializations.
	Specializations []string `json:"specializations,omitempty"`
	// Score is the selection score computed by the manager.
	Score float64 `json:"score"`
}
