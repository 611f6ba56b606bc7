package models

import "time"

// UserContext carries caller-scoped state through an orchestration call.
// The orchestrator treats it as opaque apart from the user and session ids.
type UserContext struct {
	// UserID identifies the end user on whose behalf the task runs.
	UserID string `json:"user_id"`
	// SessionID identifies the conversation or session, if any.
	SessionID string `json:"session_id,omitempty"`
	// Preferences holds arbitrary caller preferences.
	Preferences map[string]any `json:"preferences,omitempty"`
	// DeviceInfo describes the calling device, if relevant.
	DeviceInfo map[string]any `json:"device_info,omitempty"`
}

// TaskAssignment is the per-agent work order produced by the distributor.
// It lives only for the duration of one orchestration call.
type TaskAssignment struct {
	// AgentID is the agent the task is assigned to.
	AgentID string `json:"agent_id"`
	// Task is the natural-language task text.
	Task string `json:"task"`
	// Context is the caller context forwarded to the agent.
	Context UserContext `json:"context"`
	// Priority orders dispatch, higher first.
	Priority int `json:"priority"`
	// EstimatedDuration is the predicted execution time for this agent.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// AdditionalContext carries the distribution method and its scoring rationale.
	AdditionalContext map[string]any `json:"additional_context,omitempty"`
	// AssignedAt is when the assignment was created.
	AssignedAt time.Time `json:"assigned_at"`
}

// IndividualResult is the outcome of one agent's execution of a task.
type IndividualResult struct {
	// AgentID is the agent that produced this result.
	AgentID string `json:"agent_id"`
	// Response is the agent's answer text.
	Response string `json:"response"`
	// Confidence is the agent's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	// Success reports whether the agent completed without error.
	Success bool `json:"success"`
	// ExecutionTime is how long the agent ran.
	ExecutionTime time.Duration `json:"execution_time"`
	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
	// Metadata carries agent-specific diagnostics.
	Metadata map[string]any `json:"metadata,omitempty"`
}
