package orchestrator

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventOrchestrationStarted indicates an orchestration call began.
	EventOrchestrationStarted EventType = "orchestration_started"
	// EventAgentsSelected indicates agent selection finished.
	EventAgentsSelected EventType = "agents_selected"
	// EventTasksDistributed indicates assignments were created.
	EventTasksDistributed EventType = "tasks_distributed"
	// EventAgentCompleted indicates one agent finished successfully.
	EventAgentCompleted EventType = "agent_completed"
	// EventAgentFailed indicates one agent failed or timed out.
	EventAgentFailed EventType = "agent_failed"
	// EventOrchestrationCompleted indicates the final result was produced.
	EventOrchestrationCompleted EventType = "orchestration_completed"
	// EventOrchestrationFailed indicates a systemic failure ended the call.
	EventOrchestrationFailed EventType = "orchestration_failed"
)

// Event is one lifecycle notification emitted during an orchestration.
type Event struct {
	Type            EventType
	OrchestrationID string
	AgentID         string
	Message         string
	Timestamp       time.Time
}

// EventEmitter handles event emission for the orchestrator.
// It provides a simple, thread-safe way to emit events to subscribers.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel.
// If the channel is full the event is dropped rather than blocking an
// orchestration on a slow subscriber.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
	default:
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[orchestrator] WARNING: Event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel.
func (e *EventEmitter) Close() {
	close(e.events)
}
