package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/conclave-ai/conclave/internal/collective"
	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/contextstore"
	"github.com/conclave-ai/conclave/internal/distributor"
	"github.com/conclave-ai/conclave/internal/manager"
	"github.com/conclave-ai/conclave/internal/runner"
	"github.com/conclave-ai/conclave/pkg/models"
)

// failingRunner always errors.
type failingRunner struct{}

func (failingRunner) Run(ctx context.Context, spec models.AgentSpec, assignment models.TaskAssignment) (runner.Response, error) {
	return runner.Response{}, errors.New("backend unavailable")
}

// panickingRunner panics, exercising per-agent recovery.
type panickingRunner struct{}

func (panickingRunner) Run(ctx context.Context, spec models.AgentSpec, assignment models.TaskAssignment) (runner.Response, error) {
	panic("runner exploded")
}

func testConfig() config.OrchestrationConfig {
	return config.OrchestrationConfig{
		MaxAgents:                   3,
		Timeout:                     5 * time.Second,
		MaxConcurrentOrchestrations: 10,
		QualityThreshold:            0.8,
		ShutdownGrace:               time.Second,
	}
}

func newOrchestrator(t *testing.T, cfg config.OrchestrationConfig, run runner.Runner, opts ...Option) *Orchestrator {
	t.Helper()

	mgr := manager.New(nil)
	eng, err := collective.New()
	if err != nil {
		t.Fatal(err)
	}
	dist := distributor.New(nil, mgr, mgr)
	store := contextstore.New(100)
	t.Cleanup(store.Close)

	if run == nil {
		run = &runner.Simulated{Latency: time.Millisecond}
	}
	return New(cfg, mgr, dist, eng, store, run, opts...)
}

func initialized(t *testing.T, cfg config.OrchestrationConfig, run runner.Runner, opts ...Option) *Orchestrator {
	t.Helper()
	o := newOrchestrator(t, cfg, run, opts...)
	if err := o.Initialize(nil); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { o.Shutdown(context.Background()) })
	return o
}

func TestProcessBeforeInitialize(t *testing.T) {
	o := newOrchestrator(t, testConfig(), nil)
	if _, err := o.Process(context.Background(), "task", models.UserContext{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	o := initialized(t, testConfig(), nil)
	if err := o.Initialize(nil); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestShutdownWithoutInitialize(t *testing.T) {
	o := newOrchestrator(t, testConfig(), nil)
	// Must not panic or block.
	o.Shutdown(context.Background())
	o.Shutdown(context.Background())
}

func TestProcessReturnsText(t *testing.T) {
	o := initialized(t, testConfig(), nil)

	text, err := o.Process(context.Background(), "analyze the quarterly sales numbers", models.UserContext{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if text == "" {
		t.Fatal("empty response text")
	}
}

func TestExecuteOrchestrationResultShape(t *testing.T) {
	o := initialized(t, testConfig(), nil)

	result, err := o.ExecuteOrchestration(context.Background(), OrchestrationRequest{
		Task:    "analyze the dataset trends",
		Context: models.UserContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result.OrchestrationID, "orch_") {
		t.Errorf("OrchestrationID = %q", result.OrchestrationID)
	}
	if result.StrategyUsed != models.StrategyCollaborative {
		t.Errorf("StrategyUsed = %s, want collaborative for an analyze task", result.StrategyUsed)
	}
	if len(result.IndividualResults) == 0 {
		t.Error("no individual results recorded")
	}
	if len(result.AgentsUsed) == 0 {
		t.Error("no agents recorded")
	}
	if result.ConfidenceScore <= 0 || result.ConfidenceScore > 1 {
		t.Errorf("ConfidenceScore = %v", result.ConfidenceScore)
	}
	if result.ExecutionTime <= 0 {
		t.Error("ExecutionTime not recorded")
	}
}

func TestStrategySelection(t *testing.T) {
	tests := []struct {
		task string
		want models.OrchestrationStrategy
	}{
		{"analyze the market", models.StrategyCollaborative},
		{"research current trends", models.StrategyCollaborative},
		{"create a landing page", models.StrategyParallel},
		{"write a short story", models.StrategyParallel},
		{"fix the login bug", models.StrategyConsensus},
		{"troubleshoot the deploy", models.StrategyConsensus},
		{"what is the capital of france", models.StrategySequential},
		{"summarize this meeting", models.StrategyCollaborative},
	}
	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			if got := selectStrategy(tt.task); got != tt.want {
				t.Errorf("selectStrategy(%q) = %s, want %s", tt.task, got, tt.want)
			}
		})
	}
}

func TestTimeoutProducesFailureMarkers(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	// Agents simulate 5s of work, far past the batch timeout.
	o := initialized(t, cfg, &runner.Simulated{Latency: 5 * time.Second})

	start := time.Now()
	result, err := o.ExecuteOrchestration(context.Background(), OrchestrationRequest{
		Task:    "analyze something slowly",
		Context: models.UserContext{UserID: "u1"},
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("caller blocked %s, want prompt return after timeout", elapsed)
	}
	if !result.Degraded {
		t.Error("all-timeout orchestration should be degraded")
	}
	for _, r := range result.IndividualResults {
		if r.Success {
			t.Errorf("agent %s reported success past the deadline", r.AgentID)
		}
		if r.Error == "" {
			t.Errorf("agent %s has no failure reason", r.AgentID)
		}
	}
}

func TestAllAgentsFailDegraded(t *testing.T) {
	o := initialized(t, testConfig(), failingRunner{})

	result, err := o.ExecuteOrchestration(context.Background(), OrchestrationRequest{
		Task:    "analyze the failure modes",
		Context: models.UserContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatalf("per-agent failures must not surface as errors: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if result.ConsensusAchieved {
		t.Error("failed batch must not claim consensus")
	}
}

func TestPanicRecoveredPerAgent(t *testing.T) {
	o := initialized(t, testConfig(), panickingRunner{})

	result, err := o.ExecuteOrchestration(context.Background(), OrchestrationRequest{
		Task:    "analyze with a broken backend",
		Context: models.UserContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatalf("panics must be recovered into failed results: %v", err)
	}
	for _, r := range result.IndividualResults {
		if r.Success {
			t.Errorf("agent %s succeeded despite panicking runner", r.AgentID)
		}
		if !strings.Contains(r.Error, "panic") {
			t.Errorf("agent %s error = %q, want panic message", r.AgentID, r.Error)
		}
	}
}

func TestConversationCapture(t *testing.T) {
	mgr := manager.New(nil)
	eng, err := collective.New()
	if err != nil {
		t.Fatal(err)
	}
	store := contextstore.New(100)
	defer store.Close()
	o := New(testConfig(), mgr, distributor.New(nil, mgr, mgr), eng, store,
		&runner.Simulated{Latency: time.Millisecond}, WithConversationCapture())
	if err := o.Initialize(nil); err != nil {
		t.Fatal(err)
	}
	defer o.Shutdown(context.Background())

	if _, err := o.Process(context.Background(), "analyze my data", models.UserContext{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}

	turns := store.GetConversationHistory("u1", 5)
	if len(turns) != 1 {
		t.Fatalf("conversation turns = %d, want 1", len(turns))
	}
	if turns[0].UserMessage != "analyze my data" {
		t.Errorf("captured message = %q", turns[0].UserMessage)
	}
}

func TestHealthStates(t *testing.T) {
	o := newOrchestrator(t, testConfig(), nil)

	if h := o.CheckHealth(); h.Status != HealthUnhealthy {
		t.Errorf("uninitialized health = %s, want unhealthy", h.Status)
	}

	if err := o.Initialize(nil); err != nil {
		t.Fatal(err)
	}
	defer o.Shutdown(context.Background())

	if h := o.CheckHealth(); h.Status != HealthHealthy {
		t.Errorf("idle health = %s, want healthy: %s", h.Status, h.Message)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	o := initialized(t, testConfig(), nil)

	if _, err := o.Process(context.Background(), "analyze things", models.UserContext{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}

	m := o.GetMetrics()
	if m["total_orchestrations"] != 1 {
		t.Errorf("total_orchestrations = %v", m["total_orchestrations"])
	}
	if m["successful"] != 1 {
		t.Errorf("successful = %v", m["successful"])
	}
	if m["active_orchestrations"] != 0 {
		t.Errorf("active_orchestrations = %v", m["active_orchestrations"])
	}
}

func TestEventsEmitted(t *testing.T) {
	o := initialized(t, testConfig(), nil, WithEventBuffer(64))

	if _, err := o.Process(context.Background(), "analyze the logs", models.UserContext{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}

	seen := make(map[EventType]bool)
	for {
		select {
		case ev := <-o.Events():
			seen[ev.Type] = true
		default:
			for _, want := range []EventType{
				EventOrchestrationStarted,
				EventAgentsSelected,
				EventTasksDistributed,
				EventOrchestrationCompleted,
			} {
				if !seen[want] {
					t.Errorf("missing event %s", want)
				}
			}
			return
		}
	}
}

func TestProcessAfterShutdown(t *testing.T) {
	o := newOrchestrator(t, testConfig(), nil)
	if err := o.Initialize(nil); err != nil {
		t.Fatal(err)
	}
	o.Shutdown(context.Background())

	if _, err := o.Process(context.Background(), "task", models.UserContext{}); err == nil {
		t.Fatal("expected error after shutdown")
	}
}

func TestInitializeAfterShutdown(t *testing.T) {
	o := newOrchestrator(t, testConfig(), nil)
	if err := o.Initialize(nil); err != nil {
		t.Fatal(err)
	}
	o.Shutdown(context.Background())

	if err := o.Initialize(nil); err != nil {
		t.Fatalf("Initialize after Shutdown: %v", err)
	}
	t.Cleanup(func() { o.Shutdown(context.Background()) })

	text, err := o.Process(context.Background(), "analyze the restart path", models.UserContext{})
	if err != nil {
		t.Fatalf("Process after restart: %v", err)
	}
	if text == "" {
		t.Fatal("empty response text after restart")
	}
}
