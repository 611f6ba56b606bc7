package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(nil)
	if err := m.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return m
}

func TestInitialize_DefaultRoster(t *testing.T) {
	m := newTestManager(t)

	if m.Count() != 5 {
		t.Errorf("Count = %d, want 5", m.Count())
	}
	for _, id := range []string{"analytical_agent", "creative_agent", "technical_agent", "research_agent", "general_agent"} {
		a, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if a.Status() != models.AgentStatusIdle {
			t.Errorf("agent %s status = %v, want idle", id, a.Status())
		}
	}
}

func TestRegister_Duplicate(t *testing.T) {
	m := newTestManager(t)

	err := m.Register(models.AgentSpec{ID: "analytical_agent", Type: models.AgentTypeAnalytical})
	if err == nil {
		t.Error("expected error registering duplicate agent id")
	}
}

func TestGet_NotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get("ghost_agent")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestSelectAgents_PrefersMatchingType(t *testing.T) {
	m := newTestManager(t)

	selected, err := m.SelectAgents("Analyze the sensor data trends", models.UserContext{}, 3, nil)
	if err != nil {
		t.Fatalf("SelectAgents: %v", err)
	}
	if len(selected) == 0 {
		t.Fatal("expected at least one agent")
	}
	if selected[0].ID != "analytical_agent" {
		t.Errorf("top agent = %s, want analytical_agent", selected[0].ID)
	}
}

func TestSelectAgents_TypeDiversity(t *testing.T) {
	// With maxAgents >= 2 and at least 2 distinct idle types available,
	// the selection must span at least 2 types.
	m := newTestManager(t)

	selected, err := m.SelectAgents("Analyze and evaluate the research findings", models.UserContext{}, 3, nil)
	if err != nil {
		t.Fatalf("SelectAgents: %v", err)
	}
	if len(selected) < 2 {
		t.Fatalf("expected >= 2 agents, got %d", len(selected))
	}

	types := make(map[models.AgentType]struct{})
	for _, d := range selected {
		types[d.Type] = struct{}{}
	}
	if len(types) < 2 {
		t.Errorf("selection spans %d types, want >= 2: %+v", len(types), selected)
	}
}

func TestSelectAgents_FewerThanRequested(t *testing.T) {
	m := New(nil)
	if err := m.Register(models.AgentSpec{
		ID: "only_agent", Type: models.AgentTypeGeneral, Capabilities: []string{"conversation"},
		MaxConcurrentTasks: 1, Priority: 2, Enabled: true,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	selected, err := m.SelectAgents("hello", models.UserContext{}, 3, nil)
	if err != nil {
		t.Fatalf("SelectAgents: %v", err)
	}
	if len(selected) != 1 {
		t.Errorf("len(selected) = %d, want 1", len(selected))
	}
}

func TestSelectAgents_NoneAvailable(t *testing.T) {
	m := New(nil)
	if err := m.Register(models.AgentSpec{
		ID: "disabled_agent", Type: models.AgentTypeGeneral,
		MaxConcurrentTasks: 1, Priority: 2, Enabled: false,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := m.SelectAgents("hello", models.UserContext{}, 3, nil)
	if !errors.Is(err, ErrNoAgentsAvailable) {
		t.Errorf("err = %v, want ErrNoAgentsAvailable", err)
	}
}

func TestSelectAgents_PreferenceBonus(t *testing.T) {
	m := newTestManager(t)

	selected, err := m.SelectAgents("hello there", models.UserContext{}, 1, []string{"research_agent"})
	if err != nil {
		t.Fatalf("SelectAgents: %v", err)
	}
	if selected[0].ID != "research_agent" {
		t.Errorf("top agent = %s, want research_agent (preference bonus)", selected[0].ID)
	}
}

func TestSelectAgents_SkipsBusyAgents(t *testing.T) {
	m := newTestManager(t)

	if err := m.Acquire("analytical_agent", "t1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	selected, err := m.SelectAgents("Analyze the data", models.UserContext{}, 5, nil)
	if err != nil {
		t.Fatalf("SelectAgents: %v", err)
	}
	for _, d := range selected {
		if d.ID == "analytical_agent" {
			t.Error("busy agent appeared in selection")
		}
	}
}

func TestAcquire_CapacityInvariant(t *testing.T) {
	m := New(nil)
	if err := m.Register(models.AgentSpec{
		ID: "worker", Type: models.AgentTypeGeneral,
		MaxConcurrentTasks: 2, Priority: 2, Enabled: true,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := m.Acquire("worker", "t1"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := m.Acquire("worker", "t2"); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if err := m.Acquire("worker", "t3"); !errors.Is(err, ErrAgentBusy) {
		t.Errorf("third Acquire err = %v, want ErrAgentBusy", err)
	}

	report, _ := m.Status("worker")
	if report.CurrentTasks > report.MaxTasks {
		t.Errorf("capacity invariant violated: %d > %d", report.CurrentTasks, report.MaxTasks)
	}
}

func TestAcquire_ConcurrentNeverExceedsCapacity(t *testing.T) {
	m := New(nil)
	if err := m.Register(models.AgentSpec{
		ID: "worker", Type: models.AgentTypeGeneral,
		MaxConcurrentTasks: 3, Priority: 2, Enabled: true,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := m.Acquire("worker", fmt.Sprintf("t%d", n)); err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if acquired != 3 {
		t.Errorf("acquired = %d, want exactly 3", acquired)
	}
	report, _ := m.Status("worker")
	if report.CurrentTasks > report.MaxTasks {
		t.Errorf("capacity invariant violated: %d > %d", report.CurrentTasks, report.MaxTasks)
	}
}

func TestRelease_ReturnsToIdle(t *testing.T) {
	m := newTestManager(t)

	if err := m.Acquire("general_agent", "t1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	a, _ := m.Get("general_agent")
	if a.Status() != models.AgentStatusBusy {
		t.Errorf("status after acquire = %v, want busy", a.Status())
	}

	m.Release("general_agent", "t1")
	if a.Status() != models.AgentStatusIdle {
		t.Errorf("status after release = %v, want idle", a.Status())
	}
}

func TestRecordResult_Metrics(t *testing.T) {
	m := newTestManager(t)

	m.RecordResult("general_agent", 100*time.Millisecond, true, 0.9, "")
	m.RecordResult("general_agent", 200*time.Millisecond, false, 0.0, "boom")

	report, err := m.Status("general_agent")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	got := report.Metrics
	if got.TotalTasks != 2 || got.SuccessfulTasks != 1 || got.FailedTasks != 1 {
		t.Errorf("task counts = %d/%d/%d, want 2/1/1", got.TotalTasks, got.SuccessfulTasks, got.FailedTasks)
	}
	if got.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", got.SuccessRate)
	}
	if got.LastError != "boom" {
		t.Errorf("LastError = %q, want %q", got.LastError, "boom")
	}
	if got.AverageConfidence <= 0 || got.AverageConfidence >= 1 {
		t.Errorf("AverageConfidence = %v, want in (0, 1)", got.AverageConfidence)
	}
}

func TestPerformanceScore(t *testing.T) {
	m := newTestManager(t)

	// No history: default estimate.
	if got := m.PerformanceScore("general_agent"); got != 0.8 {
		t.Errorf("fresh PerformanceScore = %v, want 0.8", got)
	}

	for i := 0; i < 20; i++ {
		m.RecordResult("general_agent", 50*time.Millisecond, true, 0.9, "")
	}
	got := m.PerformanceScore("general_agent")
	if got < 0.5 || got > 1 {
		t.Errorf("PerformanceScore = %v, want in [0.5, 1]", got)
	}

	if got := m.PerformanceScore("ghost"); got != 0 {
		t.Errorf("unknown agent PerformanceScore = %v, want 0", got)
	}
}

func TestCurrentLoad(t *testing.T) {
	m := New(nil)
	if err := m.Register(models.AgentSpec{
		ID: "worker", Type: models.AgentTypeGeneral,
		MaxConcurrentTasks: 2, Priority: 2, Enabled: true,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got := m.CurrentLoad("worker"); got != 0 {
		t.Errorf("idle load = %v, want 0", got)
	}
	m.Acquire("worker", "t1")
	if got := m.CurrentLoad("worker"); got != 0.5 {
		t.Errorf("half load = %v, want 0.5", got)
	}
	if got := m.CurrentLoad("ghost"); got != 1 {
		t.Errorf("unknown agent load = %v, want 1", got)
	}
}

func TestShutdown_DrainsThenMarksUnavailable(t *testing.T) {
	m := newTestManager(t)

	if err := m.Acquire("general_agent", "t1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		m.Release("general_agent", "t1")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.Shutdown(ctx)

	for id, report := range m.StatusAll() {
		if report.Status != models.AgentStatusUnavailable {
			t.Errorf("agent %s status = %v, want unavailable", id, report.Status)
		}
	}
}

func TestShutdown_ForceAfterGrace(t *testing.T) {
	m := newTestManager(t)

	// Never released: shutdown must still return once the grace expires.
	if err := m.Acquire("general_agent", "stuck"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return after grace period")
	}

	a, _ := m.Get("general_agent")
	if a.Status() != models.AgentStatusUnavailable {
		t.Errorf("status = %v, want unavailable", a.Status())
	}
}

func TestInitialize_AfterShutdownRestarts(t *testing.T) {
	m := newTestManager(t)

	m.RecordResult("analytical_agent", 50*time.Millisecond, true, 0.9, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Shutdown(ctx)

	if err := m.Initialize(nil); err != nil {
		t.Fatalf("Initialize after Shutdown: %v", err)
	}

	a, err := m.Get("analytical_agent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Status() != models.AgentStatusIdle {
		t.Errorf("status = %v, want idle after restart", a.Status())
	}
	if a.Metrics().TotalTasks != 1 {
		t.Errorf("TotalTasks = %d, want metrics to survive restart", a.Metrics().TotalTasks)
	}

	selected, err := m.SelectAgents("Analyze the restart behavior", models.UserContext{}, 3, nil)
	if err != nil {
		t.Fatalf("SelectAgents after restart: %v", err)
	}
	if len(selected) == 0 {
		t.Fatal("expected selectable agents after restart")
	}
}
