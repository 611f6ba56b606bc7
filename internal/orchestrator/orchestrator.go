package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/internal/classify"
	"github.com/conclave-ai/conclave/internal/collective"
	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/contextstore"
	"github.com/conclave-ai/conclave/internal/distributor"
	"github.com/conclave-ai/conclave/internal/manager"
	"github.com/conclave-ai/conclave/internal/runner"
	"github.com/conclave-ai/conclave/pkg/models"
)

// OrchestrationRequest is the rich input of one orchestration call.
type OrchestrationRequest struct {
	// ID identifies the call; generated when empty.
	ID string
	// Task is the natural-language task text.
	Task string
	// Context carries the caller's user context.
	Context models.UserContext
	// Strategy overrides automatic strategy selection when set.
	Strategy models.OrchestrationStrategy
	// MaxAgents overrides the configured selection ceiling when positive.
	MaxAgents int
	// RequireConsensus forces consensus-seeking synthesis.
	RequireConsensus bool
	// Timeout overrides the configured batch timeout when positive.
	Timeout time.Duration
}

// OrchestrationResult is the rich output of one orchestration call.
type OrchestrationResult struct {
	OrchestrationID    string                       `json:"orchestration_id"`
	FinalResponse      string                       `json:"final_response"`
	ConfidenceScore    float64                      `json:"confidence_score"`
	AgentsUsed         []string                     `json:"agents_used"`
	ExecutionTime      time.Duration                `json:"execution_time"`
	StrategyUsed       models.OrchestrationStrategy `json:"strategy_used"`
	ConsensusAchieved  bool                         `json:"consensus_achieved"`
	ConsensusMethod    models.ConsensusMethod       `json:"consensus_method"`
	AgreementLevel     float64                      `json:"agreement_level"`
	IndividualResults  []models.IndividualResult    `json:"individual_results"`
	CollectiveInsights map[string]any               `json:"collective_insights,omitempty"`
	Degraded           bool                         `json:"degraded,omitempty"`
}

// Orchestrator is the façade over agent selection, task distribution,
// concurrent dispatch, and consensus synthesis. All collaborators are
// injected; the orchestrator owns no global state.
type Orchestrator struct {
	cfg        config.OrchestrationConfig
	manager    *manager.Manager
	dist       *distributor.Distributor
	collective *collective.Engine
	contexts   *contextstore.Store
	runner     runner.Runner
	classifier classify.Classifier
	logger     *DebugLogger
	emitter    *EventEmitter

	captureConversations bool

	mu            sync.Mutex
	initialized   bool
	shuttingDown  bool
	active        map[string]time.Time
	totalCalls    int
	totalDuration time.Duration
	successCalls  int
	inflight      sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClassifier overrides the keyword classifier used for strategy and
// domain inference.
func WithClassifier(c classify.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithConversationCapture stores each successful Process call as a
// conversation turn in the context store.
func WithConversationCapture() Option {
	return func(o *Orchestrator) { o.captureConversations = true }
}

// WithEventBuffer sets the lifecycle event channel's buffer size.
func WithEventBuffer(size int) Option {
	return func(o *Orchestrator) { o.emitter = NewEventEmitter(size) }
}

// New creates an Orchestrator from its collaborators. Call Initialize
// before Process.
func New(cfg config.OrchestrationConfig, mgr *manager.Manager, dist *distributor.Distributor, eng *collective.Engine, store *contextstore.Store, run runner.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		manager:    mgr,
		dist:       dist,
		collective: eng,
		contexts:   store,
		runner:     run,
		classifier: classify.NewKeywordClassifier(),
		logger:     NopLogger(),
		emitter:    NewEventEmitter(100),
		active:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Initialize readies the orchestrator. It registers the given agent
// specs with the manager (nil loads the default roster) and is not
// idempotent: a second call without shutdown fails.
func (o *Orchestrator) Initialize(specs []models.AgentSpec) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		return ErrAlreadyInitialized
	}

	if err := o.manager.Initialize(specs); err != nil {
		return fmt.Errorf("initialize agent manager: %w", err)
	}

	o.initialized = true
	o.shuttingDown = false
	o.logger.Log("orchestrator initialized with %d agents", o.manager.Count())
	return nil
}

// Shutdown stops accepting new orchestrations, waits up to the
// configured grace period for in-flight calls, then drains the agent
// manager. Safe to call without Initialize or more than once.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	if !o.initialized || o.shuttingDown {
		o.mu.Unlock()
		return
	}
	o.shuttingDown = true
	o.mu.Unlock()

	grace := o.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}

	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		o.logger.Log("shutdown grace expired with orchestrations still in flight")
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	o.manager.Shutdown(drainCtx)

	o.mu.Lock()
	o.initialized = false
	o.mu.Unlock()
	o.logger.Log("orchestrator shut down")
}

// Events returns the lifecycle event channel.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Process runs one task end to end and returns the final response text.
// It either returns text or an error, never both and never partial
// output. Degraded results still return their best-effort text.
func (o *Orchestrator) Process(ctx context.Context, task string, userCtx models.UserContext) (string, error) {
	result, err := o.ExecuteOrchestration(ctx, OrchestrationRequest{
		Task:    task,
		Context: userCtx,
	})
	if err != nil {
		return "", err
	}

	if o.captureConversations && userCtx.UserID != "" {
		o.contexts.StoreConversationTurn(userCtx.UserID, task, result.FinalResponse, map[string]any{
			"orchestration_id": result.OrchestrationID,
			"confidence":       result.ConfidenceScore,
			"degraded":         result.Degraded,
		})
	}
	return result.FinalResponse, nil
}

// ExecuteOrchestration runs one orchestration call: select agents,
// distribute, dispatch concurrently under one shared timeout, and
// synthesize a consensus result. Per-agent failures are folded into the
// result; only systemic failures surface as errors.
func (o *Orchestrator) ExecuteOrchestration(ctx context.Context, req OrchestrationRequest) (OrchestrationResult, error) {
	o.mu.Lock()
	if !o.initialized {
		o.mu.Unlock()
		return OrchestrationResult{}, ErrNotInitialized
	}
	if o.shuttingDown {
		o.mu.Unlock()
		return OrchestrationResult{}, ErrShuttingDown
	}
	if req.ID == "" {
		req.ID = "orch_" + uuid.NewString()[:8]
	}
	o.active[req.ID] = time.Now()
	o.inflight.Add(1)
	o.mu.Unlock()

	start := time.Now()
	defer func() {
		o.mu.Lock()
		delete(o.active, req.ID)
		o.totalCalls++
		o.totalDuration += time.Since(start)
		o.mu.Unlock()
		o.inflight.Done()
	}()

	o.emitter.Emit(Event{Type: EventOrchestrationStarted, OrchestrationID: req.ID, Message: req.Task, Timestamp: time.Now()})
	o.logger.Log("[%s] start task=%q user=%s", req.ID, req.Task, req.Context.UserID)

	strategy := req.Strategy
	if strategy == "" {
		strategy = selectStrategy(req.Task)
	}
	requireConsensus := req.RequireConsensus || strategy == models.StrategyConsensus

	maxAgents := req.MaxAgents
	if maxAgents <= 0 {
		maxAgents = o.cfg.MaxAgents
	}

	agents, err := o.manager.SelectAgents(req.Task, req.Context, maxAgents, preferredAgents(req.Context))
	if err != nil {
		o.failed(req.ID, "agent selection", err)
		return OrchestrationResult{}, execErr(req.ID, "agent selection", err)
	}
	o.emitter.Emit(Event{Type: EventAgentsSelected, OrchestrationID: req.ID, Message: fmt.Sprintf("%d agents", len(agents)), Timestamp: time.Now()})
	o.logger.Log("[%s] selected %d agents, strategy=%s", req.ID, len(agents), strategy)

	assignments, err := o.dist.Distribute(req.Task, agents, strategy, req.Context)
	if err != nil {
		o.failed(req.ID, "task distribution", err)
		return OrchestrationResult{}, execErr(req.ID, "task distribution", err)
	}
	o.emitter.Emit(Event{Type: EventTasksDistributed, OrchestrationID: req.ID, Message: fmt.Sprintf("%d assignments", len(assignments)), Timestamp: time.Now()})

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Timeout
	}
	results := o.dispatch(ctx, req.ID, assignments, timeout)

	domain := o.classifier.Classify(req.Task).Domain
	consensus, err := o.collective.Synthesize(req.Task, results, domain, requireConsensus)
	if err != nil {
		o.failed(req.ID, "consensus synthesis", err)
		return OrchestrationResult{}, execErr(req.ID, "consensus synthesis", err)
	}
	o.collective.RecordOutcomes(results, domain)

	result := OrchestrationResult{
		OrchestrationID:    req.ID,
		FinalResponse:      consensus.FinalResponse,
		ConfidenceScore:    consensus.ConfidenceScore,
		AgentsUsed:         consensus.ParticipatingAgents,
		ExecutionTime:      time.Since(start),
		StrategyUsed:       strategy,
		ConsensusAchieved:  consensus.ConsensusAchieved,
		ConsensusMethod:    consensus.MethodUsed,
		AgreementLevel:     consensus.AgreementLevel,
		IndividualResults:  results,
		CollectiveInsights: consensus.SynthesisInsights,
		Degraded:           consensus.Degraded,
	}
	if consensus.ConfidenceScore < o.cfg.QualityThreshold {
		if result.CollectiveInsights == nil {
			result.CollectiveInsights = make(map[string]any)
		}
		result.CollectiveInsights["below_quality_threshold"] = true
	}

	o.mu.Lock()
	o.successCalls++
	o.mu.Unlock()

	o.emitter.Emit(Event{Type: EventOrchestrationCompleted, OrchestrationID: req.ID, Message: string(consensus.MethodUsed), Timestamp: time.Now()})
	o.logger.Log("[%s] done in %s method=%s consensus=%t degraded=%t",
		req.ID, result.ExecutionTime, consensus.MethodUsed, consensus.ConsensusAchieved, consensus.Degraded)
	return result, nil
}

func (o *Orchestrator) failed(id, stage string, err error) {
	o.logger.Log("[%s] %s failed: %v", id, stage, err)
	o.emitter.Emit(Event{Type: EventOrchestrationFailed, OrchestrationID: id, Message: fmt.Sprintf("%s: %v", stage, err), Timestamp: time.Now()})
}

// dispatch runs every assignment concurrently and waits for the whole
// batch under one shared timeout. Agents that miss the deadline are
// reported as failed-by-timeout; their goroutines are cancelled
// cooperatively and release their capacity on their own time.
func (o *Orchestrator) dispatch(ctx context.Context, orchID string, assignments []models.TaskAssignment, timeout time.Duration) []models.IndividualResult {
	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	results := make([]models.IndividualResult, len(assignments))
	completed := make([]bool, len(assignments))

	var wg sync.WaitGroup
	for i, assignment := range assignments {
		wg.Add(1)
		go func(i int, assignment models.TaskAssignment) {
			defer wg.Done()
			r := o.runAgent(batchCtx, orchID, assignment)
			mu.Lock()
			results[i] = r
			completed[i] = true
			mu.Unlock()

			eventType := EventAgentCompleted
			if !r.Success {
				eventType = EventAgentFailed
			}
			o.emitter.Emit(Event{Type: eventType, OrchestrationID: orchID, AgentID: assignment.AgentID, Message: r.Error, Timestamp: time.Now()})
		}(i, assignment)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-batchCtx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]models.IndividualResult, len(assignments))
	for i := range assignments {
		if completed[i] {
			out[i] = results[i]
			continue
		}
		out[i] = models.IndividualResult{
			AgentID: assignments[i].AgentID,
			Success: false,
			Error:   "orchestration timeout",
		}
	}
	return out
}

// runAgent executes one assignment. Every failure mode, including a
// panic in the runner, comes back as a failed result so siblings are
// never aborted.
func (o *Orchestrator) runAgent(ctx context.Context, orchID string, assignment models.TaskAssignment) (result models.IndividualResult) {
	result = models.IndividualResult{AgentID: assignment.AgentID}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Log("[%s] agent %s panicked: %v", orchID, assignment.AgentID, r)
			result = models.IndividualResult{
				AgentID: assignment.AgentID,
				Success: false,
				Error:   fmt.Sprintf("agent panic: %v", r),
			}
		}
	}()

	agent, err := o.manager.Get(assignment.AgentID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	taskID := orchID + ":" + assignment.AgentID
	if err := o.manager.Acquire(assignment.AgentID, taskID); err != nil {
		// Busy agents are skipped, not retried.
		result.Error = err.Error()
		return result
	}
	defer o.manager.Release(assignment.AgentID, taskID)

	start := time.Now()
	resp, err := o.runner.Run(ctx, agent.Spec(), assignment)
	execTime := time.Since(start)

	if err != nil {
		o.manager.RecordResult(assignment.AgentID, execTime, false, 0, err.Error())
		result.ExecutionTime = execTime
		result.Error = err.Error()
		return result
	}

	o.manager.RecordResult(assignment.AgentID, execTime, true, resp.Confidence, "")
	return models.IndividualResult{
		AgentID:       assignment.AgentID,
		Response:      resp.Text,
		Confidence:    resp.Confidence,
		Success:       true,
		ExecutionTime: execTime,
		Metadata:      resp.Metadata,
	}
}

// preferredAgents pulls the caller's preferred agent ids out of the
// user context, if any.
func preferredAgents(userCtx models.UserContext) []string {
	raw, ok := userCtx.Preferences["preferred_agents"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
