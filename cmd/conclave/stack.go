package main

import (
	"fmt"

	"github.com/conclave-ai/conclave/internal/collective"
	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/contextstore"
	"github.com/conclave-ai/conclave/internal/distributor"
	"github.com/conclave-ai/conclave/internal/manager"
	"github.com/conclave-ai/conclave/internal/orchestrator"
	"github.com/conclave-ai/conclave/internal/runner"
	"github.com/conclave-ai/conclave/pkg/models"
)

// stack bundles the orchestration components the CLI wires together.
type stack struct {
	orch    *orchestrator.Orchestrator
	store   *contextstore.Store
	learn   *collective.Store
	watcher *manager.RosterWatcher
	logger  *orchestrator.DebugLogger
}

// buildStack constructs and initializes the full orchestration stack
// from configuration.
func buildStack(cfg *config.Config) (*stack, error) {
	logger, err := orchestrator.NewDebugLogger(cfg.Logging.DebugLog)
	if err != nil {
		return nil, fmt.Errorf("create debug logger: %w", err)
	}

	mgr := manager.New(nil)

	var engineOpts []collective.Option
	var learnStore *collective.Store
	if cfg.Learning.DBPath != "" {
		learnStore, err = collective.NewStore(cfg.Learning.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open learning store: %w", err)
		}
		engineOpts = append(engineOpts, collective.WithStore(learnStore))
	}
	engineOpts = append(engineOpts, collective.WithLogf(logger.Log))
	engine, err := collective.New(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("create consensus engine: %w", err)
	}

	store := contextstore.New(cfg.ContextStore.CacheSize,
		contextstore.WithDefaultTTL(cfg.ContextStore.DefaultTTL),
		contextstore.WithSweepInterval(cfg.ContextStore.SweepInterval),
		contextstore.WithLogf(logger.Log),
	)

	run, err := runner.ForConfig(cfg.Runner)
	if err != nil {
		return nil, fmt.Errorf("create agent runner: %w", err)
	}

	orch := orchestrator.New(cfg.Orchestration, mgr,
		distributor.New(nil, mgr, mgr), engine, store, run,
		orchestrator.WithLogger(logger),
		orchestrator.WithConversationCapture(),
	)

	specs, err := rosterSpecs(cfg)
	if err != nil {
		return nil, err
	}
	if err := orch.Initialize(specs); err != nil {
		return nil, fmt.Errorf("initialize orchestrator: %w", err)
	}

	s := &stack{orch: orch, store: store, learn: learnStore, logger: logger}
	if cfg.Roster.Path != "" && cfg.Roster.Watch {
		watcher, err := manager.WatchRoster(mgr, cfg.Roster.Path)
		if err != nil {
			return nil, fmt.Errorf("watch roster: %w", err)
		}
		s.watcher = watcher
	}
	return s, nil
}

func rosterSpecs(cfg *config.Config) ([]models.AgentSpec, error) {
	if cfg.Roster.Path == "" {
		return nil, nil
	}
	specs, err := manager.LoadRoster(cfg.Roster.Path)
	if err != nil {
		return nil, fmt.Errorf("load roster %s: %w", cfg.Roster.Path, err)
	}
	return specs, nil
}

// close tears the stack down in reverse construction order.
func (s *stack) close(shutdown func()) {
	if s.watcher != nil {
		s.watcher.Close()
	}
	if shutdown != nil {
		shutdown()
	}
	s.store.Close()
	if s.learn != nil {
		s.learn.Close()
	}
	s.logger.Close()
}
