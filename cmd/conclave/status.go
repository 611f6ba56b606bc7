package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/manager"
	"github.com/conclave-ai/conclave/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show orchestrator health and agent roster",
	Long: `Initialize the orchestration stack from configuration and report
its health, metrics, and the state of every registered agent.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Status never needs a live backend.
	cfg.Runner.Simulate = true

	s, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer s.close(func() { s.orch.Shutdown(context.Background()) })

	health := s.orch.CheckHealth()
	switch health.Status {
	case orchestrator.HealthHealthy:
		color.Green("● %s", health.Status)
	case orchestrator.HealthDegraded:
		color.Yellow("● %s: %s", health.Status, health.Message)
	default:
		color.Red("● %s: %s", health.Status, health.Message)
	}

	metrics := s.orch.GetMetrics()
	fmt.Printf("agents %v · active orchestrations %v · learning db %s\n",
		metrics["registered_agents"], metrics["active_orchestrations"], learningPath(cfg))

	bold := color.New(color.Bold)
	fmt.Println()
	bold.Println("Roster")

	type agentRow struct {
		id     string
		status string
		tasks  int
	}
	statuses, _ := metrics["agent_status"].(map[string]manager.StatusReport)
	rows := make([]agentRow, 0, len(statuses))
	for id, report := range statuses {
		rows = append(rows, agentRow{id, string(report.Status), report.CurrentTasks})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	for _, row := range rows {
		fmt.Printf("  %-18s %-12s %d active\n", row.id, row.status, row.tasks)
	}
	return nil
}

func learningPath(cfg *config.Config) string {
	if cfg.Learning.DBPath == "" {
		return "disabled"
	}
	return cfg.Learning.DBPath
}
