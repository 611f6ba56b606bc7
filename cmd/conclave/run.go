package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/orchestrator"
	"github.com/conclave-ai/conclave/pkg/models"
)

var (
	runMaxAgents int
	runTimeout   time.Duration
	runSimulate  bool
	runStrategy  string
	runUserID    string
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run one task through the agent collective",
	Long: `Run a single task end to end: select agents, distribute the work,
execute concurrently, and print the synthesized answer with the
per-agent breakdown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().IntVar(&runMaxAgents, "max-agents", 0, "Maximum agents to select (overrides config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Batch timeout (overrides config)")
	runCmd.Flags().BoolVar(&runSimulate, "simulate", false, "Force the simulated agent backend")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Orchestration strategy (default: inferred from task)")
	runCmd.Flags().StringVar(&runUserID, "user", "cli", "User id for conversation context")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runSimulate {
		cfg.Runner.Simulate = true
	}

	strategy := models.OrchestrationStrategy(runStrategy)
	if runStrategy != "" && !strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", runStrategy)
	}

	s, err := buildStack(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer s.close(func() { s.orch.Shutdown(context.Background()) })

	result, err := s.orch.ExecuteOrchestration(ctx, orchestrator.OrchestrationRequest{
		Task:      task,
		Context:   models.UserContext{UserID: runUserID},
		Strategy:  strategy,
		MaxAgents: runMaxAgents,
		Timeout:   runTimeout,
	})
	if err != nil {
		return err
	}

	renderResult(result)
	return nil
}

func renderResult(result orchestrator.OrchestrationResult) {
	bold := color.New(color.Bold)

	fmt.Println()
	bold.Println(result.FinalResponse)
	fmt.Println()

	if result.Degraded {
		color.Red("⚠ degraded result: every agent failed")
	}
	if result.ConsensusAchieved {
		color.Green("✓ consensus reached (%s)", result.ConsensusMethod)
	} else {
		color.Yellow("– no consensus (%s)", result.ConsensusMethod)
	}
	fmt.Printf("confidence %.2f · agreement %.2f · strategy %s · %s\n",
		result.ConfidenceScore, result.AgreementLevel, result.StrategyUsed,
		result.ExecutionTime.Round(time.Millisecond))

	fmt.Println()
	bold.Println("Agents")
	for _, r := range result.IndividualResults {
		status := color.GreenString("ok  ")
		detail := fmt.Sprintf("confidence %.2f", r.Confidence)
		if !r.Success {
			status = color.RedString("fail")
			detail = r.Error
		}
		fmt.Printf("  %s  %-18s %-10s %s\n", status, r.AgentID,
			r.ExecutionTime.Round(time.Millisecond), detail)
	}
}
