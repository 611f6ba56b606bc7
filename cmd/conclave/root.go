package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conclave",
	Short: "Multi-agent task orchestration",
	Long: `Conclave fans a single task out to a set of specialized agents,
runs them concurrently, and synthesizes one answer via consensus.

Agent selection is scored against the task's inferred requirements,
distribution balances load and capability fit, and per-agent
reliability is learned from outcomes over time.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
