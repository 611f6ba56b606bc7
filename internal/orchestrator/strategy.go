package orchestrator

import (
	"strings"

	"github.com/conclave-ai/conclave/pkg/models"
)

// strategyKeywords maps trigger words to the orchestration strategy
// they indicate. Checked in order; the first hit wins.
var strategyKeywords = []struct {
	strategy models.OrchestrationStrategy
	words    []string
}{
	{models.StrategyCollaborative, []string{"analyze", "research", "compare", "evaluate"}},
	{models.StrategyParallel, []string{"create", "design", "write", "generate"}},
	{models.StrategyConsensus, []string{"solve", "fix", "troubleshoot", "debug"}},
	{models.StrategySequential, []string{"what", "who", "when", "where"}},
}

// selectStrategy infers the orchestration strategy from the task text.
// Collaborative is the default for tasks with no recognized trigger.
func selectStrategy(task string) models.OrchestrationStrategy {
	lower := strings.ToLower(task)
	for _, sk := range strategyKeywords {
		for _, w := range sk.words {
			if strings.Contains(lower, w) {
				return sk.strategy
			}
		}
	}
	return models.StrategyCollaborative
}
