package models

// OrchestrationStrategy is the high-level coordination style for one call.
type OrchestrationStrategy string

const (
	// StrategySequential runs agents one after another.
	StrategySequential OrchestrationStrategy = "sequential"
	// StrategyParallel runs agents concurrently with no cross-talk.
	StrategyParallel OrchestrationStrategy = "parallel"
	// StrategyHierarchical delegates through a coordinator agent.
	StrategyHierarchical OrchestrationStrategy = "hierarchical"
	// StrategyConsensus requires agents to converge on an answer.
	StrategyConsensus OrchestrationStrategy = "consensus"
	// StrategyCompetitive pits agents against each other for the best answer.
	StrategyCompetitive OrchestrationStrategy = "competitive"
	// StrategyCollaborative blends agent outputs cooperatively.
	StrategyCollaborative OrchestrationStrategy = "collaborative"
)

// Valid returns true if the strategy is a known value.
func (s OrchestrationStrategy) Valid() bool {
	switch s {
	case StrategySequential, StrategyParallel, StrategyHierarchical,
		StrategyConsensus, StrategyCompetitive, StrategyCollaborative:
		return true
	default:
		return false
	}
}

// DistributionStrategy is the policy for prioritizing and ordering the
// agents an orchestration call dispatches to.
type DistributionStrategy string

const (
	// DistributionRoundRobin gives every agent equal priority in stable order.
	DistributionRoundRobin DistributionStrategy = "round_robin"
	// DistributionLoadBalanced prioritizes the least loaded agents.
	DistributionLoadBalanced DistributionStrategy = "load_balanced"
	// DistributionCapabilityMatched prioritizes by capability overlap with the task.
	DistributionCapabilityMatched DistributionStrategy = "capability_matched"
	// DistributionPerformanceOptimized prioritizes by historical performance.
	DistributionPerformanceOptimized DistributionStrategy = "performance_optimized"
	// DistributionHybrid blends capability, performance, and load.
	DistributionHybrid DistributionStrategy = "hybrid"
)

// Valid returns true if the strategy is a known value.
func (s DistributionStrategy) Valid() bool {
	switch s {
	case DistributionRoundRobin, DistributionLoadBalanced, DistributionCapabilityMatched,
		DistributionPerformanceOptimized, DistributionHybrid:
		return true
	default:
		return false
	}
}

// DistributionFor maps an orchestration strategy to the distribution
// strategy used when dispatching its agents.
func DistributionFor(s OrchestrationStrategy) DistributionStrategy {
	switch s {
	case StrategySequential:
		return DistributionCapabilityMatched
	case StrategyParallel:
		return DistributionLoadBalanced
	case StrategyConsensus, StrategyCompetitive:
		return DistributionPerformanceOptimized
	default:
		return DistributionHybrid
	}
}
