package models

// ConsensusMethod is the algorithm used to reduce the individual agent
// results to one final answer.
type ConsensusMethod string

const (
	// ConsensusMajorityVote clusters similar responses and picks the largest cluster.
	ConsensusMajorityVote ConsensusMethod = "majority_vote"
	// ConsensusWeightedAverage weights responses by confidence and agent reliability.
	ConsensusWeightedAverage ConsensusMethod = "weighted_average"
	// ConsensusConfidenceWeighted takes the single highest-confidence response.
	ConsensusConfidenceWeighted ConsensusMethod = "confidence_weighted"
	// ConsensusExpertSelection defers to the agent with the highest domain expertise.
	ConsensusExpertSelection ConsensusMethod = "expert_selection"
	// ConsensusHybridSynthesis runs expert selection and weighted average and keeps the better.
	ConsensusHybridSynthesis ConsensusMethod = "hybrid_synthesis"
)

// Valid returns true if the method is a known value.
func (m ConsensusMethod) Valid() bool {
	switch m {
	case ConsensusMajorityVote, ConsensusWeightedAverage, ConsensusConfidenceWeighted,
		ConsensusExpertSelection, ConsensusHybridSynthesis:
		return true
	default:
		return false
	}
}

// ConsensusResult is the synthesized output of one orchestration call.
type ConsensusResult struct {
	// ConsensusAchieved reports whether the agents agreed strongly enough.
	ConsensusAchieved bool `json:"consensus_achieved"`
	// FinalResponse is the chosen answer text.
	FinalResponse string `json:"final_response"`
	// ConfidenceScore is the confidence attached to the final response.
	ConfidenceScore float64 `json:"confidence_score"`
	// MethodUsed is the consensus algorithm that produced the answer.
	MethodUsed ConsensusMethod `json:"method_used"`
	// AgreementLevel is the mean pairwise response similarity in [0, 1].
	AgreementLevel float64 `json:"agreement_level"`
	// ParticipatingAgents lists the agents whose results were considered.
	ParticipatingAgents []string `json:"participating_agents"`
	// SynthesisInsights carries method-specific diagnostics.
	SynthesisInsights map[string]any `json:"synthesis_insights,omitempty"`
	// Degraded is set when every dispatched agent failed and the result is
	// the best available failed entry rather than a real answer.
	Degraded bool `json:"degraded,omitempty"`
}
