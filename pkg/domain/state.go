package domain

import "time"

// ChainStatus is the state of the orchestrator's state machine.
type ChainStatus string

const (
	StatusRunning             ChainStatus = "running"
	StatusTerminatedFinal     ChainStatus = "terminated_final"
	StatusTerminatedDuplicate ChainStatus = "terminated_duplicate"
	StatusTerminatedMaxSteps  ChainStatus = "terminated_max_steps"
	// StatusAbandoned marks a chain whose consumer went away before the final answer.
	StatusAbandoned ChainStatus = "abandoned"
)

// Terminal reports whether no further intermediate steps will be accepted.
func (s ChainStatus) Terminal() bool {
	return s != StatusRunning
}

// ChainState is mutated only by the orchestrator of a single chain.
type ChainState struct {
	StepCount    int
	TotalElapsed time.Duration
	Status       ChainStatus
	// Requests counts logical requests issued (intermediate + final).
	Requests int
}

// NewChainState returns the initial state of a chain.
func NewChainState() *ChainState {
	return &ChainState{StepCount: 1, Status: StatusRunning}
}
