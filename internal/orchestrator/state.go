package orchestrator

import (
	"fmt"

	"github.com/jonesrussell/campscout/internal/domain"
)

// JobState represents a job state in the state machine.
type JobState string

const (
	StatePending   JobState = domain.JobStatusPending
	StateRunning   JobState = domain.JobStatusRunning
	StateCompleted JobState = domain.JobStatusCompleted
	StateFailed    JobState = domain.JobStatusFailed
)

// ValidateStateTransition checks if a job state transition is valid.
// Returns an error if the transition is not allowed.
func ValidateStateTransition(from, to JobState) error {
	validTransitions := map[JobState][]JobState{
		StatePending: {
			StateRunning, // Deferred starter claimed the job
			StateFailed,  // Source vanished or lost its logic before start
		},
		StateRunning: {
			StateCompleted, // Extraction and persistence succeeded
			StateFailed,    // Extraction error or timeout
		},
		// Terminal states.
		StateCompleted: {},
		StateFailed:    {},
	}

	allowedStates, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown job state: %s", from)
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %s to %s", from, to)
}

// IsTerminalState checks if a state is terminal (no further transitions).
func IsTerminalState(state JobState) bool {
	return state == StateCompleted || state == StateFailed
}

// IsActiveState checks if a job is actively running.
func IsActiveState(state JobState) bool {
	return state == StateRunning
}
