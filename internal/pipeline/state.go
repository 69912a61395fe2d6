package pipeline

import (
	"fmt"

	"github.com/jonesrussell/campscout/internal/domain"
)

// RequestState represents a development request state in the state machine.
type RequestState string

const (
	StatePending       RequestState = domain.RequestStatusPending
	StateInProgress    RequestState = domain.RequestStatusInProgress
	StateTesting       RequestState = domain.RequestStatusTesting
	StateCompleted     RequestState = domain.RequestStatusCompleted
	StateFailed        RequestState = domain.RequestStatusFailed
	StateNeedsFeedback RequestState = domain.RequestStatusNeedsFeedback
)

// ValidateStateTransition checks if a request state transition is valid.
func ValidateStateTransition(from, to RequestState) error {
	validTransitions := map[RequestState][]RequestState{
		StatePending: {
			StateInProgress, // Worker claimed the request
		},
		StateInProgress: {
			StateTesting,       // Code stored for a test, or a pre-test failure recorded as one
			StateCompleted,     // Directory expansion finished
			StateNeedsFeedback, // Generation service produced nothing
		},
		StateTesting: {
			StatePending,   // Test failed, retry budget remains
			StateCompleted, // Sessions found, or expected-empty accepted
			StateFailed,    // Retry budget exhausted
		},
		StateNeedsFeedback: {
			StatePending, // Human feedback arrived
		},
		StateFailed: {
			StatePending, // Operator force-reset
		},
		StateCompleted: {},
	}

	allowedStates, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown request state: %s", from)
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %s to %s", from, to)
}
