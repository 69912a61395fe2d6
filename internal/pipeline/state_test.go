package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequestStateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    RequestState
		to      RequestState
		wantErr bool
	}{
		{"claim", StatePending, StateInProgress, false},
		{"code stored", StateInProgress, StateTesting, false},
		{"directory expansion", StateInProgress, StateCompleted, false},
		{"no code produced", StateInProgress, StateNeedsFeedback, false},
		{"test retry", StateTesting, StatePending, false},
		{"test success", StateTesting, StateCompleted, false},
		{"retries exhausted", StateTesting, StateFailed, false},
		{"feedback revives", StateNeedsFeedback, StatePending, false},
		{"operator reset", StateFailed, StatePending, false},
		{"pending cannot complete directly", StatePending, StateCompleted, true},
		{"retry only advances out of testing", StateInProgress, StatePending, true},
		{"failure only advances out of testing", StateInProgress, StateFailed, true},
		{"completed is terminal", StateCompleted, StatePending, true},
		{"unknown state", RequestState("limbo"), StatePending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStateTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
