package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiationStateBroken(t *testing.T) {
	cases := []struct {
		state  NegotiationState
		broken bool
	}{
		{NegotiationState{ICE: StateConnected, Connection: StateConnected, Signaling: StateStable}, false},
		{NegotiationState{ICE: StateChecking, Connection: StateConnecting}, false},
		{NegotiationState{ICE: StateFailed, Connection: StateConnected}, true},
		{NegotiationState{ICE: StateConnected, Connection: StateDisconnected}, true},
		{NegotiationState{ICE: StateClosed, Connection: StateClosed}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.broken, tc.state.Broken(), "%+v", tc.state)
	}
}
