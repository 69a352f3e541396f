package ldo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{WaitHostCmd, "WAIT_HOST_CMD"},
		{WaitTrigger, "WAIT_TRIGGER"},
		{WaitA2AComp, "WAIT_A2A_COMP"},
		{State(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.state.String())
	}
}
