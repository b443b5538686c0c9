package supervisor

import "testing"

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateNew:            "NEW",
		StateRunning:        "RUNNING",
		StateDrainRequested: "DRAIN_REQUESTED",
		StateStopped:        "STOPPED",
		StateHardStop:       "HARD_STOP",
		State(99):           "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
