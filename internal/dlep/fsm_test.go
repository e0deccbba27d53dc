package dlep_test

import (
	"testing"

	"github.com/oonf-go/godlep/internal/dlep"
)

// TestNextSignalAllows covers the next_signal guard: a pinned NextSignal only
// allows its own signal id; the wildcard allows anything.
func TestNextSignalAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		guard    dlep.NextSignal
		incoming dlep.SignalType
		want     bool
	}{
		{"pinned match", dlep.Expect(dlep.SignalHeartbeat), dlep.SignalHeartbeat, true},
		{"pinned mismatch", dlep.Expect(dlep.SignalHeartbeat), dlep.SignalPeerUpdate, false},
		{"wildcard always allows", dlep.AnySignal, dlep.SignalDestinationDown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.guard.Allows(tt.incoming); got != tt.want {
				t.Fatalf("Allows(%v) = %v, want %v", tt.incoming, got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	if got := dlep.StateInSession.String(); got != "InSession" {
		t.Fatalf("StateInSession.String() = %q", got)
	}
	if got := dlep.State(250).String(); got != "Unknown" {
		t.Fatalf("unknown state String() = %q, want Unknown", got)
	}
}
