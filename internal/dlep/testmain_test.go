package dlep_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain runs every test in this package and checks for goroutine
// leaks afterward (ack timers, dead-interval timers).
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
