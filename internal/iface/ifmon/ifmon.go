// Package ifmon watches network interface state changes so a DLEP
// interface controller can react to link-down faster than its heartbeat
// timeout would otherwise notice.
//
// Built around an InterfaceEvent/Monitor contract with a
// StubMonitor fallback, generalized from "session teardown on link
// loss" to "DLEP session teardown on link loss".
package ifmon

import (
	"context"
	"log/slog"
)

// InterfaceEvent represents a network interface state change.
type InterfaceEvent struct {
	// IfName is the network interface name (e.g., "eth0").
	IfName string

	// Up indicates the interface transitioned to Up (true) or Down
	// (false).
	Up bool
}

// Monitor watches for network interface state changes and emits events
// when interfaces go up or down. Implementations may use D-Bus
// (NetworkManager), NETLINK_ROUTE, or polling as the underlying
// mechanism; the interface stays minimal so the DLEP interface
// controller can react to link events without depending on a specific
// notification source.
type Monitor interface {
	// Run starts monitoring interface state changes. It blocks until ctx
	// is cancelled. Detected events are sent to the channel returned by
	// Events(). Run must be called at most once.
	Run(ctx context.Context) error

	// Events returns a read-only channel of interface state change
	// events, closed when Run returns.
	Events() <-chan InterfaceEvent

	// Close releases any resources held by the monitor.
	Close() error
}

// StubMonitor is a no-op Monitor that never emits events, used when no
// platform-specific notification source is configured.
type StubMonitor struct {
	events chan InterfaceEvent
	logger *slog.Logger
}

// NewStubMonitor creates a no-op interface monitor.
func NewStubMonitor(logger *slog.Logger) *StubMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubMonitor{
		events: make(chan InterfaceEvent, 16),
		logger: logger.With(slog.String("component", "ifmon.stub")),
	}
}

// Run blocks until ctx is cancelled.
func (m *StubMonitor) Run(ctx context.Context) error {
	m.logger.Info("stub interface monitor started (no-op)")
	<-ctx.Done()
	close(m.events)
	m.logger.Info("stub interface monitor stopped")
	return nil
}

// Events returns the (always empty) event channel.
func (m *StubMonitor) Events() <-chan InterfaceEvent {
	return m.events
}

// Close is a no-op for the stub monitor.
func (m *StubMonitor) Close() error { return nil }

var _ Monitor = (*StubMonitor)(nil)
