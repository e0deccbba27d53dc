package dlepmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "godlep"
	subsystem = "dlep"
)

// Label names for DLEP metrics.
const (
	labelInterface = "interface"
	labelRole      = "role"
	labelSignal    = "signal"
	labelReason    = "reason"
	labelFromState = "from_state"
	labelToState   = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus DLEP Metrics
// -------------------------------------------------------------------------

// Collector holds all DLEP Prometheus metrics.
//
//   - Sessions tracks currently live sessions per interface.
//   - Signal counters track TX/RX volume per signal type, for alerting on
//     a stalled peer (no Heartbeat received) or a flapping one (repeated
//     Peer Termination).
//   - SignalErrors records TLV parse/validation failures.
//   - StateTransitions records FSM changes.
//   - NeighborsUp tracks the local-neighbor table size per interface.
type Collector struct {
	// Sessions tracks the number of currently active DLEP sessions.
	Sessions *prometheus.GaugeVec

	// SignalsSent counts signals transmitted per interface, labeled by
	// signal name (e.g. "Heartbeat", "DestinationUp").
	SignalsSent *prometheus.CounterVec

	// SignalsReceived counts signals received per interface.
	SignalsReceived *prometheus.CounterVec

	// SignalErrors counts rejected signals (missing mandatory TLV, unknown
	// extension id, frame truncation) per interface, labeled by reason.
	SignalErrors *prometheus.CounterVec

	// StateTransitions counts FSM state transitions, labeled with the old
	// and new state for precise alerting (e.g. InSession->Terminating).
	StateTransitions *prometheus.CounterVec

	// NeighborsUp tracks the number of acknowledged-up local neighbors per
	// interface.
	NeighborsUp *prometheus.GaugeVec

	// HeartbeatMisses counts missed heartbeat deadlines per interface,
	// the signal preceding a heartbeat-timeout session teardown.
	HeartbeatMisses *prometheus.CounterVec
}

// NewCollector creates a Collector with all DLEP metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "godlep_dlep_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.SignalsSent,
		c.SignalsReceived,
		c.SignalErrors,
		c.StateTransitions,
		c.NeighborsUp,
		c.HeartbeatMisses,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	sessionLabels := []string{labelInterface, labelRole}
	ifaceLabels := []string{labelInterface}
	signalLabels := []string{labelInterface, labelSignal}
	errorLabels := []string{labelInterface, labelReason}
	transitionLabels := []string{labelInterface, labelFromState, labelToState}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently active DLEP sessions.",
		}, sessionLabels),

		SignalsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "signals_sent_total",
			Help:      "Total DLEP signals transmitted.",
		}, signalLabels),

		SignalsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "signals_received_total",
			Help:      "Total DLEP signals received.",
		}, signalLabels),

		SignalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "signal_errors_total",
			Help:      "Total DLEP signals rejected during parsing or validation.",
		}, errorLabels),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total DLEP session FSM state transitions.",
		}, transitionLabels),

		NeighborsUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "neighbors_up",
			Help:      "Number of acknowledged-up local neighbors per interface.",
		}, ifaceLabels),

		HeartbeatMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "heartbeat_misses_total",
			Help:      "Total missed heartbeat deadlines preceding a timeout teardown.",
		}, ifaceLabels),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the active sessions gauge for the given
// interface and role. cmd/dlepd's sampleMetrics calls it once for each
// session newly counted on an interface.
func (c *Collector) RegisterSession(iface, role string) {
	c.Sessions.WithLabelValues(iface, role).Inc()
}

// UnregisterSession decrements the active sessions gauge.
func (c *Collector) UnregisterSession(iface, role string) {
	c.Sessions.WithLabelValues(iface, role).Dec()
}

// -------------------------------------------------------------------------
// Signal Counters
// -------------------------------------------------------------------------

// IncSignalsSent increments the transmitted-signal counter for iface/signal.
func (c *Collector) IncSignalsSent(iface, signal string) {
	c.SignalsSent.WithLabelValues(iface, signal).Inc()
}

// IncSignalsReceived increments the received-signal counter for iface/signal.
func (c *Collector) IncSignalsReceived(iface, signal string) {
	c.SignalsReceived.WithLabelValues(iface, signal).Inc()
}

// IncSignalErrors increments the rejected-signal counter for iface/reason.
func (c *Collector) IncSignalErrors(iface, reason string) {
	c.SignalErrors.WithLabelValues(iface, reason).Inc()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordStateTransition increments the state transition counter with the
// old and new state labels.
func (c *Collector) RecordStateTransition(iface, from, to string) {
	c.StateTransitions.WithLabelValues(iface, from, to).Inc()
}

// -------------------------------------------------------------------------
// Neighbor Table
// -------------------------------------------------------------------------

// SetNeighborsUp sets the acknowledged-up neighbor gauge for iface.
func (c *Collector) SetNeighborsUp(iface string, n float64) {
	c.NeighborsUp.WithLabelValues(iface).Set(n)
}

// IncHeartbeatMisses increments the missed-heartbeat counter for iface.
func (c *Collector) IncHeartbeatMisses(iface string) {
	c.HeartbeatMisses.WithLabelValues(iface).Inc()
}
