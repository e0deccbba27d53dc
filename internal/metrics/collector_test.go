package dlepmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	dlepmetrics "github.com/oonf-go/godlep/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.SignalsSent == nil {
		t.Error("SignalsSent is nil")
	}
	if c.SignalsReceived == nil {
		t.Error("SignalsReceived is nil")
	}
	if c.SignalErrors == nil {
		t.Error("SignalErrors is nil")
	}
	if c.StateTransitions == nil {
		t.Error("StateTransitions is nil")
	}
	if c.NeighborsUp == nil {
		t.Error("NeighborsUp is nil")
	}
	if c.HeartbeatMisses == nil {
		t.Error("HeartbeatMisses is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestRegisterUnregisterSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.RegisterSession("wlan0", "radio")

	val := gaugeValue(t, c.Sessions, "wlan0", "radio")
	if val != 1 {
		t.Errorf("after RegisterSession: sessions gauge = %v, want 1", val)
	}

	c.RegisterSession("wlan0", "router")

	val = gaugeValue(t, c.Sessions, "wlan0", "router")
	if val != 1 {
		t.Errorf("after second RegisterSession: router gauge = %v, want 1", val)
	}

	c.UnregisterSession("wlan0", "radio")

	val = gaugeValue(t, c.Sessions, "wlan0", "radio")
	if val != 0 {
		t.Errorf("after UnregisterSession: radio gauge = %v, want 0", val)
	}

	val = gaugeValue(t, c.Sessions, "wlan0", "router")
	if val != 1 {
		t.Errorf("router gauge = %v, want 1 (should be unaffected)", val)
	}
}

func TestSignalCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.IncSignalsSent("wlan0", "Heartbeat")
	c.IncSignalsSent("wlan0", "Heartbeat")
	c.IncSignalsSent("wlan0", "Heartbeat")

	val := counterValue(t, c.SignalsSent, "wlan0", "Heartbeat")
	if val != 3 {
		t.Errorf("SignalsSent = %v, want 3", val)
	}

	c.IncSignalsReceived("wlan0", "PeerInitializationAck")
	c.IncSignalsReceived("wlan0", "PeerInitializationAck")

	val = counterValue(t, c.SignalsReceived, "wlan0", "PeerInitializationAck")
	if val != 2 {
		t.Errorf("SignalsReceived = %v, want 2", val)
	}

	c.IncSignalErrors("wlan0", "missing mandatory tlv")

	val = counterValue(t, c.SignalErrors, "wlan0", "missing mandatory tlv")
	if val != 1 {
		t.Errorf("SignalErrors = %v, want 1", val)
	}
}

func TestStateTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.RecordStateTransition("wlan0", "WaitPeerInit", "InSession")

	val := counterValue(t, c.StateTransitions, "wlan0", "WaitPeerInit", "InSession")
	if val != 1 {
		t.Errorf("StateTransitions(WaitPeerInit->InSession) = %v, want 1", val)
	}

	c.RecordStateTransition("wlan0", "InSession", "Terminating")

	val = counterValue(t, c.StateTransitions, "wlan0", "InSession", "Terminating")
	if val != 1 {
		t.Errorf("StateTransitions(InSession->Terminating) = %v, want 1", val)
	}

	c.RecordStateTransition("wlan0", "WaitPeerInit", "InSession")

	val = counterValue(t, c.StateTransitions, "wlan0", "WaitPeerInit", "InSession")
	if val != 2 {
		t.Errorf("StateTransitions(WaitPeerInit->InSession) = %v, want 2", val)
	}
}

func TestNeighborsAndHeartbeatMisses(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.SetNeighborsUp("wlan0", 4)

	val := gaugeValue(t, c.NeighborsUp, "wlan0")
	if val != 4 {
		t.Errorf("NeighborsUp = %v, want 4", val)
	}

	c.IncHeartbeatMisses("wlan0")
	c.IncHeartbeatMisses("wlan0")

	mval := counterValue(t, c.HeartbeatMisses, "wlan0")
	if mval != 2 {
		t.Errorf("HeartbeatMisses = %v, want 2", mval)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
