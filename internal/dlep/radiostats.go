package dlep

// Radio link metrics extension: the RFC 8175 Section 13 metric TLVs
// (current/maximum data rate, latency, resources, relative link
// quality) reported per destination. Modeled as a second Extension
// (registry id below) to exercise the multi-extension dispatch path
// alongside Baseline. RFC 8175 ships these TLVs as part of the core signal set
// rather than a negotiated extension; splitting them out here is a deliberate
// generalization so the registry/negotiation machinery has more than one real
// extension to exercise.

import (
	"encoding/binary"
)

const radioStatsExtensionID uint16 = 1

func init() {
	RegisterTLVName(TLVCurDataRateRx, "Current Data Rate (Receive)")
	RegisterTLVName(TLVCurDataRateTx, "Current Data Rate (Transmit)")
	RegisterTLVName(TLVMaxDataRateRx, "Maximum Data Rate (Receive)")
	RegisterTLVName(TLVMaxDataRateTx, "Maximum Data Rate (Transmit)")
	RegisterTLVName(TLVLatency, "Latency")
	RegisterTLVName(TLVResources, "Resources")
	RegisterTLVName(TLVRLQRx, "Relative Link Quality (Receive)")
	RegisterTLVName(TLVRLQTx, "Relative Link Quality (Transmit)")
}

// Radio link metric TLV type codes (RFC 8175 Section 13, values chosen
// above the baseline catalogue's 1-8 range).
const (
	TLVCurDataRateRx TLVType = 20
	TLVCurDataRateTx TLVType = 21
	TLVMaxDataRateRx TLVType = 22
	TLVMaxDataRateTx TLVType = 23
	TLVLatency       TLVType = 24
	TLVResources     TLVType = 25
	TLVRLQRx         TLVType = 26
	TLVRLQTx         TLVType = 27
)

// RadioStats is the metrics Extension. Register it alongside Baseline
// on every Registry that should report link quality.
var RadioStats Extension = radioStatsExtension{}

type radioStatsExtension struct{}

func (radioStatsExtension) ID() uint16 { return radioStatsExtensionID }

func (radioStatsExtension) Signals() []SignalDescriptor {
	metricTLVs := []TLVRule{
		{Type: TLVCurDataRateRx, MinLen: 0, MaxLen: 8},
		{Type: TLVCurDataRateTx, MinLen: 0, MaxLen: 8},
		{Type: TLVMaxDataRateRx, MinLen: 0, MaxLen: 8},
		{Type: TLVMaxDataRateTx, MinLen: 0, MaxLen: 8},
		{Type: TLVLatency, MinLen: 0, MaxLen: 4},
		{Type: TLVResources, MinLen: 0, MaxLen: 1},
		{Type: TLVRLQRx, MinLen: 0, MaxLen: 1},
		{Type: TLVRLQTx, MinLen: 0, MaxLen: 1},
	}
	return []SignalDescriptor{
		{
			Signal:        SignalDestinationUp,
			TLVs:          metricTLVs,
			ProcessRouter: processRadioStats,
			EmitRadio:     emitRadioStats,
		},
		{
			Signal:        SignalDestinationUpdate,
			TLVs:          metricTLVs,
			ProcessRouter: processRadioStats,
			EmitRadio:     emitRadioStats,
		},
	}
}

func (radioStatsExtension) L2Mappings() []L2Mapping {
	return []L2Mapping{
		{TLV: TLVCurDataRateRx, Attribute: "cdr_rx", NeighborScoped: true, Decode: decodeU64},
		{TLV: TLVCurDataRateTx, Attribute: "cdr_tx", NeighborScoped: true, Decode: decodeU64},
		{TLV: TLVMaxDataRateRx, Attribute: "mdr_rx", NeighborScoped: true, Decode: decodeU64},
		{TLV: TLVMaxDataRateTx, Attribute: "mdr_tx", NeighborScoped: true, Decode: decodeU64},
		{TLV: TLVLatency, Attribute: "latency_us", NeighborScoped: true, Decode: decodeU32},
		{TLV: TLVResources, Attribute: "resources_pct", NeighborScoped: true, Decode: decodeU8},
		{TLV: TLVRLQRx, Attribute: "rlq_rx", NeighborScoped: true, Decode: decodeU8},
		{TLV: TLVRLQTx, Attribute: "rlq_tx", NeighborScoped: true, Decode: decodeU8},
	}
}

func (radioStatsExtension) InitSession(Role, *Session) error { return nil }

func (radioStatsExtension) CleanupSession(Role, *Session) {}

func decodeU64(b []byte) (any, error) {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

func decodeU32(b []byte) (any, error) {
	if len(b) != 4 {
		return uint32(0), nil
	}
	return binary.BigEndian.Uint32(b), nil
}

func decodeU8(b []byte) (any, error) {
	if len(b) != 1 {
		return uint8(0), nil
	}
	return b[0], nil
}

// processRadioStats runs on the router side: every metric TLV present
// in the signal is decoded via its L2Mapping and pushed to the L2 sink
// against the signal's subject MAC.
func processRadioStats(s *Session) ProcessResult {
	mac, ok := s.parser.SubjectMAC()
	if !ok {
		// Metric TLVs are meaningless without a destination; defer to
		// whatever other extension (or the baseline ResultFail path)
		// handles the missing-MAC case.
		return ResultDefer
	}

	for _, m := range RadioStats.L2Mappings() {
		idx, ok := s.parser.GetFirst(m.TLV)
		if !ok {
			continue
		}
		raw := s.parser.GetBytes(idx)
		val, err := m.Decode(raw)
		if err != nil {
			return ResultFail
		}
		s.l2.SetNeighborAttr(s.id, mac, m.Attribute, val)
	}
	return ResultOK
}

// emitRadioStats is a placeholder hook point: a real radio driver would
// populate current measurements here via a RadioStatsSource the
// Interface controller injects. Absent one, it emits nothing rather
// than fabricate TLV values (RFC 8175 Section 13 treats every metric
// TLV as optional per signal).
func emitRadioStats(*Session, []byte) error {
	return nil
}
