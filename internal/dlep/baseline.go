package dlep

// Baseline extension: the core RFC 8175 signal set every session runs
// regardless of negotiated extensions (Peer Initialization through
// Heartbeat). Modeled as an Extension with reserved id 0 so the generic
// dispatch/negotiation machinery in session.go and extension.go needs
// no special case for "the protocol itself". Peer Discovery and Peer Offer are
// UDP-phase signals exchanged before a Session exists (see session.go's
// NewSession comment) and so are not declared here; the Interface controller
// encodes and decodes them with its own Writer, a Parser built from a
// discovery-only rule set, and the exported helpers below.

import (
	"encoding/binary"
	"fmt"
	"time"
)

const baselineExtensionID uint16 = 0

// Baseline is the always-active core-protocol Extension. Register it
// first on every Registry.
var Baseline Extension = baselineExtension{}

type baselineExtension struct{}

func (baselineExtension) ID() uint16 { return baselineExtensionID }

func (baselineExtension) Signals() []SignalDescriptor {
	return []SignalDescriptor{
		{
			Signal: SignalPeerInitialization,
			TLVs: []TLVRule{
				{Type: TLVHeartbeatInterval, MinLen: 2, MaxLen: 2, Mandatory: true},
				{Type: TLVExtensionsSupported, MinLen: 0, MaxLen: 64},
				{Type: TLVPeerType, MinLen: 0, MaxLen: 255},
			},
			ProcessRadio: processPeerInitialization,
			EmitRouter:   emitPeerInitialization,
		},
		{
			Signal: SignalPeerInitializationAck,
			TLVs: []TLVRule{
				{Type: TLVHeartbeatInterval, MinLen: 2, MaxLen: 2, Mandatory: true},
				{Type: TLVStatus, MinLen: 1, MaxLen: 1},
				{Type: TLVExtensionsSupported, MinLen: 0, MaxLen: 64},
				{Type: TLVPeerType, MinLen: 0, MaxLen: 255},
			},
			ProcessRouter: processPeerInitializationAck,
			EmitRadio:     emitPeerInitializationAck,
		},
		{
			Signal: SignalPeerUpdate,
			TLVs: []TLVRule{
				{Type: TLVIPv4Address, MinLen: 5, MaxLen: 5, Repeatable: true},
				{Type: TLVIPv6Address, MinLen: 17, MaxLen: 17, Repeatable: true},
			},
			EmitRadio:  emitNoTLVs,
			EmitRouter: emitNoTLVs,
		},
		{
			Signal: SignalPeerUpdateAck,
			TLVs: []TLVRule{
				{Type: TLVStatus, MinLen: 1, MaxLen: 1},
			},
			EmitRadio:  emitStatusOK,
			EmitRouter: emitStatusOK,
		},
		{
			Signal: SignalDestinationUp,
			TLVs: []TLVRule{
				{Type: TLVMACAddress, MinLen: 6, MaxLen: 6, Mandatory: true},
			},
			ProcessRouter: processDestinationUp,
			EmitRadio:     emitDestinationUp,
		},
		{
			Signal: SignalDestinationUpAck,
			TLVs: []TLVRule{
				{Type: TLVMACAddress, MinLen: 6, MaxLen: 6, Mandatory: true},
				{Type: TLVStatus, MinLen: 1, MaxLen: 1},
			},
			ProcessRadio: processDestinationUpAck,
			EmitRouter:   emitDestinationStatusOK,
		},
		{
			Signal: SignalDestinationUpdate,
			TLVs: []TLVRule{
				{Type: TLVMACAddress, MinLen: 6, MaxLen: 6, Mandatory: true},
			},
			ProcessRouter: processDestinationUpdate,
			EmitRadio:     emitDestinationUpdate,
		},
		{
			Signal: SignalDestinationDown,
			TLVs: []TLVRule{
				{Type: TLVMACAddress, MinLen: 6, MaxLen: 6, Mandatory: true},
			},
			ProcessRouter: processDestinationDown,
			EmitRadio:     emitDestinationDown,
		},
		{
			Signal: SignalDestinationDownAck,
			TLVs: []TLVRule{
				{Type: TLVMACAddress, MinLen: 6, MaxLen: 6, Mandatory: true},
				{Type: TLVStatus, MinLen: 1, MaxLen: 1},
			},
			ProcessRadio: processDestinationDownAck,
			EmitRouter:   emitDestinationStatusOK,
		},
		{
			Signal: SignalHeartbeat,
			EmitRadio:  emitNoTLVs,
			EmitRouter: emitNoTLVs,
		},
	}
}

func (baselineExtension) L2Mappings() []L2Mapping { return nil }

func (baselineExtension) InitSession(Role, *Session) error { return nil }

func (baselineExtension) CleanupSession(Role, *Session) {}

// --- encode/decode helpers shared with internal/iface's discovery code ---

// EncodeHeartbeatInterval encodes d as the RFC 8175 Heartbeat Interval
// TLV value: milliseconds as a big-endian u16.
func EncodeHeartbeatInterval(d time.Duration) []byte {
	ms := uint16(d / time.Millisecond)
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, ms)
	return b
}

// DecodeHeartbeatInterval is the inverse of EncodeHeartbeatInterval.
func DecodeHeartbeatInterval(b []byte) time.Duration {
	return time.Duration(binary.BigEndian.Uint16(b)) * time.Millisecond
}

// EncodeExtensionIDs encodes a list of extension ids as the Extensions
// Supported TLV value: a concatenation of big-endian u16s.
func EncodeExtensionIDs(ids []uint16) []byte {
	b := make([]byte, 2*len(ids))
	for i, id := range ids {
		binary.BigEndian.PutUint16(b[2*i:], id)
	}
	return b
}

// DecodeExtensionIDs is the inverse of EncodeExtensionIDs. Malformed
// (odd-length) input is truncated to the last whole id.
func DecodeExtensionIDs(b []byte) []uint16 {
	n := len(b) / 2
	ids := make([]uint16, n)
	for i := 0; i < n; i++ {
		ids[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return ids
}

func encodeStatus(st Status) []byte {
	return []byte{byte(st)}
}

// --- Peer Initialization / Ack ---

func emitPeerInitialization(s *Session, _ []byte) error {
	if err := s.writer.AddTLV(TLVHeartbeatInterval, EncodeHeartbeatInterval(s.heartbeatInterval)); err != nil {
		return err
	}
	if len(s.offeredExtensions) > 0 {
		if err := s.writer.AddTLV(TLVExtensionsSupported, EncodeExtensionIDs(s.offeredExtensions)); err != nil {
			return err
		}
	}
	return nil
}

func processPeerInitialization(s *Session) ProcessResult {
	idx, ok := s.parser.GetFirst(TLVHeartbeatInterval)
	if !ok {
		return ResultFail
	}
	s.heartbeatInterval = DecodeHeartbeatInterval(s.parser.GetBytes(idx))

	if eidx, ok := s.parser.GetFirst(TLVExtensionsSupported); ok {
		offered := DecodeExtensionIDs(s.parser.GetBytes(eidx))
		s.SetActiveExtensions(s.registry.Intersect(s.registry.IDs(), offered))
		s.offeredExtensions = s.activeIDs()
	}

	if err := s.EmitSignal(SignalPeerInitializationAck, nil); err != nil {
		s.log.Warn("failed to ack peer initialization", "session", s.id, "error", err)
		return ResultFail
	}
	return ResultOK
}

func emitPeerInitializationAck(s *Session, _ []byte) error {
	if err := s.writer.AddTLV(TLVStatus, encodeStatus(StatusSuccess)); err != nil {
		return err
	}
	return s.writer.AddTLV(TLVHeartbeatInterval, EncodeHeartbeatInterval(s.heartbeatInterval))
}

func processPeerInitializationAck(s *Session) ProcessResult {
	idx, ok := s.parser.GetFirst(TLVHeartbeatInterval)
	if !ok {
		return ResultFail
	}
	s.heartbeatInterval = DecodeHeartbeatInterval(s.parser.GetBytes(idx))

	if sidx, ok := s.parser.GetFirst(TLVStatus); ok {
		if Status(s.parser.GetBytes(sidx)[0]) != StatusSuccess {
			return ResultFail
		}
	}
	return ResultOK
}

// --- Peer Update / Update Ack: no mandatory baseline semantics, pass
// through to extensions that care (e.g. a routing extension updating
// advertised addresses). ---

func emitNoTLVs(*Session, []byte) error { return nil }

func emitStatusOK(s *Session, _ []byte) error {
	return s.writer.AddTLV(TLVStatus, encodeStatus(StatusSuccess))
}

// --- Destination Up/Update/Down and their Acks ---
//
// The sending side arms the same ack timer the receiving side's
// NeighborTable tracks for it: emitDestinationUp/emitDestinationDown
// call MarkSent before the frame goes out, and the matching
// processDestinationUpAck/processDestinationDownAck call Ack when the
// peer's acknowledgement arrives, disarming it. The receiving side has
// no ack of its own to wait for (Destination Up/Down Ack is not itself
// acked), so once they have sent theirs processDestinationUp moves its
// local entry straight to UpAcked and processDestinationDown removes it.

func writeDestinationMAC(s *Session, neighbor []byte) error {
	if neighbor == nil {
		return fmt.Errorf("dlep: destination signal requires a neighbor MAC")
	}
	return s.writer.AddTLV(TLVMACAddress, neighbor)
}

// emitDestinationUp arms the local neighbor's ack timer before Destination
// Up is transmitted, taking it Idle -> UpSent.
func emitDestinationUp(s *Session, neighbor []byte) error {
	if err := writeDestinationMAC(s, neighbor); err != nil {
		return err
	}
	n := s.neighbors.GetOrCreate(neighbor)
	return s.neighbors.MarkSent(n, NeighborUpSent, s.heartbeatInterval)
}

// emitDestinationUpdate carries no lifecycle transition of its own; the
// destination must already be up.
func emitDestinationUpdate(s *Session, neighbor []byte) error {
	if _, err := s.neighbors.Get(neighbor); err != nil {
		return err
	}
	return writeDestinationMAC(s, neighbor)
}

// emitDestinationDown arms the ack timer for the down handshake, taking
// the neighbor UpAcked -> DownSent.
func emitDestinationDown(s *Session, neighbor []byte) error {
	if err := writeDestinationMAC(s, neighbor); err != nil {
		return err
	}
	n, err := s.neighbors.Get(neighbor)
	if err != nil {
		return err
	}
	return s.neighbors.MarkSent(n, NeighborDownSent, s.heartbeatInterval)
}

func emitDestinationStatusOK(s *Session, neighbor []byte) error {
	if neighbor == nil {
		return fmt.Errorf("dlep: destination ack requires a neighbor MAC")
	}
	if err := s.writer.AddTLV(TLVMACAddress, neighbor); err != nil {
		return err
	}
	return s.writer.AddTLV(TLVStatus, encodeStatus(StatusSuccess))
}

func processDestinationUp(s *Session) ProcessResult {
	mac, ok := s.parser.SubjectMAC()
	if !ok {
		return ResultFail
	}
	n := s.neighbors.GetOrCreate(mac)
	if err := s.EmitSignal(SignalDestinationUpAck, mac); err != nil {
		s.log.Warn("failed to ack destination up", "session", s.id, "mac", fmt.Sprintf("%x", mac), "error", err)
		return ResultFail
	}
	n.State = NeighborUpAcked
	s.l2.SetNeighborAttr(s.id, mac, "state", n.State)
	return ResultOK
}

func processDestinationUpAck(s *Session) ProcessResult {
	mac, ok := s.parser.SubjectMAC()
	if !ok {
		return ResultFail
	}
	n, err := s.neighbors.Get(mac)
	if err != nil {
		return ResultFail
	}
	s.neighbors.Ack(n)
	s.l2.SetNeighborAttr(s.id, mac, "state", n.State)
	return ResultOK
}

func processDestinationUpdate(s *Session) ProcessResult {
	mac, ok := s.parser.SubjectMAC()
	if !ok {
		return ResultFail
	}
	if _, err := s.neighbors.Get(mac); err != nil {
		return ResultFail
	}
	return ResultOK
}

func processDestinationDown(s *Session) ProcessResult {
	mac, ok := s.parser.SubjectMAC()
	if !ok {
		return ResultFail
	}
	if _, err := s.neighbors.Get(mac); err != nil {
		return ResultFail
	}
	if err := s.EmitSignal(SignalDestinationDownAck, mac); err != nil {
		s.log.Warn("failed to ack destination down", "session", s.id, "mac", fmt.Sprintf("%x", mac), "error", err)
		return ResultFail
	}
	s.l2.RemoveNeighbor(s.id, mac)
	s.neighbors.Remove(mac)
	return ResultOK
}

func processDestinationDownAck(s *Session) ProcessResult {
	mac, ok := s.parser.SubjectMAC()
	if !ok {
		return ResultFail
	}
	n, err := s.neighbors.Get(mac)
	if err != nil {
		return ResultFail
	}
	s.neighbors.Ack(n)
	s.l2.RemoveNeighbor(s.id, mac)
	s.neighbors.Remove(mac)
	return ResultOK
}
