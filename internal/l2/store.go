// Package l2 implements the layer-2 information base: peer and destination
// attributes reported by DLEP sessions, kept per session id, so each record
// belongs to the session that reported it. Built as a sentinel-error set and
// an RWMutex-guarded map keyed by a composite identity (MemStore), in the
// style of a session registry generalized to a layer-2 attribute registry.
package l2

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrPeerNotFound     = errors.New("l2: peer not found")
	ErrNeighborNotFound = errors.New("l2: neighbor not found")
)

// Attrs is a flat attribute bag. Values are whatever an Extension's
// L2Mapping.Decode produced: typically a uint8/uint32/uint64 metric, a
// net.IP, or a dlep.NeighborState.
type Attrs map[string]any

func (a Attrs) clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// PeerRecord is one session's network-scoped attribute set.
type PeerRecord struct {
	SessionID string
	Attrs     Attrs
}

// NeighborRecord is one destination's attribute set, scoped to the
// session that reported it.
type NeighborRecord struct {
	SessionID string
	MAC       string // hex-encoded, per macKey
	Attrs     Attrs
}

// Store holds every session's peer and neighbor attribute records. It
// is the storage half of the layer-2 mediator; Mediator (mediator.go) is the
// dlep.L2Sink-facing half that feeds it. Implementations: MemStore (the
// default, in-process) and OVSDBStore (an external OVS database instance, for
// deployments that already run one for other forwarding-plane state).
type Store interface {
	SetPeerAttr(sessionID, attribute string, value any)
	SetNeighborAttr(sessionID string, mac []byte, attribute string, value any)
	RemoveNeighbor(sessionID string, mac []byte)
	RemovePeer(sessionID string)

	GetPeer(sessionID string) (PeerRecord, bool)
	GetNeighbor(sessionID string, mac []byte) (NeighborRecord, bool)
	ListNeighbors(sessionID string) []NeighborRecord
	ListPeers() []PeerRecord

	Close() error
}

func macKey(mac []byte) string {
	return fmt.Sprintf("%x", mac)
}
