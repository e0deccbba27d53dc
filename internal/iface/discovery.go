package iface

// UDP discovery codec. Peer Discovery and Peer Offer are exchanged before any
// dlep.Session exists, so they are encoded/decoded directly against the dlep
// package's wire and TLV primitives rather than through a Session: a Session's
// own state machine starts only at the first TCP-phase signal (see
// internal/dlep/session.go's NewSession). discoveryExtension exists purely to
// hand dlep.NewParser a TLV rule set for these two signals; it is never
// registered into a dlep.Registry and carries no process/emit hooks.

import (
	"fmt"
	"net"

	"github.com/oonf-go/godlep/internal/dlep"
)

type discoveryExtension struct{}

func (discoveryExtension) ID() uint16 { return 0xFFFF }

func (discoveryExtension) Signals() []dlep.SignalDescriptor {
	return []dlep.SignalDescriptor{
		{
			Signal: dlep.SignalPeerDiscovery,
			TLVs: []dlep.TLVRule{
				{Type: dlep.TLVExtensionsSupported, MinLen: 0, MaxLen: 64},
				{Type: dlep.TLVPeerType, MinLen: 0, MaxLen: 255},
			},
		},
		{
			Signal: dlep.SignalPeerOffer,
			TLVs: []dlep.TLVRule{
				{Type: dlep.TLVExtensionsSupported, MinLen: 0, MaxLen: 64},
				{Type: dlep.TLVPeerType, MinLen: 0, MaxLen: 255},
				{Type: dlep.TLVIPv4Address, MinLen: 5, MaxLen: 5, Repeatable: true},
				{Type: dlep.TLVIPv6Address, MinLen: 17, MaxLen: 17, Repeatable: true},
			},
		},
	}
}

func (discoveryExtension) L2Mappings() []dlep.L2Mapping               { return nil }
func (discoveryExtension) InitSession(dlep.Role, *dlep.Session) error { return nil }
func (discoveryExtension) CleanupSession(dlep.Role, *dlep.Session)    {}

func newDiscoveryParser() *dlep.Parser {
	return dlep.NewParser([]dlep.Extension{discoveryExtension{}})
}

// discoveryOffer is the decoded content of a Peer Offer, or the subset
// of a Peer Discovery payload an Interface cares about.
type discoveryOffer struct {
	peerType   string
	extensions []uint16
	ipv4       net.IP
	ipv6       net.IP
}

// encodePeerDiscovery builds a framed Peer Discovery signal advertising
// peerType and the locally-supported extension ids.
func encodePeerDiscovery(w *dlep.Writer, peerType string, extensionIDs []uint16) ([]byte, error) {
	if err := w.Begin(dlep.SignalPeerDiscovery); err != nil {
		return nil, err
	}
	if err := addDiscoveryTLVs(w, peerType, extensionIDs); err != nil {
		w.Abort()
		return nil, err
	}
	return w.Finish()
}

// encodePeerOffer builds a framed Peer Offer signal: the negotiated
// extension subset, the connect-point address(es) a router should dial
// to reach the TCP session, and this interface's peer_type.
func encodePeerOffer(w *dlep.Writer, peerType string, extensionIDs []uint16, ipv4, ipv6 net.IP) ([]byte, error) {
	if err := w.Begin(dlep.SignalPeerOffer); err != nil {
		return nil, err
	}
	if err := addDiscoveryTLVs(w, peerType, extensionIDs); err != nil {
		w.Abort()
		return nil, err
	}
	if ipv4 != nil {
		if v4 := ipv4.To4(); v4 != nil {
			if err := w.AddTLV(dlep.TLVIPv4Address, encodeIPv4TLV(v4)); err != nil {
				w.Abort()
				return nil, err
			}
		}
	}
	if ipv6 != nil {
		if v6 := ipv6.To16(); v6 != nil {
			if err := w.AddTLV(dlep.TLVIPv6Address, encodeIPv6TLV(v6)); err != nil {
				w.Abort()
				return nil, err
			}
		}
	}
	return w.Finish()
}

func addDiscoveryTLVs(w *dlep.Writer, peerType string, extensionIDs []uint16) error {
	if peerType != "" {
		if err := w.AddTLV(dlep.TLVPeerType, []byte(peerType)); err != nil {
			return err
		}
	}
	if len(extensionIDs) > 0 {
		if err := w.AddTLV(dlep.TLVExtensionsSupported, dlep.EncodeExtensionIDs(extensionIDs)); err != nil {
			return err
		}
	}
	return nil
}

// encodeIPv4TLV / encodeIPv6TLV prepend the RFC 8175 Section 13.6/13.7
// add/drop flag byte (1 = add, the only value an Interface ever emits).
func encodeIPv4TLV(addr net.IP) []byte {
	out := make([]byte, 5)
	out[0] = 1
	copy(out[1:], addr)
	return out
}

func encodeIPv6TLV(addr net.IP) []byte {
	out := make([]byte, 17)
	out[0] = 1
	copy(out[1:], addr)
	return out
}

// decodeDiscovery parses a Peer Discovery or Peer Offer payload into a
// discoveryOffer, using a dedicated discovery Parser (not a Session's,
// since no Session exists yet).
func decodeDiscovery(p *dlep.Parser, signal dlep.SignalType, payload []byte) (discoveryOffer, error) {
	if err := p.Parse(signal, payload); err != nil {
		return discoveryOffer{}, fmt.Errorf("decode %s: %w", signal, err)
	}

	var off discoveryOffer
	if idx, ok := p.GetFirst(dlep.TLVPeerType); ok {
		off.peerType = string(p.GetBytes(idx))
	}
	if idx, ok := p.GetFirst(dlep.TLVExtensionsSupported); ok {
		off.extensions = dlep.DecodeExtensionIDs(p.GetBytes(idx))
	}
	if idx, ok := p.GetFirst(dlep.TLVIPv4Address); ok {
		b := p.GetBytes(idx)
		if len(b) == 5 {
			off.ipv4 = net.IP(append([]byte(nil), b[1:]...))
		}
	}
	if idx, ok := p.GetFirst(dlep.TLVIPv6Address); ok {
		b := p.GetBytes(idx)
		if len(b) == 17 {
			off.ipv6 = net.IP(append([]byte(nil), b[1:]...))
		}
	}
	return off, nil
}
