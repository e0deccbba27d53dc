// Package lanimport re-exports externally learned routes (e.g. from a
// local BGP speaker) as DLEP-advertisable LAN prefixes, filtered by a set
// of named import entries.
package lanimport

import (
	"net/netip"
)

// RouteEvent is one route addition or withdrawal observed from a
// RouteSource.
type RouteEvent struct {
	// Dst is the route's destination prefix.
	Dst netip.Prefix

	// IfName is the outgoing interface name, empty if unknown.
	IfName string

	// Table is the originating routing table id, 0 if not applicable.
	Table int32

	// Protocol is the originating routing protocol id, 0 if not
	// applicable.
	Protocol int32

	// Distance is the route's administrative distance or metric.
	Distance int32

	// Set is true for a route addition, false for a withdrawal.
	Set bool
}

// isLinkLocalMulticastOrLoopback reports whether dst should never be
// imported regardless of filter configuration.
func isLinkLocalMulticastOrLoopback(dst netip.Prefix) bool {
	addr := dst.Addr()
	return addr.IsMulticast() || addr.IsLinkLocalUnicast() || addr.IsLoopback()
}

// Entry is one named import filter. A route must satisfy every non-zero
// field to be imported; PrefixLength of -1 means "any length", and a zero
// Table/Protocol/Distance means "any value" for that field (matching the
// original plugin's "0 disables the check" convention).
type Entry struct {
	// Name identifies the entry for logging and remote-control output.
	Name string

	// Domain is the fixed domain id under which matching routes are
	// imported. Every route matched by this entry uses this exact
	// value — there is no cross-domain loop to fall through.
	Domain int

	// Allowed restricts which destination prefixes this entry matches;
	// empty means no prefix restriction beyond PrefixLength.
	Allowed []netip.Prefix

	// PrefixLength restricts matching routes to an exact prefix length,
	// or -1 for any length.
	PrefixLength int

	// IfName restricts matching routes to one outgoing interface, empty
	// for any interface.
	IfName string

	Table    int32
	Protocol int32
	Distance int32
}

// ImportedRoute is a RouteEvent that has passed an Entry's filter, tagged
// with the domain it should be imported under.
type ImportedRoute struct {
	Entry    string
	Domain   int
	Dst      netip.Prefix
	Distance int32
	Set      bool
}

// matches reports whether ev satisfies every configured constraint of e.
func (e Entry) matches(ev RouteEvent) bool {
	if e.PrefixLength != -1 && e.PrefixLength != ev.Dst.Bits() {
		return false
	}
	if len(e.Allowed) > 0 && !prefixAllowed(e.Allowed, ev.Dst) {
		return false
	}
	if e.Table != 0 && e.Table != ev.Table {
		return false
	}
	if e.Protocol != 0 && e.Protocol != ev.Protocol {
		return false
	}
	if e.Distance != 0 && e.Distance != ev.Distance {
		return false
	}
	if e.IfName != "" && e.IfName != ev.IfName {
		return false
	}
	return true
}

func prefixAllowed(allowed []netip.Prefix, dst netip.Prefix) bool {
	for _, p := range allowed {
		if p.Overlaps(dst) {
			return true
		}
	}
	return false
}

// Apply filters ev against every entry and returns one ImportedRoute per
// matching entry. Each result carries the matching entry's own configured
// Domain explicitly, rather than some loop-scoped variable left over from
// an unrelated pass over known domains.
func Apply(entries []Entry, ev RouteEvent) []ImportedRoute {
	if isLinkLocalMulticastOrLoopback(ev.Dst) {
		return nil
	}

	var out []ImportedRoute
	for _, e := range entries {
		if !e.matches(ev) {
			continue
		}
		out = append(out, ImportedRoute{
			Entry:    e.Name,
			Domain:   e.Domain,
			Dst:      ev.Dst,
			Distance: ev.Distance,
			Set:      ev.Set,
		})
	}
	return out
}
