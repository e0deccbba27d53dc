//go:build linux

package iface

// Discovery socket construction: a net.ListenConfig.Control callback applying
// golang.org/x/sys/unix socket options for plain SO_REUSEADDR plus optional
// SO_BINDTODEVICE, and a multicast group join via golang.org/x/net/ipv4 and
// ipv6.

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// newDiscoverySocket opens and configures the UDP socket an Interface
// uses for Peer Discovery/Peer Offer exchange, binding to bindAddr:port
// on ifName and joining group if set.
func newDiscoverySocket(bindAddr netip.Addr, port uint16, ifName string, group netip.Addr) (*net.UDPConn, error) {
	laddr := netip.AddrPortFrom(bindAddr, port)

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setDiscoverySockOpts(c, ifName)
		},
	}

	network := "udp4"
	if bindAddr.Is6() && !bindAddr.Is4In6() {
		network = "udp6"
	}

	pc, err := lc.ListenPacket(context.Background(), network, laddr.String())
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", laddr, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("listen udp %s: unexpected connection type %T", laddr, pc)
	}

	if group.IsValid() && ifName != "" {
		if err := joinMulticastGroup(conn, ifName, group); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("join multicast group %s on %s: %w", group, ifName, err)
		}
	}

	return conn, nil
}

func setDiscoverySockOpts(c syscall.RawConn, ifName string) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: fd uintptr->int is safe; kernel FDs are always small positive integers.
		intFD := int(fd)

		if e := unix.SetsockoptInt(intFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			sockErr = fmt.Errorf("set SO_REUSEADDR: %w", e)
			return
		}
		if ifName != "" {
			if e := unix.SetsockoptString(intFD, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifName); e != nil {
				sockErr = fmt.Errorf("set SO_BINDTODEVICE(%s): %w", ifName, e)
				return
			}
		}
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}
	return sockErr
}

// joinMulticastGroup joins conn to group on the named interface, using
// the IPv4 or IPv6 multicast control plane depending on group's family.
func joinMulticastGroup(conn *net.UDPConn, ifName string, group netip.Addr) error {
	nif, err := net.InterfaceByName(ifName)
	if err != nil {
		return fmt.Errorf("lookup interface %s: %w", ifName, err)
	}

	groupAddr := &net.UDPAddr{IP: net.IP(group.AsSlice())}

	if group.Is4() {
		p := ipv4.NewPacketConn(conn)
		if err := p.JoinGroup(nif, groupAddr); err != nil {
			return fmt.Errorf("ipv4 join group: %w", err)
		}
		return nil
	}

	p := ipv6.NewPacketConn(conn)
	if err := p.JoinGroup(nif, groupAddr); err != nil {
		return fmt.Errorf("ipv6 join group: %w", err)
	}
	return nil
}
