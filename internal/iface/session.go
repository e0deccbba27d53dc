package iface

// Discovery exchange and TCP session lifecycle: turning a UDP Peer
// Discovery/Peer Offer exchange into a live dlep.Session over TCP, for both
// roles.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/oonf-go/godlep/internal/dlep"
)

// pendingOfferTTL bounds how long a radio interface remembers the
// extension set it offered a router over UDP, waiting for the matching
// TCP connection to arrive.
const pendingOfferTTL = 30 * time.Second

type pendingOffer struct {
	extensions []uint16
	expiresAt  time.Time
}

func (i *Interface) rememberOffer(addr netip.Addr, extensions []uint16) {
	i.offersMu.Lock()
	defer i.offersMu.Unlock()
	if i.pendingOffers == nil {
		i.pendingOffers = make(map[netip.Addr]pendingOffer)
	}
	i.pendingOffers[addr] = pendingOffer{extensions: extensions, expiresAt: time.Now().Add(pendingOfferTTL)}
}

func (i *Interface) takeOffer(addr netip.Addr) ([]uint16, bool) {
	i.offersMu.Lock()
	defer i.offersMu.Unlock()
	off, ok := i.pendingOffers[addr]
	if !ok {
		return nil, false
	}
	delete(i.pendingOffers, addr)
	if time.Now().After(off.expiresAt) {
		return nil, false
	}
	return off.extensions, true
}

// discoveryReadLoop services the UDP socket: Peer Discovery on the radio
// side, Peer Offer on the router side.
func (i *Interface) discoveryReadLoop(ctx context.Context) error {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, from, err := i.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("interface %s: discovery read: %w", i.cfg.Name, err)
		}

		if err := i.handleDiscoveryDatagram(buf[:n], from); err != nil {
			i.log.Warn("discovery datagram rejected", "from", from, "error", err)
		}
	}
}

func (i *Interface) handleDiscoveryDatagram(datagram []byte, from netip.AddrPort) error {
	prefixLen := len(dlep.DiscoveryPrefix)
	if len(datagram) < prefixLen || [4]byte(datagram[:prefixLen]) != dlep.DiscoveryPrefix {
		return fmt.Errorf("missing discovery prefix")
	}

	if from.Addr() == i.cfg.BindAddr {
		return nil // self-loopback
	}

	if i.cfg.SingleSession && i.hasSession() {
		return nil // single-session mode: drop silently, no counters to update here
	}

	signal, payload, n := dlep.Unframe(datagram[prefixLen:])
	if n == 0 {
		return fmt.Errorf("incomplete discovery signal")
	}

	switch signal {
	case dlep.SignalPeerDiscovery:
		if i.cfg.Role != dlep.RoleRadio {
			return nil
		}
		return i.respondToDiscovery(payload, from)
	case dlep.SignalPeerOffer:
		if i.cfg.Role != dlep.RoleRouter {
			return nil
		}
		return i.acceptOffer(payload, from)
	default:
		return fmt.Errorf("unexpected discovery signal %s", signal)
	}
}

// respondToDiscovery is the radio side of extension negotiation: intersect
// the router's offered ids with the locally supported set and reply with a
// unicast Peer Offer.
func (i *Interface) respondToDiscovery(payload []byte, from netip.AddrPort) error {
	offer, err := decodeDiscovery(i.discoveryParser, dlep.SignalPeerDiscovery, payload)
	if err != nil {
		return err
	}

	active := i.registry.Intersect(i.localExtensions(), offer.extensions)
	i.rememberOffer(from.Addr(), active)

	i.primeOutbound()
	if _, err := encodePeerOffer(i.discoveryWriter, i.cfg.PeerType, active, i.connectIPv4(), i.connectIPv6()); err != nil {
		i.primeOutbound()
		return fmt.Errorf("build peer offer: %w", err)
	}

	if _, err := i.conn.WriteToUDPAddrPort(i.outbound.Bytes(), from); err != nil {
		i.primeOutbound()
		return fmt.Errorf("send peer offer to %s: %w", from, err)
	}
	i.primeOutbound()
	return nil
}

// acceptOffer is the router side: dial the radio's advertised TCP
// connect point and construct the session.
func (i *Interface) acceptOffer(payload []byte, from netip.AddrPort) error {
	offer, err := decodeDiscovery(i.discoveryParser, dlep.SignalPeerOffer, payload)
	if err != nil {
		return err
	}

	addr := offer.ipv4
	if addr == nil {
		addr = offer.ipv6
	}
	if addr == nil {
		addr = net.IP(from.Addr().AsSlice())
	}

	conn, err := net.DialTCP("tcp", nil, &net.TCPAddr{IP: addr, Port: int(i.cfg.TCPPort)})
	if err != nil {
		return fmt.Errorf("dial tcp %s:%d: %w", addr, i.cfg.TCPPort, err)
	}

	key := conn.RemoteAddr().String()
	s := dlep.NewSession(fmt.Sprintf("%s/%s", i.cfg.Name, key), dlep.RoleRouter, i.registry,
		i.sessionOptions(conn, key, offer.extensions)...)
	s.SetActiveExtensions(offer.extensions)

	i.addSession(key, s)
	go i.runSession(s, conn, key)

	if err := s.EmitSignal(dlep.SignalPeerInitialization, nil); err != nil {
		i.log.Warn("failed to send peer initialization", "session", s.ID(), "error", err)
	}
	return nil
}

// discoveryBeaconLoop periodically emits a multicast Peer Discovery on
// the router side while no session is established.
func (i *Interface) discoveryBeaconLoop(ctx context.Context) error {
	if i.cfg.Role != dlep.RoleRouter {
		<-ctx.Done()
		return nil
	}

	interval := i.cfg.DiscoveryInterval
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if i.hasSession() {
				continue
			}
			if err := i.emitDiscoveryBeacon(); err != nil {
				i.log.Warn("failed to emit discovery beacon", "error", err)
			}
		}
	}
}

func (i *Interface) emitDiscoveryBeacon() error {
	i.primeOutbound()
	if _, err := encodePeerDiscovery(i.discoveryWriter, i.cfg.PeerType, i.localExtensions()); err != nil {
		i.primeOutbound()
		return err
	}

	if i.cfg.MulticastGroup.IsValid() {
		dst := netip.AddrPortFrom(i.cfg.MulticastGroup, i.cfg.DiscoveryPort)
		if _, err := i.conn.WriteToUDPAddrPort(i.outbound.Bytes(), dst); err != nil {
			i.primeOutbound()
			return fmt.Errorf("multicast discovery beacon: %w", err)
		}
	}
	i.primeOutbound()
	return nil
}

// watchLinkState tears down every live session on this interface when
// its configured Monitor reports the interface went down, so discovery
// can start over once it comes back rather than waiting out a heartbeat
// timeout.
func (i *Interface) watchLinkState(ctx context.Context) error {
	defer i.cfg.Monitor.Close()

	go func() {
		if err := i.cfg.Monitor.Run(ctx); err != nil {
			i.log.Warn("interface monitor stopped with error", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-i.cfg.Monitor.Events():
			if !ok {
				return nil
			}
			if ev.IfName != i.cfg.Name || ev.Up {
				continue
			}
			i.log.Info("interface reported down, terminating sessions", "interface", ev.IfName)
			for _, s := range i.Sessions() {
				s.Close()
			}
		}
	}
}

// primeOutbound resets the shared outbound buffer and rewrites the
// discovery prefix.
func (i *Interface) primeOutbound() {
	i.outbound.Reset()
	i.outbound.Write(dlep.DiscoveryPrefix[:])
}

// tcpAcceptLoop is the radio side: accept an inbound TCP connection for
// each discovery exchange already negotiated over UDP.
func (i *Interface) tcpAcceptLoop(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = i.tcpListener.Close()
	}()

	for {
		conn, err := i.tcpListener.AcceptTCP()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("interface %s: tcp accept: %w", i.cfg.Name, err)
		}

		remoteAddr, _ := netip.AddrFromSlice(conn.RemoteAddr().(*net.TCPAddr).IP)
		extensions, _ := i.takeOffer(remoteAddr.Unmap())

		key := conn.RemoteAddr().String()
		s := dlep.NewSession(fmt.Sprintf("%s/%s", i.cfg.Name, key), dlep.RoleRadio, i.registry,
			i.sessionOptions(conn, key, extensions)...)
		if len(extensions) > 0 {
			s.SetActiveExtensions(extensions)
		}

		i.addSession(key, s)
		go i.runSession(s, conn, key)
	}
}

// sessionOptions builds the common SessionOption set for either role.
func (i *Interface) sessionOptions(conn net.Conn, key string, offeredExtensions []uint16) []dlep.SessionOption {
	opts := []dlep.SessionOption{
		dlep.WithLogger(i.log.With("session", key)),
		dlep.WithHeartbeatInterval(i.cfg.HeartbeatInterval),
		dlep.WithMaxOutboundLen(i.cfg.MaxOutboundLen),
		dlep.WithSend(newFrameSender(conn)),
		dlep.WithOfferedExtensions(offeredExtensions),
		dlep.WithOnClose(func(*dlep.Session) { i.removeSession(key) }),
	}
	if i.l2 != nil {
		opts = append(opts, dlep.WithL2Sink(i.l2))
	}
	return opts
}

// newFrameSender adapts a net.Conn into the func([]byte) error shape
// dlep.WithSend expects, guarding against concurrent writes from the
// session's read-pump goroutine and the heartbeat ticker goroutine.
func newFrameSender(conn net.Conn) func([]byte) error {
	var mu sync.Mutex
	return func(frame []byte) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := conn.Write(frame)
		return err
	}
}

// runSession pumps one TCP connection: a read loop feeding complete
// signals to the session, and a heartbeat ticker driving Tick() while
// InSession. Returns once the connection closes or the session does.
func (i *Interface) runSession(s *dlep.Session, conn net.Conn, key string) {
	defer conn.Close()
	defer i.removeSession(key)

	stop := make(chan struct{})
	var once sync.Once
	closeStop := func() { once.Do(func() { close(stop) }) }
	defer closeStop()

	go i.heartbeatLoop(s, stop)

	r := bufio.NewReaderSize(conn, i.cfg.MaxOutboundLen)
	var carry []byte

	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			carry = append(carry, chunk[:n]...)
			for {
				signal, payload, consumed := dlep.Unframe(carry)
				if consumed == 0 {
					break
				}
				if herr := s.HandleSignal(signal, payload); herr != nil {
					i.log.Debug("session signal handling ended session", "session", s.ID(), "error", herr)
				}
				carry = carry[consumed:]
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				i.log.Warn("session tcp read error", "session", s.ID(), "error", err)
			}
			s.Close()
			return
		}
		if s.Closed() {
			return
		}
	}
}

func (i *Interface) heartbeatLoop(s *dlep.Session, stop <-chan struct{}) {
	interval := i.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.Closed() {
				return
			}
			if err := s.Tick(); err != nil {
				i.log.Debug("heartbeat tick failed", "session", s.ID(), "error", err)
			}
		}
	}
}

// connectIPv4 / connectIPv6 return the address(es) a radio advertises in
// its Peer Offer as the TCP connect point. The bound discovery address stands
// in for both; a deployment with distinct discovery and session addresses
// configures them via Config in a future revision.
func (i *Interface) connectIPv4() net.IP {
	if i.cfg.BindAddr.Is4() {
		return net.IP(i.cfg.BindAddr.AsSlice())
	}
	return nil
}

func (i *Interface) connectIPv6() net.IP {
	if i.cfg.BindAddr.Is6() && !i.cfg.BindAddr.Is4In6() {
		return net.IP(i.cfg.BindAddr.AsSlice())
	}
	return nil
}
