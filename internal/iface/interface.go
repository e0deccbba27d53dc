// Package iface implements the DLEP interface controller: one UDP discovery
// socket per configured interface, zero or more TCP sessions keyed by remote
// socket address, and the multicast/unicast discovery beaconing that brings a
// session into existence. Built around a receive/send-loop shape generalized
// from "one packet listener" to "one UDP discovery responder plus a set of
// dlep.Session-driving TCP connections", with a registry-of-sessions guarded
// by an RWMutex.
package iface

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oonf-go/godlep/internal/dlep"
	"github.com/oonf-go/godlep/internal/iface/ifmon"
)

// Default values.
const (
	DefaultDiscoveryPort    = 854
	DefaultDiscoveryMulticast = "224.0.0.117"
	DefaultDiscoveryInterval = time.Second
	DefaultHeartbeatInterval = time.Second
	DefaultMaxOutboundLen    = 1500
)

var (
	// ErrUnknownRole is returned by NewInterface for a role other than
	// dlep.RoleRadio/dlep.RoleRouter.
	ErrUnknownRole = errors.New("iface: unknown role")
)

// Config configures one DLEP interface.
type Config struct {
	Name string
	Role dlep.Role

	BindAddr          netip.Addr
	MulticastGroup    netip.Addr // zero value disables multicast, unicast discovery only
	DiscoveryPort     uint16
	TCPPort           uint16 // radio listens here; router dials the address offered on this port
	DiscoveryInterval time.Duration
	HeartbeatInterval time.Duration
	SingleSession     bool
	PeerType          string
	LocalExtensionIDs []uint16
	MaxOutboundLen    int

	// Monitor, if set, notifies the interface of link up/down transitions;
	// a Down event for this interface's Name tears down its live sessions
	// so discovery restarts once the link returns, instead of waiting out
	// a heartbeat timeout.
	Monitor ifmon.Monitor
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	group, _ := netip.ParseAddr(DefaultDiscoveryMulticast)
	return Config{
		MulticastGroup:    group,
		DiscoveryPort:     DefaultDiscoveryPort,
		DiscoveryInterval: DefaultDiscoveryInterval,
		HeartbeatInterval: DefaultHeartbeatInterval,
		SingleSession:     true,
		MaxOutboundLen:    DefaultMaxOutboundLen,
	}
}

// Interface owns one UDP discovery socket and the TCP sessions it has
// brought into being. Sessions are only ever mutated by the goroutine running
// Run; the map itself is guarded by mu solely so control-plane callers
// (internal/remotecontrol, internal/httpbridge) may list sessions from a
// different goroutine.
type Interface struct {
	log      *slog.Logger
	cfg      Config
	registry *dlep.Registry
	l2       dlep.L2Sink

	conn        *net.UDPConn
	tcpListener *net.TCPListener

	outbound        bytes.Buffer
	discoveryWriter *dlep.Writer
	discoveryParser *dlep.Parser

	mu       sync.RWMutex
	sessions map[string]*dlep.Session

	offersMu      sync.Mutex
	pendingOffers map[netip.Addr]pendingOffer

	closeOnce sync.Once
	closed    chan struct{}
}

// NewInterface creates the interface's sockets and primes its discovery
// writer; it does not start any goroutines (call Run for that).
func NewInterface(cfg Config, registry *dlep.Registry, l2 dlep.L2Sink, logger *slog.Logger) (*Interface, error) {
	if cfg.Role != dlep.RoleRadio && cfg.Role != dlep.RoleRouter {
		return nil, fmt.Errorf("interface %s: %w: %v", cfg.Name, ErrUnknownRole, cfg.Role)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxOutboundLen == 0 {
		cfg.MaxOutboundLen = DefaultMaxOutboundLen
	}

	conn, err := newDiscoverySocket(cfg.BindAddr, cfg.DiscoveryPort, cfg.Name, cfg.MulticastGroup)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", cfg.Name, err)
	}

	i := &Interface{
		log:      logger.With(slog.String("component", "iface"), slog.String("interface", cfg.Name)),
		cfg:      cfg,
		registry: registry,
		l2:       l2,
		conn:     conn,
		sessions: make(map[string]*dlep.Session),
		closed:   make(chan struct{}),
	}

	i.discoveryWriter = dlep.NewWriter(&i.outbound, cfg.MaxOutboundLen)
	i.discoveryParser = newDiscoveryParser()

	if cfg.Role == dlep.RoleRadio {
		ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: cfg.BindAddr.AsSlice(), Port: int(cfg.TCPPort)})
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("interface %s: listen tcp: %w", cfg.Name, err)
		}
		i.tcpListener = ln
	}

	return i, nil
}

// Run drives the interface's UDP discovery loop, its periodic beacon
// timer, and (for a radio interface) its TCP accept loop, until ctx is
// cancelled or an unrecoverable error occurs.
func (i *Interface) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return i.discoveryReadLoop(ctx) })
	g.Go(func() error { return i.discoveryBeaconLoop(ctx) })
	if i.cfg.Role == dlep.RoleRadio {
		g.Go(func() error { return i.tcpAcceptLoop(ctx) })
	}
	if i.cfg.Monitor != nil {
		g.Go(func() error { return i.watchLinkState(ctx) })
	}

	err := g.Wait()
	i.Close()
	return err
}

// Close releases the interface's sockets and terminates every live
// session.
func (i *Interface) Close() {
	i.closeOnce.Do(func() {
		close(i.closed)
		_ = i.conn.Close()
		if i.tcpListener != nil {
			_ = i.tcpListener.Close()
		}

		i.mu.Lock()
		sessions := make([]*dlep.Session, 0, len(i.sessions))
		for _, s := range i.sessions {
			sessions = append(sessions, s)
		}
		i.sessions = make(map[string]*dlep.Session)
		i.mu.Unlock()

		for _, s := range sessions {
			s.Close()
		}
	})
}

// Name returns the interface's configured name, e.g. "wlan0".
func (i *Interface) Name() string {
	return i.cfg.Name
}

// Sessions returns a snapshot of the interface's live sessions, safe to
// call from any goroutine (e.g. a remote-control "session list" command).
func (i *Interface) Sessions() []*dlep.Session {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]*dlep.Session, 0, len(i.sessions))
	for _, s := range i.sessions {
		out = append(out, s)
	}
	return out
}

func (i *Interface) hasSession() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.sessions) > 0
}

func (i *Interface) addSession(key string, s *dlep.Session) {
	i.mu.Lock()
	i.sessions[key] = s
	i.mu.Unlock()
}

func (i *Interface) removeSession(key string) {
	i.mu.Lock()
	delete(i.sessions, key)
	i.mu.Unlock()
}

// localExtensions returns the interface's configured extension ids,
// falling back to every extension the registry knows when none is
// explicitly configured.
func (i *Interface) localExtensions() []uint16 {
	if len(i.cfg.LocalExtensionIDs) > 0 {
		return i.cfg.LocalExtensionIDs
	}
	return i.registry.IDs()
}
