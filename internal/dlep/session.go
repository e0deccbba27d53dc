package dlep

// Session drives one peer relationship end to end: signal receipt, TLV
// validation, per-extension dispatch, state transitions, and outbound signal
// construction. One Session exists per (local interface, remote peer) pair; it
// is only ever touched by its owning Interface's single goroutine. Built on
// atomic-free single-owner state, a slog.Logger threaded through a
// constructor, functional SessionOption values for optional knobs, and
// sentinel errors wrapped with %w for every failure path.

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// L2Sink receives layer-2 attribute updates extracted from inbound
// TLVs. internal/l2's Store implements this; dlep itself only depends on the
// interface, keeping the mediator's storage choice (in-memory vs OVSDB-backed)
// out of the protocol package.
type L2Sink interface {
	SetPeerAttr(sessionID string, attribute string, value any)
	SetNeighborAttr(sessionID string, mac []byte, attribute string, value any)
	RemoveNeighbor(sessionID string, mac []byte)
}

type noopL2Sink struct{}

func (noopL2Sink) SetPeerAttr(string, string, any)            {}
func (noopL2Sink) SetNeighborAttr(string, []byte, string, any) {}
func (noopL2Sink) RemoveNeighbor(string, []byte)              {}

// Session-level errors.
var (
	ErrSessionClosed     = errors.New("dlep: session closed")
	ErrExtensionRejected = errors.New("dlep: extension rejected signal")
)

// SessionOption configures optional Session behavior.
type SessionOption func(*Session)

// WithLogger attaches a structured logger; default is slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithHeartbeatInterval sets the locally-configured heartbeat interval.
// Default 5s.
func WithHeartbeatInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.heartbeatInterval = d }
}

// WithMaxOutboundLen bounds the writer's shared buffer; 0 means unbounded.
func WithMaxOutboundLen(n int) SessionOption {
	return func(s *Session) { s.maxOutboundLen = n }
}

// WithSend sets the transport hook Session calls to transmit framed
// bytes. Required in production; tests may substitute a capturing stub.
func WithSend(fn func([]byte) error) SessionOption {
	return func(s *Session) { s.send = fn }
}

// WithL2Sink attaches the layer-2 mediator extensions report attribute
// changes to. Default is a no-op sink.
func WithL2Sink(sink L2Sink) SessionOption {
	return func(s *Session) { s.l2 = sink }
}

// WithOnClose registers a callback invoked exactly once when the session
// reaches StateClosed, for whatever reason.
func WithOnClose(fn func(s *Session)) SessionOption {
	return func(s *Session) { s.onClose = fn }
}

// WithOfferedExtensions records the extension ids exchanged during UDP
// discovery (decoded by the Interface controller from Peer Discovery's
// or Peer Offer's Extensions Supported TLV) so the session's first
// TCP-phase emit can include them without re-deriving the negotiation.
func WithOfferedExtensions(ids []uint16) SessionOption {
	return func(s *Session) { s.offeredExtensions = append([]uint16(nil), ids...) }
}

// WithConnectPoint sets the TCP connect-point address(es) the radio side
// advertises in its Peer Offer. Either may be nil.
func WithConnectPoint(ipv4, ipv6 net.IP, port uint16) SessionOption {
	return func(s *Session) {
		s.connectIPv4 = ipv4
		s.connectIPv6 = ipv6
		s.connectPort = port
	}
}

// Session is one DLEP peer relationship.
type Session struct {
	log *slog.Logger

	id       string // opaque identifier, e.g. "eth0/radio@02:00:00:00:00:01"
	role     Role
	registry *Registry
	active   []Extension // negotiated subset, insertion-stable order

	state   State
	nextExp NextSignal
	closed  bool

	parser *Parser
	writer *Writer
	outbuf *bytes.Buffer

	neighbors *NeighborTable
	l2        L2Sink

	heartbeatInterval time.Duration
	heartbeatTimer    *time.Timer
	deadTimer         *time.Timer
	maxOutboundLen    int

	send    func([]byte) error
	onClose func(s *Session)

	connectIPv4 net.IP
	connectIPv6 net.IP
	connectPort uint16

	// offeredExtensions carries the extension id list decoded from a
	// just-received signal across to the same signal's emit hooks, e.g.
	// Peer Discovery's ExtensionsSupported TLV informing Peer Offer's.
	// Scratch space only; never read outside the signal it was set for.
	offeredExtensions []uint16
}

// NewSession creates a Session for role, starting from the registry's
// full extension set (negotiation narrows it to active via
// SetActiveExtensions once Peer Offer / Peer Initialization exchange
// completes).
func NewSession(id string, role Role, registry *Registry, opts ...SessionOption) *Session {
	s := &Session{
		id:                id,
		role:              role,
		registry:          registry,
		active:            registry.Ordered(),
		heartbeatInterval: 5 * time.Second,
		l2:                noopL2Sink{},
		outbuf:            &bytes.Buffer{},
	}

	// Peer Discovery/Peer Offer exchange happens over UDP before any
	// Session exists; the Interface controller (internal/iface) owns
	// that lighter-weight discovery phase directly against wire.go, and
	// constructs a Session only once a TCP connection is established.
	// Session's own FSM therefore begins at the first TCP-phase signal
	// each role is waiting for.
	switch role {
	case RoleRouter:
		s.state = StateWaitPeerInitAck
		s.nextExp = Expect(SignalPeerInitializationAck)
	case RoleRadio:
		s.state = StateWaitPeerInit
		s.nextExp = Expect(SignalPeerInitialization)
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	s.parser = NewParser(s.active)
	s.writer = NewWriter(s.outbuf, s.maxOutboundLen)
	s.neighbors = NewNeighborTable(s.onNeighborLost)

	return s
}

// ID returns the session's identifier, as supplied to NewSession.
func (s *Session) ID() string { return s.id }

// Role returns the session's local role.
func (s *Session) Role() Role { return s.role }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Neighbors returns the session's local-neighbor table, for extensions
// and tests that need direct access to destination lifecycle state.
func (s *Session) Neighbors() *NeighborTable { return s.neighbors }

// Writer returns the session's signal writer, for extension emitters.
func (s *Session) Writer() *Writer { return s.writer }

// Parser returns the session's TLV parser, for extension processors to
// read the signal currently being handled.
func (s *Session) Parser() *Parser { return s.parser }

// L2 returns the layer-2 sink extensions report attribute changes to.
func (s *Session) L2() L2Sink { return s.l2 }

// SetActiveExtensions narrows the session to the negotiated subset
// and rebuilds the parser's rule index accordingly. Must be called before the
// first signal past Peer Offer / Peer Initialization is parsed.
func (s *Session) SetActiveExtensions(ids []uint16) {
	withBaseline := append([]uint16{baselineExtensionID}, ids...)
	s.active = s.registry.Subset(withBaseline)
	s.parser = NewParser(s.active)
}

// activeIDs returns the ids of the session's currently active
// extensions, for re-advertising a negotiated set.
func (s *Session) activeIDs() []uint16 {
	ids := make([]uint16, 0, len(s.active))
	for _, ext := range s.active {
		ids = append(ids, ext.ID())
	}
	return ids
}

// Closed reports whether the session has reached StateClosed.
func (s *Session) Closed() bool { return s.closed }

// SetSend swaps the transport hook Session calls to transmit framed
// signal bytes. The radio side uses this to move a session from the
// discovery-phase UDP socket to the newly accepted TCP connection.
func (s *Session) SetSend(fn func([]byte) error) {
	s.send = fn
}

// descriptorsFor collects, in active-extension order, every
// SignalDescriptor declared for signal.
func (s *Session) descriptorsFor(signal SignalType) []SignalDescriptor {
	var out []SignalDescriptor
	for _, ext := range s.active {
		for _, d := range ext.Signals() {
			if d.Signal == signal {
				out = append(out, d)
			}
		}
	}
	return out
}

func isKnownSignal(sig SignalType) bool {
	_, ok := signalNames[sig]
	return ok
}

// HandleSignal processes one fully-unframed, not-yet-parsed inbound signal:
// 1. next_signal guard
// 2. TLV parse against the active rule set
// 3. per-extension process dispatch, in registry order, short-circuiting on
//    ResultFail
// 4. state transition via the role's transition table
// Any failure along the way terminates the session by sending Peer
// Termination with the appropriate status and returning the error that
// caused it; the caller (Interface) is not expected to also report it.
func (s *Session) HandleSignal(signal SignalType, payload []byte) error {
	if s.closed {
		return fmt.Errorf("session %s: %w", s.id, ErrSessionClosed)
	}

	if !s.nextExp.Allows(signal) {
		err := fmt.Errorf("session %s: got %s, expected %s: %w", s.id, signal, s.nextExp, ErrUnexpectedSignal)
		s.terminate(StatusUnexpectedSignal, err)
		return err
	}

	// Peer Termination and its Ack are core protocol, handled the same
	// way regardless of which extensions are active.
	switch signal {
	case SignalPeerTermination:
		return s.handlePeerTermination()
	case SignalPeerTerminationAck:
		s.close()
		return nil
	}

	if err := s.parser.Parse(signal, payload); err != nil {
		status := StatusInvalidTLV
		if errors.Is(err, ErrIllegalLength) {
			status = StatusInvalidTLVValue
		}
		wrapped := fmt.Errorf("session %s: %w", s.id, err)
		s.terminate(status, wrapped)
		return wrapped
	}

	for _, d := range s.descriptorsFor(signal) {
		var handler SignalHandler
		if s.role == RoleRadio {
			handler = d.ProcessRadio
		} else {
			handler = d.ProcessRouter
		}
		if handler == nil {
			continue
		}
		if handler(s) == ResultFail {
			err := fmt.Errorf("session %s: signal %s: %w", s.id, signal, ErrExtensionRejected)
			s.terminate(StatusInvalidTLVValue, err)
			return err
		}
	}

	result, ok := lookupTransition(s.role, s.state, signal)
	if !ok {
		status := StatusUnexpectedSignal
		if !isKnownSignal(signal) {
			status = StatusUnknownSignal
		}
		err := fmt.Errorf("session %s: no transition for %s in state %s: %w", s.id, signal, s.state, ErrUnexpectedSignal)
		s.terminate(status, err)
		return err
	}

	s.log.Debug("dlep session transition",
		"session", s.id, "signal", signal, "from", s.state, "to", result.next)
	s.state = result.next
	s.nextExp = result.nextExp

	if signal == SignalHeartbeat {
		s.resetDeadTimer()
	}

	return nil
}

func (s *Session) handlePeerTermination() error {
	if err := s.EmitSignal(SignalPeerTerminationAck, nil); err != nil {
		s.log.Warn("failed to ack peer termination", "session", s.id, "error", err)
	}
	s.close()
	return nil
}

// EmitSignal builds and sends one outbound signal: Begin, every active
// extension's emitter for signal (in registry order), Finish, transmit.
// neighbor is the destination MAC the signal concerns, or nil for
// session-scoped signals.
func (s *Session) EmitSignal(signal SignalType, neighbor []byte) error {
	if err := s.writer.Begin(signal); err != nil {
		return fmt.Errorf("session %s: emit %s: %w", s.id, signal, err)
	}

	for _, d := range s.descriptorsFor(signal) {
		var emit SignalEmitter
		if s.role == RoleRadio {
			emit = d.EmitRadio
		} else {
			emit = d.EmitRouter
		}
		if emit == nil {
			continue
		}
		if err := emit(s, neighbor); err != nil {
			s.writer.Abort()
			return fmt.Errorf("session %s: emit %s: %w", s.id, signal, err)
		}
	}

	frame, err := s.writer.Finish()
	if err != nil {
		return fmt.Errorf("session %s: emit %s: %w", s.id, signal, err)
	}
	// frame is a view into outbuf; emptying the buffer once send returns
	// makes every signal start at offset 0, so the outbound bound applies
	// to one signal at a time.
	defer s.outbuf.Reset()

	if s.send == nil {
		return nil
	}
	if err := s.send(frame); err != nil {
		return fmt.Errorf("session %s: send %s: %w", s.id, signal, err)
	}
	return nil
}

// terminate sends Peer Termination with status and transitions to
// Terminating, awaiting the peer's Ack. The triggering error is logged, not
// returned; callers already have it from the caller-facing method that invoked
// terminate.
func (s *Session) terminate(status Status, cause error) {
	if s.closed || s.state == StateTerminating {
		return
	}
	s.log.Warn("terminating dlep session", "session", s.id, "status", status, "cause", cause)

	s.state = StateTerminating
	s.nextExp = Expect(SignalPeerTerminationAck)

	err := s.writer.Begin(SignalPeerTermination)
	if err == nil {
		if err = s.writer.AddTLV(TLVStatus, encodeStatus(status)); err == nil {
			var frame []byte
			if frame, err = s.writer.Finish(); err == nil {
				if s.send != nil {
					err = s.send(frame)
				}
				s.outbuf.Reset()
			}
		}
	}
	if err != nil {
		s.log.Warn("failed to emit peer termination", "session", s.id, "error", err)
	}
}

func (s *Session) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.state = StateClosed
	s.stopTimers()

	for _, n := range s.neighbors.Drain() {
		s.l2.RemoveNeighbor(s.id, n.EndpointMAC)
	}

	if s.onClose != nil {
		s.onClose(s)
	}
}

// Close terminates the session unconditionally, e.g. on interface
// shutdown. It attempts one best-effort Peer Termination with StatusShutdown
// before closing.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.terminate(StatusShutdown, ErrSessionClosed)
	s.close()
}

func (s *Session) onNeighborLost(mac string) {
	s.l2.RemoveNeighbor(s.id, []byte(mac))
}

// resetDeadTimer rearms the peer-liveness deadline; HandleSignal calls it
// for every accepted Heartbeat, and no other signal rearms it. dead interval is conventionally 2 x
// heartbeat_interval_remote, but the remote interval is only known once
// negotiated; until then the local interval stands in.
func (s *Session) resetDeadTimer() {
	if s.deadTimer != nil {
		s.deadTimer.Stop()
	}
	deadline := 2 * s.heartbeatInterval
	if deadline < time.Second {
		deadline = time.Second
	}
	s.deadTimer = time.AfterFunc(deadline, s.declareDead)
}

// declareDead runs when the dead-interval timer fires with no signal
// having reset it: the peer is presumed unreachable, so unlike every
// other termination cause this skips Peer Termination (there is nothing
// listening to ack it) and closes the session directly.
func (s *Session) declareDead() {
	if s.closed {
		return
	}
	s.log.Warn("dlep peer declared dead", "session", s.id, "status", StatusTimeout)
	s.close()
}

func (s *Session) stopTimers() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	if s.deadTimer != nil {
		s.deadTimer.Stop()
	}
}

// Tick sends a Heartbeat if the session is InSession, for the
// Interface's periodic scheduler to drive.
func (s *Session) Tick() error {
	if s.closed || s.state != StateInSession {
		return nil
	}
	return s.EmitSignal(SignalHeartbeat, nil)
}
