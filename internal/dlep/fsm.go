package dlep

// Session state machine transition table, modeled as a pure lookup with no
// Session dependency. DLEP's per-signal side effects (opening TCP, importing
// L2 data, emitting an ack) need data pulled out of TLVs that a context-free
// table cannot carry, so here the table only decides the next state and next
// expected signal; Session.HandleSignal (session.go) runs the extensions'
// process hooks, which carry out the side effects, before consulting it.

import "fmt"

// State is a session's position in the DLEP lifecycle.
type State uint8

const (
	StateWaitPeerDiscovery State = iota + 1 // radio, UDP
	StateWaitPeerOffer                      // router
	StateWaitPeerInit                       // radio, TCP
	StateWaitPeerInitAck                    // router
	StateInSession                          // both roles
	StateTerminating                        // both roles
	StateClosed                             // both roles
)

func (s State) String() string {
	switch s {
	case StateWaitPeerDiscovery:
		return "WaitPeerDiscovery"
	case StateWaitPeerOffer:
		return "WaitPeerOffer"
	case StateWaitPeerInit:
		return "WaitPeerInit"
	case StateWaitPeerInitAck:
		return "WaitPeerInitAck"
	case StateInSession:
		return "InSession"
	case StateTerminating:
		return "Terminating"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// NextSignal is the session's guard on what may legally arrive next
// : either a specific signal id, or the wildcard accepting anything.
type NextSignal struct {
	Signal SignalType
	Any    bool
}

// AnySignal is the wildcard NextSignal.
var AnySignal = NextSignal{Any: true}

// Expect builds a NextSignal pinned to one signal id.
func Expect(sig SignalType) NextSignal {
	return NextSignal{Signal: sig}
}

// Allows reports whether incoming satisfies this guard.
func (n NextSignal) Allows(incoming SignalType) bool {
	return n.Any || n.Signal == incoming
}

func (n NextSignal) String() string {
	if n.Any {
		return "Any"
	}
	return n.Signal.String()
}

// transitionKey is (current state, received signal).
type transitionKey struct {
	state  State
	signal SignalType
}

// transitionResult names the state and next-expected-signal reached
// after successfully processing a signal in a given state.
type transitionResult struct {
	next    State
	nextExp NextSignal
}

// routerTransitions is the router-side transition table.
// PeerTermination/parse-error handling and the Terminating->Closed exit are
// implemented directly in session.go since they are role-symmetric and not
// conditioned on which extension is active.
var routerTransitions = map[transitionKey]transitionResult{
	{StateWaitPeerOffer, SignalPeerOffer}:          {StateWaitPeerInitAck, Expect(SignalPeerInitializationAck)},
	{StateWaitPeerInitAck, SignalPeerInitializationAck}: {StateInSession, AnySignal},
	{StateInSession, SignalPeerUpdate}:             {StateInSession, AnySignal},
	{StateInSession, SignalDestinationUp}:          {StateInSession, AnySignal},
	{StateInSession, SignalDestinationUpdate}:      {StateInSession, AnySignal},
	{StateInSession, SignalDestinationDown}:        {StateInSession, AnySignal},
	{StateInSession, SignalHeartbeat}:              {StateInSession, AnySignal},
	{StateInSession, SignalPeerTermination}:        {StateClosed, AnySignal},
}

// radioTransitions is the symmetric radio-side table: the radio
// generates Peer Offer/Init Ack/acks instead of receiving them, and
// receives Peer Discovery/Peer Initialization/Peer Update/Destination
// signals and Peer Termination from the router.
var radioTransitions = map[transitionKey]transitionResult{
	{StateWaitPeerDiscovery, SignalPeerDiscovery}: {StateWaitPeerInit, Expect(SignalPeerInitialization)},
	{StateWaitPeerInit, SignalPeerInitialization}: {StateInSession, AnySignal},
	{StateInSession, SignalPeerUpdate}:            {StateInSession, AnySignal},
	{StateInSession, SignalDestinationUpAck}:      {StateInSession, AnySignal},
	{StateInSession, SignalDestinationDownAck}:    {StateInSession, AnySignal},
	{StateInSession, SignalHeartbeat}:             {StateInSession, AnySignal},
	{StateInSession, SignalPeerTermination}:       {StateClosed, AnySignal},
}

// lookupTransition returns the (state, signal) outcome for role, or
// false if the pair is not a legal transition (the caller should treat
// this as "unexpected signal".6 "any -> parse/semantic error -> emit
// PeerTermination").
func lookupTransition(role Role, state State, signal SignalType) (transitionResult, bool) {
	table := routerTransitions
	if role == RoleRadio {
		table = radioTransitions
	}
	res, ok := table[transitionKey{state: state, signal: signal}]
	return res, ok
}

// ErrUnexpectedSignal reports a signal that does not match next_signal
// or has no entry in the role's transition table.
var ErrUnexpectedSignal = fmt.Errorf("dlep: unexpected signal")
