package dlep

// Local-neighbor table. Keyed by endpoint MAC within a session. Tracks the
// destination lifecycle state and the single outstanding ack timer an
// UpSent/DownSent neighbor must have.

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// NeighborState is the destination lifecycle state.
type NeighborState uint8

const (
	NeighborIdle NeighborState = iota
	NeighborUpSent
	NeighborUpAcked
	NeighborDownSent
	NeighborDownAcked
)

func (s NeighborState) String() string {
	switch s {
	case NeighborIdle:
		return "Idle"
	case NeighborUpSent:
		return "UpSent"
	case NeighborUpAcked:
		return "UpAcked"
	case NeighborDownSent:
		return "DownSent"
	case NeighborDownAcked:
		return "DownAcked"
	default:
		return "Unknown"
	}
}

// ErrNeighborNotFound indicates no local neighbor exists for a MAC.
var ErrNeighborNotFound = errors.New("dlep: local neighbor not found")

// ErrAckTimerAlreadyArmed indicates a second ack timer would be armed
// for a neighbor that already has one outstanding.
var ErrAckTimerAlreadyArmed = errors.New("dlep: ack timer already armed")

// LostFunc is invoked when a neighbor's ack timeout fires: the
// destination is declared lost.
type LostFunc func(mac string)

// LocalNeighbor is one destination tracked by a session.
type LocalNeighbor struct {
	EndpointMAC []byte
	WirelessMAC []byte // optional
	State       NeighborState
	Changed     bool

	ackTimer *time.Timer
}

// NeighborTable owns every LocalNeighbor of one session. It is only ever
// touched by the owning session's single goroutine; mu exists solely so
// the ack-timeout callback (run from the timer's own goroutine) can read
// state without tripping the race detector on timer-callback access — it
// is never contended in practice.
type NeighborTable struct {
	mu        sync.Mutex
	neighbors map[string]*LocalNeighbor
	onLost    LostFunc
}

// NewNeighborTable creates an empty table. onLost is invoked (from the
// timer's own goroutine) when a neighbor's ack timeout fires; it should
// hand the event back to the session's event loop rather than act
// directly on session state.
func NewNeighborTable(onLost LostFunc) *NeighborTable {
	return &NeighborTable{
		neighbors: make(map[string]*LocalNeighbor),
		onLost:    onLost,
	}
}

func macKey(mac []byte) string {
	return string(mac)
}

// GetOrCreate returns the existing neighbor for mac, creating an Idle
// one if absent.
func (t *NeighborTable) GetOrCreate(mac []byte) *LocalNeighbor {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := macKey(mac)
	n, ok := t.neighbors[key]
	if !ok {
		n = &LocalNeighbor{EndpointMAC: append([]byte(nil), mac...), State: NeighborIdle}
		t.neighbors[key] = n
	}
	return n
}

// Get returns the neighbor for mac, or ErrNeighborNotFound.
func (t *NeighborTable) Get(mac []byte) (*LocalNeighbor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.neighbors[macKey(mac)]
	if !ok {
		return nil, fmt.Errorf("neighbor %x: %w", mac, ErrNeighborNotFound)
	}
	return n, nil
}

// All returns every tracked neighbor. The returned slice is a snapshot;
// mutating the table afterward does not affect it.
func (t *NeighborTable) All() []*LocalNeighbor {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*LocalNeighbor, 0, len(t.neighbors))
	for _, n := range t.neighbors {
		out = append(out, n)
	}
	return out
}

// MarkSent transitions n from Idle to UpSent (or UpAcked to DownSent)
// and arms its ack timeout.5 "Ack timeout is 2 x heartbeat_interval_local,
// minimum 1 s. The timer is armed on the send, disarmed on the matching ack."
func (t *NeighborTable) MarkSent(n *LocalNeighbor, next NeighborState, heartbeatInterval time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.ackTimer != nil {
		return fmt.Errorf("mark %s: %w", next, ErrAckTimerAlreadyArmed)
	}

	n.State = next
	timeout := 2 * heartbeatInterval
	if timeout < time.Second {
		timeout = time.Second
	}

	key := macKey(n.EndpointMAC)
	n.ackTimer = time.AfterFunc(timeout, func() {
		t.fireTimeout(key)
	})
	return nil
}

// fireTimeout runs when a neighbor's ack timer expires: the destination
// is declared lost, the table entry removed, and onLost invoked.
func (t *NeighborTable) fireTimeout(key string) {
	t.mu.Lock()
	n, ok := t.neighbors[key]
	if ok && n.ackTimer == nil {
		// Ack already disarmed this timer; the acknowledgement wins.
		ok = false
	}
	if ok {
		n.ackTimer = nil
		delete(t.neighbors, key)
	}
	t.mu.Unlock()

	if ok && t.onLost != nil {
		t.onLost(string(n.EndpointMAC))
	}
}

// Ack transitions n out of its "Sent" state on receipt of the matching
// acknowledgement, disarming the ack timer. Ack is a no-op if no timer is
// currently armed (the ack timeout already fired and removed the entry — the
// two outcomes are mutually exclusive.
func (t *NeighborTable) Ack(n *LocalNeighbor) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.ackTimer == nil {
		return
	}
	n.ackTimer.Stop()
	n.ackTimer = nil

	switch n.State {
	case NeighborUpSent:
		n.State = NeighborUpAcked
	case NeighborDownSent:
		n.State = NeighborDownAcked
	}
}

// Remove deletes mac from the table unconditionally (used for GC after
// DownAcked, and when a session drains the table on teardown).
func (t *NeighborTable) Remove(mac []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := macKey(mac)
	if n, ok := t.neighbors[key]; ok {
		if n.ackTimer != nil {
			n.ackTimer.Stop()
		}
		delete(t.neighbors, key)
	}
}

// SweepChanged returns every UpAcked neighbor with Changed set, clearing
// the flag on each.
func (t *NeighborTable) SweepChanged() []*LocalNeighbor {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*LocalNeighbor
	for _, n := range t.neighbors {
		if n.Changed && n.State == NeighborUpAcked {
			n.Changed = false
			out = append(out, n)
		}
	}
	return out
}

// SweepGC removes every DownAcked neighbor.
func (t *NeighborTable) SweepGC() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, n := range t.neighbors {
		if n.State == NeighborDownAcked {
			delete(t.neighbors, key)
		}
	}
}

// Drain disarms every outstanding timer and empties the table. It does not
// invoke onLost — the caller (Session teardown) decides per neighbor whether to
// emit an in-band DestinationDown or simply drop it.
func (t *NeighborTable) Drain() []*LocalNeighbor {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*LocalNeighbor, 0, len(t.neighbors))
	for key, n := range t.neighbors {
		if n.ackTimer != nil {
			n.ackTimer.Stop()
		}
		out = append(out, n)
		delete(t.neighbors, key)
	}
	return out
}
