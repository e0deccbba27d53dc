package dlep

// Extension registry. Modeled as an explicit Registry value, created at
// startup and passed into Interface/Session construction rather than held
// globally: sessions snapshot the active subset, so the live registry is
// effectively immutable once a session exists.

import (
	"sort"
)

// Role distinguishes which side of a session an Extension hook is
// contributing to: the radio or the router.
type Role uint8

const (
	RoleRadio Role = iota + 1
	RoleRouter
)

func (r Role) String() string {
	switch r {
	case RoleRadio:
		return "radio"
	case RoleRouter:
		return "router"
	default:
		return "unknown"
	}
}

// ProcessResult is the tri-state outcome of an extension's processing
// hook for a received signal.
type ProcessResult uint8

const (
	// ResultOK means the extension accepted the signal; dispatch continues.
	ResultOK ProcessResult = iota
	// ResultDefer means the extension has nothing to do for this signal;
	// it is silently suppressed and dispatch continues.
	ResultDefer
	// ResultFail means the extension rejected the signal; dispatch
	// short-circuits and the session terminates.
	ResultFail
)

// TLVRule describes one TLV type's legality within one (extension,
// signal) pair: whether it is allowed at all, whether at least one
// occurrence is mandatory, and whether it may repeat.
type TLVRule struct {
	Type       TLVType
	MinLen     int
	MaxLen     int
	Mandatory  bool
	Repeatable bool
}

// SignalHandler processes one received signal for one role, reading the
// signal's TLVs through s.Parser().
type SignalHandler func(s *Session) ProcessResult

// SignalEmitter appends this extension's TLVs for one outbound signal.
// neighbor is the endpoint MAC the signal concerns, or nil for
// session/network-scoped signals (Peer Initialization Ack, Peer Update).
type SignalEmitter func(s *Session, neighbor []byte) error

// SignalDescriptor is one entry of an Extension's signal table: the signal id,
// its legal TLV set, and the optional per-role processing/emission hooks.
type SignalDescriptor struct {
	Signal SignalType
	TLVs   []TLVRule

	ProcessRadio  SignalHandler
	ProcessRouter SignalHandler
	EmitRadio     SignalEmitter
	EmitRouter    SignalEmitter
}

// L2Mapping binds one receive-side wire TLV to one layer-2 attribute
// slot: Decode translates the TLV payload into the attribute's native
// representation. A nil Decode means the raw bytes pass through
// unchanged. Extensions with values worth sending back out (see
// radiostats.go's emitRadioStats) build their own outbound TLVs rather
// than going through this table in reverse; there is no generic
// encode/default-value path.
type L2Mapping struct {
	TLV            TLVType
	Attribute      string
	NeighborScoped bool // true: per-destination; false: per-peer network
	Mandatory      bool
	Decode         func([]byte) (any, error)
}

// Extension is an immutable descriptor contributed to the Registry.
// Implementations are typically a single package-level value (see
// baseline.go, radiostats.go).
type Extension interface {
	// ID returns the extension's 16-bit identifier (RFC 8175 Section 7.1
	// "Extensions Supported" value space).
	ID() uint16

	// Signals returns every signal this extension contributes processing
	// or emission for, including signals it shares with other extensions.
	Signals() []SignalDescriptor

	// L2Mappings returns this extension's wire-TLV <-> layer-2 attribute
	// bindings.
	L2Mappings() []L2Mapping

	// InitSession is the per-role hook for a session activating this
	// extension. The Session engine does not call it: NewSession and
	// SetActiveExtensions activate extensions without invoking it.
	InitSession(role Role, s *Session) error

	// CleanupSession is the per-role hook for a session that had this
	// extension active. The Session engine does not call it when a
	// session closes.
	CleanupSession(role Role, s *Session)
}

// Registry is the ordered set of extensions known to the daemon. It is
// built once at startup (one Registry per process, or one per test) and
// is frozen, in practice, the instant the first Session reads it;
// Register after that point is a programming error the caller must
// avoid, not one the Registry defends against.
type Registry struct {
	byID  map[uint16]Extension
	order []uint16 // insertion-stable order
}

// NewRegistry creates an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint16]Extension)}
}

// Register adds ext to the registry. Registering the same id twice is a
// no-op — insertion order and the id list are unaffected by the duplicate call.
func (r *Registry) Register(ext Extension) {
	id := ext.ID()
	if _, exists := r.byID[id]; exists {
		return
	}
	r.byID[id] = ext
	r.order = append(r.order, id)
}

// IDs returns every registered extension id, sorted ascending.
func (r *Registry) IDs() []uint16 {
	ids := make([]uint16, 0, len(r.order))
	ids = append(ids, r.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Ordered returns every registered extension in insertion-stable order.
func (r *Registry) Ordered() []Extension {
	exts := make([]Extension, 0, len(r.order))
	for _, id := range r.order {
		exts = append(exts, r.byID[id])
	}
	return exts
}

// Get looks up a single extension by id.
func (r *Registry) Get(id uint16) (Extension, bool) {
	ext, ok := r.byID[id]
	return ext, ok
}

// Subset returns the extensions in ids, in the Registry's insertion-
// stable order (not the order of ids), dropping any id not registered.
// This is how a Session computes its active-extension array after
// negotiation.
func (r *Registry) Subset(ids []uint16) []Extension {
	want := make(map[uint16]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	out := make([]Extension, 0, len(ids))
	for _, id := range r.order {
		if want[id] {
			out = append(out, r.byID[id])
		}
	}
	return out
}

// Intersect returns the ids present in both a (this side's supported
// list) and offered (the peer's advertised list), in the Registry's
// insertion-stable order. Used by the radio side of Peer Offer
// generation.
func (r *Registry) Intersect(local, offered []uint16) []uint16 {
	offeredSet := make(map[uint16]bool, len(offered))
	for _, id := range offered {
		offeredSet[id] = true
	}

	localSet := make(map[uint16]bool, len(local))
	for _, id := range local {
		localSet[id] = true
	}

	out := make([]uint16, 0, len(local))
	for _, id := range r.order {
		if localSet[id] && offeredSet[id] {
			out = append(out, id)
		}
	}
	return out
}
