package l2

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/oonf-go/godlep/internal/dlep"
)

// Mediator adapts a Store to dlep.L2Sink, stamping every record with the
// asserting session's origin UUID so a later reconciliation pass (or an
// operator inspecting the store) can tell which session last touched an
// attribute when more than one session describes the same destination.
type Mediator struct {
	log   *slog.Logger
	store Store

	mu      sync.Mutex
	origins map[string]uuid.UUID
}

// NewMediator creates a Mediator writing through to store.
func NewMediator(store Store, logger *slog.Logger) *Mediator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mediator{
		log:     logger.With(slog.String("component", "l2.mediator")),
		store:   store,
		origins: make(map[string]uuid.UUID),
	}
}

// RegisterSession mints an origin stamp for a newly created session.
// Call once when a dlep.Session is constructed; the returned UUID is
// stable for the session's lifetime.
func (m *Mediator) RegisterSession(sessionID string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.origins[sessionID]; ok {
		return id
	}
	id := uuid.New()
	m.origins[sessionID] = id
	m.log.Debug("registered l2 origin", "session", sessionID, "origin", id)
	return id
}

// ForgetSession drops a session's origin stamp and removes its records
// from the backing Store.
func (m *Mediator) ForgetSession(sessionID string) {
	m.mu.Lock()
	delete(m.origins, sessionID)
	m.mu.Unlock()

	m.store.RemovePeer(sessionID)
}

func (m *Mediator) origin(sessionID string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.origins[sessionID]; ok {
		return id
	}
	// A session that asserts an attribute before RegisterSession ran
	// (e.g. in a unit test wiring a Session directly to Mediator) still
	// gets a stable stamp rather than an error; RegisterSession is the
	// normal path, not the only valid one.
	id := uuid.New()
	m.origins[sessionID] = id
	return id
}

// SetPeerAttr implements dlep.L2Sink.
func (m *Mediator) SetPeerAttr(sessionID, attribute string, value any) {
	m.store.SetPeerAttr(sessionID, attribute, value)
	m.store.SetPeerAttr(sessionID, "_origin", m.origin(sessionID).String())
}

// SetNeighborAttr implements dlep.L2Sink.
func (m *Mediator) SetNeighborAttr(sessionID string, mac []byte, attribute string, value any) {
	m.store.SetNeighborAttr(sessionID, mac, attribute, value)
	m.store.SetNeighborAttr(sessionID, mac, "_origin", m.origin(sessionID).String())
}

// RemoveNeighbor implements dlep.L2Sink.
func (m *Mediator) RemoveNeighbor(sessionID string, mac []byte) {
	m.store.RemoveNeighbor(sessionID, mac)
}

var _ dlep.L2Sink = (*Mediator)(nil)
