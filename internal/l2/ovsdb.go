package l2

// OVSDBStore backs the layer-2 information base with an external OVS
// database instance, via the ovn-org/libovsdb client and its typed ORM
// (model.ClientDBModel).

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ovn-org/libovsdb/client"
	"github.com/ovn-org/libovsdb/model"
)

// ErrNotConnected indicates an OVSDBStore operation was attempted
// before Connect succeeded or after Close.
var ErrNotConnected = errors.New("l2: ovsdb client not connected")

const (
	tablePeer     = "DLEP_Peer"
	tableNeighbor = "DLEP_Neighbor"
)

// ovsdbPeer mirrors one row of the DLEP_Peer table.
type ovsdbPeer struct {
	UUID      string            `ovsdb:"_uuid"`
	SessionID string            `ovsdb:"session_id"`
	Attrs     map[string]string `ovsdb:"attrs"`
}

func (*ovsdbPeer) Table() string { return tablePeer }

// ovsdbNeighbor mirrors one row of the DLEP_Neighbor table.
type ovsdbNeighbor struct {
	UUID      string            `ovsdb:"_uuid"`
	SessionID string            `ovsdb:"session_id"`
	MAC       string            `ovsdb:"mac"`
	Attrs     map[string]string `ovsdb:"attrs"`
}

func (*ovsdbNeighbor) Table() string { return tableNeighbor }

func dbModel() (model.ClientDBModel, error) {
	return model.NewClientDBModel("DLEP", map[string]model.Model{
		tablePeer:     &ovsdbPeer{},
		tableNeighbor: &ovsdbNeighbor{},
	})
}

// OVSDBStore implements Store against a running ovsdb-server. Attribute
// values are stringified on write (OVSDB string-string maps only) and
// returned as strings on read; callers that need the original typed
// value should prefer MemStore.
type OVSDBStore struct {
	log    *slog.Logger
	client client.Client
}

// OVSDBConfig configures the connection to an external OVS database.
type OVSDBConfig struct {
	// Endpoint is an ovsdb-server connection string, e.g.
	// "tcp:127.0.0.1:6640" or "unix:/var/run/openvswitch/db.sock".
	Endpoint string

	// ConnectTimeout bounds the initial Connect call. Zero means the
	// caller's context deadline governs instead.
	ConnectTimeout time.Duration
}

// NewOVSDBStore connects to the OVS database described by cfg and
// begins monitoring the DLEP tables.
func NewOVSDBStore(ctx context.Context, cfg OVSDBConfig, logger *slog.Logger) (*OVSDBStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "l2.ovsdb"), slog.String("endpoint", cfg.Endpoint))

	dbm, err := dbModel()
	if err != nil {
		return nil, fmt.Errorf("build ovsdb model: %w", err)
	}

	ovs, err := client.NewOVSDBClient(dbm, client.WithEndpoint(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("create ovsdb client for %s: %w", cfg.Endpoint, err)
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := ovs.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to ovsdb %s: %w", cfg.Endpoint, err)
	}
	if _, err := ovs.MonitorAll(ctx); err != nil {
		ovs.Close()
		return nil, fmt.Errorf("monitor ovsdb tables: %w", err)
	}

	log.Info("connected to ovsdb")
	return &OVSDBStore{log: log, client: ovs}, nil
}

func stringifyAttrs(attrs Attrs) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func (o *OVSDBStore) transactPeer(sessionID string, mutate func(*ovsdbPeer)) {
	row := &ovsdbPeer{SessionID: sessionID, Attrs: make(map[string]string)}
	mutate(row)

	ops, err := o.client.Where(&ovsdbPeer{SessionID: sessionID}).Update(row)
	if err != nil || len(ops) == 0 {
		ops, err = o.client.Create(row)
	}
	if err != nil {
		o.log.Warn("build peer transaction failed", "session", sessionID, "error", err)
		return
	}
	if _, err := o.client.Transact(context.Background(), ops...); err != nil {
		o.log.Warn("peer transaction failed", "session", sessionID, "error", err)
	}
}

func (o *OVSDBStore) SetPeerAttr(sessionID, attribute string, value any) {
	existing, _ := o.GetPeer(sessionID)
	attrs := existing.Attrs
	if attrs == nil {
		attrs = make(Attrs)
	}
	attrs[attribute] = value

	o.transactPeer(sessionID, func(row *ovsdbPeer) {
		row.Attrs = stringifyAttrs(attrs)
	})
}

func (o *OVSDBStore) SetNeighborAttr(sessionID string, mac []byte, attribute string, value any) {
	key := macKey(mac)
	existing, _ := o.GetNeighbor(sessionID, mac)
	attrs := existing.Attrs
	if attrs == nil {
		attrs = make(Attrs)
	}
	attrs[attribute] = value

	row := &ovsdbNeighbor{SessionID: sessionID, MAC: key, Attrs: stringifyAttrs(attrs)}
	ops, err := o.client.Where(&ovsdbNeighbor{SessionID: sessionID, MAC: key}).Update(row)
	if err != nil || len(ops) == 0 {
		ops, err = o.client.Create(row)
	}
	if err != nil {
		o.log.Warn("build neighbor transaction failed", "session", sessionID, "mac", key, "error", err)
		return
	}
	if _, err := o.client.Transact(context.Background(), ops...); err != nil {
		o.log.Warn("neighbor transaction failed", "session", sessionID, "mac", key, "error", err)
	}
}

func (o *OVSDBStore) RemoveNeighbor(sessionID string, mac []byte) {
	ops, err := o.client.Where(&ovsdbNeighbor{SessionID: sessionID, MAC: macKey(mac)}).Delete()
	if err != nil {
		o.log.Warn("build neighbor delete failed", "session", sessionID, "error", err)
		return
	}
	if _, err := o.client.Transact(context.Background(), ops...); err != nil {
		o.log.Warn("neighbor delete failed", "session", sessionID, "error", err)
	}
}

func (o *OVSDBStore) RemovePeer(sessionID string) {
	ops, err := o.client.Where(&ovsdbPeer{SessionID: sessionID}).Delete()
	if err != nil {
		o.log.Warn("build peer delete failed", "session", sessionID, "error", err)
		return
	}
	neighborOps, err := o.client.Where(&ovsdbNeighbor{SessionID: sessionID}).Delete()
	if err == nil {
		ops = append(ops, neighborOps...)
	}
	if _, err := o.client.Transact(context.Background(), ops...); err != nil {
		o.log.Warn("peer delete failed", "session", sessionID, "error", err)
	}
}

func attrsFromStrings(m map[string]string) Attrs {
	out := make(Attrs, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (o *OVSDBStore) GetPeer(sessionID string) (PeerRecord, bool) {
	var rows []ovsdbPeer
	if err := o.client.WhereCache(func(p *ovsdbPeer) bool { return p.SessionID == sessionID }).List(context.Background(), &rows); err != nil || len(rows) == 0 {
		return PeerRecord{}, false
	}
	return PeerRecord{SessionID: sessionID, Attrs: attrsFromStrings(rows[0].Attrs)}, true
}

func (o *OVSDBStore) GetNeighbor(sessionID string, mac []byte) (NeighborRecord, bool) {
	key := macKey(mac)
	var rows []ovsdbNeighbor
	if err := o.client.WhereCache(func(n *ovsdbNeighbor) bool { return n.SessionID == sessionID && n.MAC == key }).List(context.Background(), &rows); err != nil || len(rows) == 0 {
		return NeighborRecord{}, false
	}
	return NeighborRecord{SessionID: sessionID, MAC: key, Attrs: attrsFromStrings(rows[0].Attrs)}, true
}

func (o *OVSDBStore) ListNeighbors(sessionID string) []NeighborRecord {
	var rows []ovsdbNeighbor
	if err := o.client.WhereCache(func(n *ovsdbNeighbor) bool { return n.SessionID == sessionID }).List(context.Background(), &rows); err != nil {
		return nil
	}
	out := make([]NeighborRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, NeighborRecord{SessionID: r.SessionID, MAC: r.MAC, Attrs: attrsFromStrings(r.Attrs)})
	}
	return out
}

func (o *OVSDBStore) ListPeers() []PeerRecord {
	var rows []ovsdbPeer
	if err := o.client.WhereCache(func(*ovsdbPeer) bool { return true }).List(context.Background(), &rows); err != nil {
		return nil
	}
	out := make([]PeerRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, PeerRecord{SessionID: r.SessionID, Attrs: attrsFromStrings(r.Attrs)})
	}
	return out
}

func (o *OVSDBStore) Close() error {
	o.client.Close()
	return nil
}

var _ Store = (*OVSDBStore)(nil)
