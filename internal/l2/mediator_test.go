package l2_test

import (
	"testing"

	"github.com/oonf-go/godlep/internal/l2"
)

func TestMediatorStampsOrigin(t *testing.T) {
	t.Parallel()

	store := l2.NewMemStore()
	m := l2.NewMediator(store, nil)

	origin := m.RegisterSession("sess-1")
	m.SetPeerAttr("sess-1", "heartbeat_ms", uint16(5000))

	rec, ok := store.GetPeer("sess-1")
	if !ok {
		t.Fatal("peer record not written through to the store")
	}
	if rec.Attrs["_origin"] != origin.String() {
		t.Fatalf("_origin = %v, want %s", rec.Attrs["_origin"], origin)
	}
}

func TestMediatorRegisterSessionIdempotent(t *testing.T) {
	t.Parallel()

	m := l2.NewMediator(l2.NewMemStore(), nil)
	first := m.RegisterSession("sess-1")
	second := m.RegisterSession("sess-1")
	if first != second {
		t.Fatalf("RegisterSession() returned different origins: %s != %s", first, second)
	}
}

func TestMediatorForgetSessionRemovesRecords(t *testing.T) {
	t.Parallel()

	store := l2.NewMemStore()
	m := l2.NewMediator(store, nil)

	m.RegisterSession("sess-1")
	m.SetPeerAttr("sess-1", "k", "v")
	m.ForgetSession("sess-1")

	if _, ok := store.GetPeer("sess-1"); ok {
		t.Fatal("ForgetSession() should have removed the peer record")
	}
}

func TestMediatorNeighborAttrStampsOrigin(t *testing.T) {
	t.Parallel()

	store := l2.NewMemStore()
	m := l2.NewMediator(store, nil)
	mac := []byte{0x02, 0, 0, 0, 0, 9}

	origin := m.RegisterSession("sess-1")
	m.SetNeighborAttr("sess-1", mac, "cdr_rx", uint64(42))

	rec, ok := store.GetNeighbor("sess-1", mac)
	if !ok {
		t.Fatal("neighbor record not written through to the store")
	}
	if rec.Attrs["_origin"] != origin.String() {
		t.Fatalf("_origin = %v, want %s", rec.Attrs["_origin"], origin)
	}

	m.RemoveNeighbor("sess-1", mac)
	if _, ok := store.GetNeighbor("sess-1", mac); ok {
		t.Fatal("RemoveNeighbor() should have removed the record")
	}
}
