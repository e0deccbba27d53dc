package dlep_test

import (
	"slices"
	"testing"

	"github.com/oonf-go/godlep/internal/dlep"
)

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	t.Parallel()

	r := dlep.NewRegistry()
	r.Register(dlep.Baseline)
	r.Register(dlep.Baseline)

	if got := len(r.IDs()); got != 1 {
		t.Fatalf("IDs() len = %d, want 1 after duplicate Register()", got)
	}
}

func TestRegistryIDsSorted(t *testing.T) {
	t.Parallel()

	r := dlep.NewRegistry()
	r.Register(dlep.RadioStats) // id 1
	r.Register(dlep.Baseline)   // id 0

	ids := r.IDs()
	if !slices.IsSorted(ids) {
		t.Fatalf("IDs() = %v, want sorted", ids)
	}
}

func TestRegistryOrderedIsInsertionStable(t *testing.T) {
	t.Parallel()

	r := dlep.NewRegistry()
	r.Register(dlep.RadioStats)
	r.Register(dlep.Baseline)

	ordered := r.Ordered()
	if len(ordered) != 2 || ordered[0].ID() != dlep.RadioStats.ID() || ordered[1].ID() != dlep.Baseline.ID() {
		t.Fatalf("Ordered() ids = [%d, %d], want insertion order [%d, %d]",
			ordered[0].ID(), ordered[1].ID(), dlep.RadioStats.ID(), dlep.Baseline.ID())
	}
}

func TestRegistrySubsetDropsUnregistered(t *testing.T) {
	t.Parallel()

	r := dlep.NewRegistry()
	r.Register(dlep.Baseline)

	subset := r.Subset([]uint16{dlep.Baseline.ID(), 12345})
	if len(subset) != 1 || subset[0].ID() != dlep.Baseline.ID() {
		t.Fatalf("Subset() = %v, want only Baseline", subset)
	}
}

func TestRegistryIntersect(t *testing.T) {
	t.Parallel()

	r := dlep.NewRegistry()
	r.Register(dlep.Baseline)
	r.Register(dlep.RadioStats)

	got := r.Intersect([]uint16{dlep.Baseline.ID(), dlep.RadioStats.ID()}, []uint16{dlep.RadioStats.ID(), 999})
	if len(got) != 1 || got[0] != dlep.RadioStats.ID() {
		t.Fatalf("Intersect() = %v, want [%d]", got, dlep.RadioStats.ID())
	}
}

func TestRoleString(t *testing.T) {
	t.Parallel()

	if dlep.RoleRadio.String() != "radio" {
		t.Fatalf("RoleRadio.String() = %q", dlep.RoleRadio.String())
	}
	if dlep.RoleRouter.String() != "router" {
		t.Fatalf("RoleRouter.String() = %q", dlep.RoleRouter.String())
	}
}
