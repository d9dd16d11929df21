package decomp

import (
	"errors"
	"sync"
	"testing"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/config"
	"github.com/pariolab/pario/internal/pioerr"
)

func newManager(t *testing.T) (*Manager, *Registry) {
	t.Helper()
	reg := NewRegistry()
	tun := config.Default()
	tun.Swapm = config.Swapm{MaxRequests: 8, Handshake: true}
	return NewManager(reg, tun), reg
}

func TestCreateBaseTypes(t *testing.T) {
	mgr, _ := newManager(t)
	cases := []struct {
		elem ElemType
		want comm.BaseType
	}{
		{ElemInt, comm.Int},
		{ElemFloat, comm.Float},
		{ElemDouble, comm.Double},
		{ElemChar, comm.Byte},
		{ElemType(99), comm.Int}, // unknown tags fall back to the integer transport
	}
	for _, c := range cases {
		d, err := mgr.Create(c.elem, 2)
		if err != nil {
			t.Fatalf("create %v: %v", c.elem, err)
		}
		if d.BaseType != c.want {
			t.Fatalf("elem %v mapped to %v", c.elem, d.BaseType)
		}
	}
}

func TestCreateSeedsPolicyAndHeadRegion(t *testing.T) {
	mgr, reg := newManager(t)
	d, err := mgr.Create(ElemDouble, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ID == 0 {
		t.Fatalf("descriptor not registered")
	}
	if got, ok := reg.Lookup(d.ID); !ok || got != d {
		t.Fatalf("lookup mismatch")
	}
	if d.FirstRegion == nil || len(d.FirstRegion.Start) != 3 || len(d.FirstRegion.Count) != 3 {
		t.Fatalf("head region not allocated: %+v", d.FirstRegion)
	}
	if !d.Handshake || d.MaxRequests != 8 || d.NonblockingSend {
		t.Fatalf("policy not stamped: %+v", d)
	}
	if d.MaxRegions != 1 {
		t.Fatalf("max regions: %d", d.MaxRegions)
	}
}

func TestCreateRejectsBadDims(t *testing.T) {
	mgr, _ := newManager(t)
	if _, err := mgr.Create(ElemInt, 0); !errors.Is(err, ErrBadDims) {
		t.Fatalf("zero dims: %v", err)
	}
}

func TestDestroyFreshDescriptor(t *testing.T) {
	mgr, reg := newManager(t)
	d, err := mgr.Create(ElemInt, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if code := mgr.Destroy(d.ID); code != pioerr.NoErr {
		t.Fatalf("destroy: %v", code)
	}
	if _, ok := reg.Lookup(d.ID); ok {
		t.Fatalf("descriptor still registered")
	}
}

func TestDestroyUnknownID(t *testing.T) {
	mgr, _ := newManager(t)
	if code := mgr.Destroy(42); code != pioerr.EBadID {
		t.Fatalf("unknown id: %v", code)
	}
}

func TestDestroyFreesTypesByIndependentCounts(t *testing.T) {
	mgr, _ := newManager(t)
	d, err := mgr.Create(ElemDouble, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mk := func() *comm.Datatype {
		dt, terr := comm.TypeIndexed(comm.Double, []int64{0, 1})
		if terr != nil {
			t.Fatalf("type: %v", terr)
		}
		return dt
	}
	// Three committed receive types, but only two committed send types in a
	// longer array: the trailing slot must be left alone.
	r0, r1, r2 := mk(), mk(), mk()
	s0, s1 := mk(), mk()
	stale := mk()
	d.RecvTypes = []*comm.Datatype{r0, r1, r2}
	d.NumRecvs = 3
	d.SendTypes = []*comm.Datatype{s0, s1, stale}
	d.NumSendTypes = 2

	if code := mgr.Destroy(d.ID); code != pioerr.NoErr {
		t.Fatalf("destroy: %v", code)
	}
	for i, dt := range []*comm.Datatype{r0, r1, r2, s0, s1} {
		if !dt.Freed() {
			t.Fatalf("type %d not freed", i)
		}
	}
	if stale.Freed() {
		t.Fatalf("type beyond the send count was freed")
	}
}

func TestDestroyFreesSubsetCommOnlyUnderSubset(t *testing.T) {
	world, err := comm.NewFabric(2)
	if err != nil {
		t.Fatalf("fabric: %v", err)
	}
	subs := make([]*comm.Comm, 2)
	var wg sync.WaitGroup
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			sub, derr := world[r].Dup()
			if derr != nil {
				t.Errorf("dup: %v", derr)
				return
			}
			subs[r] = sub
		}(r)
	}
	wg.Wait()

	mgr, _ := newManager(t)

	// A box-rearranged descriptor does not own the communicator it holds.
	d, err := mgr.Create(ElemInt, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	d.Rearranger = RearrBox
	d.SubsetComm = subs[0]
	if code := mgr.Destroy(d.ID); code != pioerr.NoErr {
		t.Fatalf("destroy box: %v", code)
	}
	if err := subs[0].Free(); err != nil {
		t.Fatalf("box destroy freed the communicator: %v", err)
	}

	d, err = mgr.Create(ElemInt, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	d.Rearranger = RearrSubset
	d.SubsetComm = subs[1]
	if code := mgr.Destroy(d.ID); code != pioerr.NoErr {
		t.Fatalf("destroy subset: %v", code)
	}
	if err := subs[1].Free(); !errors.Is(err, comm.ErrFreed) {
		t.Fatalf("subset destroy must free the communicator: %v", err)
	}
}

func TestRegionList(t *testing.T) {
	head, err := NewRegion(2)
	if err != nil {
		t.Fatalf("new region: %v", err)
	}
	second, err := NewRegion(2)
	if err != nil {
		t.Fatalf("new region: %v", err)
	}
	head.Next = second
	second.Start[0] = 4

	FreeRegionList(head)
	if head.Start != nil || head.Next != nil || second.Count != nil {
		t.Fatalf("region list not released")
	}

	if _, err := NewRegion(0); !errors.Is(err, ErrBadDims) {
		t.Fatalf("zero dims: %v", err)
	}
	// A nil head is a no-op.
	FreeRegionList(nil)
}
