package comm

import (
	"errors"
	"sync"
	"testing"
)

func worldPair(t *testing.T, n int) []*Comm {
	t.Helper()
	world, err := NewFabric(n)
	if err != nil {
		t.Fatalf("fabric: %v", err)
	}
	return world
}

func TestSendRecvOrdering(t *testing.T) {
	world := worldPair(t, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			if err := world[0].Send(i, 1, 7); err != nil {
				t.Errorf("send %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		v, err := world[1].Recv(0, 7)
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if v.(int) != i {
			t.Fatalf("out of order: want %d got %v", i, v)
		}
	}
	wg.Wait()
}

func TestRecvMatchesTag(t *testing.T) {
	world := worldPair(t, 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := world[0].Send("first", 1, 1); err != nil {
			t.Errorf("send tag 1: %v", err)
		}
		if err := world[0].Send("second", 1, 2); err != nil {
			t.Errorf("send tag 2: %v", err)
		}
	}()

	// The tag-2 message must be delivered even though tag 1 arrived first.
	v, err := world[1].Recv(0, 2)
	if err != nil {
		t.Fatalf("recv tag 2: %v", err)
	}
	if v.(string) != "second" {
		t.Fatalf("wrong payload for tag 2: %v", v)
	}
	v, err = world[1].Recv(0, 1)
	if err != nil {
		t.Fatalf("recv tag 1: %v", err)
	}
	if v.(string) != "first" {
		t.Fatalf("wrong payload for tag 1: %v", v)
	}
	<-done
}

func TestNegativeTagsRejected(t *testing.T) {
	world := worldPair(t, 2)
	if err := world[0].Send(1, 1, -1); !errors.Is(err, ErrBadTag) {
		t.Fatalf("send with negative tag: %v", err)
	}
	if _, err := world[0].Recv(1, -1); !errors.Is(err, ErrBadTag) {
		t.Fatalf("recv with negative tag: %v", err)
	}
}

func TestBcastAndGather(t *testing.T) {
	const n = 4
	world := worldPair(t, n)

	var wg sync.WaitGroup
	got := make([]int, n)
	sums := make([][]int64, n)
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			var in any
			if r == 1 {
				in = 42
			}
			v, err := world[r].Bcast(in, 1)
			if err != nil {
				t.Errorf("rank %d bcast: %v", r, err)
				return
			}
			got[r] = v.(int)

			g, err := world[r].GatherInt64(int64(r*10), 2)
			if err != nil {
				t.Errorf("rank %d gather: %v", r, err)
				return
			}
			sums[r] = g
		}(r)
	}
	wg.Wait()

	for r := 0; r < n; r++ {
		if got[r] != 42 {
			t.Fatalf("rank %d saw bcast value %d", r, got[r])
		}
	}
	for r := 0; r < n; r++ {
		if r != 2 {
			if sums[r] != nil {
				t.Fatalf("rank %d got a gather slice", r)
			}
			continue
		}
		for i, v := range sums[r] {
			if v != int64(i*10) {
				t.Fatalf("gather[%d] = %d", i, v)
			}
		}
	}
}

func TestAbortUnblocksRecv(t *testing.T) {
	world := worldPair(t, 2)

	done := make(chan error, 1)
	go func() {
		_, err := world[1].Recv(0, 3)
		done <- err
	}()

	if err := world[0].Abort(17); err != nil {
		t.Fatalf("abort: %v", err)
	}
	err := <-done
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("blocked recv returned %v", err)
	}
	var ae *AbortError
	if !errors.As(err, &ae) || ae.Code != 17 {
		t.Fatalf("abort code not carried: %v", err)
	}

	// Later operations fail too.
	if err := world[0].Send(1, 1, 3); !errors.Is(err, ErrAborted) {
		t.Fatalf("send after abort: %v", err)
	}
}

func TestSplitGroupsAndRanks(t *testing.T) {
	const n = 4
	world := worldPair(t, n)

	subs := make([]*Comm, n)
	var wg sync.WaitGroup
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			// Even ranks in one group, odd in the other; key reverses order.
			sub, err := world[r].Split(r%2, -r)
			if err != nil {
				t.Errorf("rank %d split: %v", r, err)
				return
			}
			subs[r] = sub
		}(r)
	}
	wg.Wait()

	for r := 0; r < n; r++ {
		if subs[r].Size() != 2 {
			t.Fatalf("rank %d subgroup size %d", r, subs[r].Size())
		}
	}
	// Key -r means higher parent ranks come first inside each color.
	if subs[2].Rank() != 0 || subs[0].Rank() != 1 {
		t.Fatalf("even group order: rank2=%d rank0=%d", subs[2].Rank(), subs[0].Rank())
	}
	if subs[3].Rank() != 0 || subs[1].Rank() != 1 {
		t.Fatalf("odd group order: rank3=%d rank1=%d", subs[3].Rank(), subs[1].Rank())
	}

	// Traffic stays inside the subgroup context.
	var wg2 sync.WaitGroup
	wg2.Add(1)
	go func() {
		defer wg2.Done()
		if err := subs[2].Send(99, 1, 5); err != nil {
			t.Errorf("sub send: %v", err)
		}
	}()
	v, err := subs[0].Recv(0, 5)
	if err != nil {
		t.Fatalf("sub recv: %v", err)
	}
	if v.(int) != 99 {
		t.Fatalf("sub payload: %v", v)
	}
	wg2.Wait()
}

func TestFreeSemantics(t *testing.T) {
	world := worldPair(t, 2)

	subs := make([]*Comm, 2)
	var wg sync.WaitGroup
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			sub, err := world[r].Dup()
			if err != nil {
				t.Errorf("rank %d dup: %v", r, err)
				return
			}
			subs[r] = sub
		}(r)
	}
	wg.Wait()

	if err := subs[0].Free(); err != nil {
		t.Fatalf("first free: %v", err)
	}
	if err := subs[0].Free(); !errors.Is(err, ErrFreed) {
		t.Fatalf("second free: %v", err)
	}
	if err := subs[0].Send(1, 1, 0); !errors.Is(err, ErrFreed) {
		t.Fatalf("send on freed comm: %v", err)
	}
	if err := world[0].Free(); !errors.Is(err, ErrWorld) {
		t.Fatalf("world free: %v", err)
	}
}

func TestDatatypeFreeOnce(t *testing.T) {
	d, err := TypeIndexed(Double, []int64{0, 2, 4})
	if err != nil {
		t.Fatalf("type indexed: %v", err)
	}
	if d.Count() != 3 {
		t.Fatalf("count = %d", d.Count())
	}
	if d.Base.Size() != 8 {
		t.Fatalf("double size = %d", d.Base.Size())
	}
	if err := d.Free(); err != nil {
		t.Fatalf("first free: %v", err)
	}
	if err := d.Free(); !errors.Is(err, ErrTypeFreed) {
		t.Fatalf("second free: %v", err)
	}
}
