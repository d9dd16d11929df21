// Package comm provides the SPMD communicator fabric used by the
// coordination core: a fixed set of tasks exchanging tagged, blocking
// point-to-point messages and collectives over a topology that never
// changes for the lifetime of a job.
//
// All calls block until the matching peer call is issued. There are no
// timeouts; the only escape from a collective sequence is a job abort.
package comm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// linkDepth bounds eager sends per ordered task pair.
const linkDepth = 256

// Internal tags live below zero so they can never collide with caller tags.
const (
	tagBcast = -(iota + 1)
	tagGather
	tagSplit
	tagSplitAssign
)

var (
	ErrAborted = errors.New("comm: job aborted")
	ErrBadRank = errors.New("comm: rank out of range")
	ErrBadTag  = errors.New("comm: negative tags are reserved")
	ErrFreed   = errors.New("comm: communicator already freed")
	ErrWorld   = errors.New("comm: world communicator cannot be freed")
)

// AbortError reports that the job was terminated while an operation was
// blocked or pending. It matches ErrAborted under errors.Is.
type AbortError struct {
	Code int
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("comm: job aborted with code %d", e.Code)
}

func (e *AbortError) Is(target error) bool { return target == ErrAborted }

type envelope struct {
	ctx  int
	tag  int
	data any
}

// endpoint is the per-task receive side. Every communicator a task belongs
// to shares the task's endpoint, so a message consumed while receiving on
// one communicator is stashed where the others can still find it.
type endpoint struct {
	pending map[int][]envelope
}

// Fabric is the fixed communication topology of one job. It carries one
// buffered link per ordered task pair and a job-wide abort latch.
type Fabric struct {
	size  int
	links [][]chan envelope
	eps   []*endpoint

	abort     chan struct{}
	abortOnce sync.Once
	abortCode int

	ctxMu   sync.Mutex
	nextCtx int
}

// NewFabric builds an n-task fabric and returns the world communicator of
// each task, indexed by rank. Each communicator must only be used by the
// task it belongs to.
func NewFabric(n int) ([]*Comm, error) {
	if n < 1 {
		return nil, fmt.Errorf("comm: fabric needs at least one task, got %d", n)
	}
	f := &Fabric{size: n, abort: make(chan struct{}), nextCtx: 1}
	f.links = make([][]chan envelope, n)
	f.eps = make([]*endpoint, n)
	for i := 0; i < n; i++ {
		f.links[i] = make([]chan envelope, n)
		for j := 0; j < n; j++ {
			f.links[i][j] = make(chan envelope, linkDepth)
		}
		f.eps[i] = &endpoint{pending: make(map[int][]envelope)}
	}
	group := make([]int, n)
	for i := range group {
		group[i] = i
	}
	world := make([]*Comm, n)
	for r := 0; r < n; r++ {
		world[r] = &Comm{fabric: f, ep: f.eps[r], rank: r, group: group, world: true}
	}
	return world, nil
}

// Abort latches the job-wide abort. The first code wins.
func (f *Fabric) Abort(code int) {
	f.abortOnce.Do(func() {
		f.abortCode = code
		close(f.abort)
	})
}

// Aborted reports whether the job has been aborted and with which code.
func (f *Fabric) Aborted() (bool, int) {
	select {
	case <-f.abort:
		return true, f.abortCode
	default:
		return false, 0
	}
}

func (f *Fabric) allocCtx(n int) int {
	f.ctxMu.Lock()
	defer f.ctxMu.Unlock()
	first := f.nextCtx
	f.nextCtx += n
	return first
}

// Comm is one task's view of a communicator: the world communicator of a
// fabric, or a subgroup produced by Split or Dup.
type Comm struct {
	fabric *Fabric
	ep     *endpoint
	ctx    int
	rank   int
	group  []int // comm rank -> fabric rank
	world  bool
	freed  bool
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return len(c.group) }

// Abort terminates the whole job. Every blocked and subsequent operation
// on any communicator of the fabric returns an AbortError.
func (c *Comm) Abort(code int) error {
	c.fabric.Abort(code)
	return nil
}

// Free releases a derived communicator. Exactly once; the world
// communicator is owned by the fabric and cannot be freed.
func (c *Comm) Free() error {
	if c.world {
		return ErrWorld
	}
	if c.freed {
		return ErrFreed
	}
	c.freed = true
	return nil
}

// Send delivers v to dest under tag. Two sends from the same task to the
// same peer are never observed out of order.
func (c *Comm) Send(v any, dest, tag int) error {
	if tag < 0 {
		return ErrBadTag
	}
	return c.send(v, dest, tag)
}

// Recv blocks for a message from source carrying tag. Messages with other
// tags from the same peer are stashed until matched.
func (c *Comm) Recv(source, tag int) (any, error) {
	if tag < 0 {
		return nil, ErrBadTag
	}
	return c.recv(source, tag)
}

func (c *Comm) send(v any, dest, tag int) error {
	if c.freed {
		return ErrFreed
	}
	if dest < 0 || dest >= len(c.group) {
		return fmt.Errorf("%w: send to %d of %d", ErrBadRank, dest, len(c.group))
	}
	select {
	case c.fabric.links[c.group[c.rank]][c.group[dest]] <- envelope{ctx: c.ctx, tag: tag, data: v}:
		return nil
	case <-c.fabric.abort:
		return &AbortError{Code: c.fabric.abortCode}
	}
}

func (c *Comm) recv(source, tag int) (any, error) {
	if c.freed {
		return nil, ErrFreed
	}
	if source < 0 || source >= len(c.group) {
		return nil, fmt.Errorf("%w: recv from %d of %d", ErrBadRank, source, len(c.group))
	}
	src := c.group[source]
	me := c.group[c.rank]

	stash := c.ep.pending[src]
	for i, env := range stash {
		if env.ctx == c.ctx && env.tag == tag {
			c.ep.pending[src] = append(stash[:i:i], stash[i+1:]...)
			return env.data, nil
		}
	}
	for {
		select {
		case env := <-c.fabric.links[src][me]:
			if env.ctx == c.ctx && env.tag == tag {
				return env.data, nil
			}
			c.ep.pending[src] = append(c.ep.pending[src], env)
		case <-c.fabric.abort:
			return nil, &AbortError{Code: c.fabric.abortCode}
		}
	}
}

// Bcast distributes root's value to every task of the communicator. The
// root passes the value; every other task passes nil and receives it.
func (c *Comm) Bcast(v any, root int) (any, error) {
	if root < 0 || root >= len(c.group) {
		return nil, fmt.Errorf("%w: bcast root %d of %d", ErrBadRank, root, len(c.group))
	}
	if c.rank == root {
		for r := range c.group {
			if r == root {
				continue
			}
			if err := c.send(v, r, tagBcast); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	return c.recv(root, tagBcast)
}

// GatherInt64 collects one value per task at root, indexed by rank. Only
// the root receives the slice; every other task gets nil.
func (c *Comm) GatherInt64(v int64, root int) ([]int64, error) {
	if root < 0 || root >= len(c.group) {
		return nil, fmt.Errorf("%w: gather root %d of %d", ErrBadRank, root, len(c.group))
	}
	if c.rank != root {
		return nil, c.send(v, root, tagGather)
	}
	out := make([]int64, len(c.group))
	out[root] = v
	for r := range c.group {
		if r == root {
			continue
		}
		got, err := c.recv(r, tagGather)
		if err != nil {
			return nil, err
		}
		out[r] = got.(int64)
	}
	return out, nil
}

type splitRequest struct {
	Color int
	Key   int
}

type splitAssign struct {
	Ctx   int
	Rank  int
	Group []int
}

// Split partitions the communicator into one subgroup per color. Ranks in
// a subgroup are ordered by key, ties broken by parent rank. Collective.
func (c *Comm) Split(color, key int) (*Comm, error) {
	const root = 0
	if c.rank != root {
		if err := c.send(splitRequest{Color: color, Key: key}, root, tagSplit); err != nil {
			return nil, err
		}
		got, err := c.recv(root, tagSplitAssign)
		if err != nil {
			return nil, err
		}
		a := got.(splitAssign)
		return &Comm{fabric: c.fabric, ep: c.ep, ctx: a.Ctx, rank: a.Rank, group: a.Group}, nil
	}

	reqs := make([]splitRequest, len(c.group))
	reqs[root] = splitRequest{Color: color, Key: key}
	for r := range c.group {
		if r == root {
			continue
		}
		got, err := c.recv(r, tagSplit)
		if err != nil {
			return nil, err
		}
		reqs[r] = got.(splitRequest)
	}

	byColor := make(map[int][]int)
	for r, req := range reqs {
		byColor[req.Color] = append(byColor[req.Color], r)
	}
	colors := make([]int, 0, len(byColor))
	for col := range byColor {
		colors = append(colors, col)
	}
	sort.Ints(colors)

	ctxBase := c.fabric.allocCtx(len(colors))
	assigns := make([]splitAssign, len(c.group))
	for ci, col := range colors {
		members := byColor[col]
		sort.Slice(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if reqs[a].Key != reqs[b].Key {
				return reqs[a].Key < reqs[b].Key
			}
			return a < b
		})
		group := make([]int, len(members))
		for i, r := range members {
			group[i] = c.group[r]
		}
		for i, r := range members {
			assigns[r] = splitAssign{Ctx: ctxBase + ci, Rank: i, Group: group}
		}
	}
	for r := range c.group {
		if r == root {
			continue
		}
		if err := c.send(assigns[r], r, tagSplitAssign); err != nil {
			return nil, err
		}
	}
	a := assigns[root]
	return &Comm{fabric: c.fabric, ep: c.ep, ctx: a.Ctx, rank: a.Rank, group: a.Group}, nil
}

// Dup derives a communicator with the same group but an isolated message
// context. Collective.
func (c *Comm) Dup() (*Comm, error) {
	return c.Split(0, c.rank)
}
