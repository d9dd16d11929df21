// Package iosys describes a fixed group of tasks sharing one
// communication context: the union communicator, the compute and I/O
// subgroups, and the error-propagation policy.
package iosys

import (
	"fmt"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/pioerr"
)

// IOSystem is one coupling configuration's task group. Created once,
// looked up by id, never mutated by the core except for policy reads.
type IOSystem struct {
	ID int

	Union *comm.Comm
	Comp  *comm.Comm // nil on tasks outside the compute group
	IO    *comm.Comm // nil on tasks outside the I/O group

	IOProc   bool
	CompProc bool

	UnionRank int
	IORank    int // -1 outside the I/O group
	CompRank  int // -1 outside the compute group

	// Union ranks of the group leaders.
	IORoot   int
	CompRoot int

	IOMaster   bool
	CompMaster bool

	// Async is set when a dedicated I/O-task pool serves relayed
	// operations for the compute group.
	Async bool

	ErrorPolicy pioerr.Policy

	// BufferLimit is the client buffer size attached by the
	// message-passing-optimized backend on writable opens.
	BufferLimit int64

	// Backend-specific options, opaque to the core.
	Options map[string]string
}

// NewSplit builds an IOSystem over world. With numIO == 0 every task both
// computes and performs I/O; otherwise the last numIO tasks form a
// dedicated I/O pool and the rest relay operations to it. Collective.
func NewSplit(world *comm.Comm, numIO int, policy pioerr.Policy, bufferLimit int64) (*IOSystem, error) {
	n := world.Size()
	r := world.Rank()
	if numIO < 0 || numIO >= n {
		return nil, fmt.Errorf("iosys: io task count %d out of range for %d tasks", numIO, n)
	}
	ios := &IOSystem{
		Union:       world,
		UnionRank:   r,
		ErrorPolicy: policy,
		BufferLimit: bufferLimit,
		Options:     make(map[string]string),
	}
	if numIO == 0 {
		ios.Comp = world
		ios.IO = world
		ios.IOProc = true
		ios.CompProc = true
		ios.IORank = r
		ios.CompRank = r
		ios.IOMaster = r == 0
		ios.CompMaster = r == 0
		return ios, nil
	}

	firstIO := n - numIO
	isIO := r >= firstIO
	color := 0
	if isIO {
		color = 1
	}
	sub, err := world.Split(color, r)
	if err != nil {
		return nil, err
	}
	ios.Async = true
	ios.IORoot = firstIO
	ios.CompRoot = 0
	ios.IORank = -1
	ios.CompRank = -1
	if isIO {
		ios.IO = sub
		ios.IOProc = true
		ios.IORank = sub.Rank()
		ios.IOMaster = sub.Rank() == 0
	} else {
		ios.Comp = sub
		ios.CompProc = true
		ios.CompRank = sub.Rank()
		ios.CompMaster = sub.Rank() == 0
	}
	return ios, nil
}
