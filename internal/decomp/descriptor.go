package decomp

import "github.com/pariolab/pario/internal/comm"

// ElemType tags the element type a decomposition was defined for.
type ElemType int32

const (
	ElemInt ElemType = iota
	ElemFloat
	ElemDouble
	ElemChar
)

// Rearranger selects the data rearrangement strategy.
type Rearranger int32

const (
	RearrNone Rearranger = iota
	RearrBox
	RearrSubset
)

// Descriptor is a reusable mapping between a compute task's local layout
// and the file's global layout, for one element type and dimensionality.
// Shared by id across read/write calls; destroyed exactly once.
type Descriptor struct {
	ID       int
	BaseType comm.BaseType
	NDims    int

	MaxRegions  int
	LocalLen    int64
	MaxIOBufLen int64

	// Per-peer exchange bookkeeping.
	RecvFrom   []int32
	SendCounts []int32
	RecvCounts []int32
	SendIndex  []int64
	RecvIndex  []int64

	// Derived transport datatypes. The two arrays are sized and freed by
	// their own counts: send-type deduplication can differ from the
	// receive side, so NumSendTypes need not equal NumRecvs.
	RecvTypes    []*comm.Datatype
	SendTypes    []*comm.Datatype
	NumRecvs     int
	NumSendTypes int

	// Head of the Region list; never nil after Create.
	FirstRegion *Region
	FillRegion  *Region

	Rearranger Rearranger

	// SubsetComm is owned by the descriptor only under RearrSubset.
	SubsetComm *comm.Comm

	// Communication policy, snapshotted at creation.
	Handshake       bool
	NonblockingSend bool
	MaxRequests     int
}
