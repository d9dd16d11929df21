// Package decomp owns decomposition descriptors: the mapping between one
// compute task's local array layout and a file's global layout, including
// the derived transport datatypes and the contiguous Region list.
package decomp

import "errors"

var ErrBadDims = errors.New("decomp: dimension count must be positive")

// Region is one contiguous hyperrectangular block inside a decomposition.
// Both vectors always have exactly the descriptor's dimension count.
type Region struct {
	Start       []int64
	Count       []int64
	LocalOffset int64
	Next        *Region
}

// NewRegion returns a fully initialized, zero-filled region node. Nodes
// are linked into a list only after construction succeeds, so appenders
// never see a partial node.
func NewRegion(ndims int) (*Region, error) {
	if ndims < 1 {
		return nil, ErrBadDims
	}
	return &Region{
		Start: make([]int64, ndims),
		Count: make([]int64, ndims),
	}, nil
}

// FreeRegionList releases every node of the list, tolerating nodes whose
// vectors were never populated.
func FreeRegionList(head *Region) {
	for ptr := head; ptr != nil; {
		ptr.Start = nil
		ptr.Count = nil
		next := ptr.Next
		ptr.Next = nil
		ptr = next
	}
}
