package comm

import "errors"

var ErrTypeFreed = errors.New("comm: datatype already freed")

// DatatypeNull is the null datatype.
var DatatypeNull *Datatype

// BaseType selects the transport element encoding of a message payload.
type BaseType int32

const (
	Int BaseType = iota
	Float
	Double
	Byte
)

// Size returns the element width in bytes.
func (b BaseType) Size() int {
	switch b {
	case Double:
		return 8
	case Byte:
		return 1
	default:
		return 4
	}
}

func (b BaseType) String() string {
	switch b {
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case Byte:
		return "byte"
	}
	return "unknown"
}

// Datatype is a committed derived transport datatype: a base element type
// plus the element indices one peer exchange touches. A datatype must be
// freed exactly once; a nil *Datatype is the null datatype.
type Datatype struct {
	Base  BaseType
	index []int64
	freed bool
}

// TypeIndexed commits a derived datatype selecting the given element
// indices of a buffer of base elements.
func TypeIndexed(base BaseType, index []int64) (*Datatype, error) {
	d := &Datatype{Base: base, index: append([]int64(nil), index...)}
	return d, nil
}

// Count returns the number of elements the datatype selects.
func (d *Datatype) Count() int { return len(d.index) }

// Freed reports whether the datatype has been released.
func (d *Datatype) Freed() bool { return d.freed }

// Free releases the datatype. Releasing twice is an error.
func (d *Datatype) Free() error {
	if d.freed {
		return ErrTypeFreed
	}
	d.freed = true
	d.index = nil
	return nil
}
