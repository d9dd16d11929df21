// Package backend defines the structured-format backend surface: one
// interchangeable implementation per dataset format, dispatched by iotype
// tag, with failures reported as signed result codes.
package backend

import (
	"errors"
	"sync"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/pioerr"
)

// IOType tags one structured dataset format.
type IOType int32

const (
	// IOTypeMPIIO is the message-passing-optimized format, opened
	// collectively by all I/O-capable tasks.
	IOTypeMPIIO IOType = iota + 1
	// IOTypeClassic is the plain serial format, opened by the leader
	// task alone.
	IOTypeClassic
	// IOTypeNewFormatSerial layers the new-format option onto the
	// serial open path.
	IOTypeNewFormatSerial
	// IOTypeNewFormatParallel layers the new-format option onto a
	// collective open.
	IOTypeNewFormatParallel
)

// Valid reports whether the tag names a known format.
func (t IOType) Valid() bool { return t >= IOTypeMPIIO && t <= IOTypeNewFormatParallel }

// Parallel reports whether every I/O-capable task participates in the
// backend call, as opposed to the leader alone.
func (t IOType) Parallel() bool { return t == IOTypeMPIIO || t == IOTypeNewFormatParallel }

func (t IOType) String() string {
	switch t {
	case IOTypeMPIIO:
		return "mpiio"
	case IOTypeClassic:
		return "classic"
	case IOTypeNewFormatSerial:
		return "newformat-serial"
	case IOTypeNewFormatParallel:
		return "newformat-parallel"
	}
	return "invalid"
}

// Mode is the open mode bit set.
type Mode uint32

const (
	ModeWrite     Mode = 0x1
	ModeNewFormat Mode = 0x1000
)

// WithNewFormat stamps the new-format option onto the mode. The open
// protocol applies it as an explicit step before dispatching the plain
// open path.
func (m Mode) WithNewFormat() Mode { return m | ModeNewFormat }

// Write reports whether the mode includes write access.
func (m Mode) Write() bool { return m&ModeWrite != 0 }

// Handle is an opaque backend dataset handle.
type Handle int

// Backend is one structured-format implementation. Open is called only on
// I/O-capable tasks; io carries the I/O-group communicator for collective
// formats and is nil on leader-only opens.
type Backend interface {
	Name() string
	Open(path string, mode Mode, io *comm.Comm) (Handle, pioerr.Code)
	AttachBuffer(h Handle, size int64) pioerr.Code
	Describe(code pioerr.Code) (string, bool)
}

var (
	ErrBackendNil    = errors.New("backend: backend is nil")
	ErrBackendExists = errors.New("backend: iotype already registered")
)

// Table maps iotype tags to the backends compiled into this build.
type Table struct {
	mu    sync.RWMutex
	items map[IOType]Backend
}

func NewTable() *Table {
	return &Table{items: make(map[IOType]Backend)}
}

// Register binds a backend to an iotype tag.
func (t *Table) Register(iot IOType, b Backend) error {
	if b == nil {
		return ErrBackendNil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[iot]; ok {
		return ErrBackendExists
	}
	t.items[iot] = b
	return nil
}

// Get returns the backend bound to an iotype tag.
func (t *Table) Get(iot IOType) (Backend, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.items[iot]
	return b, ok
}

// Default builds the table of every compiled-in backend and wires their
// description tables into the error bridge.
func Default() *Table {
	t := NewTable()
	classic := NewClassic()
	newformat := NewNewFormat()
	mpiio := NewMPIIO()
	_ = t.Register(IOTypeClassic, classic)
	_ = t.Register(IOTypeNewFormatSerial, newformat)
	_ = t.Register(IOTypeNewFormatParallel, newformat)
	_ = t.Register(IOTypeMPIIO, mpiio)
	pioerr.RegisterDescriber(pioerr.DomainClassic, classicDescribe)
	pioerr.RegisterDescriber(pioerr.DomainMPIOpt, mpioptDescribe)
	return t
}
