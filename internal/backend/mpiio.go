package backend

import (
	"sync"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/pioerr"
)

// Codes in the message-passing-optimized backend's own range.
const (
	codeBadHandleMPIO pioerr.Code = -208
	codeBufferMPIO    pioerr.Code = -209
)

func mpioptDescribe(code pioerr.Code) (string, bool) {
	switch code {
	case codeBadHandleMPIO:
		return "Invalid dataset handle", true
	case codeBufferMPIO:
		return "Client buffer attach failed", true
	}
	return "", false
}

type mpiioState struct {
	path   string
	buffer int64
}

// MPIIO is the message-passing-optimized backend: datasets are opened
// collectively by every I/O-capable task, and writable opens attach a
// fixed-size client buffer.
type MPIIO struct {
	mu    sync.Mutex
	next  Handle
	open  map[Handle]*mpiioState
}

func NewMPIIO() *MPIIO {
	return &MPIIO{next: 1, open: make(map[Handle]*mpiioState)}
}

func (b *MPIIO) Name() string { return "mpiio" }

func (b *MPIIO) Open(path string, mode Mode, io *comm.Comm) (Handle, pioerr.Code) {
	// The optimized format stores classic-layout datasets.
	if code := probeMagic(path, classicMagic); code != pioerr.NoErr {
		return -1, code
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.next
	b.next++
	b.open[h] = &mpiioState{path: path}
	return h, pioerr.NoErr
}

func (b *MPIIO) AttachBuffer(h Handle, size int64) pioerr.Code {
	if size <= 0 {
		return codeBufferMPIO
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.open[h]
	if !ok {
		return codeBadHandleMPIO
	}
	st.buffer = size
	return pioerr.NoErr
}

func (b *MPIIO) Describe(code pioerr.Code) (string, bool) {
	return mpioptDescribe(code)
}
