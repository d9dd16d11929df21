package backend

import (
	"sync"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/pioerr"
)

var newFormatMagic = []byte("\x89HDF")

// NewFormatBackend serves the new-format variant of the structured
// format, serially or collectively depending on the iotype it was
// dispatched under. It requires the new-format mode option, stamped by
// the open protocol's explicit configure step.
type NewFormatBackend struct {
	mu    sync.Mutex
	next  Handle
	paths map[Handle]string
}

func NewNewFormat() *NewFormatBackend {
	return &NewFormatBackend{next: 1, paths: make(map[Handle]string)}
}

func (b *NewFormatBackend) Name() string { return "newformat" }

func (b *NewFormatBackend) Open(path string, mode Mode, io *comm.Comm) (Handle, pioerr.Code) {
	if mode&ModeNewFormat == 0 {
		return -1, pioerr.EBadFormat
	}
	if code := probeMagic(path, newFormatMagic); code != pioerr.NoErr {
		return -1, code
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.next
	b.next++
	b.paths[h] = path
	return h, pioerr.NoErr
}

func (b *NewFormatBackend) AttachBuffer(h Handle, size int64) pioerr.Code {
	return pioerr.EInval
}

func (b *NewFormatBackend) Describe(code pioerr.Code) (string, bool) {
	return classicDescribe(code)
}
