package backend

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"syscall"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/pioerr"
)

var classicMagic = []byte("CDF")

// classicDescribe is the classic-range description table shared by the
// serial and new-format backends.
func classicDescribe(code pioerr.Code) (string, bool) {
	switch code {
	case pioerr.ENotFormat:
		return "Unknown file format", true
	case pioerr.EBadFormat:
		return "Invalid format variant", true
	}
	return "", false
}

// errnoCode maps a failed file operation to a positive
// operating-environment code when possible.
func errnoCode(err error) pioerr.Code {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return pioerr.Code(errno)
	}
	return pioerr.EIO
}

// Classic is the plain serial structured-format backend. It probes the
// classic magic prefix on open; datasets in any other format report
// ENotFormat.
type Classic struct {
	mu    sync.Mutex
	next  Handle
	paths map[Handle]string
}

func NewClassic() *Classic {
	return &Classic{next: 1, paths: make(map[Handle]string)}
}

func (b *Classic) Name() string { return "classic" }

func (b *Classic) Open(path string, mode Mode, io *comm.Comm) (Handle, pioerr.Code) {
	if code := probeMagic(path, classicMagic); code != pioerr.NoErr {
		return -1, code
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.next
	b.next++
	b.paths[h] = path
	return h, pioerr.NoErr
}

func (b *Classic) AttachBuffer(h Handle, size int64) pioerr.Code {
	// The serial backend has no client buffering.
	return pioerr.EInval
}

func (b *Classic) Describe(code pioerr.Code) (string, bool) {
	return classicDescribe(code)
}

func probeMagic(path string, magic []byte) pioerr.Code {
	f, err := os.Open(path)
	if err != nil {
		return errnoCode(err)
	}
	defer f.Close()
	buf := make([]byte, len(magic))
	n, err := f.Read(buf)
	if err != nil || n < len(magic) || !bytes.Equal(buf[:len(magic)], magic) {
		return pioerr.ENotFormat
	}
	return pioerr.NoErr
}
