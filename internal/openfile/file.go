// Package openfile implements the collective file-open protocol and the
// process-wide open-file registry.
package openfile

import (
	"github.com/pariolab/pario/internal/backend"
	"github.com/pariolab/pario/internal/iosys"
)

// MaxVars fixes the per-file variable table capacity.
const MaxVars = 8192

const unusedVar = -1

// VarEntry is per-variable bookkeeping. A fresh file holds the unused
// sentinel in every slot.
type VarEntry struct {
	Record int32
	NDims  int32
}

// Unused reports whether the slot has ever been claimed.
func (v VarEntry) Unused() bool { return v.Record == unusedVar && v.NDims == unusedVar }

// File is one open dataset. The IOSystem is shared, not owned. Files are
// linked into the registry on open success only and carry the
// process-assigned handle exposed to callers.
type File struct {
	ID     int
	Handle backend.Handle
	IOType backend.IOType
	Mode   backend.Mode

	// DoIO marks the tasks that talk to the backend for this file: every
	// I/O-capable task for parallel formats, the leader alone otherwise.
	DoIO bool

	IOSys *iosys.IOSystem

	Vars []VarEntry
}

func newFile(ios *iosys.IOSystem, iotype backend.IOType, mode backend.Mode) *File {
	f := &File{
		Handle: -1,
		IOType: iotype,
		Mode:   mode,
		IOSys:  ios,
		Vars:   make([]VarEntry, MaxVars),
	}
	for i := range f.Vars {
		f.Vars[i] = VarEntry{Record: unusedVar, NDims: unusedVar}
	}
	return f
}
