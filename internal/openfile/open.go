package openfile

import (
	"github.com/rs/zerolog/log"

	"github.com/pariolab/pario/internal/backend"
	"github.com/pariolab/pario/internal/iosys"
	"github.com/pariolab/pario/internal/observability"
	"github.com/pariolab/pario/internal/pioerr"
)

// Relay is the compute-side view of the async operation channel to a
// dedicated I/O-task pool.
type Relay interface {
	SendOpen(path string, iotype backend.IOType, mode backend.Mode, retry bool) error
}

// OpenRetry opens a dataset collectively across the IOSystem's tasks.
//
// With retry set, a backend report of one of the two wrong-format codes
// downgrades the open once to the plain classic serial format: the error
// is cleared, the file's recorded format overwritten, and the leader task
// alone re-attempts a plain open. Exactly one downgrade, never chained.
//
// On success the final mode and format are broadcast to every task, the
// next process-wide handle is assigned, and the file is linked into reg.
// No partial file object is ever exposed on failure.
func OpenRetry(ios *iosys.IOSystem, reg *Registry, table *backend.Table, rc Relay,
	path string, iotype backend.IOType, mode backend.Mode, retry bool) (int, backend.IOType, error) {

	// Argument validation is purely local: every task evaluates identical
	// inputs identically, so rejection stays consistent with no messaging.
	if ios == nil || reg == nil || table == nil || path == "" {
		return 0, iotype, pioerr.ErrorOf(pioerr.EInval)
	}
	if !iotype.Valid() {
		return 0, iotype, pioerr.ErrorOf(pioerr.EBadIOType)
	}

	log.Debug().Str("path", path).Stringer("iotype", iotype).Bool("retry", retry).
		Msg("collective open")

	file := newFile(ios, iotype, mode)
	file.DoIO = doIO(ios, iotype)

	// Compute tasks relay the open to the dedicated I/O pool, then the
	// whole compute group confirms the relay outcome before proceeding.
	if ios.Async && !ios.IOProc {
		var relayCode pioerr.Code
		if ios.CompMaster {
			if rc == nil {
				relayCode = pioerr.EInval
			} else if err := rc.SendOpen(path, iotype, mode, retry); err != nil {
				relayCode = pioerr.CheckTransport(err)
			}
		}
		v, err := ios.Comp.Bcast(int32(relayCode), 0)
		if err != nil {
			return 0, iotype, pioerr.ErrorOf(pioerr.CheckTransport(err))
		}
		if c := pioerr.Code(v.(int32)); c != pioerr.NoErr {
			return 0, iotype, pioerr.ErrorOf(c)
		}
	}

	code := pioerr.NoErr
	if ios.IOProc {
		code = dispatch(ios, table, file, path)

		if retry && file.IOType != backend.IOTypeClassic &&
			(code == pioerr.ENotFormat || code == pioerr.EBadFormat) {
			if ios.IOMaster {
				log.Info().Str("path", path).Stringer("from", file.IOType).
					Msg("retrying open with the classic serial format")
			}
			observability.RecordOpenRetry()
			code = pioerr.NoErr
			file.IOType = backend.IOTypeClassic
			file.Mode &^= backend.ModeNewFormat
			file.DoIO = ios.IORank == 0
			if ios.IORank == 0 {
				if b, ok := table.Get(backend.IOTypeClassic); ok {
					file.Handle, code = b.Open(path, file.Mode, nil)
				} else {
					code = iotypeError(backend.IOTypeClassic)
				}
			}
		}
	}

	// The (possibly retried) result travels from the I/O-group root to
	// every task; a broadcast failure is a transport error, distinct from
	// the backend result it was carrying.
	v, err := ios.Union.Bcast(int32(code), ios.IORoot)
	if err != nil {
		return 0, file.IOType, pioerr.ErrorOf(pioerr.CheckTransport(err))
	}
	code = pioerr.Code(v.(int32))
	if code != pioerr.NoErr {
		observability.RecordOpen(file.IOType.String(), false)
		code, aerr := pioerr.CheckBackend(ios.Union, ios.ErrorPolicy, ios.IORoot, code)
		if aerr != nil {
			return 0, file.IOType, aerr
		}
		return 0, file.IOType, pioerr.ErrorOf(code)
	}

	// Success: settle the final mode and format everywhere, then expose
	// the file through the registry.
	mv, err := ios.Union.Bcast([2]int32{int32(file.Mode), int32(file.IOType)}, ios.IORoot)
	if err != nil {
		return 0, file.IOType, pioerr.ErrorOf(pioerr.CheckTransport(err))
	}
	final := mv.([2]int32)
	file.Mode = backend.Mode(final[0])
	file.IOType = backend.IOType(final[1])
	file.DoIO = doIO(ios, file.IOType)

	reg.Add(file)
	observability.RecordOpen(file.IOType.String(), true)
	log.Debug().Int("ncid", file.ID).Stringer("iotype", file.IOType).Msg("open complete")
	return file.ID, file.IOType, nil
}

func doIO(ios *iosys.IOSystem, iotype backend.IOType) bool {
	if !ios.IOProc {
		return false
	}
	if iotype.Parallel() {
		return true
	}
	return ios.IORank == 0
}

// dispatch invokes the backend for the file's format. Only I/O-capable
// tasks reach here; serial formats are opened by the leader alone.
func dispatch(ios *iosys.IOSystem, table *backend.Table, file *File, path string) pioerr.Code {
	b, ok := table.Get(file.IOType)
	if !ok {
		return iotypeError(file.IOType)
	}

	switch file.IOType {
	case backend.IOTypeNewFormatParallel:
		// Configure the new-format option, then open collectively.
		file.Mode = file.Mode.WithNewFormat()
		h, code := b.Open(path, file.Mode, ios.IO)
		file.Handle = h
		return code

	case backend.IOTypeNewFormatSerial:
		file.Mode = file.Mode.WithNewFormat()
		if ios.IORank != 0 {
			return pioerr.NoErr
		}
		h, code := b.Open(path, file.Mode, nil)
		file.Handle = h
		return code

	case backend.IOTypeClassic:
		if ios.IORank != 0 {
			return pioerr.NoErr
		}
		h, code := b.Open(path, file.Mode, nil)
		file.Handle = h
		return code

	case backend.IOTypeMPIIO:
		h, code := b.Open(path, file.Mode, ios.IO)
		file.Handle = h
		if code == pioerr.NoErr && file.Mode.Write() {
			if ios.IOMaster {
				log.Debug().Int64("size", ios.BufferLimit).Msg("attaching client buffer")
			}
			code = b.AttachBuffer(h, ios.BufferLimit)
		}
		return code
	}
	return iotypeError(file.IOType)
}

func iotypeError(t backend.IOType) pioerr.Code {
	log.Error().Int32("iotype", int32(t)).Msg("iotype not supported in this build")
	return pioerr.EBadIOType
}
