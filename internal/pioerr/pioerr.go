// Package pioerr normalizes transport, backend, and internal failures into
// one signed result code and applies the per-IOSystem propagation policy.
package pioerr

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/observability"
)

// Code is the single signed result code of the library. Zero is success,
// negative values are internal or backend codes, and strictly positive
// values are reinterpreted as operating-environment codes.
type Code int32

const NoErr Code = 0

// Internal codes.
const (
	EIO        Code = -501 // transport failure, normalized
	EInval     Code = -502
	ENoMem     Code = -503
	EBadID     Code = -504
	EBadIOType Code = -505
)

// Classic structured-format backend code range, including the two
// wrong-format codes that arm the open fallback.
const (
	ClassicErrStart Code = -33
	ClassicErrEnd   Code = -137

	ENotFormat Code = -51 // file is not in the expected format
	EBadFormat Code = -36 // invalid format variant
)

// Message-passing-optimized backend code range.
const (
	MPIOptErrStart Code = -201
	MPIOptErrEnd   Code = -262
)

// Domain identifies a backend description table.
type Domain int

const (
	DomainClassic Domain = iota
	DomainMPIOpt
)

var (
	describeMu sync.RWMutex
	describers = make(map[Domain]func(Code) (string, bool))
)

// RegisterDescriber installs a backend's code description table. Codes in
// that backend's range resolve to text only once this has been called,
// i.e. only when the backend is compiled in.
func RegisterDescriber(d Domain, fn func(Code) (string, bool)) {
	describeMu.Lock()
	defer describeMu.Unlock()
	describers[d] = fn
}

func describe(d Domain, code Code, fallback string) string {
	describeMu.RLock()
	fn := describers[d]
	describeMu.RUnlock()
	if fn != nil {
		if msg, ok := fn(code); ok {
			return msg
		}
	}
	return fallback
}

// Strerror returns a text description of a result code.
func Strerror(code Code) string {
	switch {
	case code > 0:
		if msg := syscall.Errno(code).Error(); msg != "" {
			return msg
		}
		return "Unknown Error"
	case code == NoErr:
		return "No error"
	case code <= ClassicErrStart && code >= ClassicErrEnd:
		return describe(DomainClassic, code, "classic format error code, backend not built in")
	case code <= MPIOptErrStart && code >= MPIOptErrEnd:
		return describe(DomainMPIOpt, code, "message-passing format error code, backend not built in")
	default:
		switch code {
		case EIO:
			return "I/O error"
		case EInval:
			return "Invalid argument"
		case ENoMem:
			return "Out of memory"
		case EBadID:
			return "Bad ID"
		case EBadIOType:
			return "Bad IO type"
		default:
			return "unknown error"
		}
	}
}

// CodeError carries a result code as a Go error.
type CodeError struct {
	Code Code
}

func (e *CodeError) Error() string { return Strerror(e.Code) }

// ErrorOf wraps a nonzero code into an error; NoErr maps to nil.
func ErrorOf(code Code) error {
	if code == NoErr {
		return nil
	}
	return &CodeError{Code: code}
}

// CodeOf recovers the result code from an error produced by this library.
// Unrecognized errors, including job aborts, normalize to EIO.
func CodeOf(err error) Code {
	if err == nil {
		return NoErr
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return EIO
}

// Policy selects how a backend failure on an I/O-capable task propagates.
type Policy int32

const (
	PolicyReturn Policy = iota // hand the code back to the immediate caller
	PolicyAbort                // print the description, terminate the job
	PolicyBroadcast            // propagate the raw code to every task
)

func (p Policy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicyBroadcast:
		return "broadcast"
	}
	return "return"
}

// CheckBackend applies the error policy to a backend result. Under
// PolicyBroadcast every task sharing c must call it; the broadcast
// originates at root. Returns the (possibly propagated) code, and a
// non-nil error when the policy terminated the job.
func CheckBackend(c *comm.Comm, policy Policy, root int, code Code) (Code, error) {
	switch policy {
	case PolicyAbort:
		if code != NoErr {
			log.Error().Int32("code", int32(code)).Str("detail", Strerror(code)).
				Msg("backend failure, aborting job")
			_ = c.Abort(int(code))
			return code, fmt.Errorf("pioerr: job aborted on backend failure: %s", Strerror(code))
		}
	case PolicyBroadcast:
		v, err := c.Bcast(int32(code), root)
		if err != nil {
			return EIO, ErrorOf(CheckTransport(err))
		}
		code = Code(v.(int32))
	}
	return code, nil
}

// CheckTransport logs a transport failure and normalizes it to the one
// internal I/O-error code, so callers never branch on transport values.
func CheckTransport(err error) Code {
	if err == nil {
		return NoErr
	}
	observability.RecordTransportError()
	log.Error().Err(err).Msg("transport failure")
	return EIO
}
