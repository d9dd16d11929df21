package relay

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/pariolab/pario/internal/backend"
	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/iosys"
	"github.com/pariolab/pario/internal/openfile"
)

// ErrExit reports that the compute group requested service shutdown.
var ErrExit = errors.New("relay: exit requested")

// Service executes relayed operations on the dedicated I/O tasks. Every
// I/O task runs the same handler loop; the pool root receives each frame
// and rebroadcasts it over the I/O communicator so the whole group
// enters the collective dispatch together.
type Service struct {
	IOS      *iosys.IOSystem
	Files    *openfile.Registry
	Backends *backend.Table
}

func NewService(ios *iosys.IOSystem, files *openfile.Registry, table *backend.Table) *Service {
	return &Service{IOS: ios, Files: files, Backends: table}
}

// HandleNext blocks for one relayed operation and executes it. Returns
// ErrExit when the compute group ends the session, ErrUnsupportedOp for
// an operation code this service does not dispatch.
func (s *Service) HandleNext() error {
	var buf []byte
	if s.IOS.IOMaster {
		v, err := s.IOS.Union.Recv(s.IOS.CompRoot, TagOp)
		if err != nil {
			return err
		}
		buf = v.([]byte)
	}
	v, err := s.IOS.IO.Bcast(buf, 0)
	if err != nil {
		return err
	}
	frame, err := Decode(v.([]byte))
	if err != nil {
		return err
	}

	switch frame.Op {
	case OpOpenFile:
		args, err := DecodeOpenArgs(frame.Payload)
		if err != nil {
			return err
		}
		retry := frame.Flags&FlagRetry != 0
		// The I/O tasks join the same collective open the compute tasks
		// entered; the result reaches everyone over the union broadcast.
		_, _, oerr := openfile.OpenRetry(s.IOS, s.Files, s.Backends, nil,
			args.Path, args.IOType, args.Mode, retry)
		if oerr != nil {
			// The compute group already saw the broadcast result; the
			// service keeps running so the session can continue.
			log.Debug().Err(oerr).Str("path", args.Path).Msg("relayed open failed")
			var abortErr *comm.AbortError
			if errors.As(oerr, &abortErr) {
				return oerr
			}
		}
		return nil

	case OpExit:
		return ErrExit
	}
	log.Error().Uint16("op", frame.Op).Msg("relayed operation not serviced")
	return ErrUnsupportedOp
}

// Run services operations until exit or a transport failure.
func (s *Service) Run() error {
	for {
		if err := s.HandleNext(); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			return err
		}
	}
}

// SendExit ends the service loop. Called by the compute-group root.
func SendExit(ch *Channel) error {
	buf, err := Encode(Frame{Op: OpExit})
	if err != nil {
		return err
	}
	return ch.Union.Send(buf, ch.IORoot, TagOp)
}
