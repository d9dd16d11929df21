package relay

import (
	"github.com/pariolab/pario/internal/backend"
	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/iosys"
)

// TagOp is the reserved union-communicator tag for relay frames.
const TagOp = 1

// Channel is the compute-side handle of the operation channel: the
// compute-group root forwards serialized operations to the I/O-pool root
// over the union communicator.
type Channel struct {
	Union  *comm.Comm
	IORoot int
}

func NewChannel(ios *iosys.IOSystem) *Channel {
	return &Channel{Union: ios.Union, IORoot: ios.IORoot}
}

// SendOpen forwards an open operation. Called by the compute-group root
// alone; any failure here is a transport error, never silently ignored.
func (ch *Channel) SendOpen(path string, iotype backend.IOType, mode backend.Mode, retry bool) error {
	args, err := EncodeOpenArgs(OpenArgs{Path: path, IOType: iotype, Mode: mode})
	if err != nil {
		return err
	}
	var flags uint32
	if retry {
		flags |= FlagRetry
	}
	buf, err := Encode(Frame{Op: OpOpenFile, Flags: flags, Payload: args})
	if err != nil {
		return err
	}
	return ch.Union.Send(buf, ch.IORoot, TagOp)
}
