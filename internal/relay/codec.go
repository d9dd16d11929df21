// Package relay carries operations from the compute group to a dedicated
// I/O-task pool over a typed, tagged operation-code channel. Only the
// open operation is serviced here; the remaining codes share the channel
// contract and are handled by their own collaborators.
package relay

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pariolab/pario/internal/backend"
)

const (
	// Magic marks a relay frame ("PRIO").
	Magic        uint32 = 0x5052494F
	CodecVersion uint16 = 1

	headerLen  = 16
	maxPayload = 1 << 20
)

// Operation codes carried on the channel.
const (
	OpOpenFile uint16 = iota + 1
	OpCreateFile
	OpCloseFile
	OpReadArray
	OpWriteArray
	OpFreeDecomp
	OpExit
)

// FlagRetry requests the single-shot format downgrade on open.
const FlagRetry uint32 = 0x1

var (
	ErrShortHeader     = errors.New("relay: short frame header")
	ErrBadMagic        = errors.New("relay: bad frame magic")
	ErrBadVersion      = errors.New("relay: unsupported frame version")
	ErrPayloadTooLarge = errors.New("relay: payload too large")
	ErrShortPayload    = errors.New("relay: short payload")
	ErrUnsupportedOp   = errors.New("relay: unsupported operation")
)

// Frame is one complete relayed operation.
type Frame struct {
	Op      uint16
	Flags   uint32
	Payload []byte
}

// Encode serializes a frame with the fixed big-endian header.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > maxPayload {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, headerLen+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint16(buf[4:6], CodecVersion)
	binary.BigEndian.PutUint16(buf[6:8], f.Op)
	binary.BigEndian.PutUint32(buf[8:12], f.Flags)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(f.Payload)))
	copy(buf[headerLen:], f.Payload)
	return buf, nil
}

// Decode parses a serialized frame.
func Decode(b []byte) (Frame, error) {
	if len(b) < headerLen {
		return Frame{}, ErrShortHeader
	}
	if binary.BigEndian.Uint32(b[0:4]) != Magic {
		return Frame{}, ErrBadMagic
	}
	if v := binary.BigEndian.Uint16(b[4:6]); v != CodecVersion {
		return Frame{}, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	payloadLen := binary.BigEndian.Uint32(b[12:16])
	if payloadLen > maxPayload {
		return Frame{}, ErrPayloadTooLarge
	}
	if uint32(len(b)-headerLen) < payloadLen {
		return Frame{}, ErrShortPayload
	}
	payload := make([]byte, payloadLen)
	copy(payload, b[headerLen:headerLen+int(payloadLen)])
	return Frame{
		Op:      binary.BigEndian.Uint16(b[6:8]),
		Flags:   binary.BigEndian.Uint32(b[8:12]),
		Payload: payload,
	}, nil
}

// OpenArgs is the serialized argument block of OpOpenFile: filename
// length, filename bytes, format tag, mode.
type OpenArgs struct {
	Path   string
	IOType backend.IOType
	Mode   backend.Mode
}

func EncodeOpenArgs(a OpenArgs) ([]byte, error) {
	name := []byte(a.Path)
	if len(name) > maxPayload-12 {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 4+len(name)+8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(name)))
	copy(buf[4:], name)
	off := 4 + len(name)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(a.IOType))
	binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(a.Mode))
	return buf, nil
}

func DecodeOpenArgs(b []byte) (OpenArgs, error) {
	if len(b) < 4 {
		return OpenArgs{}, ErrShortPayload
	}
	nameLen := binary.BigEndian.Uint32(b[0:4])
	if uint32(len(b)) < 4+nameLen+8 {
		return OpenArgs{}, ErrShortPayload
	}
	name := string(b[4 : 4+nameLen])
	off := 4 + int(nameLen)
	return OpenArgs{
		Path:   name,
		IOType: backend.IOType(binary.BigEndian.Uint32(b[off : off+4])),
		Mode:   backend.Mode(binary.BigEndian.Uint32(b[off+4 : off+8])),
	}, nil
}
