// Package mapfile persists and redistributes the raw per-task
// global-index lists a decomposition is built from, as a versioned,
// task-count-tagged text file.
//
// The wire discipline between rank 0 and a peer i on a communicator of
// size n: the list length travels on tag i+n and the payload on tag i,
// so the two can never be observed out of order.
package mapfile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/observability"
	"github.com/pariolab/pario/internal/pioerr"
)

// Version must match exactly on read.
const Version = 2001

var (
	ErrBadVersion   = errors.New("mapfile: incompatible map file version")
	ErrBadTaskCount = errors.New("mapfile: incompatible task count in map file")
	ErrBadIndex     = errors.New("mapfile: writer index out of sequence")
	ErrBadHeader    = errors.New("mapfile: malformed header")
)

// Read replays a persisted decomposition map across every task of c.
// Collective. Rank 0 parses the file and distributes one index list per
// writer task; tasks beyond the writer count get an empty list, which is
// a normal outcome. Open and validation failures on rank 0 are fatal and
// terminate the job before any task observes the shape.
func Read(path string, c *comm.Comm) (ndims int, shape []int64, local []int64, err error) {
	npes := c.Size()
	rank := c.Rank()

	if rank == 0 {
		return readRoot(path, c, npes)
	}

	wv, err := c.Bcast(nil, 0)
	if err != nil {
		return 0, nil, nil, err
	}
	w := wv.(int)
	dv, err := c.Bcast(nil, 0)
	if err != nil {
		return 0, nil, nil, err
	}
	ndims = dv.(int)
	sv, err := c.Bcast(nil, 0)
	if err != nil {
		return 0, nil, nil, err
	}
	shape = sv.([]int64)

	if rank >= w {
		// Replayed on more tasks than it was written for.
		return ndims, shape, []int64{}, nil
	}
	lv, err := c.Recv(0, rank+npes)
	if err != nil {
		return 0, nil, nil, err
	}
	mv, err := c.Recv(0, rank)
	if err != nil {
		return 0, nil, nil, err
	}
	local = mv.([]int64)
	if int64(len(local)) != lv.(int64) {
		return 0, nil, nil, pioerr.ErrorOf(pioerr.EIO)
	}
	return ndims, shape, local, nil
}

func readRoot(path string, c *comm.Comm, npes int) (int, []int64, []int64, error) {
	f, err := os.Open(path)
	if err != nil {
		_ = c.Abort(int(pioerr.EIO))
		return 0, nil, nil, fmt.Errorf("mapfile: open %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var verKey, npesKey, ndimsKey string
	var version, w, ndims int
	if _, err := fmt.Fscan(r, &verKey, &version, &npesKey, &w, &ndimsKey, &ndims); err != nil ||
		verKey != "version" || npesKey != "npes" || ndimsKey != "ndims" {
		_ = c.Abort(int(pioerr.EInval))
		return 0, nil, nil, ErrBadHeader
	}
	if version != Version {
		_ = c.Abort(int(pioerr.EInval))
		return 0, nil, nil, fmt.Errorf("%w: got %d want %d", ErrBadVersion, version, Version)
	}
	if w < 1 || w > npes {
		_ = c.Abort(int(pioerr.EInval))
		return 0, nil, nil, fmt.Errorf("%w: %d writers on %d tasks", ErrBadTaskCount, w, npes)
	}

	if _, err := c.Bcast(w, 0); err != nil {
		return 0, nil, nil, err
	}
	if _, err := c.Bcast(ndims, 0); err != nil {
		return 0, nil, nil, err
	}
	shape := make([]int64, ndims)
	for i := range shape {
		if _, err := fmt.Fscan(r, &shape[i]); err != nil {
			_ = c.Abort(int(pioerr.EInval))
			return 0, nil, nil, fmt.Errorf("mapfile: short shape line: %w", err)
		}
	}
	if _, err := c.Bcast(shape, 0); err != nil {
		return 0, nil, nil, err
	}

	var local []int64
	for i := 0; i < w; i++ {
		var idx int
		var length int64
		if _, err := fmt.Fscan(r, &idx, &length); err != nil {
			_ = c.Abort(int(pioerr.EInval))
			return 0, nil, nil, fmt.Errorf("mapfile: short map block %d: %w", i, err)
		}
		if idx != i {
			_ = c.Abort(int(pioerr.EInval))
			return 0, nil, nil, fmt.Errorf("%w: block %d labeled %d", ErrBadIndex, i, idx)
		}
		vals := make([]int64, length)
		for j := range vals {
			if _, err := fmt.Fscan(r, &vals[j]); err != nil {
				_ = c.Abort(int(pioerr.EInval))
				return 0, nil, nil, fmt.Errorf("mapfile: short map block %d: %w", i, err)
			}
		}
		if i == 0 {
			local = vals
			continue
		}
		if err := c.Send(length, i, i+npes); err != nil {
			return 0, nil, nil, pioerr.ErrorOf(pioerr.CheckTransport(err))
		}
		if err := c.Send(vals, i, i); err != nil {
			return 0, nil, nil, pioerr.ErrorOf(pioerr.CheckTransport(err))
		}
	}
	observability.RecordMapTransfer("read")
	return ndims, shape, local, nil
}

// Write persists a decomposition map. Collective. Rank 0 gathers every
// task's list length, then pulls each peer's payload with a per-peer
// control message before appending its block. A rank-0 open failure is
// recoverable: peers are released with a negative control value and every
// task reports an I/O error to its caller.
func Write(path string, shape []int64, local []int64, c *comm.Comm) error {
	npes := c.Size()
	rank := c.Rank()

	lens, err := c.GatherInt64(int64(len(local)), 0)
	if err != nil {
		return pioerr.ErrorOf(pioerr.CheckTransport(err))
	}

	if rank != 0 {
		ctl, err := c.Recv(0, npes+rank)
		if err != nil {
			return pioerr.ErrorOf(pioerr.CheckTransport(err))
		}
		if ctl.(int64) < 0 {
			return pioerr.ErrorOf(pioerr.EIO)
		}
		if err := c.Send(local, 0, rank); err != nil {
			return pioerr.ErrorOf(pioerr.CheckTransport(err))
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		log.Error().Str("path", path).Err(err).Msg("failed to open map file for write")
		for i := 1; i < npes; i++ {
			if serr := c.Send(int64(-1), i, npes+i); serr != nil {
				return pioerr.ErrorOf(pioerr.CheckTransport(serr))
			}
		}
		return fmt.Errorf("mapfile: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "version %d npes %d ndims %d\n", Version, npes, len(shape))
	for _, g := range shape {
		fmt.Fprintf(w, "%d ", g)
	}
	fmt.Fprintln(w)

	writeBlock(w, 0, local)
	for i := 1; i < npes; i++ {
		if err := c.Send(int64(i), i, npes+i); err != nil {
			return pioerr.ErrorOf(pioerr.CheckTransport(err))
		}
		mv, err := c.Recv(i, i)
		if err != nil {
			return pioerr.ErrorOf(pioerr.CheckTransport(err))
		}
		vals := mv.([]int64)
		if int64(len(vals)) != lens[i] {
			return pioerr.ErrorOf(pioerr.EIO)
		}
		writeBlock(w, i, vals)
	}

	// Provenance trace, ignored by the reader.
	fmt.Fprintln(w)
	w.Write(debug.Stack())

	if err := w.Flush(); err != nil {
		return fmt.Errorf("mapfile: flush %s: %w", path, err)
	}
	observability.RecordMapTransfer("write")
	return nil
}

func writeBlock(w *bufio.Writer, idx int, vals []int64) {
	fmt.Fprintf(w, "%d %d\n", idx, len(vals))
	for _, v := range vals {
		fmt.Fprintf(w, "%d ", v)
	}
	fmt.Fprintln(w)
}
