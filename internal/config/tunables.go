// Package config holds the process-wide tunables and the job description
// file. Tunables are parsed once at startup and snapshotted; nothing in
// the core reads the environment after that.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	EnvSaveDecomps = "PARIO_SAVE_DECOMPS"
	EnvSwapm       = "PARIO_SWAPM"
	EnvBufferLimit = "PARIO_BUFFER_LIMIT"
)

// DefaultCombineBufferLimit is the combine-buffer byte limit used when the
// environment does not override it.
const DefaultCombineBufferLimit int64 = 10000000

// Swapm is the communication policy seeded into new decomposition
// descriptors.
type Swapm struct {
	MaxRequests     int
	Handshake       bool
	NonblockingSend bool
}

// Tunables is the snapshot of the process-wide environment tunables.
type Tunables struct {
	SaveDecomps        bool
	Swapm              Swapm
	CombineBufferLimit int64
}

func Default() Tunables {
	return Tunables{CombineBufferLimit: DefaultCombineBufferLimit}
}

// FromEnv parses the tunables from the environment. Malformed values fall
// back to the defaults rather than failing.
func FromEnv() Tunables {
	t := Default()
	if v := os.Getenv(EnvSaveDecomps); v == "true" {
		t.SaveDecomps = true
	}
	if v := os.Getenv(EnvSwapm); v != "" {
		t.Swapm = parseSwapm(v)
	}
	if v := os.Getenv(EnvBufferLimit); v != "" {
		if n, ok := parseByteSize(v); ok {
			t.CombineBufferLimit = n
		}
	}
	return t
}

var (
	snapOnce sync.Once
	snapshot Tunables
)

// Snapshot captures the environment tunables once per process and returns
// the same values on every later call.
func Snapshot() Tunables {
	snapOnce.Do(func() {
		snapshot = FromEnv()
	})
	return snapshot
}

// parseSwapm decodes the colon-separated triple
// maxOutstandingRequests:handshake:nonblockingSend, where the flags are
// 't' for true and anything else for false.
func parseSwapm(v string) Swapm {
	var s Swapm
	parts := strings.SplitN(v, ":", 3)
	if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		s.MaxRequests = n
	}
	if len(parts) > 1 {
		s.Handshake = parts[1] == "t"
	}
	if len(parts) > 2 {
		s.NonblockingSend = parts[2] == "t"
	}
	return s
}

// parseByteSize decodes a byte count with an optional K (x1,000) or
// M (x1,000,000) suffix.
func parseByteSize(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	mult := int64(1)
	switch v[len(v)-1] {
	case 'K', 'k':
		mult = 1000
		v = v[:len(v)-1]
	case 'M', 'm':
		mult = 1000000
		v = v[:len(v)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n * mult, true
}
