package decomp

import (
	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/config"
	"github.com/pariolab/pario/internal/pioerr"
)

// Manager creates and destroys descriptors against one registry, stamping
// each new descriptor with the communication-policy snapshot it was built
// with. Later changes to the process tunables never reach existing
// descriptors.
type Manager struct {
	reg *Registry
	tun config.Tunables
}

func NewManager(reg *Registry, tun config.Tunables) *Manager {
	return &Manager{reg: reg, tun: tun}
}

// Create builds a descriptor for one element type and dimensionality and
// registers it. Unrecognized element tags select the integer transport
// type rather than failing. The head Region is allocated eagerly so later
// appenders never special-case an empty list.
func (m *Manager) Create(elem ElemType, ndims int) (*Descriptor, error) {
	var base comm.BaseType
	switch elem {
	case ElemFloat:
		base = comm.Float
	case ElemDouble:
		base = comm.Double
	case ElemChar:
		base = comm.Byte
	default:
		base = comm.Int
	}
	head, err := NewRegion(ndims)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		BaseType:        base,
		NDims:           ndims,
		MaxRegions:      1,
		FirstRegion:     head,
		Rearranger:      RearrNone,
		Handshake:       m.tun.Swapm.Handshake,
		NonblockingSend: m.tun.Swapm.NonblockingSend,
		MaxRequests:     m.tun.Swapm.MaxRequests,
	}
	m.reg.Add(d)
	return d, nil
}

// Destroy releases a descriptor's transport datatypes, scratch arrays,
// Region list, and (under the subset strategy) its sub-communicator, then
// deregisters it. Safe on a partially built descriptor; every guard is
// independent. Returns EBadID for an unknown id.
func (m *Manager) Destroy(id int) pioerr.Code {
	d, ok := m.reg.Lookup(id)
	if !ok {
		return pioerr.EBadID
	}

	d.RecvFrom = nil
	if d.RecvTypes != nil {
		for i := 0; i < d.NumRecvs && i < len(d.RecvTypes); i++ {
			if t := d.RecvTypes[i]; t != nil && !t.Freed() {
				_ = t.Free()
			}
		}
		d.RecvTypes = nil
	}
	if d.SendTypes != nil {
		// Send types are counted independently of the receive side.
		for i := 0; i < d.NumSendTypes && i < len(d.SendTypes); i++ {
			if t := d.SendTypes[i]; t != nil && !t.Freed() {
				_ = t.Free()
			}
		}
		d.NumSendTypes = 0
		d.SendTypes = nil
	}
	d.SendCounts = nil
	d.RecvCounts = nil
	d.SendIndex = nil
	d.RecvIndex = nil

	if d.FirstRegion != nil {
		FreeRegionList(d.FirstRegion)
		d.FirstRegion = nil
	}

	if d.Rearranger == RearrSubset && d.SubsetComm != nil {
		_ = d.SubsetComm.Free()
		d.SubsetComm = nil
	}

	return m.reg.Remove(id)
}
