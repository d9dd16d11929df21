package decomp

import (
	"sort"
	"sync"

	"github.com/pariolab/pario/internal/pioerr"
)

// Registry stores descriptors by id.
type Registry struct {
	mu    sync.Mutex
	items map[int]*Descriptor
	next  int
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[int]*Descriptor), next: 1}
}

// Add assigns the next id and stores the descriptor under it.
func (r *Registry) Add(d *Descriptor) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	d.ID = id
	r.items[id] = d
	return id
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id int) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	return d, ok
}

// Remove drops the descriptor registered under id, reporting EBadID when
// the id is unknown.
func (r *Registry) Remove(id int) pioerr.Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return pioerr.EBadID
	}
	delete(r.items, id)
	return pioerr.NoErr
}

// List returns the registered descriptors ordered by id.
func (r *Registry) List() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Descriptor, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
