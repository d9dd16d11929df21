package openfile

import (
	"sort"
	"sync"
)

// Registry is the process-wide table of open files, keyed by the
// monotonically increasing caller-visible handle.
type Registry struct {
	mu    sync.Mutex
	items map[int]*File
	next  int
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[int]*File), next: 1}
}

// Add assigns the next handle and links the file. Handles are never
// reused, so files opened on multiple IOSystems stay distinguishable.
func (r *Registry) Add(f *File) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	f.ID = id
	r.items[id] = f
	return id
}

// Lookup returns the file registered under a handle.
func (r *Registry) Lookup(id int) (*File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	return f, ok
}

// Remove unlinks the file registered under a handle.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

// Len returns the number of open files.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// List returns the open files ordered by handle.
func (r *Registry) List() []*File {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*File, 0, len(r.items))
	for _, f := range r.items {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
