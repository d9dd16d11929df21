package iosys

import "sync"

// Registry stores IOSystems by id.
type Registry struct {
	mu    sync.Mutex
	items map[int]*IOSystem
	next  int
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[int]*IOSystem), next: 1}
}

// Add assigns the next id and stores the IOSystem under it.
func (r *Registry) Add(ios *IOSystem) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	ios.ID = id
	r.items[id] = ios
	return id
}

// Lookup returns the IOSystem registered under id.
func (r *Registry) Lookup(id int) (*IOSystem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ios, ok := r.items[id]
	return ios, ok
}

// Remove drops the IOSystem registered under id.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}
