package taskmanager

import (
	"sync"
	"weak"
)

// Registry tracks live managers so a host can tear all of them down on shutdown.
// It holds weak references and never keeps a manager alive on its own.
type Registry struct {
	mu      sync.Mutex
	entries map[weak.Pointer[Manager]]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[weak.Pointer[Manager]]struct{})}
}

func (r *Registry) add(m *Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[weak.Make(m)] = struct{}{}
}

func (r *Registry) remove(m *Manager) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := weak.Make(m)
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// Managers returns the live managers. Entries whose manager was collected are pruned.
func (r *Registry) Managers() []*Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Manager, 0, len(r.entries))
	for wp := range r.entries {
		m := wp.Value()
		if m == nil {
			delete(r.entries, wp)
			continue
		}
		out = append(out, m)
	}
	return out
}

// Len returns the number of live managers.
func (r *Registry) Len() int {
	return len(r.Managers())
}

// DisposeAll disposes every live manager and returns how many were disposed.
func (r *Registry) DisposeAll() int {
	managers := r.Managers()
	for _, m := range managers {
		m.Dispose()
	}
	return len(managers)
}
