package workspace

import (
	"sync"
)

// Registry keeps one workspace per caller.
type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	breakpoint int
	onChange   func(active int)
}

// NewRegistry creates a registry whose workspaces use breakpoint for layout.
// onChange, if set, is called with the number of workspaces after each
// creation or removal.
func NewRegistry(breakpoint int, onChange func(active int)) *Registry {
	return &Registry{
		workspaces: make(map[string]*Workspace),
		breakpoint: breakpoint,
		onChange:   onChange,
	}
}

// Get returns the workspace for key, if open.
func (r *Registry) Get(key string) (*Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workspaces[key]
	return w, ok
}

// GetOrCreate returns the workspace for key, creating an empty one if needed.
func (r *Registry) GetOrCreate(key string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workspaces[key]; ok {
		return w
	}
	w := New(r.breakpoint)
	r.workspaces[key] = w
	r.notify()
	return w
}

// Drop closes the workspace for key.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[key]; ok {
		delete(r.workspaces, key)
		r.notify()
	}
}

// Len returns the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange(len(r.workspaces))
	}
}
