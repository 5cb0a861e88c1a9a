package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the alive masks by UUID. Masks leave the registry only by
// an explicit Unregister; nothing is collected while reachable.
type Registry struct {
	mu    sync.RWMutex
	alive map[uuid.UUID]*Mask
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{alive: make(map[uuid.UUID]*Mask)}
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func (r *Registry) register(m *Mask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alive[m.id] = m
}

func (r *Registry) unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.alive, id)
}

// Find returns the alive mask with the given id.
func (r *Registry) Find(id uuid.UUID) (*Mask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.alive[id]
	return m, ok
}

// AliveCount returns the number of registered masks.
func (r *Registry) AliveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alive)
}
