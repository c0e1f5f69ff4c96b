package adapter

import (
	"sync"

	"github.com/markus8006/plcfleet/pkg/models"
)

// Factory builds an adapter instance for one protocol.
type Factory func() Adapter

// Registry maps protocol tags to adapter factories. Register during
// startup, Seal before the first Resolve; resolution after sealing is
// lock-free reads.
type Registry struct {
	mu        sync.Mutex
	sealed    bool
	factories map[models.Protocol]Factory
	instances map[models.Protocol]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[models.Protocol]Factory),
		instances: make(map[models.Protocol]Adapter),
	}
}

// Register adds a factory for a protocol. Registering after Seal or
// for a duplicate protocol panics; both are wiring bugs.
func (r *Registry) Register(p models.Protocol, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic("adapter: Register after Seal")
	}
	if _, dup := r.factories[p]; dup {
		panic("adapter: duplicate protocol " + string(p))
	}
	r.factories[p] = f
}

// Seal instantiates every registered factory and freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	for p, f := range r.factories {
		r.instances[p] = f()
	}
	r.sealed = true
}

// Resolve returns the adapter for a protocol. An unknown protocol is a
// configuration error, not a transport failure.
func (r *Registry) Resolve(p models.Protocol) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.instances[p]
	if !ok {
		return nil, &models.ConfigError{Field: "protocol", Detail: "no adapter registered for " + string(p)}
	}
	return a, nil
}

// Protocols lists the registered protocol tags.
func (r *Registry) Protocols() []models.Protocol {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Protocol, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	return out
}
