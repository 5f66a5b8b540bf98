package cluster

import (
	"context"
	"sync"

	"github.com/oscied/orchestra/pkg/types"
)

// Adapter drives the worker units of one environment.
type Adapter interface {
	// EnsureNumUnits scales a service to the requested number of units,
	// deploying the charm on first use and terminating machines on the way
	// down.
	EnsureNumUnits(ctx context.Context, service string, num int) error

	// Units returns the current units of a service keyed by unit number.
	Units(ctx context.Context, service string) (map[int]*types.Unit, error)

	// DestroyUnit removes a single unit, terminating its machine when asked.
	DestroyUnit(ctx context.Context, service string, number int, destroyMachine bool) error

	// Resolved marks an errored unit for retry.
	Resolved(ctx context.Context, service string, number int) error
}

// Registry maps environment names to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register binds an adapter to an environment name
func (r *Registry) Register(environment string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[environment] = adapter
}

// Remove unbinds an environment
func (r *Registry) Remove(environment string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, environment)
}

// Get returns the adapter of an environment, ErrNotFound when unbound.
func (r *Registry) Get(environment string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[environment]
	if !ok {
		return nil, types.E(types.ErrNotFound, "no environment with that name")
	}
	return a, nil
}

// Names lists the registered environment names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	return names
}
