package cluster

import (
	"context"
	"sync"

	"github.com/oscied/orchestra/pkg/types"
)

// SimAdapter simulates an environment in process. Fresh units spend
// StartLatency status polls in pending state before starting, which lets
// tests observe convergence over several reconciliation ticks.
type SimAdapter struct {
	// StartLatency is the number of polls a new unit stays pending.
	StartLatency int

	mu       sync.Mutex
	services map[string]map[int]*simUnit
	next     map[string]int
	Resolves []string
}

type simUnit struct {
	unit *types.Unit
	age  int
}

// NewSimAdapter creates a simulator with the given start latency
func NewSimAdapter(startLatency int) *SimAdapter {
	return &SimAdapter{
		StartLatency: startLatency,
		services:     map[string]map[int]*simUnit{},
		next:         map[string]int{},
	}
}

func (a *SimAdapter) Units(_ context.Context, service string) (map[int]*types.Unit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := map[int]*types.Unit{}
	for n, su := range a.services[service] {
		if su.unit.State == types.UnitPending {
			su.age++
			if su.age >= a.StartLatency {
				su.unit.State = types.UnitStarted
			}
		}
		u := *su.unit
		out[n] = &u
	}
	return out, nil
}

func (a *SimAdapter) EnsureNumUnits(_ context.Context, service string, num int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	units := a.services[service]
	if units == nil {
		units = map[int]*simUnit{}
		a.services[service] = units
	}

	for len(units) < num {
		n := a.next[service]
		a.next[service] = n + 1
		state := types.UnitPending
		if a.StartLatency <= 0 {
			state = types.UnitStarted
		}
		units[n] = &simUnit{unit: &types.Unit{Number: n, Service: service, State: state}}
	}
	for len(units) > num {
		highest := -1
		for n := range units {
			if n > highest {
				highest = n
			}
		}
		delete(units, highest)
	}
	return nil
}

func (a *SimAdapter) DestroyUnit(_ context.Context, service string, number int, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	units := a.services[service]
	if units == nil || units[number] == nil {
		return types.E(types.ErrNotFound, "no unit with that number")
	}
	delete(units, number)
	return nil
}

func (a *SimAdapter) Resolved(_ context.Context, service string, number int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if units := a.services[service]; units != nil {
		if su, ok := units[number]; ok && su.unit.State == types.UnitError {
			su.unit.State = types.UnitPending
			su.age = 0
		}
	}
	a.Resolves = append(a.Resolves, service)
	return nil
}

// SetUnitState forces a unit into a state, used to inject failures.
func (a *SimAdapter) SetUnitState(service string, number int, state types.UnitState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if units := a.services[service]; units != nil {
		if su, ok := units[number]; ok {
			su.unit.State = state
		}
	}
}
