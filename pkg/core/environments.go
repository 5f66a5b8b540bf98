package core

import (
	"context"
	"time"

	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

const clusterTimeout = 10 * time.Second

func clusterCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), clusterTimeout)
}

// SaveEnvironment persists an environment and binds its cluster adapter.
func (c *Core) SaveEnvironment(env *types.Environment) (*types.Environment, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if err := c.store.SaveEnvironment(env); err != nil {
		return nil, err
	}
	c.envs.Register(env.Name, c.newAdapter(env))
	return env.Sanitized(), nil
}

// newAdapter builds the adapter for an environment. Mock mode simulates.
func (c *Core) newAdapter(env *types.Environment) cluster.Adapter {
	if c.cfg.Mock {
		return cluster.NewSimAdapter(2)
	}
	return cluster.NewJujuAdapter(env.Name, c.cfg.JujuConfigFile, c.cfg.CharmsRelease, c.cfg.CharmsRepository)
}

// RestoreEnvironments rebinds adapters for environments already persisted,
// called once at startup.
func (c *Core) RestoreEnvironments() error {
	envs, err := c.store.ListEnvironments(storage.Query{})
	if err != nil {
		return err
	}
	for _, env := range envs {
		c.envs.Register(env.Name, c.newAdapter(env))
	}
	return nil
}

// GetEnvironment returns a sanitized environment, nil when absent.
func (c *Core) GetEnvironment(name string) (*types.Environment, error) {
	env, err := c.store.GetEnvironment(storage.ByID(name))
	if err != nil || env == nil {
		return nil, err
	}
	return env.Sanitized(), nil
}

// ListEnvironments lists sanitized environments.
func (c *Core) ListEnvironments() ([]*types.Environment, error) {
	envs, err := c.store.ListEnvironments(storage.Query{Sort: []storage.SortKey{{Field: "_id"}}})
	if err != nil {
		return nil, err
	}
	out := make([]*types.Environment, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Sanitized())
	}
	return out, nil
}

// DeleteEnvironment unbinds and removes an environment.
func (c *Core) DeleteEnvironment(name string) error {
	env, err := c.store.GetEnvironment(storage.ByID(name))
	if err != nil {
		return err
	}
	if env == nil {
		return types.E(types.ErrNotFound, "no environment with that name")
	}
	c.envs.Remove(name)
	return c.store.DeleteEnvironment(name)
}

// EnsureNumUnits scales a service in an environment.
func (c *Core) EnsureNumUnits(environment, service string, num int) error {
	if num < 0 {
		return types.E(types.ErrInvalid, "the number of units must not be negative")
	}
	adapter, err := c.envs.Get(environment)
	if err != nil {
		return err
	}
	ctx, cancel := clusterCtx()
	defer cancel()
	return adapter.EnsureNumUnits(ctx, service, num)
}

// ListUnits returns the units of a service in an environment.
func (c *Core) ListUnits(environment, service string) (map[int]*types.Unit, error) {
	adapter, err := c.envs.Get(environment)
	if err != nil {
		return nil, err
	}
	ctx, cancel := clusterCtx()
	defer cancel()
	return adapter.Units(ctx, service)
}

// GetUnit returns one unit, ErrNotFound when absent.
func (c *Core) GetUnit(environment, service string, number int) (*types.Unit, error) {
	units, err := c.ListUnits(environment, service)
	if err != nil {
		return nil, err
	}
	unit, ok := units[number]
	if !ok {
		return nil, types.E(types.ErrNotFound, "no unit with that number")
	}
	return unit, nil
}

// DestroyUnit removes one unit and its machine.
func (c *Core) DestroyUnit(environment, service string, number int) error {
	adapter, err := c.envs.Get(environment)
	if err != nil {
		return err
	}
	ctx, cancel := clusterCtx()
	defer cancel()
	return adapter.DestroyUnit(ctx, service, number, true)
}
