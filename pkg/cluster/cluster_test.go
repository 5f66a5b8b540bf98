package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oscied/orchestra/pkg/types"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	sim := NewSimAdapter(0)
	r.Register("amazon", sim)

	got, err := r.Get("amazon")
	require.NoError(t, err)
	assert.Same(t, sim, got)
	assert.Equal(t, []string{"amazon"}, r.Names())

	_, err = r.Get("missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.KindOf(err))

	r.Remove("amazon")
	_, err = r.Get("amazon")
	assert.Error(t, err)
}

func TestSimAdapterScaling(t *testing.T) {
	ctx := context.Background()
	sim := NewSimAdapter(0)

	require.NoError(t, sim.EnsureNumUnits(ctx, types.ServiceTransform, 3))
	units, err := sim.Units(ctx, types.ServiceTransform)
	require.NoError(t, err)
	require.Len(t, units, 3)
	for _, u := range units {
		assert.Equal(t, types.UnitStarted, u.State)
	}

	// Scaling down removes the highest numbers first.
	require.NoError(t, sim.EnsureNumUnits(ctx, types.ServiceTransform, 1))
	units, err = sim.Units(ctx, types.ServiceTransform)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Contains(t, units, 0)

	// New units keep counting upward.
	require.NoError(t, sim.EnsureNumUnits(ctx, types.ServiceTransform, 2))
	units, err = sim.Units(ctx, types.ServiceTransform)
	require.NoError(t, err)
	assert.Contains(t, units, 3)
}

func TestSimAdapterStartLatency(t *testing.T) {
	ctx := context.Background()
	sim := NewSimAdapter(2)
	require.NoError(t, sim.EnsureNumUnits(ctx, types.ServiceTransform, 1))

	units, err := sim.Units(ctx, types.ServiceTransform)
	require.NoError(t, err)
	assert.Equal(t, types.UnitPending, units[0].State)

	units, err = sim.Units(ctx, types.ServiceTransform)
	require.NoError(t, err)
	assert.Equal(t, types.UnitStarted, units[0].State)
}

func TestSimAdapterDestroyUnit(t *testing.T) {
	ctx := context.Background()
	sim := NewSimAdapter(0)
	require.NoError(t, sim.EnsureNumUnits(ctx, types.ServiceTransform, 2))

	require.NoError(t, sim.DestroyUnit(ctx, types.ServiceTransform, 0, true))
	err := sim.DestroyUnit(ctx, types.ServiceTransform, 0, true)
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.KindOf(err))
}

func TestJujuStatusParsing(t *testing.T) {
	raw := []byte(`
machines:
  "1":
    agent-state: started
services:
  transform:
    charm: local:raring/oscied-transform-0
    units:
      transform/0:
        agent-state: started
        machine: "1"
        public-address: 10.0.0.11
      transform/1:
        agent-state: install-error
        machine: "2"
        public-address: 10.0.0.12
      transform/oops:
        agent-state: started
`)
	var status jujuStatus
	require.NoError(t, yaml.Unmarshal(raw, &status))

	svc, ok := status.Services["transform"]
	require.True(t, ok)
	assert.Len(t, svc.Units, 3)
	assert.Equal(t, "10.0.0.11", svc.Units["transform/0"].PublicAddress)

	assert.Equal(t, 0, unitNumber("transform/0"))
	assert.Equal(t, 12, unitNumber("transform/12"))
	assert.Equal(t, -1, unitNumber("transform/oops"))
	assert.Equal(t, -1, unitNumber("transform"))
}

func TestUnitStateMapping(t *testing.T) {
	tests := []struct {
		agent string
		want  types.UnitState
	}{
		{"started", types.UnitStarted},
		{"pending", types.UnitPending},
		{"installing", types.UnitPending},
		{"installed", types.UnitInstall},
		{"error", types.UnitError},
		{"install-error", types.UnitError},
		{"start-error", types.UnitError},
		{"stopped", types.UnitStopped},
		{"dying", types.UnitStopped},
		{"weird", types.UnitUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unitState(tt.agent), tt.agent)
	}
}

func TestSortedNumbersDesc(t *testing.T) {
	units := map[int]*types.Unit{4: {}, 0: {}, 7: {}, 2: {}}
	assert.Equal(t, []int{7, 4, 2, 0}, sortedNumbersDesc(units))
}
