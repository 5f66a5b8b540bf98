package capacity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/types"
)

func TestControllerConvergence(t *testing.T) {
	adapter := cluster.NewSimAdapter(2)
	ctrl := NewController("amazon", adapter, planningTable(1), 12, nil)

	// The table plans transform units for every hour, so a pass scales the
	// empty simulator up and further passes let the units start.
	ctrl.ReconcileOnce()
	units, err := adapter.Units(context.Background(), types.ServiceTransform)
	require.NoError(t, err)
	assert.NotEmpty(t, units)

	ctrl.ReconcileOnce()
	ctrl.ReconcileOnce()
	units, err = adapter.Units(context.Background(), types.ServiceTransform)
	require.NoError(t, err)
	for _, u := range units {
		assert.Equal(t, types.UnitStarted, u.State)
	}
}

func TestControllerStableWhenConverged(t *testing.T) {
	adapter := cluster.NewSimAdapter(0)
	ctrl := NewController("amazon", adapter, planningTable(1), 12, nil)

	ctrl.ReconcileOnce()
	units, err := adapter.Units(context.Background(), types.ServiceTransform)
	require.NoError(t, err)
	before := len(units)

	ctrl.ReconcileOnce()
	units, err = adapter.Units(context.Background(), types.ServiceTransform)
	require.NoError(t, err)
	assert.Len(t, units, before)
}

func TestControllerResolvesErroredUnitOnce(t *testing.T) {
	adapter := cluster.NewSimAdapter(0)
	require.NoError(t, adapter.EnsureNumUnits(context.Background(), types.ServiceTransform, 1))
	adapter.SetUnitState(types.ServiceTransform, 0, types.UnitError)

	ctrl := NewController("amazon", adapter, planningTable(1), 12, nil)
	ctrl.ReconcileOnce()
	assert.Len(t, adapter.Resolves, 1, "errored unit gets a hint")

	// The hint moved the unit out of error, the next passes stay quiet.
	ctrl.ReconcileOnce()
	ctrl.ReconcileOnce()
	assert.Len(t, adapter.Resolves, 1)

	// A relapse after recovery re-arms the hint.
	adapter.SetUnitState(types.ServiceTransform, 0, types.UnitError)
	ctrl.ReconcileOnce()
	assert.Len(t, adapter.Resolves, 2)
}

func TestControllerPublishesCapacityEvents(t *testing.T) {
	evs := events.NewBroker()
	evs.Start()
	defer evs.Stop()
	sub := evs.Subscribe()

	// One errored unit against a plan of two: the pass both scales the
	// service and sends a resolved hint.
	adapter := cluster.NewSimAdapter(0)
	require.NoError(t, adapter.EnsureNumUnits(context.Background(), types.ServiceTransform, 1))
	adapter.SetUnitState(types.ServiceTransform, 0, types.UnitError)

	table := NewEventsTable(map[int]map[string]int{0: {types.ServiceTransform: 2}}, 24, 1)
	ctrl := NewController("amazon", adapter, table, 12, evs)
	ctrl.ReconcileOnce()

	got := map[events.EventType]bool{}
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-sub:
				got[e.Type] = true
			default:
				return got[events.EventUnitsScaled] && got[events.EventUnitResolved]
			}
		}
	}, time.Second, 10*time.Millisecond)
}
