package capacity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oscied/orchestra/pkg/types"
)

func planningTable(speedup int) *EventsTable {
	return NewEventsTable(map[int]map[string]int{
		8:  {types.ServiceTransform: 4, types.ServicePublisher: 2},
		18: {types.ServiceTransform: 1},
	}, 24, speedup)
}

func TestEventsTableLookup(t *testing.T) {
	table := planningTable(1)

	tests := []struct {
		name    string
		hours   int
		service string
		want    int
	}{
		{"before first entry wraps to last", 0, types.ServiceTransform, 1},
		{"exactly on entry", 8, types.ServiceTransform, 4},
		{"between entries inherits earlier", 12, types.ServiceTransform, 4},
		{"evening entry", 18, types.ServiceTransform, 1},
		{"late night keeps evening entry", 23, types.ServiceTransform, 1},
		{"publisher inherits across missing hours", 20, types.ServicePublisher, 2},
		{"unplanned service", 12, "unknown", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := table.Start.Add(time.Duration(tt.hours)*time.Hour + time.Minute)
			assert.Equal(t, tt.want, table.Lookup(now, tt.service))
		})
	}
}

func TestEventsTableSimHourSpeedup(t *testing.T) {
	table := planningTable(60)

	// With a speedup of 60 a wall minute covers a simulated hour. The extra
	// seconds keep the float conversion away from the hour boundary.
	assert.Equal(t, 0, table.SimHour(table.Start))
	assert.Equal(t, 8, table.SimHour(table.Start.Add(8*time.Minute+time.Second)))
	assert.Equal(t, 1, table.SimHour(table.Start.Add(25*time.Minute+time.Second)), "wraps past the cycle")
}

func TestEventsTableTickInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, planningTable(1).TickInterval(12))
	assert.Equal(t, 5*time.Second, planningTable(60).TickInterval(12))
	// Never ticks faster than once a second.
	assert.Equal(t, time.Second, planningTable(3600).TickInterval(12))
}

func TestEventsTableEmpty(t *testing.T) {
	table := NewEventsTable(nil, 0, 0)
	assert.Equal(t, 24, table.TimeRange)
	assert.Equal(t, 1, table.Speedup)
	assert.Zero(t, table.Lookup(time.Now(), types.ServiceTransform))
}
