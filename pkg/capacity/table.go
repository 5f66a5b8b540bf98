package capacity

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oscied/orchestra/pkg/types"
)

// EventsTable plans worker capacity over a repeating simulated day. Entries
// map an hour to the number of units each service should run from that hour
// on; hours without an entry inherit the most recent earlier one, wrapping
// past midnight.
type EventsTable struct {
	// Entries is hour → service → planned units.
	Entries map[int]map[string]int `yaml:"entries"`
	// TimeRange is the cycle length in simulated hours, typically 24.
	TimeRange int `yaml:"time_range"`
	// Speedup compresses wall time: one wall hour covers Speedup
	// simulated hours.
	Speedup int `yaml:"speedup"`

	// Start anchors the simulated clock, defaulting to creation time.
	Start time.Time `yaml:"-"`
}

// NewEventsTable creates a table anchored now
func NewEventsTable(entries map[int]map[string]int, timeRange, speedup int) *EventsTable {
	if timeRange <= 0 {
		timeRange = 24
	}
	if speedup <= 0 {
		speedup = 1
	}
	return &EventsTable{Entries: entries, TimeRange: timeRange, Speedup: speedup, Start: time.Now()}
}

// LoadEventsTable reads a table from a YAML file.
func LoadEventsTable(path string) (*EventsTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Wrap(types.ErrInvalid, "read events table", err)
	}
	var t EventsTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, types.Wrap(types.ErrInvalid, "parse events table", err)
	}
	return NewEventsTable(t.Entries, t.TimeRange, t.Speedup), nil
}

// SimHour returns the simulated hour of the cycle at a wall-clock instant.
func (t *EventsTable) SimHour(now time.Time) int {
	elapsed := now.Sub(t.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	simHours := int(elapsed.Hours() * float64(t.Speedup))
	return simHours % t.TimeRange
}

// Lookup returns the planned units for a service, taking the latest entry
// at or before the current simulated hour and wrapping to the end of the
// cycle when the early hours have no entry yet.
func (t *EventsTable) Lookup(now time.Time, service string) int {
	hour := t.SimHour(now)
	for i := 0; i < t.TimeRange; i++ {
		h := hour - i
		if h < 0 {
			h += t.TimeRange
		}
		if entry, ok := t.Entries[h]; ok {
			if planned, ok := entry[service]; ok {
				return planned
			}
		}
	}
	return 0
}

// TickInterval returns the wall-clock delay between reconciliations so that
// each simulated hour is checked checksPerHour times.
func (t *EventsTable) TickInterval(checksPerHour int) time.Duration {
	if checksPerHour <= 0 {
		checksPerHour = 1
	}
	wallHour := time.Hour / time.Duration(t.Speedup)
	tick := wallHour / time.Duration(checksPerHour)
	if tick < time.Second {
		tick = time.Second
	}
	return tick
}
