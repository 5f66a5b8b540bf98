/*
Package capacity keeps worker capacity aligned with a planning table.

An EventsTable plans units per service over a repeating simulated day:

	time_range: 24
	speedup: 60
	entries:
	  8:  {transform: 4, publisher: 2}
	  18: {transform: 1}

Hours without an entry inherit the most recent earlier one, wrapping past
midnight, so the 02:00 lookup above yields the 18:00 plan. The speedup
compresses wall time for demonstrations: at 60, a wall minute covers a
simulated hour.

# Controller

One Controller runs per environment. On every tick it looks up the planned
units for each managed service, compares with the adapter's current units,
and scales when they differ. Errored units get a single resolved hint; the
hint is re-armed only after the unit leaves the error state, so a unit that
keeps failing is not hammered with retries.

Ticks are sized so each simulated hour is checked a configured number of
times, never faster than once a second. A tick arriving while the previous
reconciliation still runs is skipped rather than queued.
*/
package capacity
