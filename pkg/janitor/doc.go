/*
Package janitor cleans up after misbehaving workers.

Three sweeps run on every tick:

  - Stalled tasks: a transformation task in PROGRESS whose eta_time
    statistic has not changed for the configured window is revoked and its
    pending output media discarded.
  - Orphaned outputs: a pending output media (one with a parent) whose task
    vanished or finished without cleaning up is deleted after a grace
    period.
  - Output bound: optionally, the oldest READY transformation outputs
    beyond a configured count are deleted, oldest first.

The janitor tracks first-seen times in memory, so a restart simply restarts
the stall and grace clocks; it never deletes anything it has not watched
for a full window.
*/
package janitor
