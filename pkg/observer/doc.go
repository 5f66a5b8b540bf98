/*
Package observer samples environment health for monitoring.

One Observer runs per environment, independently from the capacity
controller, so observation keeps working when scaling is wedged. Each tick
it records, per managed service, the planned unit count, the current units
bucketed by state, and the live task counts, into a bounded ring of
samples.

Rings are persisted to the statistics database (bbolt, one bucket per
environment and service) after every sample and restored at startup, so a
restart does not lose the recent history. The ring length defaults to
thirty samples per simulated hour.
*/
package observer
