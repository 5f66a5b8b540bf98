/*
Package cluster drives the worker units of the registered environments.

Adapter is the per-environment interface: scale a service to a number of
units, list the current units, destroy one, and mark an errored unit for
retry. The Registry maps environment names to their adapters and is rebuilt
from the store at startup.

JujuAdapter is the production implementation, shelling out to the juju CLI
(the only interface juju exposes) and parsing its YAML status. Scaling down
removes the highest-numbered units first and terminates their machines so
cloud instances are not left running idle.

SimAdapter simulates an environment in process for tests and mock mode.
Fresh units spend a configurable number of status polls pending before
starting, which lets tests observe convergence over several reconciliation
ticks, and unit states can be forced to inject failures.
*/
package cluster
