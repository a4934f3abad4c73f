/*
Package reaper tears down the ephemeral containers, networks, and volumes
registered with it, as well as those matching registered label filters.

Creating reapers for specific container engines preferably should be done using
a particular container engine's New convenience function, such as:

	import "github.com/thediveo/whalereaper/reaper/moby"
	r, err := moby.New("", nil)

# Cleanup

Every resource is torn down on a best-effort basis: the reaper first inspects
it and is done in case the resource doesn't exist (anymore). Otherwise, it
stops any processes, inspects again, and finally forcefully removes the
resource together with any ephemeral storage attached to it. A removal already
in progress by someone else counts as success. Engine errors of individual
resources never abort a cleanup pass; instead, they're reported in the pass'
Report.

Within a single pass, containers are reaped first, then networks, and finally
volumes, as engines refuse to remove networks and volumes still in use by
containers. Resources of the same kind get reaped in parallel.

Once the cleanup of an individual resource has started, it isn't cancelled
anymore by the pass context, but each engine call is instead bounded by a
per-call timeout. Resources whose cleanup didn't start before the pass context
was done are reported as skipped and stay registered for the next pass.

# Shutdown

CleanupOnSignal runs a cleanup pass when the process receives an interrupt or
termination signal.
*/
package reaper
