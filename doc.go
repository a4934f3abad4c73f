/*
Package whalereaper reaps the ephemeral containers, networks, and volumes that
test sessions leave behind on container engines, such as Docker and containerd.
Test code registers the resources it creates with a reaper and the reaper then
guarantees to remove them at the end of a session, even if individual engine
operations fail, time out, or resources have already been removed by other
means.

In addition to explicitly registered resources, reapers can sweep resources
by label filters. This allows to recover from crashed sessions that lost their
registrations: as long as the resources were labelled, a later session (or the
whalereaper command) can sweep them.

# Reaper

A [github.com/thediveo/whalereaper/reaper.Reaper] is explicitly created for a
specific container engine and then passed to those test parts that create
engine resources. Please refer to example/main.go as an example:

	package main

	import (
	    "context"
	    "fmt"

	    "github.com/thediveo/whalereaper/reaper/moby"
	)

	func main() {
	    reaper, err := moby.New("unix:///var/run/docker.sock", nil)
	    if err != nil {
	        panic(err)
	    }
	    defer reaper.Close()

	    // ...create a container, then register it for cleanup.
	    reaper.RegisterContainer(id, "busybox:latest")

	    report := reaper.PerformCleanup(context.Background())
	    fmt.Println(report)
	}

# Information Model

  - A [Registry] keeps the [Resource] objects registered for cleanup, as well
    as the cleanup [Filter] objects.
  - A [Resource] is of a specific [Kind]: [Container], [Network], or [Volume].
  - A [Filter] is an ordered set of [LabelPair] objects; resources match a
    filter only when they match all label pairs.

Resource objects are immutable; a resource of a specific kind and ID gets
registered only once, later registrations of the same resource are ignored.
*/
package whalereaper
