/*
Package moby implements the engineclient.EngineClient interface for Docker/moby
engines, reaping containers, networks, and volumes.

	import "github.com/thediveo/whalereaper/engineclient/moby"
	mobyclient, _ := client.NewClientWithOpts(client.FromEnv)
	ec := moby.NewMobyReaper(mobyclient, moby.WithStopTimeout(2*time.Second))

Containers get killed using SIGKILL by default; use WithStopTimeout to
gracefully stop containers instead, where Docker kills containers only after
the timeout has passed.
*/
package moby
