// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moby

import (
	"context"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/engineclient"
)

// Type specifies this container engine's type identifier.
const Type = "docker.com"

// MobyAPIClient is a Docker client offering the container, network, volume,
// and system APIs. For production, Docker's client.Client is a compatible
// implementation, for unit testing our very own mockingmoby.MockingMoby.
type MobyAPIClient interface {
	client.ContainerAPIClient
	client.NetworkAPIClient
	client.VolumeAPIClient
	client.SystemAPIClient
	DaemonHost() string
	Close() error
}

// MobyReaper is a Docker-engine EngineClient for interfacing the generic
// reaping with Docker daemons.
type MobyReaper struct {
	moby        MobyAPIClient // (minimal) moby engine API client.
	stoptimeout time.Duration // graceful stop timeout; zero means: kill.
	typ         string        // engine type identifier.
}

// Make sure that the EngineClient interface is fully implemented
var _ (engineclient.EngineClient) = (*MobyReaper)(nil)

// NewMobyReaper returns a new MobyReaper using the specified Docker engine
// client; typically, you would want to use this lower-level constructor only
// in unit tests and instead use reaper/moby.New instead in most use cases.
func NewMobyReaper(moby MobyAPIClient, opts ...NewOption) *MobyReaper {
	mr := &MobyReaper{
		moby: moby,
		typ:  Type,
	}
	for _, opt := range opts {
		opt(mr)
	}
	return mr
}

// NewOption represents options to NewMobyReaper when creating new reaper
// engine clients for moby engines.
type NewOption func(*MobyReaper)

// WithStopTimeout gracefully stops containers, only killing them after the
// specified timeout. A zero timeout immediately kills containers using
// SIGKILL, which is the default.
func WithStopTimeout(d time.Duration) NewOption {
	return func(mr *MobyReaper) {
		mr.stoptimeout = d
	}
}

// WithDemonType sets a different engine type identifier, such as for Podman
// serving the Docker API.
func WithDemonType(typeid string) NewOption {
	return func(mr *MobyReaper) {
		mr.typ = typeid
	}
}

// ID returns the (more or less) unique engine identifier; the exact format is
// engine-specific.
func (mr *MobyReaper) ID(ctx context.Context) string {
	info, err := mr.moby.Info(ctx)
	if err == nil {
		return info.ID
	}
	return ""
}

// Type returns the type identifier for this container engine.
func (mr *MobyReaper) Type() string { return mr.typ }

// API returns the container engine API path.
func (mr *MobyReaper) API() string { return mr.moby.DaemonHost() }

// Client returns the underlying engine client.
func (mr *MobyReaper) Client() MobyAPIClient { return mr.moby }

// Close cleans up and release any engine client resources, if necessary.
func (mr *MobyReaper) Close() {
	mr.moby.Close()
}

// Inspect the state of a container, network, or volume. Only containers can
// be running; networks and volumes never are.
func (mr *MobyReaper) Inspect(ctx context.Context, kind whalereaper.Kind, nameorid string) (whalereaper.State, error) {
	switch kind {
	case whalereaper.Container:
		details, err := mr.moby.ContainerInspect(ctx, nameorid)
		if err != nil {
			return whalereaper.State{}, err
		}
		if details.ContainerJSONBase == nil || details.State == nil {
			return whalereaper.State{}, nil
		}
		return whalereaper.State{
			Running: details.State.Running || details.State.Paused || details.State.Restarting,
		}, nil
	case whalereaper.Network:
		_, err := mr.moby.NetworkInspect(ctx, nameorid, network.InspectOptions{})
		return whalereaper.State{}, err
	case whalereaper.Volume:
		_, err := mr.moby.VolumeInspect(ctx, nameorid)
		return whalereaper.State{}, err
	}
	return whalereaper.State{}, engineclient.NewUnsupportedKindError(kind, mr.typ)
}

// Stop a container, either killing it outright or gracefully stopping it,
// depending on the configured stop timeout. Killing a container that isn't
// running is not an error. Stopping networks and volumes is a no-op.
func (mr *MobyReaper) Stop(ctx context.Context, kind whalereaper.Kind, nameorid string) error {
	switch kind {
	case whalereaper.Container:
		if mr.stoptimeout > 0 {
			secs := int(mr.stoptimeout.Round(time.Second) / time.Second)
			if secs == 0 {
				secs = 1
			}
			return mr.moby.ContainerStop(ctx, nameorid, container.StopOptions{Timeout: &secs})
		}
		err := mr.moby.ContainerKill(ctx, nameorid, "SIGKILL")
		if cerrdefs.IsConflict(err) && strings.Contains(err.Error(), "is not running") {
			// died in the meantime.
			return nil
		}
		return err
	case whalereaper.Network, whalereaper.Volume:
		return nil
	}
	return engineclient.NewUnsupportedKindError(kind, mr.typ)
}

// Remove a container, network, or volume. When removing containers,
// anonymous volumes get removed too if so requested.
func (mr *MobyReaper) Remove(ctx context.Context, kind whalereaper.Kind, nameorid string, opts engineclient.RemoveOptions) error {
	switch kind {
	case whalereaper.Container:
		return mr.moby.ContainerRemove(ctx, nameorid, container.RemoveOptions{
			RemoveVolumes: opts.Volumes,
			Force:         opts.Force,
		})
	case whalereaper.Network:
		return mr.moby.NetworkRemove(ctx, nameorid)
	case whalereaper.Volume:
		return mr.moby.VolumeRemove(ctx, nameorid, opts.Force)
	}
	return engineclient.NewUnsupportedKindError(kind, mr.typ)
}

// ListByLabels returns the IDs of the containers, networks, or volumes that
// match all label pairs of the specified filter. Containers are listed
// regardless of their state. Volumes are identified by their names, as Docker
// volumes have no IDs separate from their names.
func (mr *MobyReaper) ListByLabels(ctx context.Context, kind whalereaper.Kind, filter whalereaper.Filter) ([]string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	args := LabelFilterArgs(filter)
	var ids []string
	switch kind {
	case whalereaper.Container:
		containers, err := mr.moby.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot list containers matching %s", filter)
		}
		ids = make([]string, 0, len(containers))
		for _, cntr := range containers {
			ids = append(ids, cntr.ID)
		}
	case whalereaper.Network:
		networks, err := mr.moby.NetworkList(ctx, network.ListOptions{Filters: args})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot list networks matching %s", filter)
		}
		ids = make([]string, 0, len(networks))
		for _, netw := range networks {
			ids = append(ids, netw.ID)
		}
	case whalereaper.Volume:
		volumes, err := mr.moby.VolumeList(ctx, volume.ListOptions{Filters: args})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot list volumes matching %s", filter)
		}
		ids = make([]string, 0, len(volumes.Volumes))
		for _, vol := range volumes.Volumes {
			if vol == nil {
				continue
			}
			ids = append(ids, vol.Name)
		}
	default:
		return nil, engineclient.NewUnsupportedKindError(kind, mr.typ)
	}
	return ids, nil
}

// LabelFilterArgs returns the Docker API filter arguments for the specified
// label filter. Docker ANDs multiple "label" filter arguments.
func LabelFilterArgs(filter whalereaper.Filter) filters.Args {
	args := filters.NewArgs()
	for _, pair := range filter {
		args.Add("label", pair.String())
	}
	return args
}
