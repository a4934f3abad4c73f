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

package cri

import (
	"context"
	"fmt"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/pkg/errors"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/engineclient"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	runtimev1 "k8s.io/cri-api/pkg/apis/runtime/v1"
)

// Type specifies this container engine's type identifier.
const Type = "k8s.io/cri-api"

// RuntimeClient is a CRI API client offering the runtime service. For
// production, our very own Client is a compatible implementation.
type RuntimeClient interface {
	RuntimeService() runtimev1.RuntimeServiceClient
	Address() string
	Close() error
}

// CRIReaper is a CRI EngineClient for interfacing the generic reaping with
// container engines that support the CRI API. Oh, it's “CRI”, not “Cri”. As
// the CRI API only knows of pod sandboxes and containers, networks and volumes
// are unsupported.
type CRIReaper struct {
	pid         int           // optional engine PID when known.
	client      RuntimeClient // CRI API client.
	stoptimeout time.Duration // graceful stop timeout; zero means: kill.
}

// NewCRIReaper returns a new CRIReaper using the specified CRI API client;
// normally, you would want to use this lower-level constructor only in unit
// tests.
func NewCRIReaper(client RuntimeClient, opts ...NewOption) *CRIReaper {
	cr := &CRIReaper{
		client: client,
	}
	for _, opt := range opts {
		opt(cr)
	}
	return cr
}

// Make sure that the EngineClient interface is fully implemented
var _ (engineclient.EngineClient) = (*CRIReaper)(nil)

// NewOption represents options to NewCRIReaper when creating new reaper
// engine clients for CRI-supporting container engines.
type NewOption func(*CRIReaper)

// WithPID sets the engine's PID when known.
func WithPID(pid int) NewOption {
	return func(cr *CRIReaper) {
		cr.pid = pid
	}
}

// WithStopTimeout gracefully stops containers, only killing them after the
// specified timeout. A zero timeout immediately kills containers, which is the
// default.
func WithStopTimeout(d time.Duration) NewOption {
	return func(cr *CRIReaper) {
		cr.stoptimeout = d
	}
}

// ID returns the host name of the engine's UTS namespace, as CRI doesn't
// (directly) support container engine identifications. When the engine PID
// is unknown, the host name of our own UTS namespace is returned instead.
func (cr *CRIReaper) ID(ctx context.Context) string {
	return engineHostname(cr.pid)
}

// Type returns the type identifier for this container engine.
func (cr *CRIReaper) Type() string { return Type }

// API returns the container engine API path.
func (cr *CRIReaper) API() string { return cr.client.Address() }

// PID returns the container engine PID, when known.
func (cr *CRIReaper) PID() int { return cr.pid }

// Client returns the underlying engine client.
func (cr *CRIReaper) Client() RuntimeClient { return cr.client }

// Close cleans up and release any engine client resources, if necessary.
func (cr *CRIReaper) Close() {
	_ = cr.client.Close()
}

// Inspect the state of a container. Only running containers are reported as
// running; created containers haven't any processes yet.
func (cr *CRIReaper) Inspect(ctx context.Context, kind whalereaper.Kind, nameorid string) (whalereaper.State, error) {
	if kind != whalereaper.Container {
		return whalereaper.State{}, engineclient.NewUnsupportedKindError(kind, Type)
	}
	resp, err := cr.client.RuntimeService().ContainerStatus(ctx, &runtimev1.ContainerStatusRequest{
		ContainerId: nameorid,
	})
	if err != nil {
		return whalereaper.State{}, normalizeError(err)
	}
	if resp.Status == nil {
		return whalereaper.State{}, fmt.Errorf("%w: container %s", cerrdefs.ErrNotFound, nameorid)
	}
	return whalereaper.State{
		Running: resp.Status.State == runtimev1.ContainerState_CONTAINER_RUNNING,
	}, nil
}

// Stop a container, either killing it outright or gracefully stopping it,
// depending on the configured stop timeout. Stopping a container that is gone
// is not an error.
func (cr *CRIReaper) Stop(ctx context.Context, kind whalereaper.Kind, nameorid string) error {
	if kind != whalereaper.Container {
		return engineclient.NewUnsupportedKindError(kind, Type)
	}
	_, err := cr.client.RuntimeService().StopContainer(ctx, &runtimev1.StopContainerRequest{
		ContainerId: nameorid,
		Timeout:     int64(cr.stoptimeout.Round(time.Second) / time.Second),
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return normalizeError(err)
	}
	return nil
}

// Remove a container. CRI always forcefully removes containers, so the remove
// options are of no consequence.
func (cr *CRIReaper) Remove(ctx context.Context, kind whalereaper.Kind, nameorid string, opts engineclient.RemoveOptions) error {
	if kind != whalereaper.Container {
		return engineclient.NewUnsupportedKindError(kind, Type)
	}
	_, err := cr.client.RuntimeService().RemoveContainer(ctx, &runtimev1.RemoveContainerRequest{
		ContainerId: nameorid,
	})
	return normalizeError(err)
}

// ListByLabels returns the IDs of all containers, regardless of their state,
// matching the specified label filter. As the CRI label selector only knows
// about exact label values, presence-only label pairs get matched by us.
func (cr *CRIReaper) ListByLabels(ctx context.Context, kind whalereaper.Kind, filter whalereaper.Filter) ([]string, error) {
	if kind != whalereaper.Container {
		return nil, engineclient.NewUnsupportedKindError(kind, Type)
	}
	if len(filter) == 0 {
		return nil, nil
	}
	selector := map[string]string{}
	for _, pair := range filter {
		if pair.Value != "" {
			selector[pair.Key] = pair.Value
		}
	}
	resp, err := cr.client.RuntimeService().ListContainers(ctx, &runtimev1.ListContainersRequest{
		Filter: &runtimev1.ContainerFilter{LabelSelector: selector},
	})
	if err != nil {
		return nil, normalizeError(errors.Wrapf(err, "cannot list containers matching %s", filter))
	}
	ids := []string{}
	for _, cntr := range resp.Containers {
		if !filter.Matches(cntr.Labels) {
			continue
		}
		ids = append(ids, cntr.Id)
	}
	return ids, nil
}

// grpcErrors maps gRPC status codes onto the engine-neutral error
// definitions.
var grpcErrors = map[codes.Code]error{
	codes.NotFound:           cerrdefs.ErrNotFound,
	codes.AlreadyExists:      cerrdefs.ErrAlreadyExists,
	codes.FailedPrecondition: cerrdefs.ErrConflict,
	codes.Aborted:            cerrdefs.ErrAborted,
	codes.Unavailable:        cerrdefs.ErrUnavailable,
	codes.ResourceExhausted:  cerrdefs.ErrResourceExhausted,
	codes.DeadlineExceeded:   context.DeadlineExceeded,
	codes.Unimplemented:      cerrdefs.ErrNotImplemented,
	codes.InvalidArgument:    cerrdefs.ErrInvalidArgument,
	codes.Internal:           cerrdefs.ErrInternal,
	codes.Unknown:            cerrdefs.ErrUnknown,
}

// normalizeError maps gRPC status errors onto the containerd/errdefs errors
// the reaper checks for.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	class, ok := grpcErrors[status.Code(err)]
	if !ok {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}
