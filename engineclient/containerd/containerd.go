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

package containerd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/api/services/tasks/v1"
	"github.com/containerd/containerd/api/types/task"
	cderrdefs "github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/pkg/errors"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/engineclient"
	"golang.org/x/sys/unix"
)

// Type specifies this container engine's type identifier.
const Type = "containerd.io"

// DockerNamespace is the name of the containerd namespace used by Docker for
// its own containers (and tasks). As the whalereaper module has a dedicated
// Docker engine client, we need to skip this namespace: Docker containers
// must be torn down by the Docker daemon, otherwise it gets confused.
const DockerNamespace = "moby"

// nsdelemiter is the delemiter used to separate a containerd namespace from a
// containerd ID.
const nsdelemiter = "/"

// ContainerdReaper is a containerd EngineClient for interfacing the generic
// reaping with containerd daemons. containerd only knows of containers (and
// their tasks), so networks and volumes are unsupported.
type ContainerdReaper struct {
	client *containerd.Client // containerd API client.
}

// NewContainerdReaper returns a new ContainerdReaper using the specified
// containerd engine client; normally, you would want to use this lower-level
// constructor only in unit tests.
func NewContainerdReaper(client *containerd.Client, opts ...NewOption) *ContainerdReaper {
	cr := &ContainerdReaper{
		client: client,
	}
	for _, opt := range opts {
		opt(cr)
	}
	return cr
}

// Make sure that the EngineClient interface is fully implemented
var _ (engineclient.EngineClient) = (*ContainerdReaper)(nil)

// NewOption represents options to NewContainerdReaper when creating new
// reaper engine clients for containerd engines.
type NewOption func(*ContainerdReaper)

// ID returns the (more or less) unique engine identifier; the exact format is
// engine-specific.
func (cr *ContainerdReaper) ID(ctx context.Context) string {
	serverinfo, err := cr.client.Server(ctx)
	if err != nil {
		// Older containerd versions before 1.3(?) don't support the server
		// information API.
		return ""
	}
	return serverinfo.UUID
}

// Type returns the type identifier for this container engine.
func (cr *ContainerdReaper) Type() string { return Type }

// API returns the container engine API path.
func (cr *ContainerdReaper) API() string { return cr.client.Conn().Target() }

// Client returns the underlying engine client.
func (cr *ContainerdReaper) Client() *containerd.Client { return cr.client }

// Close cleans up and release any engine client resources, if necessary.
func (cr *ContainerdReaper) Close() {
	cr.client.Close()
}

// Inspect the state of a container, given its display ID. A container counts
// as running as long as it has a task that hasn't stopped yet.
func (cr *ContainerdReaper) Inspect(ctx context.Context, kind whalereaper.Kind, nameorid string) (whalereaper.State, error) {
	if kind != whalereaper.Container {
		return whalereaper.State{}, engineclient.NewUnsupportedKindError(kind, Type)
	}
	namespace, id := decodeDisplayID(nameorid)
	nsctx := namespaces.WithNamespace(ctx, namespace)
	if _, err := cr.client.ContainerService().Get(nsctx, id); err != nil {
		return whalereaper.State{}, normalizeError(err)
	}
	resp, err := cr.client.TaskService().Get(nsctx, &tasks.GetRequest{ContainerID: id})
	if err != nil {
		if cderrdefs.IsNotFound(err) {
			// a container without a task.
			return whalereaper.State{}, nil
		}
		return whalereaper.State{}, normalizeError(err)
	}
	return whalereaper.State{Running: isAlive(resp.Process)}, nil
}

// Stop a container by killing all the processes of its task. Stopping a
// container without a task is a no-op.
func (cr *ContainerdReaper) Stop(ctx context.Context, kind whalereaper.Kind, nameorid string) error {
	if kind != whalereaper.Container {
		return engineclient.NewUnsupportedKindError(kind, Type)
	}
	namespace, id := decodeDisplayID(nameorid)
	nsctx := namespaces.WithNamespace(ctx, namespace)
	_, err := cr.client.TaskService().Kill(nsctx, &tasks.KillRequest{
		ContainerID: id,
		Signal:      uint32(unix.SIGKILL),
		All:         true,
	})
	if err != nil && !cderrdefs.IsNotFound(err) {
		return normalizeError(err)
	}
	return nil
}

// Remove a container by first deleting its task, if any, and then the
// container itself. When forced, a still running task gets killed. When
// asked to also remove volumes, the container's snapshot gets cleaned up.
func (cr *ContainerdReaper) Remove(ctx context.Context, kind whalereaper.Kind, nameorid string, opts engineclient.RemoveOptions) error {
	if kind != whalereaper.Container {
		return engineclient.NewUnsupportedKindError(kind, Type)
	}
	namespace, id := decodeDisplayID(nameorid)
	nsctx := namespaces.WithNamespace(ctx, namespace)
	cntr, err := cr.client.LoadContainer(nsctx, id)
	if err != nil {
		return normalizeError(err)
	}
	tsk, err := cntr.Task(nsctx, nil)
	switch {
	case err == nil:
		var delopts []containerd.ProcessDeleteOpts
		if opts.Force {
			delopts = append(delopts, containerd.WithProcessKill)
		}
		if _, err := tsk.Delete(nsctx, delopts...); err != nil && !cderrdefs.IsNotFound(err) {
			return normalizeError(errors.Wrapf(err, "cannot delete task of container %s", nameorid))
		}
	case !cderrdefs.IsNotFound(err):
		return normalizeError(err)
	}
	var delopts []containerd.DeleteOpts
	if opts.Volumes {
		delopts = append(delopts, containerd.WithSnapshotCleanup)
	}
	return normalizeError(cntr.Delete(nsctx, delopts...))
}

// ListByLabels returns the display IDs of all containers matching the
// specified label filter, in all namespaces except Docker's.
func (cr *ContainerdReaper) ListByLabels(ctx context.Context, kind whalereaper.Kind, filter whalereaper.Filter) ([]string, error) {
	if kind != whalereaper.Container {
		return nil, engineclient.NewUnsupportedKindError(kind, Type)
	}
	if len(filter) == 0 {
		return nil, nil
	}
	// As containerd organizes containers (and tasks) into so-called
	// "spaces" (argh, yet another kind of "namespace"!) we first need to
	// iterate them all.
	spaces, err := cr.client.NamespaceService().List(ctx)
	if err != nil {
		return nil, normalizeError(errors.Wrap(err, "cannot list namespaces"))
	}
	expr := labelFilterExpr(filter)
	ids := []string{}
	for _, namespace := range spaces {
		if namespace == DockerNamespace {
			continue
		}
		nsctx := namespaces.WithNamespace(ctx, namespace)
		cntrs, err := cr.client.ContainerService().List(nsctx, expr)
		if err != nil {
			return nil, normalizeError(errors.Wrapf(err,
				"cannot list containers in namespace %s matching %s", namespace, filter))
		}
		for _, cntr := range cntrs {
			ids = append(ids, displayID(namespace, cntr.ID))
		}
	}
	return ids, nil
}

// isAlive returns true if the task process hasn't stopped yet.
func isAlive(proc *task.Process) bool {
	if proc == nil {
		return false
	}
	switch proc.Status {
	case task.Status_CREATED, task.Status_RUNNING, task.Status_PAUSING, task.Status_PAUSED:
		return true
	}
	return false
}

// labelFilterExpr returns the containerd filter expression matching all the
// label pairs of the specified filter. Please note that strings need to be
// enclosed in quotes, otherwise silent fail...
func labelFilterExpr(filter whalereaper.Filter) string {
	exprs := make([]string, 0, len(filter))
	for _, pair := range filter {
		expr := "labels." + strconv.Quote(pair.Key)
		if pair.Value != "" {
			expr += "==" + strconv.Quote(pair.Value)
		}
		exprs = append(exprs, expr)
	}
	return strings.Join(exprs, ",")
}

// normalizeError maps the containerd client's own error definitions onto the
// engine-neutral containerd/errdefs ones the reaper checks for.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	var class error
	switch {
	case cderrdefs.IsNotFound(err):
		class = cerrdefs.ErrNotFound
	case cderrdefs.IsAlreadyExists(err):
		class = cerrdefs.ErrAlreadyExists
	case cderrdefs.IsFailedPrecondition(err):
		class = cerrdefs.ErrConflict
	case cderrdefs.IsUnavailable(err):
		class = cerrdefs.ErrUnavailable
	case cderrdefs.IsNotImplemented(err):
		class = cerrdefs.ErrNotImplemented
	case cderrdefs.IsInvalidArgument(err):
		class = cerrdefs.ErrInvalidArgument
	default:
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}

// displayID takes a containerd namespace and container ID and returns a
// displayable ID for it.
func displayID(namespace, id string) string {
	if namespace == "default" {
		return id
	}
	return namespace + nsdelemiter + id
}

// decodeDisplayID splits a displayable ID into its containerd namespace and
// container ID elements.
func decodeDisplayID(displayid string) (namespace, id string) {
	parts := strings.SplitN(displayid, nsdelemiter, 2)
	if len(parts) < 2 {
		return "default", displayid
	}
	return parts[0], parts[1]
}
