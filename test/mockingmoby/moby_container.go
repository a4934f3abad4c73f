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

package mockingmoby

import (
	"context"
	"fmt"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
)

// ContainerInspect returns details about a particular mocked container.
func (mm *MockingMoby) ContainerInspect(ctx context.Context, nameorid string) (container.InspectResponse, error) {
	if err := mm.enter(ctx, ContainerInspectPre, nameorid); err != nil {
		return container.InspectResponse{}, err
	}
	mm.mux.RLock()
	c, ok := mm.lookup(nameorid)
	mm.mux.RUnlock()
	if err := callHook(ctx, ContainerInspectPost, nameorid); err != nil {
		return container.InspectResponse{}, err
	}
	if !ok {
		return container.InspectResponse{}, fmt.Errorf("no such container: %s: %w",
			nameorid, cerrdefs.ErrNotFound)
	}
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:   c.ID,
			Name: "/" + c.Name,
			State: &container.State{
				Running: c.alive(),
				Paused:  c.Status == MockedPaused,
				Dead:    c.Status == MockedDead,
				Pid:     c.PID,
			},
		},
		Config: &container.Config{
			Labels: cloneLabels(c.Labels),
		},
	}, nil
}

// ContainerList returns the list of currently known containers, honoring only
// the "label" filter arguments. Without the "All" option, only alive
// containers are listed.
func (mm *MockingMoby) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	if err := mm.enter(ctx, ContainerListPre, ""); err != nil {
		return nil, err
	}
	labelargs := options.Filters.Get("label")
	mm.mux.RLock()
	cntrs := make([]container.Summary, 0, len(mm.containers))
	for _, c := range mm.containers {
		if !options.All && !c.alive() {
			continue
		}
		if !matches(labelargs, c.Labels) {
			continue
		}
		cntrs = append(cntrs, container.Summary{
			ID:     c.ID,
			Names:  []string{"/" + c.Name},
			Labels: cloneLabels(c.Labels),
		})
	}
	mm.mux.RUnlock()
	if err := callHook(ctx, ContainerListPost, ""); err != nil {
		return nil, err
	}
	return cntrs, nil
}

// ContainerKill kills a mocked container, which must be alive; otherwise, a
// conflict error is returned, as with a real Docker engine. The signal is
// ignored, a mocked container always dies.
func (mm *MockingMoby) ContainerKill(ctx context.Context, nameorid string, signal string) error {
	if err := mm.enter(ctx, ContainerKillPre, nameorid); err != nil {
		return err
	}
	mm.mux.Lock()
	defer mm.mux.Unlock()
	c, ok := mm.lookup(nameorid)
	if !ok {
		return fmt.Errorf("no such container: %s: %w", nameorid, cerrdefs.ErrNotFound)
	}
	if !c.alive() {
		return fmt.Errorf("cannot kill container: %s: container %s is not running: %w",
			nameorid, c.ID, cerrdefs.ErrConflict)
	}
	c.Status = MockedExited
	c.PID = 0
	mm.containers[c.ID] = c
	return nil
}

// ContainerStop stops a mocked container; stopping an already stopped
// container is not an error.
func (mm *MockingMoby) ContainerStop(ctx context.Context, nameorid string, options container.StopOptions) error {
	if err := mm.enter(ctx, ContainerStopPre, nameorid); err != nil {
		return err
	}
	mm.mux.Lock()
	defer mm.mux.Unlock()
	c, ok := mm.lookup(nameorid)
	if !ok {
		return fmt.Errorf("no such container: %s: %w", nameorid, cerrdefs.ErrNotFound)
	}
	if c.Status != MockedRemoving {
		c.Status = MockedExited
	}
	c.PID = 0
	mm.containers[c.ID] = c
	return nil
}

// ContainerRemove removes a mocked container, which must not be alive unless
// forced. Removing a container that is already being removed returns the same
// conflict error as a real Docker engine.
func (mm *MockingMoby) ContainerRemove(ctx context.Context, nameorid string, options container.RemoveOptions) error {
	if err := mm.enter(ctx, ContainerRemovePre, nameorid); err != nil {
		return err
	}
	mm.mux.Lock()
	c, ok := mm.lookup(nameorid)
	var err error
	switch {
	case !ok:
		err = fmt.Errorf("no such container: %s: %w", nameorid, cerrdefs.ErrNotFound)
	case c.Status == MockedRemoving:
		err = fmt.Errorf("removal of container %s is already in progress: %w",
			nameorid, cerrdefs.ErrConflict)
	case c.alive() && !options.Force:
		err = fmt.Errorf("cannot remove container %q: container is %s: stop the container before removing or force remove: %w",
			"/"+c.Name, MockedStatus[c.Status], cerrdefs.ErrConflict)
	default:
		mm.remove(c.ID)
	}
	mm.mux.Unlock()
	if herr := callHook(ctx, ContainerRemovePost, nameorid); herr != nil {
		return herr
	}
	return err
}
