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
	"github.com/docker/docker/api/types/volume"
)

// VolumeInspect returns details about a particular mocked volume.
func (mm *MockingMoby) VolumeInspect(ctx context.Context, name string) (volume.Volume, error) {
	if err := mm.enter(ctx, VolumeInspectPre, name); err != nil {
		return volume.Volume{}, err
	}
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	v, ok := mm.volumes[name]
	if !ok {
		return volume.Volume{}, fmt.Errorf("get %s: no such volume: %w", name, cerrdefs.ErrNotFound)
	}
	return mockedVolume(v), nil
}

// VolumeList returns the list of currently known volumes, honoring only the
// "label" filter arguments.
func (mm *MockingMoby) VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error) {
	if err := mm.enter(ctx, VolumeListPre, ""); err != nil {
		return volume.ListResponse{}, err
	}
	labelargs := options.Filters.Get("label")
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	vols := make([]*volume.Volume, 0, len(mm.volumes))
	for _, v := range mm.volumes {
		if !matches(labelargs, v.Labels) {
			continue
		}
		vol := mockedVolume(v)
		vols = append(vols, &vol)
	}
	return volume.ListResponse{Volumes: vols}, nil
}

// VolumeRemove removes a mocked volume, which must not be in use by any
// container unless forced.
func (mm *MockingMoby) VolumeRemove(ctx context.Context, name string, force bool) error {
	if err := mm.enter(ctx, VolumeRemovePre, name); err != nil {
		return err
	}
	mm.mux.Lock()
	defer mm.mux.Unlock()
	v, ok := mm.volumes[name]
	if !ok {
		return fmt.Errorf("get %s: no such volume: %w", name, cerrdefs.ErrNotFound)
	}
	if len(v.UsedBy) != 0 && !force {
		return fmt.Errorf("remove %s: volume is in use - %v: %w", name, v.UsedBy, cerrdefs.ErrConflict)
	}
	delete(mm.volumes, name)
	return nil
}

func mockedVolume(v MockedVolume) volume.Volume {
	return volume.Volume{
		Name:       v.Name,
		Driver:     "local",
		Scope:      "local",
		Mountpoint: "/var/lib/docker/volumes/" + v.Name + "/_data",
		Labels:     cloneLabels(v.Labels),
	}
}
