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
	"github.com/docker/docker/api/types/network"
)

// NetworkInspect returns details about a particular mocked network, ignoring
// the inspect options.
func (mm *MockingMoby) NetworkInspect(ctx context.Context, nameorid string, options network.InspectOptions) (network.Inspect, error) {
	if err := mm.enter(ctx, NetworkInspectPre, nameorid); err != nil {
		return network.Inspect{}, err
	}
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	n, ok := mm.lookupNetwork(nameorid)
	if !ok {
		return network.Inspect{}, fmt.Errorf("network %s not found: %w", nameorid, cerrdefs.ErrNotFound)
	}
	return mockedNetwork(n), nil
}

// NetworkList returns the list of currently known networks, honoring only the
// "label" filter arguments.
func (mm *MockingMoby) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	if err := mm.enter(ctx, NetworkListPre, ""); err != nil {
		return nil, err
	}
	labelargs := options.Filters.Get("label")
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	netws := make([]network.Summary, 0, len(mm.networks))
	for _, n := range mm.networks {
		if !matches(labelargs, n.Labels) {
			continue
		}
		netws = append(netws, mockedNetwork(n))
	}
	return netws, nil
}

// NetworkRemove removes a mocked network, but only if there are no more
// containers attached to it.
func (mm *MockingMoby) NetworkRemove(ctx context.Context, nameorid string) error {
	if err := mm.enter(ctx, NetworkRemovePre, nameorid); err != nil {
		return err
	}
	mm.mux.Lock()
	defer mm.mux.Unlock()
	n, ok := mm.lookupNetwork(nameorid)
	if !ok {
		return fmt.Errorf("network %s not found: %w", nameorid, cerrdefs.ErrNotFound)
	}
	if len(n.Containers) != 0 {
		return fmt.Errorf("error while removing network: network %s id %s has active endpoints: %w",
			n.Name, n.ID, cerrdefs.ErrConflict)
	}
	delete(mm.networks, n.ID)
	delete(mm.netnames, n.Name)
	return nil
}

func mockedNetwork(n MockedNetwork) network.Inspect {
	endpoints := map[string]network.EndpointResource{}
	for _, id := range n.Containers {
		endpoints[id] = network.EndpointResource{}
	}
	return network.Inspect{
		ID:         n.ID,
		Name:       n.Name,
		Labels:     cloneLabels(n.Labels),
		Containers: endpoints,
	}
}
