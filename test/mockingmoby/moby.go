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
	"sync"

	"github.com/docker/docker/client"
	"github.com/thediveo/whalereaper"
)

// MockingMoby is a mock Docker client implementing only listing, inspecting,
// stopping, killing, and removing containers, as well as listing, inspecting,
// and removing networks and volumes. All other service API methods will panic
// when tried, as they are not implemented.
type MockingMoby struct {
	client.ContainerAPIClient
	client.NetworkAPIClient
	client.VolumeAPIClient
	client.SystemAPIClient

	mux        sync.RWMutex
	containers map[string]MockedContainer // mocked containers by ID
	names      map[string]string          // maps container names to IDs
	networks   map[string]MockedNetwork   // mocked networks by ID
	netnames   map[string]string          // maps network names to IDs
	volumes    map[string]MockedVolume    // mocked volumes by name

	cmux  sync.Mutex
	calls map[HookKey][]string // API call log
}

// Ensure that all needed service API methods have been implemented.
var (
	_ client.ContainerAPIClient = (*MockingMoby)(nil)
	_ client.NetworkAPIClient   = (*MockingMoby)(nil)
	_ client.VolumeAPIClient    = (*MockingMoby)(nil)
	_ client.SystemAPIClient    = (*MockingMoby)(nil)
)

// NewMockingMoby returns a new instance of a mock Docker client.
func NewMockingMoby() *MockingMoby {
	return &MockingMoby{
		containers: map[string]MockedContainer{},
		names:      map[string]string{},
		networks:   map[string]MockedNetwork{},
		netnames:   map[string]string{},
		volumes:    map[string]MockedVolume{},
		calls:      map[HookKey][]string{},
	}
}

// NegotiateAPIVersion is a mock no-op.
func (mm *MockingMoby) NegotiateAPIVersion(ctx context.Context) {}

// DaemonHost returns the host address used by the client
func (mm *MockingMoby) DaemonHost() string { return "mock://mocked" }

// Close closes the mock client, releasing its internal resources.
func (mm *MockingMoby) Close() error {
	return nil
}

// isCtxCancelled returns an error if the specified Context is done, either
// having been cancelled our reached its deadline. Otherwise, returns nil.
func isCtxCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// enter logs an API call and then calls the API pre hook, if any. It returns
// the error of the context if done before or after calling the hook, or the
// error returned by the hook.
func (mm *MockingMoby) enter(ctx context.Context, key HookKey, nameorid string) error {
	if err := isCtxCancelled(ctx); err != nil {
		return err
	}
	mm.cmux.Lock()
	mm.calls[key] = append(mm.calls[key], nameorid)
	mm.cmux.Unlock()
	if err := callHook(ctx, key, nameorid); err != nil {
		return err
	}
	// the hook might have taken its time.
	return isCtxCancelled(ctx)
}

// Calls returns the number of API calls of the type identified by the
// specified pre hook key that were made for the specified resource name or ID.
// An empty nameorid counts all calls of this type.
func (mm *MockingMoby) Calls(key HookKey, nameorid string) int {
	mm.cmux.Lock()
	defer mm.cmux.Unlock()
	if nameorid == "" {
		return len(mm.calls[key])
	}
	count := 0
	for _, id := range mm.calls[key] {
		if id == nameorid {
			count++
		}
	}
	return count
}

// AddContainer adds a mocked container, replacing any existing mocked
// container with the same ID.
func (mm *MockingMoby) AddContainer(c MockedContainer) {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	mm.containers[c.ID] = c
	mm.names[c.Name] = c.ID
}

// StopContainer stops a mocked container, but does not remove it yet.
func (mm *MockingMoby) StopContainer(nameorid string) {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	if c, ok := mm.lookup(nameorid); ok {
		c.Status = MockedExited
		c.PID = 0
		mm.containers[c.ID] = c
	}
}

// RemoveContainer removes a mocked container, detaching it from any networks
// and volumes.
func (mm *MockingMoby) RemoveContainer(nameorid string) {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	mm.remove(nameorid)
}

// remove a mocked container, assuming the caller holds the write lock.
func (mm *MockingMoby) remove(nameorid string) {
	c, ok := mm.lookup(nameorid)
	if !ok {
		return
	}
	delete(mm.containers, c.ID)
	delete(mm.names, c.Name)
	for id, netw := range mm.networks {
		netw.Containers = without(netw.Containers, c.ID)
		mm.networks[id] = netw
	}
	for name, vol := range mm.volumes {
		vol.UsedBy = without(vol.UsedBy, c.ID)
		mm.volumes[name] = vol
	}
}

// AddNetwork adds a mocked network, replacing any existing mocked network with
// the same ID.
func (mm *MockingMoby) AddNetwork(n MockedNetwork) {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	mm.networks[n.ID] = n
	mm.netnames[n.Name] = n.ID
}

// AddVolume adds a mocked volume, replacing any existing mocked volume with
// the same name.
func (mm *MockingMoby) AddVolume(v MockedVolume) {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	mm.volumes[v.Name] = v
}

// HasContainer returns true if the container identified by name or ID is
// (still) known.
func (mm *MockingMoby) HasContainer(nameorid string) bool {
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	_, ok := mm.lookup(nameorid)
	return ok
}

// HasNetwork returns true if the network identified by name or ID is (still)
// known.
func (mm *MockingMoby) HasNetwork(nameorid string) bool {
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	_, ok := mm.lookupNetwork(nameorid)
	return ok
}

// HasVolume returns true if the volume of the specified name is (still)
// known.
func (mm *MockingMoby) HasVolume(name string) bool {
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	_, ok := mm.volumes[name]
	return ok
}

// lookup returns a mocked container identified either by ID or name. If not
// found, returns false. The caller must hold the lock.
func (mm *MockingMoby) lookup(nameorid string) (MockedContainer, bool) {
	c, ok := mm.containers[nameorid]
	if !ok {
		if nameorid, ok = mm.names[nameorid]; ok {
			c, ok = mm.containers[nameorid]
		}
	}
	return c, ok
}

// lookupNetwork returns a mocked network identified either by ID or name. If
// not found, returns false. The caller must hold the lock.
func (mm *MockingMoby) lookupNetwork(nameorid string) (MockedNetwork, bool) {
	n, ok := mm.networks[nameorid]
	if !ok {
		if nameorid, ok = mm.netnames[nameorid]; ok {
			n, ok = mm.networks[nameorid]
		}
	}
	return n, ok
}

// matches returns true if the specified labels match the "label" filter
// arguments; without any label filter arguments, all labels match.
func matches(labelargs []string, labels map[string]string) bool {
	if len(labelargs) == 0 {
		return true
	}
	return whalereaper.ParseFilter(labelargs...).Matches(labels)
}

// without returns the list of IDs without the specified ID.
func without(ids []string, id string) []string {
	result := ids[:0:0]
	for _, other := range ids {
		if other != id {
			result = append(result, other)
		}
	}
	return result
}

// cloneLabels returns an independent copy of the specified labels.
func cloneLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	clone := make(map[string]string, len(labels))
	for key, value := range labels {
		clone[key] = value
	}
	return clone
}
