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

// MockedContainerStatus is a compressed, only-essentials, no-bulls version of
// Docker's container states.
type MockedContainerStatus int

// The available states of a mocked container.
const (
	MockedCreated MockedContainerStatus = iota
	MockedRunning
	MockedPaused
	MockedDead
	MockedExited
	MockedRemoving // someone else is already removing this container.
)

// MockedStatus maps the states of a mocked container to Docker's container
// status strings that is better suited for code checks (no chatty additions and
// content variations).
var MockedStatus = map[MockedContainerStatus]string{
	MockedCreated:  "created",
	MockedRunning:  "running",
	MockedPaused:   "paused",
	MockedDead:     "dead",
	MockedExited:   "exited",
	MockedRemoving: "removing",
}

// MockedContainer is our very, very limited knowledge about a mocked container;
// it just stores the minimum of information we need in mocking our own unit
// tests.
type MockedContainer struct {
	ID     string                // unique identifier of container
	Name   string                // name of container without any prefixing "/"
	Status MockedContainerStatus // container status (without any thrills)
	PID    int                   // PID of initial container process if container is "alive"
	Labels map[string]string     // container labels
}

// alive returns true if the mocked container has processes.
func (c MockedContainer) alive() bool {
	return c.Status == MockedRunning || c.Status == MockedPaused
}

// MockedNetwork is a mocked network, with the IDs of the containers attached
// to it.
type MockedNetwork struct {
	ID         string            // unique identifier of network
	Name       string            // name of network
	Labels     map[string]string // network labels
	Containers []string          // IDs of attached containers
}

// MockedVolume is a mocked volume, with the IDs of the containers using it.
// Docker volumes are identified by their names only.
type MockedVolume struct {
	Name   string            // name of volume
	Labels map[string]string // volume labels
	UsedBy []string          // IDs of containers using this volume
}
