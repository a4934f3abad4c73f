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

package whalereaper

import (
	"fmt"
	"time"
)

// Kind of a resource to be reaped, such as a container, network, or volume.
type Kind byte

// The resource kinds known to reapers, in the order they get reaped during a
// cleanup pass: containers first, as they might still hold on to networks and
// volumes.
const (
	Container Kind = iota
	Network
	Volume
)

// Kinds lists all resource kinds in reaping order.
var Kinds = []Kind{Container, Network, Volume}

// String returns the name of a resource kind.
func (k Kind) String() string {
	switch k {
	case Container:
		return "container"
	case Network:
		return "network"
	case Volume:
		return "volume"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Resource describes an ephemeral container engine resource that has been
// registered with a reaper for cleanup. Resource objects are immutable once
// registered.
type Resource struct {
	ID           string    // ID or name of the resource, as understood by the engine.
	Kind         Kind      // container, network, or volume.
	Label        string    // optional informational label, such as an image name.
	RegisteredAt time.Time // when this resource was registered.
}

// String renders a textual representation of a registered resource, such as
// its kind, ID, and optional label.
func (r Resource) String() string {
	if r.Label != "" {
		return fmt.Sprintf("%s '%s' (%s)", r.Kind, r.ID, r.Label)
	}
	return fmt.Sprintf("%s '%s'", r.Kind, r.ID)
}

// State is the deliberately limited view on an inspected resource: the only
// thing a reaper needs to know is whether there are still processes to kill
// before removal.
type State struct {
	Running bool // resource has running (or frozen) processes.
}
