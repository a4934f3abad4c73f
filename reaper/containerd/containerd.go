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
	"github.com/containerd/containerd"
	cdengine "github.com/thediveo/whalereaper/engineclient/containerd"
	"github.com/thediveo/whalereaper/reaper"
)

// Type ID of the container engine handled by this reaper.
const Type = cdengine.Type

// DefaultSocket is containerd's default API endpoint.
const DefaultSocket = "/run/containerd/containerd.sock"

// New returns a Reaper for tearing down the ephemeral containers of a
// containerd engine.
//
// When the containerdsock parameter is left empty then containerd's default
// "/run/containerd/containerd.sock" applies.
func New(containerdsock string, opts ...reaper.NewOption) (reaper.Reaper, error) {
	if containerdsock == "" {
		containerdsock = DefaultSocket
	}
	cdclient, err := containerd.New(containerdsock)
	if err != nil {
		return nil, err
	}
	return reaper.New(cdengine.NewContainerdReaper(cdclient), opts...), nil
}
