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
	criengine "github.com/thediveo/whalereaper/engineclient/cri"
	"github.com/thediveo/whalereaper/reaper"
)

// Type ID of the container engine handled by this reaper.
const Type = criengine.Type

// New returns a Reaper for tearing down the ephemeral containers of a CRI
// API-serving container engine.
//
// Please note that there is no default value for the CRI API socket path, so it
// must not be the empty string.
//
// CRI engine client-specific options can be passed in as engineopts, followed
// by any generic reaper options.
func New(criapisock string, engineopts []criengine.NewOption, opts ...reaper.NewOption) (reaper.Reaper, error) {
	cricl, err := criengine.New(criapisock)
	if err != nil {
		return nil, err
	}
	return reaper.New(criengine.NewCRIReaper(cricl, engineopts...), opts...), nil
}
