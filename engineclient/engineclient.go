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

package engineclient

import (
	"context"

	"github.com/thediveo/whalereaper"
)

// EngineClient defines the generic methods needed in order to reap resources
// of a container engine, regardless of the specific type of engine.
type EngineClient interface {
	// Inspect (only) the resource state of interest to us, given the kind and
	// name or ID of a resource. Returns an error satisfying IsNotFound if
	// there is no such resource (anymore).
	Inspect(ctx context.Context, kind whalereaper.Kind, nameorid string) (whalereaper.State, error)
	// Stop all processes of a resource, where applicable. Stopping a resource
	// without any processes is a no-op.
	Stop(ctx context.Context, kind whalereaper.Kind, nameorid string) error
	// Remove a resource, optionally forcing the removal and also removing any
	// attached ephemeral storage.
	Remove(ctx context.Context, kind whalereaper.Kind, nameorid string, opts RemoveOptions) error
	// ListByLabels returns the IDs of all resources of the specified kind that
	// match the label filter.
	ListByLabels(ctx context.Context, kind whalereaper.Kind, filter whalereaper.Filter) ([]string, error)

	// (More or less) unique engine identifier; the exact format is
	// engine-specific.
	ID(ctx context.Context) string
	// Identifier of the type of container engine, such as "docker.com",
	// "containerd.io", et cetera.
	Type() string
	// Container engine API path.
	API() string

	// Clean up and release any engine client resources, if necessary.
	Close()
}

// RemoveOptions control how resources get removed.
type RemoveOptions struct {
	Volumes bool // remove attached ephemeral storage, such as anonymous volumes or snapshots.
	Force   bool // remove even when still in use or running.
}
