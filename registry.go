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
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

// resourceKey identifies a registered resource; the same ID might be used for
// resources of different kinds, such as a network and a volume both named
// "test".
type resourceKey struct {
	kind Kind
	id   string
}

// Registry keeps track of the resources registered for cleanup as well as the
// label filters for sweeping resources not explicitly registered. A Registry
// is safe for concurrent use; please note that it never talks to any
// container engine itself, so its lock is never held for long.
type Registry struct {
	m         sync.RWMutex
	resources map[resourceKey]*Resource // registered resources by kind and ID.
	filters   []Filter                  // cleanup filters in registration order.
}

// NewRegistry returns a new and empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: map[resourceKey]*Resource{},
	}
}

// Add a resource to the registry. Returns true if the resource was newly
// added, false if a resource of the same kind and ID already is registered;
// in this case the existing registration is kept unchanged.
func (r *Registry) Add(res Resource) bool {
	r.m.Lock()
	defer r.m.Unlock()

	key := resourceKey{kind: res.Kind, id: res.ID}
	if _, ok := r.resources[key]; ok {
		return false
	}
	r.resources[key] = &res
	return true
}

// Remove the resource of the specified kind and ID from the registry,
// returning the removed resource information. If no such resource was
// registered, nil is returned instead.
//
// It's not an error trying to remove a non-registered resource.
func (r *Registry) Remove(kind Kind, id string) *Resource {
	r.m.Lock()
	defer r.m.Unlock()

	key := resourceKey{kind: kind, id: id}
	res, ok := r.resources[key]
	if !ok {
		return nil
	}
	delete(r.resources, key)
	return res
}

// Get returns the registered resource of the specified kind and ID, and
// true. If there is no such registered resource, it returns false instead.
func (r *Registry) Get(kind Kind, id string) (Resource, bool) {
	r.m.RLock()
	defer r.m.RUnlock()
	res, ok := r.resources[resourceKey{kind: kind, id: id}]
	if !ok {
		return Resource{}, false
	}
	return *res, true
}

// Contains returns true if a resource with the specified kind and ID is
// currently registered.
func (r *Registry) Contains(kind Kind, id string) bool {
	r.m.RLock()
	defer r.m.RUnlock()
	_, ok := r.resources[resourceKey{kind: kind, id: id}]
	return ok
}

// Len returns the number of currently registered resources.
func (r *Registry) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.resources)
}

// Resources returns a snapshot of the currently registered resources, sorted
// by kind in reaping order and then by ID. Later registry changes don't affect
// the returned snapshot.
func (r *Registry) Resources() []Resource {
	r.m.RLock()
	resources := make([]Resource, 0, len(r.resources))
	for _, res := range r.resources {
		resources = append(resources, *res)
	}
	r.m.RUnlock()
	slices.SortFunc(resources, func(a, b Resource) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return resources
}

// AddFilter adds a cleanup filter, returning true if it was newly added. Empty
// filters as well as filters equal to an already registered filter are not
// added and false is returned instead.
func (r *Registry) AddFilter(f Filter) bool {
	if len(f) == 0 {
		return false
	}
	r.m.Lock()
	defer r.m.Unlock()

	for _, existing := range r.filters {
		if existing.Equal(f) {
			return false
		}
	}
	r.filters = append(r.filters, slices.Clone(f))
	return true
}

// Filters returns a copy of the registered cleanup filters in registration
// order.
func (r *Registry) Filters() []Filter {
	r.m.RLock()
	defer r.m.RUnlock()

	filters := make([]Filter, len(r.filters))
	for idx, f := range r.filters {
		filters[idx] = slices.Clone(f)
	}
	return filters
}
