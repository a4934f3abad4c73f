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

	"golang.org/x/exp/slices"
)

// LabelPair is a single label key and value to match. An empty Value matches
// any resource carrying the label Key, regardless of the label's value.
type LabelPair struct {
	Key   string
	Value string
}

// String renders the label pair in the usual "key=value" notation, or just
// "key" for presence-only matches.
func (p LabelPair) String() string {
	if p.Value == "" {
		return p.Key
	}
	return p.Key + "=" + p.Value
}

// Filter is an ordered set of label pairs; a resource matches a Filter only if
// it matches all of the Filter's label pairs.
type Filter []LabelPair

// NewFilter returns a Filter from the specified label map. As Go maps have no
// defined order, the label pairs are sorted by key.
func NewFilter(labels map[string]string) Filter {
	f := make(Filter, 0, len(labels))
	for key, value := range labels {
		f = append(f, LabelPair{Key: key, Value: value})
	}
	f.sort()
	return f
}

// ParseFilter parses a list of "key=value" or "key" strings into a Filter.
// Empty keys are ignored.
func ParseFilter(pairs ...string) Filter {
	f := Filter{}
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		f = f.with(LabelPair{Key: key, Value: value})
	}
	return f
}

// with returns the Filter with the specified label pair added, unless the
// Filter already contains exactly the same pair.
func (f Filter) with(p LabelPair) Filter {
	for _, existing := range f {
		if existing == p {
			return f
		}
	}
	return append(f, p)
}

// Equal returns true if both filters consist of the same label pairs,
// regardless of order and duplicates.
func (f Filter) Equal(other Filter) bool {
	return f.contains(other) && other.contains(f)
}

// contains returns true if all label pairs of the other Filter are also part
// of this Filter.
func (f Filter) contains(other Filter) bool {
nextpair:
	for _, o := range other {
		for _, p := range f {
			if p == o {
				continue nextpair
			}
		}
		return false
	}
	return true
}

// Labels returns the filter's label pairs as a map, suitable for engine APIs
// that take label selectors.
func (f Filter) Labels() map[string]string {
	labels := make(map[string]string, len(f))
	for _, p := range f {
		labels[p.Key] = p.Value
	}
	return labels
}

// Matches returns true if the specified resource labels satisfy all label
// pairs of this Filter. An empty Filter never matches, so that it cannot
// accidentally sweep an engine clean.
func (f Filter) Matches(labels map[string]string) bool {
	if len(f) == 0 {
		return false
	}
	for _, p := range f {
		value, ok := labels[p.Key]
		if !ok || (p.Value != "" && value != p.Value) {
			return false
		}
	}
	return true
}

// String renders the Filter as a comma-separated list of label pairs.
func (f Filter) String() string {
	s := make([]string, len(f))
	for idx, p := range f {
		s[idx] = p.String()
	}
	return strings.Join(s, ",")
}

func (f Filter) sort() {
	slices.SortFunc(f, func(a, b LabelPair) int {
		return strings.Compare(a.Key, b.Key)
	})
}
