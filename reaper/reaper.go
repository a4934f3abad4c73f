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

package reaper

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/engineclient"
)

// SessionLabel is the label key identifying the resources belonging to a
// particular reaper session.
const SessionLabel = "io.github.thediveo.whalereaper.session"

// Defaults for new reapers.
const (
	DefaultCallTimeout  = 10 * time.Second
	DefaultParallelism  = 4
	DefaultRetryBackOff = 500 * time.Millisecond
)

// Reaper keeps track of the ephemeral resources of a container engine that
// need to be torn down at the end of a (test) session, and tears them down on
// demand.
type Reaper interface {
	// RegisterContainer registers a container for cleanup, with an optional
	// informational label, such as the container's image name. Registering
	// the same container multiple times is a no-op.
	RegisterContainer(id string, label string)
	// RegisterNetwork registers a network by its ID for cleanup.
	RegisterNetwork(id string)
	// RegisterNetworkByName registers a network by its name for cleanup.
	RegisterNetworkByName(name string)
	// RegisterVolume registers a volume for cleanup.
	RegisterVolume(name string)
	// RegisterFilter registers a label filter; all resources matching it will
	// be cleaned up too. Empty and duplicate filters are ignored.
	RegisterFilter(filter whalereaper.Filter)
	// UnregisterContainer removes a container registration without cleaning
	// up the container.
	UnregisterContainer(id string)
	// UnregisterNetwork removes a network registration without cleaning up
	// the network.
	UnregisterNetwork(id string)
	// UnregisterVolume removes a volume registration without cleaning up the
	// volume.
	UnregisterVolume(name string)

	// StopAndRemove immediately tears down the specified resource, returning
	// the result. The resource doesn't need to be registered; if it is, it
	// gets unregistered unless skipped.
	StopAndRemove(ctx context.Context, kind whalereaper.Kind, id string) Result
	// RemoveByFilter tears down all resources matching the label filter.
	RemoveByFilter(ctx context.Context, filter whalereaper.Filter) *Report
	// PerformCleanup tears down all registered resources as well as all
	// resources matching the registered filters.
	PerformCleanup(ctx context.Context) *Report

	// Resources returns a snapshot of the registered resources, sorted by
	// kind in reaping order and ID.
	Resources() []whalereaper.Resource
	// Filters returns a copy of the registered label filters.
	Filters() []whalereaper.Filter
	// Len returns the number of registered resources.
	Len() int
	// SessionID returns the unique ID of this reaper's session.
	SessionID() string
	// SessionLabels returns the labels to attach to resources in order to
	// mark them as belonging to this reaper's session.
	SessionLabels() map[string]string

	// ID returns the (more or less) unique engine identifier; the exact format
	// is engine-specific.
	ID(ctx context.Context) string
	// Identifier of the type of container engine, such as "docker.com",
	// "containerd.io", et cetera.
	Type() string
	// Container engine API path.
	API() string
	// Close cleans up and release any engine client resources, if necessary.
	Close()
}

// reaper tears down the resources of a particular container engine.
type reaper struct {
	engine      engineclient.EngineClient // container engine (adaptor)
	registry    *whalereaper.Registry
	session     string                 // unique session ID.
	buggeroff   func() backoff.BackOff // per-call retry policy for transient errors.
	calltimeout time.Duration
	parallel    int
	log         zerolog.Logger
	metrics     *metrics // optional.
}

// NewOption represents options to New when creating new reapers.
type NewOption func(*reaper)

// WithCallTimeout sets the timeout for each individual engine call, defaulting
// to DefaultCallTimeout. Non-positive timeouts are ignored.
func WithCallTimeout(d time.Duration) NewOption {
	return func(r *reaper) {
		if d > 0 {
			r.calltimeout = d
		}
	}
}

// WithBackOff sets the retry policy for engine calls failing with transient
// errors. As each engine call gets retried independently, a fresh BackOff is
// requested for each call. By default, a failed call is retried exactly once
// after DefaultRetryBackOff. A nil factory disables retrying.
func WithBackOff(factory func() backoff.BackOff) NewOption {
	return func(r *reaper) {
		if factory == nil {
			factory = func() backoff.BackOff { return &backoff.StopBackOff{} }
		}
		r.buggeroff = factory
	}
}

// WithParallelism sets the maximum number of resources of the same kind being
// torn down concurrently, defaulting to DefaultParallelism. Values less than
// one are ignored.
func WithParallelism(n int) NewOption {
	return func(r *reaper) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithLogger sets the logger to use; by default, reapers don't log.
func WithLogger(log zerolog.Logger) NewOption {
	return func(r *reaper) {
		r.log = log
	}
}

// WithSessionFilter registers a label filter for this reaper's session label,
// so that all resources labelled with SessionLabels get cleaned up, even when
// they weren't registered individually.
func WithSessionFilter() NewOption {
	return func(r *reaper) {
		r.registry.AddFilter(whalereaper.NewFilter(r.SessionLabels()))
	}
}

// WithMetrics registers cleanup result and pass duration metrics with the
// specified prometheus registerer. Multiple reapers using the same registerer
// share their metrics. A nil registerer disables metrics.
func WithMetrics(registerer prometheus.Registerer) NewOption {
	return func(r *reaper) {
		if registerer == nil {
			r.metrics = nil
			return
		}
		r.metrics = newMetrics(registerer)
	}
}

// New returns a new Reaper for tearing down the resources of the container
// engine served by the specified EngineClient.
func New(engine engineclient.EngineClient, opts ...NewOption) Reaper {
	r := &reaper{
		engine:      engine,
		registry:    whalereaper.NewRegistry(),
		session:     uuid.NewString(),
		buggeroff:   defaultBackOff,
		calltimeout: DefaultCallTimeout,
		parallel:    DefaultParallelism,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(DefaultRetryBackOff), 1)
}

func (r *reaper) register(kind whalereaper.Kind, id string, label string) {
	if id == "" {
		return
	}
	if r.registry.Add(whalereaper.Resource{
		ID:           id,
		Kind:         kind,
		Label:        label,
		RegisteredAt: time.Now(),
	}) {
		r.log.Debug().Str("kind", kind.String()).Str("id", id).Msg("registered")
	}
}

func (r *reaper) RegisterContainer(id string, label string) {
	r.register(whalereaper.Container, id, label)
}

func (r *reaper) RegisterNetwork(id string) { r.register(whalereaper.Network, id, "") }

func (r *reaper) RegisterNetworkByName(name string) { r.register(whalereaper.Network, name, "") }

func (r *reaper) RegisterVolume(name string) { r.register(whalereaper.Volume, name, "") }

func (r *reaper) RegisterFilter(filter whalereaper.Filter) {
	if r.registry.AddFilter(filter) {
		r.log.Debug().Str("filter", filter.String()).Msg("registered filter")
	}
}

func (r *reaper) UnregisterContainer(id string) { r.registry.Remove(whalereaper.Container, id) }

func (r *reaper) UnregisterNetwork(id string) { r.registry.Remove(whalereaper.Network, id) }

func (r *reaper) UnregisterVolume(name string) { r.registry.Remove(whalereaper.Volume, name) }

func (r *reaper) Resources() []whalereaper.Resource { return r.registry.Resources() }

func (r *reaper) Filters() []whalereaper.Filter { return r.registry.Filters() }

func (r *reaper) Len() int { return r.registry.Len() }

func (r *reaper) SessionID() string { return r.session }

func (r *reaper) SessionLabels() map[string]string {
	return map[string]string{SessionLabel: r.session}
}

// ID returns the (more or less) unique engine identifier; the exact format is
// engine-specific.
func (r *reaper) ID(ctx context.Context) string { return r.engine.ID(ctx) }

// Identifier of the type of container engine, such as "docker.com",
// "containerd.io", et cetera.
func (r *reaper) Type() string { return r.engine.Type() }

// Container engine API path.
func (r *reaper) API() string { return r.engine.API() }

// Close cleans up and release any underlying engine client resources, if
// necessary.
func (r *reaper) Close() {
	r.engine.Close()
}
