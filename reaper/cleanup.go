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
	"github.com/pkg/errors"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/engineclient"
	"golang.org/x/sync/errgroup"
)

// target is a resource to tear down in a cleanup pass.
type target struct {
	kind  whalereaper.Kind
	id    string
	label string
}

// StopAndRemove immediately tears down the specified resource, returning the
// result. If the specified context is already done, the resource is skipped.
func (r *reaper) StopAndRemove(ctx context.Context, kind whalereaper.Kind, id string) Result {
	t := target{kind: kind, id: id}
	if res, ok := r.registry.Get(kind, id); ok {
		t.label = res.Label
	}
	return r.reap(ctx, t)
}

// RemoveByFilter tears down all resources of all kinds matching the specified
// label filter. Kinds of resources not supported by the engine are skipped.
func (r *reaper) RemoveByFilter(ctx context.Context, filter whalereaper.Filter) *Report {
	return r.pass(ctx, nil, []whalereaper.Filter{filter})
}

// PerformCleanup tears down a snapshot of the registered resources as well as
// all resources matching the registered filters. Resources registered while
// the cleanup pass is in progress may or may not be included.
func (r *reaper) PerformCleanup(ctx context.Context) *Report {
	return r.pass(ctx, r.registry.Resources(), r.registry.Filters())
}

// pass runs a cleanup pass over the specified resources and the resources
// matching the specified filters, kind by kind in reaping order.
func (r *reaper) pass(ctx context.Context, resources []whalereaper.Resource, filters []whalereaper.Filter) *Report {
	start := time.Now()
	report := &Report{}
	if len(resources) == 0 && len(filters) == 0 {
		return report
	}
	for _, kind := range whalereaper.Kinds {
		targets := []target{}
		seen := map[string]struct{}{}
		for _, res := range resources {
			if res.Kind != kind {
				continue
			}
			targets = append(targets, target{kind: kind, id: res.ID, label: res.Label})
			seen[res.ID] = struct{}{}
		}
		for _, filter := range filters {
			ids, lerr := r.list(ctx, kind, filter)
			if lerr != nil {
				report.ListErrors = append(report.ListErrors, lerr)
				continue
			}
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				targets = append(targets, target{kind: kind, id: id})
			}
		}
		report.Results = append(report.Results, r.reapAll(ctx, targets)...)
	}
	report.Duration = time.Since(start)
	r.metrics.observePass(report.Duration)
	r.log.Debug().
		Str("report", report.String()).
		Dur("duration", report.Duration).
		Msg("cleanup pass finished")
	return report
}

// list the IDs of the resources of the specified kind matching the label
// filter. Listing unsupported kinds of resources quietly returns nothing,
// while listing with a done context reports the context error, so that the
// unswept filter shows up in the report.
func (r *reaper) list(ctx context.Context, kind whalereaper.Kind, filter whalereaper.Filter) ([]string, *CleanupError) {
	if len(filter) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		r.log.Warn().Err(err).
			Str("kind", kind.String()).Str("filter", filter.String()).
			Msg("cleanup pass cancelled, not sweeping")
		return nil, newCleanupError(kind, filter.String(), OpList, err, nil)
	}
	var ids []string
	err := r.call(ctx, kind, filter.String(), OpList, func(ctx context.Context) (err error) {
		ids, err = r.engine.ListByLabels(ctx, kind, filter)
		return err
	})
	switch {
	case err == nil:
		return ids, nil
	case engineclient.IsUnsupportedKind(err):
		r.log.Debug().Str("kind", kind.String()).Str("engine", r.engine.Type()).
			Msg("engine does not support kind of resource, skipping")
		return nil, nil
	}
	lerr := newCleanupError(kind, filter.String(), OpList, err, nil)
	r.log.Error().Err(err).
		Str("kind", kind.String()).Str("filter", filter.String()).Str("op", OpList).
		Msg("cannot list resources")
	return nil, lerr
}

// reapAll tears down the specified resources in parallel, returning their
// results in the same order.
func (r *reaper) reapAll(ctx context.Context, targets []target) []Result {
	results := make([]Result, len(targets))
	var g errgroup.Group
	g.SetLimit(r.parallel)
	for idx, t := range targets {
		idx, t := idx, t
		g.Go(func() error {
			results[idx] = r.reap(ctx, t)
			return nil
		})
	}
	_ = g.Wait() // never fails, failures are results.
	return results
}

// reap tears down a single resource, unless the context is already done. Once
// started, tearing down continues independent of the context, with only the
// individual engine calls being bounded by the call timeout.
func (r *reaper) reap(ctx context.Context, t target) Result {
	res := Result{Kind: t.kind, ID: t.id, Label: t.label}
	if ctx.Err() != nil {
		res.Outcome = Skipped
		r.log.Debug().Str("kind", t.kind.String()).Str("id", t.id).Msg("skipped")
		r.metrics.observe(res)
		return res
	}
	start := time.Now()
	r.stopAndRemove(context.WithoutCancel(ctx), &res)
	res.Duration = time.Since(start)
	r.registry.Remove(t.kind, t.id)
	if res.Outcome == Failed {
		r.log.Error().Err(res.Err.Err).
			Str("kind", t.kind.String()).Str("id", t.id).Str("op", res.Err.Op).
			Bool("fatal", res.Err.Fatal).
			Msg("cannot reap")
	} else {
		r.log.Debug().
			Str("kind", t.kind.String()).Str("id", t.id).Str("outcome", res.Outcome.String()).
			Dur("duration", res.Duration).
			Msg("reaped")
	}
	r.metrics.observe(res)
	return res
}

// stopAndRemove inspects the resource of the specified result, stops it if
// running, and then forcefully removes it, including any attached ephemeral
// storage. Resources not found count as absent, and removals already in
// progress as removed. Stop errors don't fail the teardown but are kept in the
// result as they might explain a later failed removal.
func (r *reaper) stopAndRemove(ctx context.Context, res *Result) {
	kind, id := res.Kind, res.ID
	log := r.log.With().Str("kind", kind.String()).Str("id", id).Logger()

	state, err := r.inspect(ctx, kind, id)
	switch {
	case engineclient.IsNotFound(err):
		res.Outcome = Absent
		return
	case engineclient.IsUnsupportedKind(err):
		res.Outcome = Failed
		res.Err = newCleanupError(kind, id, OpInspect, err, nil)
		return
	case err != nil:
		// the forced removal below kills any processes anyway.
		log.Warn().Err(err).Str("op", OpInspect).Msg("cannot inspect, removing anyway")
	case state.Running:
		stoperr := r.call(ctx, kind, id, OpStop, func(ctx context.Context) error {
			return r.engine.Stop(ctx, kind, id)
		})
		if engineclient.IsNotFound(stoperr) {
			res.Outcome = Absent
			return
		}
		if stoperr != nil {
			log.Warn().Err(stoperr).Str("op", OpStop).Msg("cannot stop, removing anyway")
			res.StopErr = stoperr
		}
		if _, err := r.inspect(ctx, kind, id); engineclient.IsNotFound(err) {
			res.Outcome = Absent
			return
		}
	}

	err = r.call(ctx, kind, id, OpRemove, func(ctx context.Context) error {
		return r.engine.Remove(ctx, kind, id, engineclient.RemoveOptions{
			Volumes: true,
			Force:   true,
		})
	})
	switch {
	case err == nil:
		res.Outcome = Removed
	case engineclient.IsAlreadyRemoving(err):
		log.Debug().Err(err).Msg("already being removed")
		res.Outcome = Removed
	case engineclient.IsNotFound(err):
		res.Outcome = Absent
	default:
		res.Outcome = Failed
		res.Err = newCleanupError(kind, id, OpRemove, err, res.StopErr)
	}
}

// inspect the state of a resource.
func (r *reaper) inspect(ctx context.Context, kind whalereaper.Kind, id string) (whalereaper.State, error) {
	var state whalereaper.State
	err := r.call(ctx, kind, id, OpInspect, func(ctx context.Context) (err error) {
		state, err = r.engine.Inspect(ctx, kind, id)
		return err
	})
	return state, err
}

// call an engine operation with the per-call timeout, retrying transient
// errors according to the back-off policy.
func (r *reaper) call(ctx context.Context, kind whalereaper.Kind, id string, op string, fn func(ctx context.Context) error) error {
	return backoff.RetryNotify(
		func() error {
			callctx, cancel := context.WithTimeout(ctx, r.calltimeout)
			defer cancel()
			err := fn(callctx)
			if err == nil || (engineclient.IsTransient(err) && !engineclient.IsAlreadyRemoving(err)) {
				return err
			}
			return backoff.Permanent(err)
		},
		backoff.WithContext(r.buggeroff(), ctx),
		func(err error, next time.Duration) {
			r.log.Warn().Err(err).
				Str("kind", kind.String()).Str("id", id).Str("op", op).
				Dur("retry_in", next).
				Msg("transient engine error, retrying")
		})
}

// newCleanupError returns a new CleanupError for the failed operation on the
// specified resource.
func newCleanupError(kind whalereaper.Kind, id string, op string, err error, stoperr error) *CleanupError {
	return &CleanupError{
		Kind:    kind,
		ID:      id,
		Op:      op,
		Err:     errors.WithStack(err),
		StopErr: stoperr,
		Fatal:   !engineclient.IsTransient(err),
	}
}
