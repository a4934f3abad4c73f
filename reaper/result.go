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
	"fmt"
	"strings"
	"time"

	"github.com/thediveo/whalereaper"
	"go.uber.org/multierr"
)

// Outcome of tearing down an individual resource.
type Outcome int

// The possible outcomes of tearing down a resource.
const (
	// Absent resources were already gone before they could be removed.
	Absent Outcome = iota
	// Removed resources were successfully removed, either by us or by
	// someone else concurrently removing them.
	Removed
	// Failed resources could not be removed.
	Failed
	// Skipped resources were never touched as the cleanup pass was cancelled
	// beforehand.
	Skipped
)

// Outcomes lists all outcomes, such as for reporting.
var Outcomes = []Outcome{Absent, Removed, Failed, Skipped}

func (o Outcome) String() string {
	switch o {
	case Absent:
		return "absent"
	case Removed:
		return "removed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Operations of the per-resource cleanup, as reported in CleanupErrors.
const (
	OpInspect = "inspect"
	OpStop    = "stop"
	OpRemove  = "remove"
	OpList    = "list"
)

// CleanupError is a failure to tear down a particular resource, or to list
// the resources matching a label filter.
type CleanupError struct {
	Kind    whalereaper.Kind
	ID      string // resource ID or name; the filter in case of listing.
	Op      string // failed operation.
	Err     error  // engine error.
	StopErr error  // preceding error when stopping the resource, if any.
	Fatal   bool   // not a transient error, so it hasn't been retried.
}

func (e *CleanupError) Error() string {
	msg := fmt.Sprintf("cannot %s %s '%s': %s", e.Op, e.Kind, e.ID, e.Err)
	if e.StopErr != nil {
		msg += fmt.Sprintf(" (after failing to stop: %s)", e.StopErr)
	}
	return msg
}

// Unwrap returns the engine error.
func (e *CleanupError) Unwrap() error { return e.Err }

// Result of tearing down an individual resource.
type Result struct {
	Kind     whalereaper.Kind
	ID       string
	Label    string // informational label of registered resources.
	Outcome  Outcome
	Err      *CleanupError // set only for Failed outcomes.
	StopErr  error         // swallowed error when stopping the resource.
	Duration time.Duration
}

// Failure returns the cleanup error, if any, otherwise nil. It avoids the
// notorious typed nil pointer in error interfaces.
func (r Result) Failure() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

func (r Result) String() string {
	res := whalereaper.Resource{ID: r.ID, Kind: r.Kind, Label: r.Label}
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %s", res, r.Outcome, r.Err.Err)
	}
	return fmt.Sprintf("%s: %s", res, r.Outcome)
}

// Report aggregates the results of a cleanup pass.
type Report struct {
	Results    []Result        // per-resource results in reaping order.
	ListErrors []*CleanupError // failures to list resources by filters.
	Duration   time.Duration
}

// Count returns the number of resources with the specified outcome.
func (r *Report) Count(outcome Outcome) int {
	count := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			count++
		}
	}
	return count
}

// Result returns the result for the resource of the specified kind and ID,
// and true; if there is no such result, it returns false instead.
func (r *Report) Result(kind whalereaper.Kind, id string) (Result, bool) {
	for _, res := range r.Results {
		if res.Kind == kind && res.ID == id {
			return res, true
		}
	}
	return Result{}, false
}

// Failed returns the results of the resources that could not be removed.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Outcome == Failed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Complete returns true if the cleanup pass neither failed nor skipped any
// resources and swept all filters.
func (r *Report) Complete() bool {
	return len(r.ListErrors) == 0 && r.Count(Failed) == 0 && r.Count(Skipped) == 0
}

// Err returns all cleanup errors combined into a single error, or nil if
// nothing failed.
func (r *Report) Err() error {
	var err error
	for _, lerr := range r.ListErrors {
		err = multierr.Append(err, lerr)
	}
	for _, res := range r.Results {
		if res.Err != nil {
			err = multierr.Append(err, res.Err)
		}
	}
	return err
}

// String summarizes the report.
func (r *Report) String() string {
	counts := make([]string, 0, len(Outcomes))
	for _, outcome := range Outcomes {
		counts = append(counts, fmt.Sprintf("%d %s", r.Count(outcome), outcome))
	}
	summary := strings.Join(counts, ", ")
	if len(r.ListErrors) != 0 {
		summary += fmt.Sprintf(", %d listing errors", len(r.ListErrors))
	}
	return summary
}
