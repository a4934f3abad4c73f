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

package matcher

import (
	o "github.com/onsi/gomega"
	"github.com/onsi/gomega/gcustom"
	"github.com/onsi/gomega/types"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/reaper"
)

// BeAResult succeeds when the actual value is a reaper.Result and additionally
// all passed matchers also succeed.
func BeAResult(matchers ...types.GomegaMatcher) types.GomegaMatcher {
	return o.WithTransform(func(actual reaper.Result) reaper.Result {
		return actual // Gomega already did the type checking for us ;)
	}, o.SatisfyAll(matchers...))
}

// HaveResult succeeds when the actual value is a *reaper.Report containing a
// result satisfying all passed matchers.
func HaveResult(matchers ...types.GomegaMatcher) types.GomegaMatcher {
	return o.WithTransform(func(actual *reaper.Report) []reaper.Result {
		if actual == nil {
			return nil
		}
		return actual.Results
	}, o.ContainElement(BeAResult(matchers...)))
}

// HaveOutcome succeeds if the actual value has an "Outcome" field with the
// specified reaper.Outcome value.
func HaveOutcome(outcome reaper.Outcome) types.GomegaMatcher {
	return o.HaveField("Outcome", outcome)
}

// HaveKind succeeds if the actual value has a "Kind" field with the specified
// resource kind.
func HaveKind(kind whalereaper.Kind) types.GomegaMatcher {
	return o.HaveField("Kind", kind)
}

// HaveID succeeds if the actual value has an "ID" field with the specified
// value.
func HaveID(id string) types.GomegaMatcher {
	return o.HaveField("ID", id)
}

// HaveResource succeeds if the actual value has the specified resource kind
// and ID.
func HaveResource(kind whalereaper.Kind, id string) types.GomegaMatcher {
	return o.SatisfyAll(HaveKind(kind), HaveID(id))
}

// HaveFailedOp succeeds if the actual value is a failed reaper.Result with the
// specified operation having failed.
func HaveFailedOp(op string) types.GomegaMatcher {
	return gcustom.MakeMatcher(func(actual reaper.Result) (bool, error) {
		return actual.Outcome == reaper.Failed && actual.Err != nil && actual.Err.Op == op, nil
	}).WithTemplate("Expected:\n{{.FormattedActual}}\n{{.To}} have failed to {{.Data}}", op)
}

// HaveStopError succeeds if the actual value has a non-nil "StopErr" field.
func HaveStopError() types.GomegaMatcher {
	return o.HaveField("StopErr", o.HaveOccurred())
}
