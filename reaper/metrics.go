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
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics of cleanup passes.
type metrics struct {
	results      *prometheus.CounterVec
	passDuration prometheus.Histogram
}

// newMetrics returns the cleanup metrics registered with the specified
// registerer. Reapers sharing the same registerer share their metrics.
func newMetrics(registerer prometheus.Registerer) *metrics {
	return &metrics{
		results: register(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whalereaper_cleanup_results_total",
				Help: "Total number of resources torn down, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)),
		passDuration: register(registerer, prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "whalereaper_cleanup_pass_duration_seconds",
				Help:    "Duration of cleanup passes in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		)),
	}
}

// register the specified collector, returning the already registered
// collector instead if there is one. Collectors failing registration for
// other reasons are still returned, albeit they then aren't exported.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	return collector
}

// observe a single result; a nil metrics is fine.
func (m *metrics) observe(res Result) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(res.Kind.String(), res.Outcome.String()).Inc()
}

// observePass observes the duration of a cleanup pass; a nil metrics is fine.
func (m *metrics) observePass(d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(d.Seconds())
}
