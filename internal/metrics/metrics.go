// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics declares the prometheus instruments exported by the
// sync engine, in the shape of internal/staging/stage's metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets is declared locally rather than shared across
// packages, since this module only has one histogram using it.
var latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

var (
	// PushBatchDuration measures the wall-clock time to process an
	// entire push batch, from the start of Pipeline.Process until it
	// returns (after commit and event broadcast, or on failure).
	PushBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stockline_sync",
		Subsystem: "push",
		Name:      "batch_duration_seconds",
		Help:      "Time to process one push batch end to end.",
		Buckets:   latencyBuckets,
	})

	// OperationOutcomes counts per-operation results by entity kind,
	// operation type and outcome status.
	OperationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockline_sync",
		Subsystem: "push",
		Name:      "operation_outcomes_total",
		Help:      "Count of push operation outcomes.",
	}, []string{"entity_type", "operation_type", "status"})

	// StreamSubscribers tracks the current number of connected SSE
	// stream clients.
	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockline_sync",
		Subsystem: "stream",
		Name:      "subscribers",
		Help:      "Number of currently connected SSE stream clients.",
	})

	// PullRequests counts pull requests served, labeled by whether the
	// response had more data beyond the requested page.
	PullRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockline_sync",
		Subsystem: "pull",
		Name:      "requests_total",
		Help:      "Count of pull requests served.",
	}, []string{"has_more"})
)
