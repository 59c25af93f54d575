// Copyright 2025 Antfly, Inc.
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

package skillex

import (
	"time"

	"github.com/antflydb/skillex/lib/esco"
	"github.com/antflydb/skillex/lib/skills"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	extractRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "extract_request_ops_total",
			Help:      "The total number of skill extraction requests.",
		},
		[]string{"endpoint"},
	)
	skillsReturnedOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "skills_returned_total",
			Help:      "The total number of skills returned.",
		},
		[]string{"endpoint"},
	)
	candidateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "candidates_total",
			Help:      "Skill candidates by reconciliation decision.",
		},
		[]string{"decision"}, // accepted, matched, dropped
	)

	kbLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "kb_lookups_total",
			Help:      "Knowledge base lookups by outcome.",
		},
		[]string{"outcome"}, // match, no_match, error
	)
	kbLookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "kb_lookup_duration_seconds",
			Help:      "Time taken by a knowledge base lookup.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 6, 10},
		},
	)

	inferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "inference_duration_seconds",
			Help:      "Time spent annotating one document.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "model_load_duration_seconds",
			Help:      "Time taken to load a model.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process a request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)

	// Queue metrics
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "queue_depth",
			Help:      "Number of requests currently waiting in queue.",
		},
	)
	queueActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "queue_active_requests",
			Help:      "Number of requests currently being processed.",
		},
	)
	queueRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "queue_rejected_total",
			Help:      "Total number of requests rejected due to full queue.",
		},
	)
	queueTimedOutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "queue_timed_out_total",
			Help:      "Total number of requests that timed out while waiting in queue.",
		},
	)
	queueWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "skillex",
			Name:      "queue_wait_duration_seconds",
			Help:      "Time spent waiting in queue before processing.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(extractRequestOps)
	prometheus.MustRegister(skillsReturnedOps)
	prometheus.MustRegister(candidateDecisions)
	prometheus.MustRegister(kbLookups)
	prometheus.MustRegister(kbLookupDuration)
	prometheus.MustRegister(inferenceDuration)
	prometheus.MustRegister(modelLoadDuration)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(queueActiveRequests)
	prometheus.MustRegister(queueRejectedTotal)
	prometheus.MustRegister(queueTimedOutTotal)
	prometheus.MustRegister(queueWaitDuration)
}

// RecordExtraction records one successful extraction on endpoint.
func RecordExtraction(endpoint string, res *skills.Result) {
	extractRequestOps.WithLabelValues(endpoint).Inc()
	skillsReturnedOps.WithLabelValues(endpoint).Add(float64(len(res.Skills)))
	for _, c := range res.Candidates {
		candidateDecisions.WithLabelValues(string(c.Decision)).Inc()
	}
	if res.InferenceDuration > 0 {
		inferenceDuration.Observe(res.InferenceDuration.Seconds())
	}
}

// RecordKBLookup is an esco.Observer.
func RecordKBLookup(outcome esco.Outcome, elapsed time.Duration) {
	kbLookups.WithLabelValues(string(outcome)).Inc()
	kbLookupDuration.Observe(elapsed.Seconds())
}

// RecordModelLoadDuration records how long it took to load a model
func RecordModelLoadDuration(model string, seconds float64) {
	modelLoadDuration.WithLabelValues(model).Observe(seconds)
}

// RecordRequestDuration records how long a request took
func RecordRequestDuration(endpoint, status string, seconds float64) {
	requestDuration.WithLabelValues(endpoint, status).Observe(seconds)
}

// UpdateQueueMetrics updates all queue-related metrics from QueueStats
func UpdateQueueMetrics(stats QueueStats) {
	queueDepth.Set(float64(stats.CurrentQueued))
	queueActiveRequests.Set(float64(stats.CurrentActive))
}

// RecordQueueRejection increments the rejected counter
func RecordQueueRejection() {
	queueRejectedTotal.Inc()
}

// RecordQueueTimeout increments the timeout counter
func RecordQueueTimeout() {
	queueTimedOutTotal.Inc()
}

// RecordQueueWaitTime records how long a request waited in queue
func RecordQueueWaitTime(seconds float64) {
	queueWaitDuration.Observe(seconds)
}
