// Copyright 2026 The Scouter Authors.
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

// Package telemetry is the single Prometheus metrics registry every other
// component reports through. One Registry satisfies the narrow Metrics
// interfaces internal/ingest, internal/scheduler, and internal/alert each
// define locally, the way a single package-level collector set can still
// feed several unrelated call sites.
//
// Unlike registering into the global prometheus.DefaultRegisterer via
// init(), Registry builds its own *prometheus.Registry so tests can
// construct as many independent instances as they like without collector
// registration conflicts.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"scouter/pkg/record"
)

// Registry holds every collector the drift engine exposes.
type Registry struct {
	reg *prometheus.Registry

	queueDepth       *prometheus.GaugeVec
	queueDropped     *prometheus.CounterVec
	flushFailures    *prometheus.CounterVec
	claimLatency     prometheus.Histogram
	tickDuration     *prometheus.HistogramVec
	alertsFired      *prometheus.CounterVec
	sustainedFailure prometheus.Counter
	dispatchFailures *prometheus.CounterVec
}

// New builds a Registry with all collectors registered into a fresh
// *prometheus.Registry (use Gatherer to expose it over /metrics).
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scouter_ingest_queue_depth",
		Help: "Current number of buffered observation records awaiting flush.",
	}, []string{"drift_type"})

	r.queueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scouter_ingest_dropped_total",
		Help: "Total observation records dropped by backpressure.",
	}, []string{"drift_type"})

	r.flushFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scouter_ingest_flush_failures_total",
		Help: "Total flush cycles that exhausted their retry budget.",
	}, []string{"drift_type"})

	r.claimLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scouter_scheduler_claim_latency_seconds",
		Help:    "Latency of claim_due_entity calls.",
		Buckets: prometheus.DefBuckets,
	})

	r.tickDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scouter_scheduler_tick_duration_seconds",
		Help:    "Duration of one scheduler tick, labeled by drift_type and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"drift_type", "outcome"})

	r.alertsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scouter_alerts_fired_total",
		Help: "Total alerts fired by the evaluator, labeled by drift_type.",
	}, []string{"drift_type"})

	r.sustainedFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scouter_scheduler_sustained_failures_total",
		Help: "Total times an entity crossed the consecutive-failure threshold.",
	})

	r.dispatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scouter_alert_dispatch_failures_total",
		Help: "Total alert dispatch attempts that failed.",
	}, []string{"drift_type"})

	r.reg.MustRegister(
		r.queueDepth, r.queueDropped, r.flushFailures,
		r.claimLatency, r.tickDuration, r.alertsFired,
		r.sustainedFailure, r.dispatchFailures,
	)
	return r
}

// Gatherer exposes the underlying registry, e.g. to promhttp.HandlerFor.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// -- internal/ingest.Metrics --

func (r *Registry) IncDropped(driftType record.DriftType, n int) {
	r.queueDropped.WithLabelValues(string(driftType)).Add(float64(n))
}

func (r *Registry) IncFlushFailures(driftType record.DriftType) {
	r.flushFailures.WithLabelValues(string(driftType)).Inc()
}

func (r *Registry) ObserveQueueDepth(driftType record.DriftType, depth int) {
	r.queueDepth.WithLabelValues(string(driftType)).Set(float64(depth))
}

// -- internal/scheduler.Metrics --

func (r *Registry) ObserveClaimLatency(d time.Duration) {
	r.claimLatency.Observe(d.Seconds())
}

func (r *Registry) ObserveTick(driftType record.DriftType, outcome string, d time.Duration) {
	r.tickDuration.WithLabelValues(string(driftType), outcome).Observe(d.Seconds())
}

func (r *Registry) IncAlertsFired(driftType record.DriftType, n int) {
	r.alertsFired.WithLabelValues(string(driftType)).Add(float64(n))
}

func (r *Registry) IncSustainedFailure(entityID int64) {
	// entityID itself is not a label (unbounded cardinality); the counter
	// tracks occurrences, not identity.
	r.sustainedFailure.Inc()
}

// -- internal/alert.Metrics --

func (r *Registry) IncDispatchFailures(driftType record.DriftType) {
	r.dispatchFailures.WithLabelValues(string(driftType)).Inc()
}
