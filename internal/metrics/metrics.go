// Package metrics exposes Prometheus collectors for routing, caching and execution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Classification metrics
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentrouter_classifications_total",
			Help: "Total number of requests classified, by intent source",
		},
		[]string{"source"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentrouter_escalations_total",
			Help: "Total number of escalation triggers, by reason",
		},
		[]string{"reason"},
	)

	EscalationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intentrouter_escalation_failures_total",
			Help: "Total number of escalations that fell back to the rule intent",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intentrouter_cache_hits_total",
			Help: "Total number of intent cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intentrouter_cache_misses_total",
			Help: "Total number of intent cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intentrouter_cache_evictions_total",
			Help: "Total number of entries evicted from the intent cache",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intentrouter_cache_entries",
			Help: "Current number of entries in the intent cache",
		},
	)

	CacheFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intentrouter_cache_flush_errors_total",
			Help: "Total number of failed write-behind flushes to the cache store",
		},
	)

	// Execution metrics
	Subtasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentrouter_subtasks_total",
			Help: "Total number of subtasks finished, by terminal status",
		},
		[]string{"status"},
	)

	SubtaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intentrouter_subtask_duration_seconds",
			Help:    "Subtask execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentrouter_runs_total",
			Help: "Total number of routed requests, by execution mode",
		},
		[]string{"mode"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intentrouter_run_duration_seconds",
			Help:    "Wall-clock duration of a routed request in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	SerialFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intentrouter_serial_fallbacks_total",
			Help: "Total number of parallel plans that fell back to serial execution",
		},
		[]string{"reason"},
	)
)
