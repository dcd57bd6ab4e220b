// Package metrics exposes run counters for the daemon's /metrics
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caltransform_runs_total",
		Help: "Total merge runs, labelled by outcome.",
	}, []string{"outcome"})

	RecordsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caltransform_records_fetched_total",
		Help: "Total source records fetched across all runs.",
	})

	RecordsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caltransform_records_inserted_total",
		Help: "Total records appended to the destination.",
	})

	RecordsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caltransform_records_deleted_total",
		Help: "Total destination records removed, labelled by trigger.",
	}, []string{"reason"})

	MutationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caltransform_mutation_errors_total",
		Help: "Total failed destination inserts and deletes (logged and skipped).",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caltransform_run_duration_seconds",
		Help:    "End-to-end merge run duration.",
		Buckets: prometheus.DefBuckets,
	})
)
