// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of ingestion runs, labeled by source and terminal status.",
		},
		[]string{"source", "status"},
	)
	PostingsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_postings_processed_total",
			Help: "Total number of postings processed, labeled by source and classification.",
		},
		[]string{"source", "class"},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_fetch_errors_total",
			Help: "Total number of page fetch failures, labeled by source.",
		},
		[]string{"source"},
	)
	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_parse_errors_total",
			Help: "Total number of listings dropped during parsing, labeled by source.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(PostingsProcessed)
	prometheus.MustRegister(FetchErrorsTotal)
	prometheus.MustRegister(ParseErrorsTotal)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
