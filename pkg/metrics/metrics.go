// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documind_files_ingested_total",
			Help: "Files ingested and indexed, labelled by domain",
		},
		[]string{"domain"},
	)

	IngestFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "documind_ingest_failures_total",
			Help: "Files that failed during ingestion",
		},
	)

	DuplicatesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "documind_duplicates_detected_total",
			Help: "Incoming files whose content hash matched an already indexed file; they are still processed",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "documind_ingest_duration_seconds",
			Help:    "End-to-end ingestion time per file",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	Queries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "documind_queries_total",
			Help: "Chat queries answered",
		},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "documind_query_duration_seconds",
			Help:    "End-to-end query pipeline time",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	AccessDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documind_access_denials_total",
			Help: "Chunks filtered out by role-based access checks",
		},
		[]string{"role"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "documind_ingest_queue_depth",
			Help: "Files waiting in the ingest queue",
		},
	)
)
