// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagevault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagevault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imagevault_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Upload pipeline metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagevault_uploads_total",
			Help: "Total number of upload attempts by result",
		},
		[]string{"result"}, // "ok", "invalid", "error"
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagevault_upload_bytes_total",
			Help: "Total bytes of original images stored",
		},
	)

	ThumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imagevault_thumbnail_duration_seconds",
			Help:    "Time spent decoding, resizing and encoding thumbnails",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Index metrics
var (
	IndexOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagevault_index_operation_duration_seconds",
			Help:    "Metadata index operation duration in seconds, including lock wait",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"}, // "load", "save", "add", "get"
	)

	IndexRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imagevault_index_records",
			Help: "Number of records in the metadata index at the last write",
		},
	)

	IndexCorruptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagevault_index_corrupt_reads_total",
			Help: "Number of index reads that found an unparseable file",
		},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imagevault_search_results",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10},
		},
	)
)

// Sweeper metrics
var (
	OrphansRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagevault_orphans_removed_total",
			Help: "Number of orphaned image directories removed by the sweeper",
		},
	)
)

// Auth metrics
var (
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagevault_rate_limited_requests_total",
			Help: "Requests rejected by the auth rate limiter",
		},
		[]string{"path"},
	)
)
