package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamaah_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jamaah_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ScrapesTotal counts source scrapes by mosque and outcome confidence (high, low, none, failed).
	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamaah_scrapes_total",
			Help: "Total number of mosque source scrapes.",
		},
		[]string{"mosque", "outcome"},
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jamaah_scrape_duration_seconds",
			Help:    "Duration of a single mosque source scrape.",
			Buckets: []float64{1, 5, 10, 15, 30, 60},
		},
		[]string{"mosque"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jamaah_run_duration_seconds",
			Help:    "Duration of a full scrape run over the registry.",
			Buckets: []float64{10, 30, 60, 120, 300, 600},
		},
	)

	SnapshotRegenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamaah_snapshot_regenerations_total",
			Help: "Snapshots produced by a scrape run, by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamaah_cache_lookups_total",
			Help: "Daily cache lookups by tier (memory, store, miss).",
		},
		[]string{"tier"},
	)
)
