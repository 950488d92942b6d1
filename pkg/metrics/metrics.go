// Package metrics holds the Prometheus collectors for a compile run.
// The CLI is short-lived, so collectors are dumped to a node_exporter
// textfile instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes.
const (
	Hit   = "hit"
	Miss  = "miss"
	Stale = "stale"
	Error = "error"
)

var (
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "friday_source_fetch_duration_seconds",
			Help:    "Adapter fetch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"source", "status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friday_cache_lookups_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"source", "outcome"},
	)

	DroppedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friday_dropped_records_total",
			Help: "Raw records rejected by the normalizer",
		},
		[]string{"source"},
	)

	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "friday_compile_duration_seconds",
			Help:    "Bundle compilation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"period"},
	)
)

func RecordFetch(source, status string, d time.Duration) {
	FetchDuration.WithLabelValues(source, status).Observe(d.Seconds())
}

func RecordCacheLookup(source, outcome string) {
	CacheLookups.WithLabelValues(source, outcome).Inc()
}

func IncrementDropped(source string, n int) {
	if n <= 0 {
		return
	}
	DroppedRecords.WithLabelValues(source).Add(float64(n))
}

func RecordCompile(period string, d time.Duration) {
	CompileDuration.WithLabelValues(period).Observe(d.Seconds())
}

// WriteTextfile writes every registered collector to path atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
