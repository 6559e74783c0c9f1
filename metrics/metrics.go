// Package metrics provides Prometheus metrics collection for the lab reference API.
// It exports HTTP request metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// and reference data metrics:
//   - labref_classifications_total: Counter with biomaterial and status labels
//   - labref_reloads_total: Counter with trigger and result labels
//   - labref_reload_duration_seconds: Histogram of snapshot build time
//   - labref_snapshot_items: Gauge with kind label (catalogs, biomaterials, studies, tests)
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Client IPs holding a rate limiter bucket",
		},
	)

	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labref_classifications_total",
			Help: "Values classified against a reference range",
		},
		[]string{"biomaterial", "status"},
	)

	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labref_reloads_total",
			Help: "Reference set reloads",
		},
		[]string{"trigger", "result"},
	)

	ReloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labref_reload_duration_seconds",
			Help:    "Time to build a reference snapshot",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	SnapshotItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labref_snapshot_items",
			Help: "Items in the current reference snapshot",
		},
		[]string{"kind"},
	)
)

// Classification statuses that are not a range outcome
const (
	StatusUnresolved = "unresolved"
	StatusError      = "error"
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(ReloadsTotal)
	prometheus.MustRegister(ReloadDuration)
	prometheus.MustRegister(SnapshotItems)
}

// ObserveClassification counts one classified value. An empty status counts
// as unresolved.
func ObserveClassification(biomaterial, status string) {
	if status == "" {
		status = StatusUnresolved
	}
	ClassificationsTotal.WithLabelValues(biomaterial, status).Inc()
}

// ObserveReload records the outcome of a snapshot build started at start
func ObserveReload(trigger string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ReloadsTotal.WithLabelValues(trigger, result).Inc()
	ReloadDuration.Observe(time.Since(start).Seconds())
}

// SetSnapshotItems publishes the size of the active snapshot
func SetSnapshotItems(catalogs, biomaterials, studies, tests int) {
	SnapshotItems.WithLabelValues("catalogs").Set(float64(catalogs))
	SnapshotItems.WithLabelValues("biomaterials").Set(float64(biomaterials))
	SnapshotItems.WithLabelValues("studies").Set(float64(studies))
	SnapshotItems.WithLabelValues("tests").Set(float64(tests))
}
