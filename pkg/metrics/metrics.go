// Package metrics exports the relay's Prometheus instrumentation
// (spec.md §7 observability). Counters and histograms are incremented at
// the call sites that know about a single request or delivery attempt;
// Collector periodically samples Repository/Job Engine state into gauges
// that have no natural single-event trigger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ListenersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_listeners_total",
			Help: "Total number of active listeners (accepted Follows).",
		},
	)

	ContactsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_contacts_total",
			Help: "Number of connected-host contact records by state.",
		},
		[]string{"state"},
	)

	JobQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_job_queue_depth",
			Help: "Number of jobs by queue and status.",
		},
		[]string{"queue", "status"},
	)

	InboxRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_inbox_requests_total",
			Help: "Total inbox deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	InboxRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_inbox_request_duration_seconds",
			Help:    "Time to process an inbox delivery end to end.",
			Buckets: prometheus.DefBuckets,
		},
	)

	DedupSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dedup_suppressed_total",
			Help: "Total Announce/Create fan-outs suppressed as duplicates.",
		},
	)

	DeliveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_attempts_total",
			Help: "Total outbound delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_delivery_duration_seconds",
			Help:    "Time taken to deliver a signed activity to a remote inbox.",
			Buckets: prometheus.DefBuckets,
		},
	)

	MaintenanceSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_maintenance_sweeps_total",
			Help: "Total maintenance sweeps run, by sweep name and outcome.",
		},
		[]string{"sweep", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ListenersTotal,
		ContactsByState,
		JobQueueDepth,
		InboxRequestsTotal,
		InboxRequestDuration,
		DedupSuppressedTotal,
		DeliveryAttemptsTotal,
		DeliveryDuration,
		MaintenanceSweepsTotal,
	)
}

// Handler returns the Prometheus scrape handler (spec.md §6, mounted at
// PROMETHEUS_ADDR:PROMETHEUS_PORT rather than the public API).
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
