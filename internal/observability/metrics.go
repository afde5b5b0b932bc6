package observability

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	trackerRequestsTotal   *prometheus.CounterVec
	trackerLatencySeconds  *prometheus.HistogramVec
	trackerRetriesTotal    *prometheus.CounterVec
	trackerThrottleSeconds prometheus.Histogram
	checkInsTotal          *prometheus.CounterVec
	tagsIssuedTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for tracker sync
// observability.
func RegisterMetrics() {
	registerOnce.Do(func() {
		trackerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_requests_total",
			Help: "Total number of HTTP requests sent to the asset tracker.",
		}, []string{"method", "route", "status"})

		trackerLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_latency_seconds",
			Help:    "Latency distribution for tracker API calls.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		trackerRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_retries_total",
			Help: "Total number of retried tracker calls.",
		}, []string{"method", "route"})

		trackerThrottleSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_throttle_wait_seconds",
			Help:    "Time spent waiting on the outbound rate limiter.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		})

		checkInsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_checkins_total",
			Help: "Total number of device check-in attempts by outcome.",
		}, []string{"outcome"})

		tagsIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_tags_issued_total",
			Help: "Total number of asset tags issued per prefix.",
		}, []string{"prefix"})

		prometheus.MustRegister(
			trackerRequestsTotal,
			trackerLatencySeconds,
			trackerRetriesTotal,
			trackerThrottleSeconds,
			checkInsTotal,
			tagsIssuedTotal,
		)
	})
}

// CheckIns exposes the check-in outcome counter.
func CheckIns() *prometheus.CounterVec {
	RegisterMetrics()
	return checkInsTotal
}

// TagsIssued exposes the issued tag counter.
func TagsIssued() *prometheus.CounterVec {
	RegisterMetrics()
	return tagsIssuedTotal
}

// TrackerMetrics adapts the collectors to the tracker client's Metrics
// interface.
type TrackerMetrics struct{}

// NewTrackerMetrics returns the prometheus-backed tracker instrumentation.
func NewTrackerMetrics() TrackerMetrics {
	RegisterMetrics()
	return TrackerMetrics{}
}

func (TrackerMetrics) ObserveRequest(method, route string, status int, seconds float64) {
	trackerRequestsTotal.WithLabelValues(method, route, fmt.Sprintf("%d", status)).Inc()
	trackerLatencySeconds.WithLabelValues(method, route).Observe(seconds)
}

func (TrackerMetrics) ObserveRetry(method, route string) {
	trackerRetriesTotal.WithLabelValues(method, route).Inc()
}

func (TrackerMetrics) ObserveThrottleWait(seconds float64) {
	trackerThrottleSeconds.Observe(seconds)
}
