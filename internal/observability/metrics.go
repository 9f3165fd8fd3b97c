package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	scansProcessedTotal   *prometheus.CounterVec
	scanProcessingSeconds prometheus.Histogram
	scoresGradedTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omr_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omr_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omr_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		scansProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omr_scans_processed_total",
			Help: "Total number of scan processing passes by terminal status.",
		}, []string{"status"})

		scanProcessingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "omr_scan_processing_seconds",
			Help:    "Latency distribution for scan interpretation and grading.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		scoresGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omr_scores_graded_total",
			Help: "Total number of score rows graded, by mode.",
		}, []string{"mode"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			scansProcessedTotal,
			scanProcessingSeconds,
			scoresGradedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ScansProcessed exposes the counter for scan processing passes.
func ScansProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return scansProcessedTotal
}

// ScanProcessingLatency exposes the scan processing histogram.
func ScanProcessingLatency() prometheus.Histogram {
	RegisterMetrics()
	return scanProcessingSeconds
}

// ScoresGraded exposes the counter for graded score rows.
func ScoresGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return scoresGradedTotal
}
