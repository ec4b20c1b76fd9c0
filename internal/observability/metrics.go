package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	evaluationsTotal      *prometheus.CounterVec
	recordFailuresTotal   prometheus.Counter
	levelProgressionTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cefr_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cefr_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cefr_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cefr_evaluations_total",
			Help: "Completed evaluation rounds by round and resulting level.",
		}, []string{"round", "level"})

		recordFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cefr_evaluation_record_failures_total",
			Help: "Per-answer evaluation records that could not be stored.",
		})

		levelProgressionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cefr_level_progression_total",
			Help: "Final rounds by whether the level moved at most one step from the first round.",
		}, []string{"plausible"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, httpErrorsTotal, evaluationsTotal, recordFailuresTotal, levelProgressionTotal)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EvaluationsCompleted counts finished rounds.
func EvaluationsCompleted() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationRecordFailures counts per-answer records lost by the best-effort save loop.
func EvaluationRecordFailures() prometheus.Counter {
	RegisterMetrics()
	return recordFailuresTotal
}

// LevelProgression counts plausible and implausible final levels.
func LevelProgression() *prometheus.CounterVec {
	RegisterMetrics()
	return levelProgressionTotal
}
