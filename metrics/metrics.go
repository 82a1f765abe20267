// Package metrics exposes the Prometheus instrumentation of the service:
// inference outcomes and latency, model construction, history writes, the
// worker pool and the HTTP adapter. Collectors register with the default
// registry on import and are served by promhttp under /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inference Metrics
	InferenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_inference_total",
			Help: "Total number of analyses by modality and outcome",
		},
		[]string{"modality", "outcome"}, // outcome: "ok", "degraded"
	)

	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mood_inference_duration_seconds",
			Help:    "Duration of analyses in seconds, including model lookup",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"modality"},
	)

	// Model Loader Metrics
	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_model_loads_total",
			Help: "Total number of model constructions by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	ModelLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mood_model_load_duration_seconds",
			Help:    "Duration of model construction in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	// History Metrics
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_history_writes_total",
			Help: "Total number of history writes by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Worker Pool Metrics
	WorkerInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mood_worker_jobs_in_flight",
			Help: "Current number of jobs running on the worker pool",
		},
	)

	WorkerDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mood_worker_jobs_dropped_total",
			Help: "Jobs abandoned before they started because the caller left",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mood_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func outcome(degraded bool) string {
	if degraded {
		return "degraded"
	}
	return "ok"
}

// RecordInference records one analysis.
func RecordInference(modality string, degraded bool, duration time.Duration) {
	InferenceTotal.WithLabelValues(modality, outcome(degraded)).Inc()
	InferenceDuration.WithLabelValues(modality).Observe(duration.Seconds())
}

// RecordModelLoad records one model construction.
func RecordModelLoad(model string, degraded bool, duration time.Duration) {
	ModelLoads.WithLabelValues(model, outcome(degraded)).Inc()
	ModelLoadDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordHistoryWrite records a history write result.
func RecordHistoryWrite(err error) {
	if err != nil {
		HistoryWrites.WithLabelValues("error").Inc()
		return
	}
	HistoryWrites.WithLabelValues("ok").Inc()
}

// TrackWorkerJob tracks jobs running on the worker pool.
func TrackWorkerJob(inc bool) {
	if inc {
		WorkerInFlight.Inc()
	} else {
		WorkerInFlight.Dec()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
