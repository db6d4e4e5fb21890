package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	requestsTotal       *prometheus.CounterVec
	latencySeconds      *prometheus.HistogramVec
	errorsTotal         *prometheus.CounterVec
	attemptsStarted     prometheus.Counter
	submissionsGraded   *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	sseClients          prometheus.Gauge
	studySweepCompleted prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the quiz engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_engine_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_engine_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_engine_errors_total",
			Help: "Total number of error responses returned.",
		}, []string{"method", "route", "status"})

		attemptsStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Total number of quiz attempts opened.",
		})

		submissionsGraded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submissions_graded_total",
			Help: "Total number of submissions graded, by grading mode.",
		}, []string{"mode"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notifications published, by type.",
		}, []string{"type"})

		sseClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_sse_clients_active",
			Help: "Number of currently connected SSE notification streams.",
		})

		studySweepCompleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "study_sweep_transitions_total",
			Help: "Total number of study lifecycle transitions applied by the sweeper.",
		})

		prometheus.MustRegister(
			requestsTotal,
			latencySeconds,
			errorsTotal,
			attemptsStarted,
			submissionsGraded,
			notificationsTotal,
			sseClients,
			studySweepCompleted,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// AttemptsStartedTotal exposes the counter for opened quiz attempts.
func AttemptsStartedTotal() prometheus.Counter {
	RegisterMetrics()
	return attemptsStarted
}

// SubmissionsGradedTotal exposes the counter for graded submissions.
func SubmissionsGradedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsGraded
}

// NotificationsPublishedTotal exposes the counter for published notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SSEClientsActive exposes the gauge for connected notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClients
}

// StudySweepTransitionsTotal exposes the counter for sweep transitions.
func StudySweepTransitionsTotal() prometheus.Counter {
	RegisterMetrics()
	return studySweepCompleted
}
