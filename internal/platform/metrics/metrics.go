package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the watch controller.
type Metrics struct {
	registry                 *prometheus.Registry
	requestsTotal            prometheus.Counter
	errorsTotal              prometheus.Counter
	requestDuration          prometheus.Histogram
	sessionsStartedTotal     prometheus.Counter
	sessionCollisionsTotal   prometheus.Counter
	provenanceRejectedTotal  prometheus.Counter
	resolutionsTotal         prometheus.Counter
	resolutionFailuresTotal  prometheus.Counter
	recoveriesTotal          *prometheus.CounterVec
	recoveriesExhaustedTotal prometheus.Counter
	freshSessions            prometheus.Gauge
}

// New creates and registers Prometheus metrics for the watch controller.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	requestDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "watch_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
	sessionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_sessions_started_total",
		Help: "Total number of content sessions successfully started",
	})
	sessionCollisionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_session_collisions_total",
		Help: "Total number of session attempts rejected because a fresh session already existed",
	})
	provenanceRejectedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_provenance_rejected_total",
		Help: "Total number of session attempts rejected for missing or unrecognized provenance",
	})
	resolutionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_locator_resolutions_total",
		Help: "Total number of successful media locator resolutions",
	})
	resolutionFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_locator_resolution_failures_total",
		Help: "Total number of failed media locator resolutions",
	})
	recoveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_recoveries_total",
		Help: "Total number of successful playback recoveries by strategy",
	}, []string{"step"})
	recoveriesExhaustedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_recoveries_exhausted_total",
		Help: "Total number of recovery pipelines that exhausted every strategy",
	})
	freshSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watch_fresh_sessions",
		Help: "Number of content sessions younger than the tolerance window",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		requestDuration,
		sessionsStartedTotal,
		sessionCollisionsTotal,
		provenanceRejectedTotal,
		resolutionsTotal,
		resolutionFailuresTotal,
		recoveriesTotal,
		recoveriesExhaustedTotal,
		freshSessions,
	)

	return &Metrics{
		registry:                 registry,
		requestsTotal:            requestsTotal,
		errorsTotal:              errorsTotal,
		requestDuration:          requestDuration,
		sessionsStartedTotal:     sessionsStartedTotal,
		sessionCollisionsTotal:   sessionCollisionsTotal,
		provenanceRejectedTotal:  provenanceRejectedTotal,
		resolutionsTotal:         resolutionsTotal,
		resolutionFailuresTotal:  resolutionFailuresTotal,
		recoveriesTotal:          recoveriesTotal,
		recoveriesExhaustedTotal: recoveriesExhaustedTotal,
		freshSessions:            freshSessions,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

// ObserveRequestDuration records one request duration in seconds.
func (m *Metrics) ObserveRequestDuration(seconds float64) { m.requestDuration.Observe(seconds) }

// IncSessionsStarted increments the sessions started counter.
func (m *Metrics) IncSessionsStarted() { m.sessionsStartedTotal.Inc() }

// IncSessionCollisions increments the session collision counter.
func (m *Metrics) IncSessionCollisions() { m.sessionCollisionsTotal.Inc() }

// IncProvenanceRejected increments the provenance rejection counter.
func (m *Metrics) IncProvenanceRejected() { m.provenanceRejectedTotal.Inc() }

// IncResolutions increments the successful resolution counter.
func (m *Metrics) IncResolutions() { m.resolutionsTotal.Inc() }

// IncResolutionFailures increments the failed resolution counter.
func (m *Metrics) IncResolutionFailures() { m.resolutionFailuresTotal.Inc() }

// IncRecoveries increments the recovery counter for the given strategy step.
func (m *Metrics) IncRecoveries(step string) { m.recoveriesTotal.WithLabelValues(step).Inc() }

// IncRecoveriesExhausted increments the exhausted recovery counter.
func (m *Metrics) IncRecoveriesExhausted() { m.recoveriesExhaustedTotal.Inc() }

// SetFreshSessions sets the fresh sessions gauge.
func (m *Metrics) SetFreshSessions(n int) { m.freshSessions.Set(float64(n)) }

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. fresh sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
