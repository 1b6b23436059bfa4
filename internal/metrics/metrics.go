package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// LoginAttempts counts marketplace login attempts by outcome
	LoginAttempts *prometheus.CounterVec
	// LoginDuration tracks how long a full login flow takes
	LoginDuration *prometheus.HistogramVec
	// RateLimitDecisions counts limiter verdicts by limit type
	RateLimitDecisions *prometheus.CounterVec
	// CredentialOperations counts credential service operations
	CredentialOperations *prometheus.CounterVec
	// ConnectedAccounts tracks stored connections per marketplace
	ConnectedAccounts *prometheus.GaugeVec
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Total number of marketplace login attempts",
			},
			[]string{"marketplace", "outcome"},
		),
		LoginDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "login_duration_seconds",
				Help:      "Duration of a full marketplace login flow",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"marketplace"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_decisions_total",
				Help:      "Total number of rate limiter verdicts",
			},
			[]string{"limit_type", "allowed"},
		),
		CredentialOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_operations_total",
				Help:      "Total number of credential service operations",
			},
			[]string{"operation", "status"},
		),
		ConnectedAccounts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connected_accounts",
				Help:      "Number of stored marketplace connections",
			},
			[]string{"marketplace"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint", "method"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.LoginAttempts,
		m.LoginDuration,
		m.RateLimitDecisions,
		m.CredentialOperations,
		m.ConnectedAccounts,
		m.ErrorCounter,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordLoginAttempt records the outcome of a marketplace login attempt
func (m *Metrics) RecordLoginAttempt(marketplace, outcome string) {
	m.LoginAttempts.WithLabelValues(marketplace, outcome).Inc()
}

// RecordLoginDuration records how long a login flow took
func (m *Metrics) RecordLoginDuration(marketplace string, durationSeconds float64) {
	m.LoginDuration.WithLabelValues(marketplace).Observe(durationSeconds)
}

// RecordRateLimitDecision records a limiter verdict
func (m *Metrics) RecordRateLimitDecision(limitType string, allowed bool) {
	verdict := "true"
	if !allowed {
		verdict = "false"
	}
	m.RateLimitDecisions.WithLabelValues(limitType, verdict).Inc()
}

// RecordCredentialOperation records a credential service operation
func (m *Metrics) RecordCredentialOperation(operation, status string) {
	m.CredentialOperations.WithLabelValues(operation, status).Inc()
}

// SetConnectedAccounts sets the gauge of stored connections for a marketplace
func (m *Metrics) SetConnectedAccounts(marketplace string, count int) {
	m.ConnectedAccounts.WithLabelValues(marketplace).Set(float64(count))
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, endpoint, method string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint, method).Inc()
}
