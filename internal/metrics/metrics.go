package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the frontend's Prometheus collectors.
type Metrics struct {
	// Outbound gateway calls
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec

	// Token probe / refresh outcomes
	AuthChecks *prometheus.CounterVec

	// Authorization decisions that denied a request
	AccessDenials *prometheus.CounterVec

	// PII values that looked encrypted but could not be decrypted
	DecryptFailures prometheus.Counter

	// Session store operations
	SessionStoreErrors *prometheus.CounterVec
}

// NewMetrics registers all collectors with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		GatewayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontend_gateway_requests_total",
				Help: "Outbound gateway requests by target, method and result kind",
			},
			[]string{"target", "method", "kind"},
		),
		GatewayLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frontend_gateway_request_duration_seconds",
				Help:    "Outbound gateway request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target", "method"},
		),
		AuthChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontend_auth_checks_total",
				Help: "Per-request token validation outcomes",
			},
			[]string{"outcome"},
		),
		AccessDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontend_access_denials_total",
				Help: "Requests rejected by authorization guards",
			},
			[]string{"guard", "kind"},
		),
		DecryptFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "frontend_pii_decrypt_failures_total",
				Help: "Encrypted-looking values that failed to decrypt",
			},
		),
		SessionStoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontend_session_store_errors_total",
				Help: "Session store failures by operation",
			},
			[]string{"op"},
		),
	}
}

// NewRegistry creates a new Prometheus registry with metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	return reg, m
}

// HandlerFor returns an HTTP handler for a specific registry.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveGateway records one outbound call. Safe on a nil receiver.
func (m *Metrics) ObserveGateway(target, method, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(target, method, kind).Inc()
	m.GatewayLatency.WithLabelValues(target, method).Observe(d.Seconds())
}

// ObserveAuthCheck records a token validation outcome. Safe on a nil receiver.
func (m *Metrics) ObserveAuthCheck(outcome string) {
	if m == nil {
		return
	}
	m.AuthChecks.WithLabelValues(outcome).Inc()
}

// ObserveDenial records an authorization denial. Safe on a nil receiver.
func (m *Metrics) ObserveDenial(guard, kind string) {
	if m == nil {
		return
	}
	m.AccessDenials.WithLabelValues(guard, kind).Inc()
}

// ObserveDecryptFailure is safe on a nil receiver.
func (m *Metrics) ObserveDecryptFailure() {
	if m == nil {
		return
	}
	m.DecryptFailures.Inc()
}

// ObserveStoreError is safe on a nil receiver.
func (m *Metrics) ObserveStoreError(op string) {
	if m == nil {
		return
	}
	m.SessionStoreErrors.WithLabelValues(op).Inc()
}
