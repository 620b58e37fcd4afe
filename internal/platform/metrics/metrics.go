package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	EndpointLatency   *prometheus.HistogramVec
	AuthFailures      prometheus.Counter
	PermissionDenials prometheus.Counter
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_http_requests_total",
			Help: "HTTP requests served, labeled by route and status class",
		}, []string{"route", "status"}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bedrock_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		PermissionDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_permission_denials_total",
			Help: "Requests rejected by the permission guard",
		}),
	}
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

// IncrementAuthFailures increments the auth failure counter.
func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailures.Inc()
}

// IncrementPermissionDenials increments the permission denial counter.
func (m *Metrics) IncrementPermissionDenials() {
	m.PermissionDenials.Inc()
}
