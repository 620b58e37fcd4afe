package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TenantsCreated      prometheus.Counter
	TenantsDeleted      prometheus.Counter
	ContextsInitialized prometheus.Counter
	ContextFailures     *prometheus.CounterVec
	ActiveHandles       prometheus.Gauge
	HandleEvictions     prometheus.Counter
	ResolveDuration     prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_tenants_created_total",
			Help: "Total number of tenants created",
		}),
		TenantsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_tenants_deleted_total",
			Help: "Total number of tenants soft-deleted",
		}),
		ContextsInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_tenant_contexts_initialized_total",
			Help: "Total number of tenant contexts initialized",
		}),
		ContextFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_tenant_context_failures_total",
			Help: "Tenant context initialization failures by error code",
		}, []string{"code"}),
		ActiveHandles: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bedrock_tenant_handles_active",
			Help: "Current number of cached tenant connection handles",
		}),
		HandleEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_tenant_handle_evictions_total",
			Help: "Total number of tenant handles evicted from the pool",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bedrock_tenant_resolve_duration_seconds",
			Help:    "Duration of ConnectionRouter.Resolve calls (context critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) ObserveResolve(start time.Time) {
	if m == nil {
		return
	}
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
