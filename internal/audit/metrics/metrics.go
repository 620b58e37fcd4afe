// Package metrics exposes Prometheus collectors for the audit trail.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EntriesWritten *prometheus.CounterVec
	SecurityEvents prometheus.Counter
	WriteFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EntriesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_audit_entries_written_total",
			Help: "Audit entries written, labelled by destination store",
		}, []string{"store"}),
		SecurityEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_audit_security_events_total",
			Help: "Security-relevant audit events recorded",
		}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_audit_write_failures_total",
			Help: "Audit writes that failed to persist",
		}),
	}
}
