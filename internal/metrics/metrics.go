package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Isolation holds the Prometheus metrics for the tenant isolation layer.
// A nil *Isolation is valid and records nothing.
type Isolation struct {
	LeakAttempts       *prometheus.CounterVec
	UnsafeQueries      *prometheus.CounterVec
	CrossTenantDenied  prometheus.Counter
	PoolsCreated       prometheus.Counter
	PoolCreateFailures prometheus.Counter
	PoolsCached        prometheus.Gauge
	PoolSweeps         prometheus.Counter
	AuditWrites        *prometheus.CounterVec
}

// NewIsolation registers the isolation metrics with reg.
func NewIsolation(reg prometheus.Registerer) *Isolation {
	f := promauto.With(reg)

	return &Isolation{
		LeakAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trainhub",
			Subsystem: "tenancy",
			Name:      "leak_attempts_total",
			Help:      "Queries rejected because the session tenant context did not match.",
		}, []string{"reason"}), // reason: missing, mismatch, unverifiable
		UnsafeQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trainhub",
			Subsystem: "tenancy",
			Name:      "unsafe_queries_total",
			Help:      "Raw queries rejected by the dangerous pattern guard.",
		}, []string{"rule"}),
		CrossTenantDenied: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trainhub",
			Subsystem: "tenancy",
			Name:      "cross_tenant_denied_total",
			Help:      "Cross-tenant access attempts from facades without the capability.",
		}),
		PoolsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trainhub",
			Subsystem: "pool",
			Name:      "created_total",
			Help:      "Tenant connection pools created.",
		}),
		PoolCreateFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trainhub",
			Subsystem: "pool",
			Name:      "create_failures_total",
			Help:      "Tenant connection pool creation failures.",
		}),
		PoolsCached: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trainhub",
			Subsystem: "pool",
			Name:      "cached",
			Help:      "Tenant connection pools currently in the lookup table.",
		}),
		PoolSweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trainhub",
			Subsystem: "pool",
			Name:      "sweeps_total",
			Help:      "Full pool cache evictions.",
		}),
		AuditWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trainhub",
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Audit sink writes by result.",
		}, []string{"result"}), // result: ok, error, dropped
	}
}

func (m *Isolation) LeakAttempt(reason string) {
	if m == nil {
		return
	}
	m.LeakAttempts.WithLabelValues(reason).Inc()
}

func (m *Isolation) UnsafeQuery(rule string) {
	if m == nil {
		return
	}
	m.UnsafeQueries.WithLabelValues(rule).Inc()
}

func (m *Isolation) CrossTenantDenial() {
	if m == nil {
		return
	}
	m.CrossTenantDenied.Inc()
}

func (m *Isolation) PoolCreated(cached int) {
	if m == nil {
		return
	}
	m.PoolsCreated.Inc()
	m.PoolsCached.Set(float64(cached))
}

func (m *Isolation) PoolCreateFailure() {
	if m == nil {
		return
	}
	m.PoolCreateFailures.Inc()
}

func (m *Isolation) PoolSweep() {
	if m == nil {
		return
	}
	m.PoolSweeps.Inc()
	m.PoolsCached.Set(0)
}

func (m *Isolation) AuditWrite(result string) {
	if m == nil {
		return
	}
	m.AuditWrites.WithLabelValues(result).Inc()
}
