package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes.
const (
	OutcomeResolved     = "resolved"
	OutcomeEmpty        = "empty"
	OutcomeUnknown      = "unknown"
	OutcomeStoreFailure = "store_failure"
)

type Metrics struct {
	Resolutions *prometheus.CounterVec
	BreakerOpen prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_tenant_resolutions_total",
			Help: "Tenant resolutions by outcome; anything but resolved served the fallback tenant",
		}, []string{"outcome"}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "portal_tenant_store_breaker_open",
			Help: "1 while the tenant store circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
