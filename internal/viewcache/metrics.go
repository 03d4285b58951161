package viewcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Lookups       *prometheus.CounterVec
	Invalidations prometheus.Counter
	RemoteEvents  *prometheus.CounterVec
	StaleWrites   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_view_cache_lookups_total",
			Help: "View cache lookups labeled hit or miss",
		}, []string{"result"}),
		Invalidations: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_view_cache_invalidations_total",
			Help: "Cached views dropped after mutations",
		}),
		RemoteEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_view_cache_remote_events_total",
			Help: "Invalidation broadcasts labeled by direction and outcome",
		}, []string{"direction", "outcome"}),
		StaleWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_view_cache_stale_writes_total",
			Help: "Rendered views discarded because an invalidation ran while they rendered",
		}),
	}
}

func (m *Metrics) observeLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.Lookups.WithLabelValues("hit").Inc()
		return
	}
	m.Lookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) addInvalidations(n int) {
	if m == nil {
		return
	}
	m.Invalidations.Add(float64(n))
}

func (m *Metrics) incRemote(direction, outcome string) {
	if m == nil {
		return
	}
	m.RemoteEvents.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) observeStaleWrite() {
	if m == nil {
		return
	}
	m.StaleWrites.Inc()
}
