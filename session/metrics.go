package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the session's prometheus collectors.
type Metrics struct {
	Cycles          prometheus.Counter
	CycleDuration   prometheus.Histogram
	Entities        prometheus.Gauge
	EntitiesDropped prometheus.Counter
	SamplesSkipped  prometheus.Counter
	Retries         prometheus.Counter
	State           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memwatch",
			Name:      "cycles_total",
			Help:      "Completed sampling cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memwatch",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent executing the batch and building snapshots.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		Entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memwatch",
			Name:      "entities",
			Help:      "Entities resolved by the last enumeration.",
		}),
		EntitiesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memwatch",
			Name:      "entities_dropped_total",
			Help:      "Entities that failed to resolve during enumeration.",
		}),
		SamplesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memwatch",
			Name:      "samples_skipped_total",
			Help:      "Entities skipped in a cycle because a cached value was unreadable.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memwatch",
			Name:      "session_retries_total",
			Help:      "Times the session was lost and retried.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memwatch",
			Name:      "session_state",
			Help:      "Current session state (0 uninitialized .. 5 terminated).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Cycles, m.CycleDuration, m.Entities, m.EntitiesDropped, m.SamplesSkipped, m.Retries, m.State)
	}
	return m
}
