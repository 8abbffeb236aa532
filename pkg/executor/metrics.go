package executor

import (
	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venuebook"

type Metrics struct {
	committed  *prometheus.CounterVec
	rolledBack *prometheus.CounterVec
	pending    prometheus.Gauge
}

// NewMetrics creates the executor collectors and registers them on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "mutations_committed_total",
			Help:      "Booking mutations persisted, by origin.",
		}, []string{"origin"}),
		rolledBack: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "mutations_rolled_back_total",
			Help:      "Booking mutations reverted after a persistence failure, by origin.",
		}, []string{"origin"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "mutations_pending",
			Help:      "Booking mutations applied locally and not yet persisted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.committed, m.rolledBack, m.pending)
	}
	return m
}

func (m *Metrics) mutationQueued() {
	m.pending.Inc()
}

func (m *Metrics) mutationCommitted(origin event_bus.MutationOrigin) {
	m.pending.Dec()
	m.committed.WithLabelValues(string(origin)).Inc()
}

func (m *Metrics) mutationRolledBack(origin event_bus.MutationOrigin) {
	m.pending.Dec()
	m.rolledBack.WithLabelValues(string(origin)).Inc()
}
