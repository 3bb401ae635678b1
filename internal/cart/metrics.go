package cart

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the cart counters. A nil *Metrics records nothing.
type Metrics struct {
	mutations     *prometheus.CounterVec
	storageErrors *prometheus.CounterVec
	corruptLoads  prometheus.Counter
	subscribers   prometheus.Gauge
}

// NewMetrics registers the cart collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manga_cart_mutations_total",
				Help: "Cart mutations by operation",
			},
			[]string{"op"},
		),
		storageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manga_cart_storage_errors_total",
				Help: "Failed backend reads and writes by operation",
			},
			[]string{"op"},
		),
		corruptLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manga_cart_corrupt_loads_total",
			Help: "Persisted carts that could not be decoded and were treated as empty",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "manga_cart_event_subscribers",
			Help: "Open cart change streams",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.mutations, m.storageErrors, m.corruptLoads, m.subscribers)
	}
	return m
}

func (m *Metrics) mutation(op string) {
	if m != nil {
		m.mutations.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) storageError(op string) {
	if m != nil {
		m.storageErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) corrupt() {
	if m != nil {
		m.corruptLoads.Inc()
	}
}

// SubscriberOpened and SubscriberClosed track live change streams.
func (m *Metrics) SubscriberOpened() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) SubscriberClosed() {
	if m != nil {
		m.subscribers.Dec()
	}
}
