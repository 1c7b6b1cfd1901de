package events

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the notification bus.
type Metrics struct {
	connected prometheus.Gauge
	published *prometheus.CounterVec
	dropped   prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the bus metrics against registerer. When registerer is
// nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backoffice_events_connected_clients",
		Help: "Clients currently registered on the change notification bus.",
	})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_events_published_total",
		Help: "Change events published partitioned by topic.",
	}, []string{"topic"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_events_dropped_total",
		Help: "Per-client deliveries dropped because the client outbox was full.",
	})
	registerer.MustRegister(connected, published, dropped)
	return &Metrics{connected: connected, published: published, dropped: dropped}
}

func (m *Metrics) setConnected(n int) {
	if m == nil {
		return
	}
	m.connected.Set(float64(n))
}

// unknownTopicLabel bounds the topic label for events from other builds.
const unknownTopicLabel = "unknown"

func (m *Metrics) incPublished(topic Topic) {
	if m == nil {
		return
	}
	label := string(topic)
	if !topic.Valid() {
		label = unknownTopicLabel
	}
	m.published.WithLabelValues(label).Inc()
}

func (m *Metrics) incDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
