package ring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ringwire/streamserver/metric"
)

// ringMetrics holds Prometheus metrics for ring operations, mirroring
// pkg/buffer's bufferMetrics shape.
type ringMetrics struct {
	writes      prometheus.Counter
	reads       prometheus.Counter
	wraparounds prometheus.Counter
	fill        prometheus.Gauge
	txRate      prometheus.Gauge
	rxRate      prometheus.Gauge
}

func newRingMetrics(registry *metric.MetricsRegistry, prefix string) (*ringMetrics, error) {
	m := &ringMetrics{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringwire",
			Subsystem:   "ring",
			Name:        "writes_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of packets written into the ring",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringwire",
			Subsystem:   "ring",
			Name:        "reads_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of packets delivered to a reader cursor",
		}),
		wraparounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringwire",
			Subsystem:   "ring",
			Name:        "wraparounds_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of times a write overwrote the oldest live packet",
		}),
		fill: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringwire",
			Subsystem:   "ring",
			Name:        "fill_ratio",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Fraction of ring capacity currently holding live packets",
		}),
		txRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringwire",
			Subsystem:   "ring",
			Name:        "tx_rate",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Aggregate transmit rate across all live clients",
		}),
		rxRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringwire",
			Subsystem:   "ring",
			Name:        "rx_rate",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Aggregate receive rate across all live clients",
		}),
	}

	if err := registry.RegisterCounter(prefix, "ring_writes", m.writes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "ring_reads", m.reads); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "ring_wraparounds", m.wraparounds); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "ring_fill_ratio", m.fill); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "ring_tx_rate", m.txRate); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "ring_rx_rate", m.rxRate); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *ringMetrics) recordWrite(filled, capacity uint64) {
	m.writes.Inc()
	m.fill.Set(float64(filled) / float64(capacity))
}

func (m *ringMetrics) recordRead() {
	m.reads.Inc()
}

func (m *ringMetrics) recordWraparound() {
	m.wraparounds.Inc()
}

func (m *ringMetrics) setAggregateRates(tx, rx float64) {
	m.txRate.Set(tx)
	m.rxRate.Set(rx)
}
