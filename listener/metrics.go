package listener

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ringwire/streamserver/metric"
)

type listenerMetrics struct {
	accepted prometheus.Counter
	rejected prometheus.Counter
}

func newListenerMetrics(registry *metric.MetricsRegistry, port string) (*listenerMetrics, error) {
	m := &listenerMetrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringwire",
			Subsystem:   "listener",
			Name:        "connections_accepted_total",
			ConstLabels: prometheus.Labels{"port": port},
			Help:        "Total connections admitted by this endpoint",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringwire",
			Subsystem:   "listener",
			Name:        "connections_rejected_total",
			ConstLabels: prometheus.Labels{"port": port},
			Help:        "Total connections rejected by admission policy",
		}),
	}

	if err := registry.RegisterCounter(port, "listener_accepted", m.accepted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(port, "listener_rejected", m.rejected); err != nil {
		return nil, err
	}
	return m, nil
}
