package live

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Connections  prometheus.Gauge
	EventsPushed prometheus.Counter
	Dropped      prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "live_connections", Help: "Open live-channel subscriptions."},
		),
		EventsPushed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "live_events_pushed_total", Help: "Events delivered to live subscribers."},
		),
		Dropped: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "live_subscribers_dropped_total", Help: "Subscribers dropped for not draining their queue."},
		),
	}
	reg.MustRegister(m.Connections, m.EventsPushed, m.Dropped)
	return m
}
