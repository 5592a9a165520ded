package outbox

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	PublishedTotal *prometheus.CounterVec
	FailedTotal    *prometheus.CounterVec
	LagSeconds     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "support",
				Name:      "outbox_published_total",
				Help:      "Ticket events published to the broker.",
			},
			[]string{"event_type"},
		),
		FailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "support",
				Name:      "outbox_failed_total",
				Help:      "Failed publish attempts, re-queued as pending.",
			},
			[]string{"event_type"},
		),
		LagSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "support",
				Name:      "outbox_lag_seconds",
				Help:      "Age of the oldest claimed pending event.",
			},
		),
	}
	reg.MustRegister(m.PublishedTotal, m.FailedTotal, m.LagSeconds)
	return m
}
