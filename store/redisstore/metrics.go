package redisstore

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	writes    *prometheus.CounterVec
	listeners prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_store_writes_total",
			Help: "Committed document writes by operation.",
		}, []string{"op"}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agora_store_listeners_active",
			Help: "Live document and query listeners.",
		}),
	}
	reg.MustRegister(m.writes, m.listeners)
	return m
}
