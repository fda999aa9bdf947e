package simulator

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are registered on a private registry per simulator.
type Metrics struct {
	Registry        *prometheus.Registry
	EventsProcessed *prometheus.CounterVec
	Plans           *prometheus.CounterVec
	ArrivalDelay    prometheus.Histogram
	ActiveOrders    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routesim_events_processed_total",
			Help: "Simulation events consumed, by event type.",
		}, []string{"type"}),
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routesim_plans_total",
			Help: "Planning decisions, by outcome.",
		}, []string{"outcome"}),
		ArrivalDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "routesim_arrival_delay_hours",
			Help:    "Arrival delay drawn in dynamic mode.",
			Buckets: []float64{0, 0.5, 1, 3, 5},
		}),
		ActiveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routesim_active_orders",
			Help: "Orders currently in the tracker.",
		}),
	}
	m.Registry.MustRegister(m.EventsProcessed, m.Plans, m.ArrivalDelay, m.ActiveOrders)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
