package supervisor

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the polling engine.
var (
	readingsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_readings_persisted_total",
			Help: "Readings written to history, per device.",
		},
		[]string{"device"},
	)
	readErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_read_errors_total",
			Help: "Failed batch reads, per device.",
		},
		[]string{"device"},
	)
	flushDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_flush_drops_total",
			Help: "Reading batches dropped after exhausting persistence retries.",
		},
		[]string{"device"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_reconnects_total",
			Help: "Reconnection attempts, per device.",
		},
		[]string{"device"},
	)
	activePollers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_active_pollers",
			Help: "Number of running pollers.",
		},
	)
)

func init() {
	prometheus.MustRegister(readingsPersisted, readErrors, flushDrops, reconnects, activePollers)
}
