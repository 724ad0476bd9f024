package poll

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evorelay_poll_cycles_total",
			Help: "Completed poll cycles by result",
		},
		[]string{"result"},
	)
	skippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evorelay_poll_skipped_ticks_total",
		Help: "Ticks skipped because the previous cycle was still running",
	})
	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "evorelay_poll_cycle_duration_seconds",
		Help:    "Poll cycle duration",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
	})
	lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evorelay_poll_last_success_timestamp_seconds",
		Help: "Last successful poll cycle timestamp (epoch seconds)",
	})
)

// MetricsCollectors returns collectors for the poll loop.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		cyclesTotal,
		skippedTotal,
		cycleDuration,
		lastSuccess,
	}
}
