package evohome

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/evorelay/internal/core"
)

// MetricsSink mirrors the latest snapshot into Prometheus gauges.
type MetricsSink struct {
	mu sync.Mutex

	temp        *prometheus.GaugeVec
	setpoint    *prometheus.GaugeVec
	available   *prometheus.GaugeVec
	zones       prometheus.Gauge
	lastUpdated prometheus.Gauge
}

func NewMetricsSink() *MetricsSink {
	labels := []string{"location_id", "zone_id", "zone_name"}
	return &MetricsSink{
		temp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evorelay_evohome_zone_temperature_celsius",
			Help: "Measured temperature per zone",
		}, labels),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evorelay_evohome_zone_setpoint_celsius",
			Help: "Target temperature per zone",
		}, append(labels, "setpoint_mode")),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evorelay_evohome_zone_sensor_available_bool",
			Help: "Temperature sensor availability per zone (1=available, 0=unavailable)",
		}, labels),
		zones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evorelay_evohome_zones",
			Help: "Zones in the last snapshot",
		}),
		lastUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evorelay_evohome_snapshot_timestamp_seconds",
			Help: "Fetch time of the last snapshot (epoch seconds)",
		}),
	}
}

func (s *MetricsSink) Name() string {
	return "metrics"
}

func (s *MetricsSink) Store(_ context.Context, snapshot *core.StatusSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.temp.Reset()
	s.setpoint.Reset()
	s.available.Reset()

	zones := snapshot.Zones()
	for _, zone := range zones {
		labels := prometheus.Labels{
			"location_id": snapshot.LocationID,
			"zone_id":     zone.ZoneID,
			"zone_name":   zone.Name,
		}
		s.available.With(labels).Set(boolToFloat(zone.TemperatureStatus.IsAvailable))
		if zone.TemperatureStatus.Temperature != nil {
			s.temp.With(labels).Set(*zone.TemperatureStatus.Temperature)
		}

		setpointLabels := prometheus.Labels{"setpoint_mode": zone.HeatSetpointStatus.SetpointMode}
		for k, v := range labels {
			setpointLabels[k] = v
		}
		s.setpoint.With(setpointLabels).Set(zone.HeatSetpointStatus.TargetTemperature)
	}

	s.zones.Set(float64(len(zones)))
	s.lastUpdated.Set(float64(snapshot.FetchedAt.Unix()))
	return nil
}

func (s *MetricsSink) Describe(ch chan<- *prometheus.Desc) {
	s.temp.Describe(ch)
	s.setpoint.Describe(ch)
	s.available.Describe(ch)
	s.zones.Describe(ch)
	s.lastUpdated.Describe(ch)
}

func (s *MetricsSink) Collect(ch chan<- prometheus.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.temp.Collect(ch)
	s.setpoint.Collect(ch)
	s.available.Collect(ch)
	s.zones.Collect(ch)
	s.lastUpdated.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
