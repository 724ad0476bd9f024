package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsRegistry builds a registry from component collectors plus the
// process and Go runtime collectors.
func MetricsRegistry(components ...prometheus.Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, collector := range components {
		if collector == nil {
			continue
		}
		registry.MustRegister(collector)
	}

	return registry
}
