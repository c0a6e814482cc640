// Package metrics defines the observability hooks used by Burrow adapters
// and exposes them over HTTP for Prometheus.
//
// Metrics are optional. Until InitRegistry is called, constructors in the
// prometheus subpackage hand out no-op collectors.
//
// Usage:
//
//	metrics.InitRegistry()
//	adapter, err := gopher.New(cfg, prometheus.NewGopherMetrics())
//
//	// Or nil for no-op behavior
//	adapter, err := gopher.New(cfg, nil)
package metrics

import (
	"sync"

	"github.com/marmos91/burrow/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registryMu sync.RWMutex
	registry   *prometheus.Registry
)

// InitRegistry creates the global registry and registers the Go runtime,
// process and build info collectors. Later calls are no-ops.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry != nil {
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newBuildInfo(),
	)
	registry = reg
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// newBuildInfo exposes burrow_build_info{version,commit} = 1.
func newBuildInfo() prometheus.Collector {
	info := version.GetInfo()
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "burrow",
		Name:      "build_info",
		Help:      "Build information about the running binary",
		ConstLabels: prometheus.Labels{
			"version": info.Version,
			"commit":  info.Commit,
		},
	}, func() float64 { return 1 })
}
