package config

import (
	"github.com/marmos91/burrow/pkg/metrics"
	promMetrics "github.com/marmos91/burrow/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// GopherMetrics is the collector for the Gopher adapter (never nil, no-op if disabled)
	GopherMetrics metrics.GopherMetrics
}

// InitializeMetrics creates the metrics components described by cfg.
//
// If metrics are enabled the global Prometheus registry is initialized and
// an HTTP server is created (not started). Otherwise a nil server and no-op
// collectors are returned.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			GopherMetrics: metrics.NewNoopGopherMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Address: cfg.Server.Metrics.Address,
		Port:    cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:        server,
		GopherMetrics: promMetrics.NewGopherMetrics(),
	}
}
