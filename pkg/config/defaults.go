package config

import (
	"strings"
	"time"

	"github.com/marmos91/burrow/pkg/adapter/gopher"
)

// DefaultMetricsPort is the Prometheus endpoint port.
const DefaultMetricsPort = 9090

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
// adapters.gopher.enabled is defaulted by Load through viper so that an
// explicit false in a config file is kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyFilesystemDefaults(&cfg.Filesystem)
	applyGopherDefaults(&cfg.Adapters.Gopher)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// applyFilesystemDefaults sets the backend type and fills the memory options
// so generated config files show every knob.
func applyFilesystemDefaults(cfg *FilesystemConfig) {
	if cfg.Type == "" {
		cfg.Type = "os"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	if _, ok := cfg.Memory["seed"]; !ok {
		cfg.Memory["seed"] = true
	}
}

// applyGopherDefaults sets Gopher adapter defaults. The adapter applies the
// same defaults itself except for Port, where it treats 0 as "any port".
func applyGopherDefaults(cfg *gopher.GopherConfig) {
	if cfg.Port == 0 {
		cfg.Port = gopher.DefaultPort
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Workers == 0 {
		cfg.Workers = gopher.DefaultWorkers
	}
	if cfg.MaxSelectorLength == 0 {
		cfg.MaxSelectorLength = 4096
	}

	// ConnectionsPerSecond defaults to 0 (unlimited)

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

// GetDefaultConfig returns a Config with all default values applied.
//
// Used to generate sample configuration files and in tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			Gopher: gopher.GopherConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
