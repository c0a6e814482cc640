package gopher

import (
	"fmt"
	"net"
	"time"

	"github.com/marmos91/burrow/internal/workerpool"
)

// GopherConfig holds the adapter settings.
//
// The adapter copies this struct once in New and never mutates it
// afterwards; every connection handler reads from that copy.
//
// Default values (applied by New if zero):
//   - Root: "."
//   - Workers: 4
//   - MaxSelectorLength: 4096
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 5m
type GopherConfig struct {
	// Enabled controls whether the Gopher adapter is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the interface to bind. Empty binds all interfaces.
	Address string `mapstructure:"address" yaml:"address"`

	// Port is the TCP port to listen on. 0 picks a free port (tests only).
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// Hostname is advertised in every menu entry so clients know where to
	// send follow-up requests. Defaults to Address, or "localhost" when
	// Address is empty or a wildcard.
	Hostname string `mapstructure:"hostname" yaml:"hostname"`

	// Root is the directory served to clients.
	Root string `mapstructure:"root" yaml:"root" validate:"required"`

	// Workers is the number of connections served concurrently.
	Workers int `mapstructure:"workers" yaml:"workers" validate:"gt=0"`

	// MaxSelectorLength bounds the request line in bytes.
	MaxSelectorLength int `mapstructure:"max_selector_length" yaml:"max_selector_length" validate:"min=0"`

	// ConnectionsPerSecond throttles connection admission. 0 disables.
	ConnectionsPerSecond float64 `mapstructure:"connections_per_second" yaml:"connections_per_second" validate:"min=0"`

	// ConnectionBurst is the number of connections admitted at once before
	// throttling kicks in.
	ConnectionBurst int `mapstructure:"connection_burst" yaml:"connection_burst" validate:"min=0"`

	// ReadTimeout bounds how long a client may take to send its selector.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing the whole response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is how long to drain queued and active connections
	// before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// MetricsLogInterval is the period of the metrics log line. 0 disables.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" validate:"min=0"`
}

// DefaultWorkers is the worker pool size used when none is configured.
const DefaultWorkers = 4

// DefaultPort is the registered Gopher port. pkg/config applies it; the
// adapter itself treats 0 as "any free port".
const DefaultPort = 70

// applyDefaults fills in zero values.
func (c *GopherConfig) applyDefaults() {
	// Port 0 is kept: it asks the OS for a free port.
	if c.Root == "" {
		c.Root = "."
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxSelectorLength == 0 {
		c.MaxSelectorLength = 4096
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
}

// validate checks the configuration after defaults are applied.
func (c *GopherConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.Workers <= 0 {
		return &workerpool.ConfigError{Size: c.Workers}
	}
	if c.MaxSelectorLength < 0 {
		return fmt.Errorf("invalid MaxSelectorLength %d: must be >= 0", c.MaxSelectorLength)
	}
	if c.ConnectionsPerSecond < 0 {
		return fmt.Errorf("invalid ConnectionsPerSecond %v: must be >= 0", c.ConnectionsPerSecond)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// ListenAddress returns the host:port the adapter binds.
func (c GopherConfig) ListenAddress() string {
	return net.JoinHostPort(c.Address, fmt.Sprint(c.Port))
}

// AdvertisedHost returns the host written into menu entries.
func (c GopherConfig) AdvertisedHost() string {
	if c.Hostname != "" {
		return c.Hostname
	}
	switch c.Address {
	case "", "0.0.0.0", "::", "[::]":
		return "localhost"
	}
	return c.Address
}

// BindError reports a listener that could not be created.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
