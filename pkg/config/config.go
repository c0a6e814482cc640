package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/burrow/pkg/adapter/gopher"
	"github.com/spf13/viper"
)

// Config represents the complete Burrow configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI arguments (highest priority, applied by the caller)
//  2. Environment variables (BURROW_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Filesystem Configuration Pattern:
// Each filesystem backend has its own options section (filesystem.os,
// filesystem.memory) and only the section matching filesystem.type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Filesystem selects the backend that holds the served tree
	Filesystem FilesystemConfig `mapstructure:"filesystem" yaml:"filesystem"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout bounds the Stop() call issued to each adapter
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures the Prometheus HTTP endpoint.
type MetricsConfig struct {
	// Enabled starts the /metrics endpoint and Prometheus collectors
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the interface the metrics server binds. Empty binds all.
	Address string `mapstructure:"address" yaml:"address"`

	// Port is the metrics HTTP port
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// FilesystemConfig specifies the filesystem backend.
//
// The Type field determines which backend is used. The host backend takes no
// options and always reads the tree directly, so menus and files reflect the
// disk at request time.
type FilesystemConfig struct {
	// Type specifies the backend
	// Valid values: os, memory
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=os memory"`

	// Memory contains options for the in-memory backend
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// Gopher uses the gopher.GopherConfig type directly to avoid duplication.
	Gopher gopher.GopherConfig `mapstructure:"gopher" yaml:"gopher"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error: defaults are used.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns the loaded and validated configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	return decode(v)
}

// decode unmarshals the current viper state, applies defaults and validates.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use BURROW_ prefix and underscores
	// Example: BURROW_ADAPTERS_GOPHER_PORT=7070
	v.SetEnvPrefix("BURROW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	// Enabled must default to true in viper so an explicit false survives.
	v.SetDefault("adapters.gopher.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/burrow/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs registers every leaf key of t with viper. AutomaticEnv alone only
// applies to keys viper already knows from the config file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindEnvs(v, field.Type, key)
		case reflect.Map:
			// backend options are decoded later and cannot come from a
			// single variable
		default:
			_ = v.BindEnv(key)
		}
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "burrow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "burrow")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
