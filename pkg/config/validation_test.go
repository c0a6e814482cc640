package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "INVALID" },
			wantErr: "oneof",
		},
		{
			name:    "invalid log format",
			mutate:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "invalid filesystem type",
			mutate:  func(cfg *Config) { cfg.Filesystem.Type = "s3" },
			wantErr: "Filesystem.Type",
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Adapters.Gopher.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "negative port",
			mutate:  func(cfg *Config) { cfg.Adapters.Gopher.Port = -1 },
			wantErr: "Port",
		},
		{
			name:    "zero workers",
			mutate:  func(cfg *Config) { cfg.Adapters.Gopher.Workers = 0 },
			wantErr: "Workers",
		},
		{
			name:    "negative timeout",
			mutate:  func(cfg *Config) { cfg.Adapters.Gopher.ReadTimeout = -time.Second },
			wantErr: "ReadTimeout",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(cfg *Config) { cfg.Server.ShutdownTimeout = 0 },
			wantErr: "ShutdownTimeout",
		},
		{
			name:    "empty root",
			mutate:  func(cfg *Config) { cfg.Adapters.Gopher.Root = "" },
			wantErr: "Root",
		},
		{
			name:    "no adapters enabled",
			mutate:  func(cfg *Config) { cfg.Adapters.Gopher.Enabled = false },
			wantErr: "at least one adapter",
		},
		{
			name: "metrics port conflicts with gopher port",
			mutate: func(cfg *Config) {
				cfg.Server.Metrics.Enabled = true
				cfg.Server.Metrics.Port = cfg.Adapters.Gopher.Port
			},
			wantErr: "conflicts",
		},
		{
			name:    "burst without rate",
			mutate:  func(cfg *Config) { cfg.Adapters.Gopher.ConnectionBurst = 10 },
			wantErr: "connection_burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("Expected level %q to be valid, got: %v", level, err)
		}
	}
}

func TestValidate_RateLimitedAdmission(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Gopher.ConnectionsPerSecond = 50
	cfg.Adapters.Gopher.ConnectionBurst = 10

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected rate limit settings to be valid, got: %v", err)
	}
}
