package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "info"

adapters:
  gopher:
    root: "/srv/gopher"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Adapters.Gopher.Enabled {
		t.Error("Expected Gopher adapter enabled by default")
	}
	if cfg.Adapters.Gopher.Port != 70 {
		t.Errorf("Expected default Gopher port 70, got %d", cfg.Adapters.Gopher.Port)
	}
	if cfg.Adapters.Gopher.Workers != 4 {
		t.Errorf("Expected default 4 workers, got %d", cfg.Adapters.Gopher.Workers)
	}
	if cfg.Adapters.Gopher.Root != "/srv/gopher" {
		t.Errorf("Expected root '/srv/gopher', got %q", cfg.Adapters.Gopher.Root)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Filesystem.Type != "os" {
		t.Errorf("Expected default filesystem type 'os', got %q", cfg.Filesystem.Type)
	}
	if !cfg.Adapters.Gopher.Enabled {
		t.Error("Expected Gopher adapter enabled by default")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[filesystem]
type = "memory"

[adapters.gopher]
port = 7070
read_timeout = "5s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Filesystem.Type != "memory" {
		t.Errorf("Expected filesystem type 'memory', got %q", cfg.Filesystem.Type)
	}
	if cfg.Adapters.Gopher.Port != 7070 {
		t.Errorf("Expected port 7070, got %d", cfg.Adapters.Gopher.Port)
	}
	if cfg.Adapters.Gopher.ReadTimeout != 5*time.Second {
		t.Errorf("Expected read_timeout 5s, got %v", cfg.Adapters.Gopher.ReadTimeout)
	}
}

func TestLoad_ExplicitlyDisabledAdapterFailsValidation(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
adapters:
  gopher:
    enabled: false
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error with every adapter disabled")
	}
}

func TestLoad_InvalidWorkers(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
adapters:
  gopher:
    workers: -2
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for negative workers")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Server.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected default metrics port %d, got %d", DefaultMetricsPort, cfg.Server.Metrics.Port)
	}
	if cfg.Filesystem.Type != "os" {
		t.Errorf("Expected default filesystem type 'os', got %q", cfg.Filesystem.Type)
	}
	if !cfg.Adapters.Gopher.Enabled {
		t.Error("Expected Gopher adapter enabled by default")
	}
	if cfg.Adapters.Gopher.MaxSelectorLength != 4096 {
		t.Errorf("Expected max selector length 4096, got %d", cfg.Adapters.Gopher.MaxSelectorLength)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := GetConfigDir()
	if filepath.Base(dir) != "burrow" {
		t.Errorf("Expected directory name 'burrow', got %q", filepath.Base(dir))
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh config dir")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("BURROW_LOGGING_LEVEL", "ERROR")
	t.Setenv("BURROW_ADAPTERS_GOPHER_PORT", "7071")
	t.Setenv("BURROW_ADAPTERS_GOPHER_HOSTNAME", "gopher.example.org")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

adapters:
  gopher:
    port: 70
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.Gopher.Port != 7071 {
		t.Errorf("Expected port 7071 from env var, got %d", cfg.Adapters.Gopher.Port)
	}
	// Not present in the file at all.
	if cfg.Adapters.Gopher.Hostname != "gopher.example.org" {
		t.Errorf("Expected hostname from env var, got %q", cfg.Adapters.Gopher.Hostname)
	}
}
