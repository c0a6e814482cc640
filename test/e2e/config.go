package e2e

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/burrow/pkg/config"
	"github.com/spf13/afero"
)

// FilesystemType represents the backend serving the tree under test
type FilesystemType string

const (
	FilesystemOS     FilesystemType = "os"
	FilesystemMemory FilesystemType = "memory"
)

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
	GetPort() int
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name       string
	Filesystem FilesystemType
	Workers    int
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%d-workers", tc.Filesystem, tc.Workers)
}

// BuildConfig returns a validated server configuration for this run. Trees
// on disk are seeded with the same demo content the memory backend uses.
func (tc *TestConfig) BuildConfig(testCtx TestContextProvider) (*config.Config, error) {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "ERROR"
	cfg.Adapters.Gopher.Address = "127.0.0.1"
	cfg.Adapters.Gopher.Hostname = "localhost"
	cfg.Adapters.Gopher.Port = testCtx.GetPort()
	cfg.Adapters.Gopher.Workers = tc.Workers

	switch tc.Filesystem {
	case FilesystemOS:
		root := filepath.Join(testCtx.CreateTempDir("burrow-e2e-root-*"), "gopher")
		if err := config.SeedDemoTree(afero.NewOsFs(), root); err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", root, err)
		}
		cfg.Filesystem.Type = "os"
		cfg.Adapters.Gopher.Root = root

	case FilesystemMemory:
		cfg.Filesystem.Type = "memory"
		cfg.Adapters.Gopher.Root = "/srv/gopher"

	default:
		return nil, fmt.Errorf("unknown filesystem type: %s", tc.Filesystem)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AllConfigurations returns every backend combination the suite runs against.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "os", Filesystem: FilesystemOS, Workers: 4},
		{Name: "memory", Filesystem: FilesystemMemory, Workers: 4},
		{Name: "memory-single-worker", Filesystem: FilesystemMemory, Workers: 1},
	}
}
