package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/burrow/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"serve", "init", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
		assert.NotEmpty(t, sub.GroupID, name)
	}
}

func TestApplyServeArgs(t *testing.T) {
	root := t.TempDir()

	cfg := config.GetDefaultConfig()
	require.NoError(t, applyServeArgs(cfg, []string{"127.0.0.1", "7070", root}))

	assert.Equal(t, "127.0.0.1", cfg.Adapters.Gopher.Address)
	assert.Equal(t, 7070, cfg.Adapters.Gopher.Port)
	assert.Equal(t, root, cfg.Adapters.Gopher.Root)
}

func TestApplyServeArgs_Prefix(t *testing.T) {
	cfg := config.GetDefaultConfig()
	wantRoot := cfg.Adapters.Gopher.Root

	require.NoError(t, applyServeArgs(cfg, []string{"::1"}))

	assert.Equal(t, "::1", cfg.Adapters.Gopher.Address)
	assert.Equal(t, 70, cfg.Adapters.Gopher.Port)
	assert.Equal(t, wantRoot, cfg.Adapters.Gopher.Root)
}

func TestApplyServeArgs_InvalidPort(t *testing.T) {
	for _, port := range []string{"gopher", "-1", "70000"} {
		t.Run(port, func(t *testing.T) {
			cfg := config.GetDefaultConfig()
			err := applyServeArgs(cfg, []string{"0.0.0.0", port})
			assert.ErrorContains(t, err, "invalid port")
		})
	}
}

func TestApplyServeArgs_PortConflictsWithMetrics(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true

	err := applyServeArgs(cfg, []string{"0.0.0.0", "9090"})
	assert.ErrorContains(t, err, "configuration validation failed")
}

func TestServeCmd_RejectsBadPort(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := NewRootCmd()
	root.SetArgs([]string{"serve", "0.0.0.0", "seventy"})
	root.SetOut(&bytes.Buffer{})

	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "invalid port")
}

func TestServeCmd_TooManyArgs(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"serve", "a", "70", "/srv", "extra"})
	root.SetOut(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}

func TestInitCmd_WritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burrow.yaml")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs([]string{"init", "--config", path})
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Adapters.Gopher.Workers)

	// A second run without --force must not clobber the file.
	root = NewRootCmd()
	root.SetArgs([]string{"init", "--config", path})
	root.SetOut(&bytes.Buffer{})
	assert.ErrorContains(t, root.Execute(), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("# edited\n"), 0o644))
	root = NewRootCmd()
	root.SetArgs([]string{"init", "--config", path, "--force"})
	root.SetOut(&bytes.Buffer{})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Burrow Configuration File")
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs([]string{"version"})
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "burrow version")
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	assert.Equal(t, "/etc/burrow.yaml", resolveConfigPath("/etc/burrow.yaml"))
	assert.Empty(t, resolveConfigPath(""))

	require.NoError(t, config.InitConfigToPath(config.GetDefaultConfigPath(), false))
	assert.Equal(t, config.GetDefaultConfigPath(), resolveConfigPath(""))
}
