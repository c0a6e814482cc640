package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/marmos91/burrow/internal/logger"
	"github.com/marmos91/burrow/internal/version"
	"github.com/marmos91/burrow/pkg/adapter/gopher"
	"github.com/marmos91/burrow/pkg/config"
	"github.com/marmos91/burrow/pkg/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve [ADDRESS PORT ROOT]",
		Short: "Serve a directory tree over Gopher",
		Long: `Serve a directory tree over Gopher.

ADDRESS, PORT and ROOT override the values from the configuration file and
environment. Any prefix of them may be given, e.g. "burrow serve 0.0.0.0 7070".`,
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, args)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: $XDG_CONFIG_HOME/burrow/config.yaml)")

	return cmd
}

func runServe(ctx context.Context, configPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := applyServeArgs(cfg, args); err != nil {
		return err
	}

	if err := configureLogging(cfg.Logging); err != nil {
		return err
	}

	logger.Info("Burrow %s starting", version.GetFullVersion())

	if path := resolveConfigPath(configPath); path != "" {
		err := config.Watch(path, func(updated *config.Config) {
			logger.SetLevel(updated.Logging.Level)
			logger.Info("Log level set to %s", logger.GetLevel())
		})
		if err != nil {
			logger.Warn("Config reload disabled: %v", err)
		}
	}

	fsys, err := config.CreateFilesystem(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	gopherCfg := cfg.Adapters.Gopher
	logger.Info("Gopher configuration:")
	logger.Info("  Listen: %s", gopherCfg.ListenAddress())
	logger.Info("  Root: %s (%s filesystem)", gopherCfg.Root, cfg.Filesystem.Type)
	logger.Info("  Workers: %d", gopherCfg.Workers)
	logger.Info("  Read timeout: %v", gopherCfg.ReadTimeout)
	if gopherCfg.ConnectionsPerSecond > 0 {
		logger.Info("  Accept rate: %.1f/s (burst %d)", gopherCfg.ConnectionsPerSecond, gopherCfg.ConnectionBurst)
	}

	gopherAdapter, err := gopher.New(gopherCfg, metricsResult.GopherMetrics)
	if err != nil {
		return err
	}

	srv := server.New(fsys, cfg.Server.ShutdownTimeout)
	if err := srv.AddAdapter(gopherAdapter); err != nil {
		return err
	}

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// applyServeArgs overrides the Gopher address, port and root with positional
// arguments, then revalidates.
func applyServeArgs(cfg *config.Config, args []string) error {
	gopherCfg := &cfg.Adapters.Gopher

	if len(args) > 0 {
		gopherCfg.Address = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %q: must be a number between 0 and 65535", args[1])
		}
		gopherCfg.Port = port
	}
	if len(args) > 2 {
		gopherCfg.Root = args[2]
	}

	if len(args) == 0 {
		return nil
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func configureLogging(cfg config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	if err := logger.SetOutput(cfg.Output); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	return nil
}

// resolveConfigPath returns the file to watch for reloads, or "" when
// running on defaults and environment only.
func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if config.ConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return ""
}
