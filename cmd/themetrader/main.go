// Command themetrader is the entry point for the theme rotation trader. It
// loads and validates configuration, sets up structured logging and signal
// handling, and runs the application in the requested mode.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/themetrader/internal/app"
	"github.com/alanyoungcy/themetrader/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "themetrader",
		Short:         "Daily theme rotation equity trader",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(cycleCmd(&configPath))
	root.AddCommand(configCmd(&configPath))
	return root
}

func runCmd(configPath *string) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run in the configured mode (trade, once or server)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath, mode)
			if err != nil {
				return err
			}
			logger.Info("themetrader starting",
				slog.String("mode", cfg.Mode),
				slog.String("config", *configPath),
			)

			application := app.New(cfg, logger)
			defer application.Close()

			if err := application.Run(cmd.Context()); err != nil {
				// context.Canceled is expected on clean shutdown.
				if !errors.Is(err, context.Canceled) {
					logger.Error("application exited with error", slog.String("error", err.Error()))
					return err
				}
				logger.Info("application shut down gracefully")
			}
			logger.Info("themetrader stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "override the configured mode")
	return cmd
}

func cycleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one cycle and print its report as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath, "once")
			if err != nil {
				return err
			}
			application := app.New(cfg, logger)
			defer application.Close()

			report, err := application.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func configCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", *configPath, err)
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(config.RedactedConfig(cfg))
		},
	}
}

// loadConfig loads and validates the configuration and builds the JSON
// logger at the configured level. A non-empty mode overrides the file.
func loadConfig(path, mode string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// Logs go to stderr so the cycle command can print JSON on stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
