package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/config"
)

var serverCmd = &cobra.Command{
	Use:   "server [config-files-or-directories...]",
	Short: "Start the parley server",
	Long: `Start the parley server with the specified configuration files or directories.

Configuration is loaded from every .hcl file found in the given paths. At
least an auth block with hmac_secret or user_service is required.

Examples:
  parley server parley.hcl
  parley server ./configs/
  parley server base.hcl ./overrides/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runServer,
}

var otelMetrics bool

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	serverCmd.Flags().BoolVar(&otelMetrics, "otel-metrics", false, "report metrics through the OpenTelemetry global meter instead of the stats log")
}

func runServer(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting parley server",
		zap.Strings("config-paths", args),
		zap.String("log-level", logLevel),
		zap.String("version", version),
	)

	cfg, diags := config.NewConfig().
		WithLogger(logger).
		WithSources(stringSliceToAnySlice(args)...).
		Build()
	if diags.HasErrors() {
		logger.Error("Failed to build config", zap.Any("diags", diags))
		return diags
	}

	a, err := newApp(cfg, logger, otelMetrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.run(ctx)
}
