// Package command provides the dispatchd CLI. The root command serves the
// dispatch HTTP API and the migrate sub-command creates the PostgreSQL schema.
//
//	./dispatchd [-c /path/of/config.yaml]
//	./dispatchd migrate [-c /path/of/config.yaml]
package command

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/spf13/cobra"

	"dispatch/internal/config"
	"dispatch/internal/logging"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "dispatchd",
	Short: "Ride dispatch coordination service",
	Long: `Ride dispatch coordination service.
It keeps driver availability and ride lifecycle state consistent while
many dispatchers accept, start, complete and cancel rides concurrently.`,
	SilenceUsage: true,
	RunE:         serve,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(fixConfigPath)
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	rootCmd.AddCommand(migrateCmd)
}

// fixConfigPath falls back to CONFIG_FILE when -c is not given. An empty
// path means defaults plus environment only.
func fixConfigPath() {
	if cfgPath != "" {
		return
	}
	cfgPath = os.Getenv("CONFIG_FILE")
}

// loadConfig loads the configuration and installs the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config.Load(%q): %w", cfgPath, err)
	}
	logger := logging.NewLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newRelicApp starts the New Relic agent when it is enabled and licensed.
// A failed start is logged and the service runs uninstrumented.
func newRelicApp(cfg config.NewRelicConfig, logger *slog.Logger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}
	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logger.Warn("failed to initialize New Relic", "error", err)
		return nil
	}
	logger.Info("New Relic enabled", "app", cfg.AppName)
	return nrApp
}
