// Package cmd is the CLI surface over the monitoring core: the daemon,
// one-shot snapshots, reports and store introspection.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ftahirops/memwatch/config"
)

// Version is set at build time via ldflags.
var Version = "0.3.0"

var (
	flagDataDir  string
	flagInterval int
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "memwatch",
	Short:         "Per-process memory monitor and leak detector",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/MemoryWatch)")
	rootCmd.PersistentFlags().IntVar(&flagInterval, "interval", 0, "scan interval in seconds")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, snapshotCmd, reportCmd, statusCmd, suspectsCmd, alertsCmd)
}

// loadConfig merges the config file with command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagInterval > 0 {
		cfg.IntervalSec = flagInterval
	}
	if cfg.IntervalSec <= 0 {
		return cfg, fmt.Errorf("scan interval must be positive, got %d", cfg.IntervalSec)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	c := zap.NewProductionConfig()
	c.Encoding = "console"
	return c.Build()
}
