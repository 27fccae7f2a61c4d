package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ftahirops/memwatch/collector"
	"github.com/ftahirops/memwatch/config"
	"github.com/ftahirops/memwatch/engine"
	"github.com/ftahirops/memwatch/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		// Durability is required for the daemon; failing to open the
		// store is fatal here, unlike the one-shot snapshot path.
		st, err := store.Open(cfg.DatabasePath(), logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		prefs, err := config.WatchPreferences(cfg.PreferencesPath(), logger)
		if err != nil {
			return fmt.Errorf("watch preferences: %w", err)
		}
		defer prefs.Close()

		history := engine.NewHistoryStore()
		monitor := engine.NewMonitor(history, st,
			engine.MonitorConfig{SwapAlertMB: cfg.SwapAlertMB}, logger)
		retention := engine.NewRetentionManager(st, monitor, prefs.RetentionHours, logger)
		maintenance := engine.NewMaintenanceScheduler(st, monitor, engine.MaintenanceConfig{
			CheckEvery:       time.Duration(cfg.MaintenanceSec) * time.Second,
			WALWarnBytes:     cfg.WALWarnBytes,
			WALCriticalBytes: cfg.WALCriticalBytes,
		}, logger)

		daemon := engine.NewDaemon(engine.DaemonConfig{
			Interval:      time.Duration(cfg.IntervalSec) * time.Second,
			WarmStartPath: cfg.WarmStartPath(),
		}, collector.NewSystemCollector(cfg.ProcessLimit), history, monitor,
			st, retention, maintenance, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return daemon.Run(ctx)
	},
}
