package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ftahirops/memwatch/config"
	"github.com/ftahirops/memwatch/engine"
	"github.com/ftahirops/memwatch/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store health, retention and maintenance state",
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

		st, err := store.Open(cfg.DatabasePath(), logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		health, err := st.Health()
		if err != nil {
			return fmt.Errorf("store health: %w", err)
		}

		integrity := "OK"
		if !health.IntegrityOK {
			integrity = "FAILED"
		}
		fmt.Printf("Store: %s\n", st.Path())
		fmt.Printf("  Snapshots: %d  Process samples: %d  Alerts: %d\n",
			health.SnapshotCount, health.ProcessSampleCount, health.AlertCount)
		if !health.OldestSnapshot.IsZero() {
			fmt.Printf("  Span: %s .. %s\n",
				health.OldestSnapshot.Format("2006-01-02 15:04:05"),
				health.NewestSnapshot.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("  Size: %s (WAL %s, %d pages, %d free)\n",
			humanize.IBytes(uint64(health.DBSizeBytes)),
			humanize.IBytes(uint64(health.WALSizeBytes)),
			health.PageCount, health.FreelistPages)
		fmt.Printf("  Integrity: %s\n", integrity)
		if !health.LastMaintenance.IsZero() {
			fmt.Printf("  Last maintenance: %s\n", health.LastMaintenance.Format("2006-01-02 15:04:05"))
		}

		prefs := config.LoadPreferences(cfg.PreferencesPath())
		retention := engine.NewRetentionManager(st, nil, func() float64 {
			return prefs.RetentionHours
		}, logger)
		rs := retention.Status()
		fmt.Printf("Retention: %.1fh window, next cleanup would purge ~%.0f%%\n",
			rs.RetentionHours, rs.EstimatedCleanupPercent)
		return nil
	},
}
