package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ftahirops/memwatch/config"
	"github.com/ftahirops/memwatch/report"
	"github.com/ftahirops/memwatch/store"
)

var reportHours int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a memory analysis report from the durable store",
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

		prefs := config.LoadPreferences(cfg.PreferencesPath())
		text, err := report.Generate(st, prefs, reportHours, time.Now())
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "report window in hours")
}
