package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ftahirops/memwatch/model"
	"github.com/ftahirops/memwatch/store"
)

var (
	alertsLimit int
	alertsType  string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recent alerts from the durable store",
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

		var types []model.AlertType
		if alertsType != "" {
			types = append(types, model.AlertType(alertsType))
		}
		alerts, err := st.RecentAlerts(alertsLimit, types...)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("No alerts recorded.")
			return nil
		}
		for _, a := range alerts {
			line := fmt.Sprintf("[%s] %-18s %s",
				a.Timestamp.Format("2006-01-02 15:04:05"), a.Type, a.Message)
			if a.PID != 0 {
				line += fmt.Sprintf(" (pid %d)", a.PID)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 50, "maximum alerts to show")
	alertsCmd.Flags().StringVar(&alertsType, "type", "", "filter by alert type tag (e.g. MEMORY_LEAK)")
}
