package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ftahirops/memwatch/engine"
	"github.com/ftahirops/memwatch/model"
	"github.com/ftahirops/memwatch/store"
)

var (
	suspectsHours    int
	suspectsMinLevel string
	suspectsLimit    int
)

var suspectsCmd = &cobra.Command{
	Use:   "suspects",
	Short: "Rank leak suspects from stored history",
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

		minLevel, err := parseSuspicionLevel(suspectsMinLevel)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DatabasePath(), logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		// Rebuild timelines from the durable store and re-run analysis,
		// the same way the daemon does after a warm start.
		cutoff := time.Now().Add(-time.Duration(suspectsHours) * time.Hour)
		rows, err := st.ProcessSamplesSince(cutoff)
		if err != nil {
			return err
		}

		history := engine.NewHistoryStore()
		var newest time.Time
		for _, r := range rows {
			history.Record(r.PID, model.ProcessSample{
				PID:       r.PID,
				Name:      r.Name,
				MemoryMB:  r.MemoryMB,
				Timestamp: r.Timestamp,
			})
			if r.Timestamp.After(newest) {
				newest = r.Timestamp
			}
		}
		if newest.IsZero() {
			fmt.Println("No stored history in the requested window.")
			return nil
		}

		monitor := engine.NewMonitor(history, nil, engine.MonitorConfig{}, logger)
		monitor.Rescan(newest)

		suspects := monitor.LeakSuspects(minLevel, suspectsLimit)
		if len(suspects) == 0 {
			fmt.Println("No leak suspects above the requested level.")
			return nil
		}
		fmt.Printf("%-8s %-30s %10s %12s %10s %s\n",
			"PID", "NAME", "GROWTH(MB)", "RATE(MB/h)", "LEVEL", "TRACKED")
		for _, s := range suspects {
			fmt.Printf("%-8d %-30s %10.1f %12.1f %10s %s\n",
				s.PID, truncate(s.Name, 30), s.GrowthMB, s.GrowthRateMBH,
				s.Level, s.LastSeen.Sub(s.FirstSeen).Round(time.Minute))
		}
		return nil
	},
}

func init() {
	suspectsCmd.Flags().IntVar(&suspectsHours, "hours", 24, "history window in hours")
	suspectsCmd.Flags().StringVar(&suspectsMinLevel, "min-level", "low", "minimum tier: low, medium, high, critical")
	suspectsCmd.Flags().IntVar(&suspectsLimit, "limit", 20, "maximum suspects to show")
}

func parseSuspicionLevel(s string) (model.SuspicionLevel, error) {
	switch s {
	case "low":
		return model.SuspicionLow, nil
	case "medium":
		return model.SuspicionMedium, nil
	case "high":
		return model.SuspicionHigh, nil
	case "critical":
		return model.SuspicionCritical, nil
	}
	return 0, fmt.Errorf("unknown suspicion level %q", s)
}
