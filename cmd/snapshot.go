package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ftahirops/memwatch/collector"
)

var snapshotTop int

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print one scan without touching the durable store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		scan, err := collector.NewSystemCollector(snapshotTop).Collect(ctx)
		if err != nil {
			return err
		}

		m := scan.Metrics
		fmt.Printf("Memory: %.1f GB used of %.1f GB (%.1f%% free, pressure %s)\n",
			m.UsedGB, m.TotalGB, m.FreePercent, m.Pressure)
		fmt.Printf("Swap:   %.0f MB used of %.0f MB\n\n", m.SwapUsedMB, m.SwapTotalMB)
		fmt.Printf("%-8s %-30s %10s %8s %8s\n", "PID", "NAME", "MEM(MB)", "MEM%", "CPU%")
		for _, p := range scan.Processes {
			fmt.Printf("%-8d %-30s %10.1f %8.1f %8.1f\n",
				p.PID, truncate(p.Name, 30), p.MemoryMB, p.MemoryPercent, p.CPUPercent)
		}
		return nil
	},
}

func init() {
	snapshotCmd.Flags().IntVar(&snapshotTop, "top", 20, "number of processes to show")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
