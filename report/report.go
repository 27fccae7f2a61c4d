// Package report renders the plain-text analysis report over the
// durable store: growth trends, swap usage, recorded leaks, hints and
// artifacts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ftahirops/memwatch/config"
	"github.com/ftahirops/memwatch/model"
	"github.com/ftahirops/memwatch/store"
)

const (
	leakLookback  = 168 * time.Hour
	hintLookback  = 48 * time.Hour
	alertLookback = 72 * time.Hour
)

const rule = "--------------------------------------------------------------------------------"

// ProcessTrend summarizes one process's growth over the report window.
type ProcessTrend struct {
	PID       int32
	Name      string
	FirstMB   float64
	LastMB    float64
	MaxMB     float64
	GrowthMB  float64
	GrowthPct float64
	Samples   int
}

// SwapSummary aggregates swap behaviour over the report window.
type SwapSummary struct {
	AvgUsedMB         float64
	MaxUsedMB         float64
	MinFreePercent    float64
	EstimatedWritesMB float64
	Samples           int
}

// Generate renders the full report for the last hours of data.
func Generate(st *store.Store, prefs config.Preferences, hours int, now time.Time) (string, error) {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(strings.Repeat("=", 80))
	line("Memory Watch Analysis Report - Last %d hours", hours)
	line("Generated: %s", now.Format("2006-01-02 15:04:05"))
	line(strings.Repeat("=", 80))
	line("")

	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	trends, err := Trends(st, cutoff)
	if err != nil {
		return "", err
	}
	line("## Top Memory Growth Processes")
	line(rule)
	if len(trends) == 0 {
		line("No data available")
	}
	for i, t := range trends {
		if i >= 10 {
			break
		}
		line("%2d. PID %6d | %-30s | Growth: %7.1fMB (%6.1f%%) | Max: %7.1fMB | Samples: %d",
			i+1, t.PID, t.Name, t.GrowthMB, t.GrowthPct, t.MaxMB, t.Samples)
	}
	line("")

	swap, err := Swap(st, cutoff)
	if err != nil {
		return "", err
	}
	line("## Swap Usage Analysis")
	line(rule)
	if swap.Samples == 0 {
		line("No data available")
	} else {
		line("Average Swap Used:        %.1f MB", swap.AvgUsedMB)
		line("Maximum Swap Used:        %.1f MB", swap.MaxUsedMB)
		line("Minimum Free:             %.1f%%", swap.MinFreePercent)
		line("Est. SSD Writes:          %s", humanize.IBytes(uint64(swap.EstimatedWritesMB*1024*1024)))
		line("Samples:                  %d", swap.Samples)
		if swap.MaxUsedMB > 1024 {
			line("")
			line("WARNING: High swap usage detected (>1GB)")
			line("   This can cause SSD wear and system slowdown")
		}
	}
	line("")

	leaks, err := st.AlertsSince(now.Add(-leakLookback), 200, model.AlertMemoryLeak, model.AlertRapidGrowth)
	if err != nil {
		return "", err
	}
	line("## Potential Memory Leaks")
	line(rule)
	if len(leaks) == 0 {
		line("No memory leaks detected")
	} else {
		line("Found %d potential leak(s):", len(leaks))
		for i, a := range leaks {
			if i >= 20 {
				break
			}
			line("  %s", formatAlert(a))
		}
	}
	line("")

	hints, err := st.AlertsSince(now.Add(-hintLookback), 50, model.AlertDiagnosticHint)
	if err != nil {
		return "", err
	}
	line("## Diagnostic Suggestions")
	line(rule)
	if len(hints) == 0 {
		line("No runtime-specific diagnostic hints recorded")
	}
	for i, a := range hints {
		if i >= 15 {
			break
		}
		line("  %s", formatHint(a))
	}
	line("")

	line("## Notification Preferences")
	line(rule)
	writePreferences(line, prefs)
	line("")

	sys, err := st.AlertsSince(now.Add(-alertLookback), 50,
		model.AlertSystemPressure, model.AlertHighSwap, model.AlertDatastoreWarning)
	if err != nil {
		return "", err
	}
	line("## System Alerts")
	line(rule)
	if len(sys) == 0 {
		line("No high-pressure or swap alerts recorded")
	}
	for i, a := range sys {
		if i >= 20 {
			break
		}
		line("  %s", formatSystemAlert(a))
	}
	line("")

	line("## Diagnostic Artifacts")
	line(rule)
	artifacts := Artifacts(hints)
	if len(artifacts) == 0 {
		line("No artifacts persisted yet.")
	}
	for i, art := range artifacts {
		if i >= 20 {
			break
		}
		status := "ok"
		if !art.Exists {
			status = "missing"
		}
		line("  [%s] %s: %s", status, art.Title, art.Path)
	}
	line("")
	line(strings.Repeat("=", 80))

	return b.String(), nil
}

// Trends groups durable process samples by pid and ranks by raw
// growth, largest first.
func Trends(st *store.Store, cutoff time.Time) ([]ProcessTrend, error) {
	rows, err := st.ProcessSamplesSince(cutoff)
	if err != nil {
		return nil, err
	}

	type acc struct {
		trend ProcessTrend
		seen  bool
	}
	byPID := make(map[int32]*acc)
	for _, r := range rows {
		a := byPID[r.PID]
		if a == nil {
			a = &acc{}
			byPID[r.PID] = a
		}
		t := &a.trend
		if !a.seen {
			t.PID = r.PID
			t.FirstMB = r.MemoryMB
			a.seen = true
		}
		t.Name = r.Name
		t.LastMB = r.MemoryMB
		if r.MemoryMB > t.MaxMB {
			t.MaxMB = r.MemoryMB
		}
		t.Samples++
	}

	var out []ProcessTrend
	for _, a := range byPID {
		if a.trend.Samples < 2 {
			continue
		}
		t := a.trend
		t.GrowthMB = t.LastMB - t.FirstMB
		if t.FirstMB > 0 {
			t.GrowthPct = t.GrowthMB / t.FirstMB * 100
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrowthMB != out[j].GrowthMB {
			return out[i].GrowthMB > out[j].GrowthMB
		}
		return out[i].PID < out[j].PID
	})
	return out, nil
}

// Swap aggregates swap usage over the window.
func Swap(st *store.Store, cutoff time.Time) (SwapSummary, error) {
	snaps, err := st.SnapshotsSince(cutoff)
	if err != nil {
		return SwapSummary{}, err
	}
	var s SwapSummary
	if len(snaps) == 0 {
		return s, nil
	}
	s.MinFreePercent = snaps[0].Metrics.SwapFreePercent
	for _, sn := range snaps {
		used := sn.Metrics.SwapUsedMB
		s.EstimatedWritesMB += used
		if used > s.MaxUsedMB {
			s.MaxUsedMB = used
		}
		if sn.Metrics.SwapFreePercent < s.MinFreePercent {
			s.MinFreePercent = sn.Metrics.SwapFreePercent
		}
	}
	s.Samples = len(snaps)
	s.AvgUsedMB = s.EstimatedWritesMB / float64(len(snaps))
	return s, nil
}

// Artifact is a captured diagnostic file referenced from alert
// metadata.
type Artifact struct {
	Title  string
	Path   string
	Exists bool
}

// Artifacts extracts distinct artifact paths from diagnostic-hint
// metadata, annotated with on-disk existence, sorted by title.
func Artifacts(hints []model.MemoryAlert) []Artifact {
	type key struct {
		path   string
		exists bool
	}
	seen := make(map[key]bool)
	var out []Artifact
	for _, a := range hints {
		path := a.Metadata["artifact_path"]
		if path == "" {
			continue
		}
		expanded := expandHome(path)
		_, statErr := os.Stat(expanded)
		exists := statErr == nil
		k := key{expanded, exists}
		if seen[k] {
			continue
		}
		seen[k] = true
		title := a.Metadata["title"]
		if title == "" {
			title = a.Message
		}
		out = append(out, Artifact{Title: title, Path: expanded, Exists: exists})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func formatAlert(a model.MemoryAlert) string {
	s := fmt.Sprintf("[%s] %s: %s", a.Timestamp.Format("2006-01-02 15:04:05"), a.Type, a.Message)
	if a.PID != 0 {
		s += fmt.Sprintf(" PID=%d", a.PID)
	}
	if a.ProcessName != "" {
		s += fmt.Sprintf(" process=%s", a.ProcessName)
	}
	return s
}

func formatHint(a model.MemoryAlert) string {
	s := fmt.Sprintf("[%s] %s", a.Timestamp.Format("2006-01-02 15:04:05"), a.Message)
	if a.PID != 0 {
		s += fmt.Sprintf(" PID=%d", a.PID)
	}
	if a.ProcessName != "" {
		s += fmt.Sprintf(" process=%s", a.ProcessName)
	}
	if path := a.Metadata["artifact_path"]; path != "" {
		s += fmt.Sprintf(" artifact=%s", path)
		if a.Metadata["artifact_exists"] == "false" {
			s += " (missing)"
		}
	}
	return s
}

func formatSystemAlert(a model.MemoryAlert) string {
	s := fmt.Sprintf("[%s] %s: %s", a.Timestamp.Format("2006-01-02 15:04:05"), a.Type, a.Message)
	var extras []string
	if a.Type == model.AlertHighSwap {
		if used := a.Metadata["swap_used_mb"]; used != "" {
			extras = append(extras, "swap="+used+"MB")
		}
		if total := a.Metadata["swap_total_mb"]; total != "" {
			extras = append(extras, "total="+total+"MB")
		}
	}
	if p := a.Metadata["pressure"]; p != "" {
		extras = append(extras, "pressure="+p)
	}
	if len(extras) > 0 {
		s += " (" + strings.Join(extras, ", ") + ")"
	}
	return s
}

func writePreferences(line func(string, ...any), prefs config.Preferences) {
	if q := prefs.QuietHours; q != nil {
		tz := q.TimezoneIdentifier
		if tz == "" {
			tz = "local"
		}
		line("  Quiet hours: %s-%s %s", minutesToHHMM(q.StartMinutes), minutesToHHMM(q.EndMinutes), tz)
	} else {
		line("  Quiet hours: disabled")
	}
	policy := "hold"
	if prefs.AllowInterruptionsDuringQuietHours {
		policy = "deliver"
	}
	line("  Quiet-hour policy: %s", policy)
	line("  Leak alerts: %s", enabled(prefs.LeakNotificationsEnabled))
	line("  Pressure alerts: %s", enabled(prefs.PressureNotificationsEnabled))
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func minutesToHHMM(minutes int) string {
	minutes = ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
