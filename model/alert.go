package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertType is the closed set of persisted alert kinds. The string form
// is the durable tag stored in the alerts table.
type AlertType string

const (
	AlertMemoryLeak       AlertType = "MEMORY_LEAK"
	AlertRapidGrowth      AlertType = "RAPID_GROWTH"
	AlertHighMemory       AlertType = "HIGH_MEMORY"
	AlertHighSwap         AlertType = "HIGH_SWAP"
	AlertSystemPressure   AlertType = "SYSTEM_PRESSURE"
	AlertDatastoreWarning AlertType = "DATASTORE_WARNING"
	AlertDiagnosticHint   AlertType = "DIAGNOSTIC_HINT"
)

// MemoryAlert is an append-only persisted event. PID is zero for
// system-wide alerts. Metadata is reserved for late enrichment by
// external diagnostics (artifact paths, scores); the core only writes
// the keys its constructors set.
type MemoryAlert struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Type        AlertType         `json:"type"`
	Message     string            `json:"message"`
	PID         int32             `json:"pid,omitempty"`
	ProcessName string            `json:"process_name,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func newAlert(typ AlertType, ts time.Time, msg string) MemoryAlert {
	return MemoryAlert{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Type:      typ,
		Message:   msg,
	}
}

// NewLeakAlert reports a process classified High or Critical by the
// regression heuristics.
func NewLeakAlert(ts time.Time, s LeakSuspect) MemoryAlert {
	a := newAlert(AlertMemoryLeak, ts, fmt.Sprintf(
		"%s growing %.1f MB/h (%.0f MB over %s)",
		s.Name, s.GrowthRateMBH, s.GrowthMB, s.LastSeen.Sub(s.FirstSeen).Round(time.Minute)))
	a.PID = s.PID
	a.ProcessName = s.Name
	a.Metadata = map[string]string{"level": s.Level.String()}
	return a
}

// NewRapidGrowthAlert reports a short-window spike that bypassed the
// regression classifier.
func NewRapidGrowthAlert(ts time.Time, pid int32, name string, deltaMB float64) MemoryAlert {
	a := newAlert(AlertRapidGrowth, ts, fmt.Sprintf(
		"%s gained %.0f MB across recent samples", name, deltaMB))
	a.PID = pid
	a.ProcessName = name
	return a
}

// NewHighMemoryAlert reports a process over the absolute resident ceiling.
func NewHighMemoryAlert(ts time.Time, pid int32, name string, memMB float64) MemoryAlert {
	a := newAlert(AlertHighMemory, ts, fmt.Sprintf(
		"%s using %.0f MB resident", name, memMB))
	a.PID = pid
	a.ProcessName = name
	return a
}

// NewHighSwapAlert reports swap usage over the configured threshold.
func NewHighSwapAlert(ts time.Time, m SystemMetrics) MemoryAlert {
	a := newAlert(AlertHighSwap, ts, fmt.Sprintf(
		"swap usage %.0f MB of %.0f MB", m.SwapUsedMB, m.SwapTotalMB))
	a.Metadata = map[string]string{
		"swap_used_mb":  fmt.Sprintf("%.0f", m.SwapUsedMB),
		"swap_total_mb": fmt.Sprintf("%.0f", m.SwapTotalMB),
	}
	return a
}

// NewPressureAlert reports critical system memory pressure.
func NewPressureAlert(ts time.Time, m SystemMetrics) MemoryAlert {
	a := newAlert(AlertSystemPressure, ts, fmt.Sprintf(
		"system memory pressure critical, %.1f%% free", m.FreePercent))
	a.Metadata = map[string]string{"pressure": m.Pressure.String()}
	return a
}

// NewDatastoreWarning reports a retention or maintenance condition.
func NewDatastoreWarning(ts time.Time, msg string) MemoryAlert {
	return newAlert(AlertDatastoreWarning, ts, msg)
}
