package model

import "time"

// ProcessSample is one observation of one process at a scan.
// Samples are immutable once created; the history store owns them.
type ProcessSample struct {
	PID           int32     `json:"pid"`
	Name          string    `json:"name"`
	Path          string    `json:"path,omitempty"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	CPUPercent    float64   `json:"cpu_percent"`
	ReadMBs       float64   `json:"read_mbs"`
	WriteMBs      float64   `json:"write_mbs"`
	Timestamp     time.Time `json:"timestamp"`
}

// PressureLevel classifies system memory stress.
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureWarning
	PressureCritical
)

func (p PressureLevel) String() string {
	switch p {
	case PressureNormal:
		return "Normal"
	case PressureWarning:
		return "Warning"
	case PressureCritical:
		return "Critical"
	}
	return "Unknown"
}

// SystemMetrics is one observation of whole-system memory state.
type SystemMetrics struct {
	TotalGB         float64       `json:"total_gb"`
	UsedGB          float64       `json:"used_gb"`
	FreeGB          float64       `json:"free_gb"`
	FreePercent     float64       `json:"free_percent"`
	SwapUsedMB      float64       `json:"swap_used_mb"`
	SwapTotalMB     float64       `json:"swap_total_mb"`
	SwapFreePercent float64       `json:"swap_free_percent"`
	Pressure        PressureLevel `json:"pressure"`
}

// PressureFor derives the pressure classification from free memory percent.
func PressureFor(freePercent float64) PressureLevel {
	switch {
	case freePercent > 50:
		return PressureNormal
	case freePercent > 25:
		return PressureWarning
	default:
		return PressureCritical
	}
}

// Scan is the tuple handed to the monitor once per interval.
type Scan struct {
	Timestamp time.Time
	Metrics   SystemMetrics
	Processes []ProcessSample
}
