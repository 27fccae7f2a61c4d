package model

import "time"

// SuspicionLevel ranks how likely a process is leaking.
type SuspicionLevel int

const (
	SuspicionLow SuspicionLevel = iota
	SuspicionMedium
	SuspicionHigh
	SuspicionCritical
)

func (s SuspicionLevel) String() string {
	switch s {
	case SuspicionLow:
		return "Low"
	case SuspicionMedium:
		return "Medium"
	case SuspicionHigh:
		return "High"
	case SuspicionCritical:
		return "Critical"
	}
	return "Unknown"
}

// Evaluation is the regression diagnosis for one process timeline.
// It is recomputed every analysis pass and never persisted.
type Evaluation struct {
	SlopeMBPerHour        float64 // least-squares slope
	Intercept             float64
	R2                    float64 // coefficient of determination
	MAD                   float64 // median absolute deviation of residuals
	PositiveIntervalRatio float64 // fraction of consecutive pairs that grew
	GrowthMB              float64 // slope*duration, clamped at zero
	DurationHours         float64
	SampleCount           int
}

// NoiseRatio is MAD relative to the slope magnitude, floored at 1 MB/h
// so flat series do not divide by zero.
func (e Evaluation) NoiseRatio() float64 {
	s := e.SlopeMBPerHour
	if s < 0 {
		s = -s
	}
	if s < 1 {
		s = 1
	}
	return e.MAD / s
}

// LeakSuspect is a process whose tracked memory growth cleared the floor.
type LeakSuspect struct {
	PID             int32          `json:"pid"`
	Name            string         `json:"name"`
	InitialMemoryMB float64        `json:"initial_memory_mb"`
	CurrentMemoryMB float64        `json:"current_memory_mb"`
	GrowthMB        float64        `json:"growth_mb"`
	GrowthRateMBH   float64        `json:"growth_rate_mbh"`
	FirstSeen       time.Time      `json:"first_seen"`
	LastSeen        time.Time      `json:"last_seen"`
	Level           SuspicionLevel `json:"level"`
}
