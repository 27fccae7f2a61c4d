package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/memwatch/model"
	"github.com/ftahirops/memwatch/store"
)

const (
	// defaultRetentionHours is the snapshot window when no preference
	// is configured: 14 days.
	defaultRetentionHours = 14 * 24

	// alertRetention is the fixed audit window for alerts, independent
	// of the configured snapshot window.
	alertRetention = 30 * 24 * time.Hour

	// retentionCheckEvery gates how often a trim pass may run.
	retentionCheckEvery = 5 * time.Minute

	// windowChangeEpsilon is the smallest preference change worth
	// reporting and adopting, in hours.
	windowChangeEpsilon = 0.1
)

// retentionStore is the slice of the persistent store retention needs.
type retentionStore interface {
	DeleteSnapshotsOlderThan(time.Time) (int64, error)
	DeleteAlertsOlderThan(time.Time) (int64, error)
	Health() (store.Health, error)
}

// RetentionStatus is a point-in-time view of the manager's state.
type RetentionStatus struct {
	RetentionHours          float64
	LastCheck               time.Time
	EstimatedCleanupPercent float64
}

// RetentionManager trims the persistent store to a configurable time
// window. The window itself is an externally edited preference; the
// manager only consumes its current value.
type RetentionManager struct {
	store      retentionStore
	alerts     *Monitor
	loadWindow func() float64 // current preference, in hours
	logger     *zap.Logger

	mu             sync.Mutex
	retentionHours float64
	lastCheck      time.Time
}

// NewRetentionManager creates a manager with the default 14-day
// window. loadWindow returns the externally configured retention in
// hours; values <= 0 keep the current window.
func NewRetentionManager(st retentionStore, alerts *Monitor, loadWindow func() float64, logger *zap.Logger) *RetentionManager {
	r := &RetentionManager{
		store:          st,
		alerts:         alerts,
		loadWindow:     loadWindow,
		logger:         logger,
		retentionHours: defaultRetentionHours,
	}
	// Seed from the preference silently; only later edits are reported
	// as window changes.
	if loadWindow != nil {
		if h := loadWindow(); h > 0 {
			r.retentionHours = h
		}
	}
	return r
}

// CheckAndTrim runs one retention pass if the 5-minute gate has
// elapsed. Failures are logged and retried on the next eligible check.
func (r *RetentionManager) CheckAndTrim(now time.Time) {
	r.mu.Lock()
	if now.Sub(r.lastCheck) < retentionCheckEvery {
		r.mu.Unlock()
		return
	}
	r.lastCheck = now
	r.mu.Unlock()

	r.trim(now)
}

// ForceTrimNow bypasses the gate for administrative use.
func (r *RetentionManager) ForceTrimNow(now time.Time) {
	r.mu.Lock()
	r.lastCheck = now
	r.mu.Unlock()
	r.trim(now)
}

func (r *RetentionManager) trim(now time.Time) {
	r.adoptConfiguredWindow(now)

	r.mu.Lock()
	hours := r.retentionHours
	r.mu.Unlock()

	cutoff := now.Add(-time.Duration(hours * float64(time.Hour)))
	removed, err := r.store.DeleteSnapshotsOlderThan(cutoff)
	if err != nil {
		r.logger.Warn("snapshot trim failed", zap.Error(err))
	} else if removed > 0 {
		r.logger.Info("trimmed snapshots",
			zap.Int64("removed", removed),
			zap.Float64("retention_hours", hours))
	}

	alertsRemoved, err := r.store.DeleteAlertsOlderThan(now.Add(-alertRetention))
	if err != nil {
		r.logger.Warn("alert trim failed", zap.Error(err))
	} else if alertsRemoved > 0 {
		r.logger.Info("trimmed alerts", zap.Int64("removed", alertsRemoved))
	}
}

// adoptConfiguredWindow reloads the preference and reports a window
// change before adopting it.
func (r *RetentionManager) adoptConfiguredWindow(now time.Time) {
	if r.loadWindow == nil {
		return
	}
	next := r.loadWindow()
	if next <= 0 {
		return
	}

	r.mu.Lock()
	current := r.retentionHours
	if math.Abs(next-current) <= windowChangeEpsilon {
		r.mu.Unlock()
		return
	}
	r.retentionHours = next
	r.mu.Unlock()

	direction := "extended"
	if next < current {
		direction = "reduced"
	}
	pct := math.Abs(next-current) / current * 100
	msg := fmt.Sprintf("retention window %s from %.1fh to %.1fh (%.0f%% change)",
		direction, current, next, pct)
	r.logger.Info("retention window changed",
		zap.Float64("from_hours", current),
		zap.Float64("to_hours", next))
	if r.alerts != nil {
		r.alerts.Emit(model.NewDatastoreWarning(now, msg))
	}
}

// Status recomputes the logical retention view on every call.
func (r *RetentionManager) Status() RetentionStatus {
	r.mu.Lock()
	st := RetentionStatus{
		RetentionHours: r.retentionHours,
		LastCheck:      r.lastCheck,
	}
	r.mu.Unlock()

	health, err := r.store.Health()
	if err != nil {
		r.logger.Warn("retention status health read failed", zap.Error(err))
		return st
	}
	if health.OldestSnapshot.IsZero() || health.NewestSnapshot.IsZero() {
		return st
	}
	dataSpan := health.NewestSnapshot.Sub(health.OldestSnapshot).Hours()
	if dataSpan <= 0 {
		return st
	}
	pct := (dataSpan - st.RetentionHours) / dataSpan * 100
	if pct < 0 {
		pct = 0
	}
	st.EstimatedCleanupPercent = pct
	return st
}
