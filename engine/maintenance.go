package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/ftahirops/memwatch/model"
	"github.com/ftahirops/memwatch/store"
)

// Default WAL thresholds. The warning level reports growth; the
// critical level forces an immediate checkpoint instead of waiting for
// the next natural one.
const (
	defaultWALWarnBytes     = 16 << 20
	defaultWALCriticalBytes = 64 << 20
	defaultMaintenanceEvery = time.Minute
)

// maintenanceStore is the slice of the persistent store the scheduler
// inspects and services.
type maintenanceStore interface {
	WALSize() int64
	PerformMaintenance() error
	Health() (store.Health, error)
}

// MaintenanceConfig tunes the scheduler; zero values take defaults.
type MaintenanceConfig struct {
	CheckEvery       time.Duration
	WALWarnBytes     int64
	WALCriticalBytes int64
}

// MaintenanceStatus mirrors store counts and the current WAL size for
// observability.
type MaintenanceStatus struct {
	SnapshotCount   int64
	AlertCount      int64
	WALSizeBytes    int64
	LastCheck       time.Time
	LastMaintenance time.Time
}

// MaintenanceScheduler periodically inspects write-ahead-log growth
// and triggers checkpoint/compaction before it becomes a problem.
type MaintenanceScheduler struct {
	store  maintenanceStore
	alerts *Monitor
	cfg    MaintenanceConfig
	logger *zap.Logger

	mu        sync.Mutex
	lastCheck time.Time
}

// NewMaintenanceScheduler creates a scheduler with defaults applied.
func NewMaintenanceScheduler(st maintenanceStore, alerts *Monitor, cfg MaintenanceConfig, logger *zap.Logger) *MaintenanceScheduler {
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultMaintenanceEvery
	}
	if cfg.WALWarnBytes <= 0 {
		cfg.WALWarnBytes = defaultWALWarnBytes
	}
	if cfg.WALCriticalBytes <= 0 {
		cfg.WALCriticalBytes = defaultWALCriticalBytes
	}
	return &MaintenanceScheduler{store: st, alerts: alerts, cfg: cfg, logger: logger}
}

// Check runs one gated WAL inspection. Below the warning threshold it
// does nothing. Failures are logged and retried next interval.
func (m *MaintenanceScheduler) Check(now time.Time) {
	m.mu.Lock()
	if now.Sub(m.lastCheck) < m.cfg.CheckEvery {
		m.mu.Unlock()
		return
	}
	m.lastCheck = now
	m.mu.Unlock()

	walSize := m.store.WALSize()
	if walSize < m.cfg.WALWarnBytes {
		return
	}

	critical := walSize >= m.cfg.WALCriticalBytes
	msg := fmt.Sprintf("write-ahead log at %s", humanize.IBytes(uint64(walSize)))
	if critical {
		msg += ", forcing checkpoint"
	}
	if m.alerts != nil {
		m.alerts.Emit(model.NewDatastoreWarning(now, msg))
	}
	m.logger.Warn("WAL growth",
		zap.Int64("wal_bytes", walSize),
		zap.Bool("critical", critical))

	if critical {
		if err := m.store.PerformMaintenance(); err != nil {
			m.logger.Warn("forced maintenance failed", zap.Error(err))
		}
	}
}

// Status recomputes the observability view on each call.
func (m *MaintenanceScheduler) Status() MaintenanceStatus {
	m.mu.Lock()
	st := MaintenanceStatus{LastCheck: m.lastCheck}
	m.mu.Unlock()

	st.WALSizeBytes = m.store.WALSize()
	if health, err := m.store.Health(); err == nil {
		st.SnapshotCount = health.SnapshotCount
		st.AlertCount = health.AlertCount
		st.LastMaintenance = health.LastMaintenance
	} else {
		m.logger.Warn("maintenance status health read failed", zap.Error(err))
	}
	return st
}
