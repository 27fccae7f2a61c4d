package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ftahirops/memwatch/model"
	"github.com/ftahirops/memwatch/store"
)

type fakeMaintenanceStore struct {
	mu              sync.Mutex
	walSize         int64
	maintenanceRuns int
	failMaintenance bool
	health          store.Health
}

func (f *fakeMaintenanceStore) WALSize() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.walSize
}

func (f *fakeMaintenanceStore) PerformMaintenance() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMaintenance {
		return fmt.Errorf("checkpoint blocked")
	}
	f.maintenanceRuns++
	f.walSize = 0
	return nil
}

func (f *fakeMaintenanceStore) Health() (store.Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health, nil
}

func (f *fakeMaintenanceStore) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maintenanceRuns
}

func newTestScheduler(t *testing.T, st *fakeMaintenanceStore) (*MaintenanceScheduler, *captureSink) {
	monitor, sink := newTestMonitor(t, MonitorConfig{})
	m := NewMaintenanceScheduler(st, monitor, MaintenanceConfig{}, zaptest.NewLogger(t))
	return m, sink
}

func TestMaintenanceBelowWarnIsQuiet(t *testing.T) {
	st := &fakeMaintenanceStore{walSize: 8 << 20}
	m, sink := newTestScheduler(t, st)

	m.Check(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	assert.Empty(t, sink.byType(model.AlertDatastoreWarning))
	assert.Zero(t, st.runs())
}

func TestMaintenanceWarnLevelAlertsOnly(t *testing.T) {
	st := &fakeMaintenanceStore{walSize: 20 << 20}
	m, sink := newTestScheduler(t, st)

	m.Check(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	warnings := sink.byType(model.AlertDatastoreWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "write-ahead log at")
	assert.NotContains(t, warnings[0].Message, "forcing checkpoint")
	assert.Zero(t, st.runs(), "warning level does not force a checkpoint")
}

func TestMaintenanceCriticalForcesCheckpoint(t *testing.T) {
	st := &fakeMaintenanceStore{walSize: 80 << 20}
	m, sink := newTestScheduler(t, st)

	m.Check(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	warnings := sink.byType(model.AlertDatastoreWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "forcing checkpoint")
	assert.Equal(t, 1, st.runs())
}

func TestMaintenanceCheckGate(t *testing.T) {
	st := &fakeMaintenanceStore{walSize: 80 << 20}
	m, _ := newTestScheduler(t, st)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.Check(now)
	st.mu.Lock()
	st.walSize = 80 << 20
	st.mu.Unlock()
	m.Check(now.Add(30 * time.Second))
	assert.Equal(t, 1, st.runs(), "second check inside the interval is skipped")

	m.Check(now.Add(time.Minute))
	assert.Equal(t, 2, st.runs())
}

func TestMaintenanceCustomThresholds(t *testing.T) {
	st := &fakeMaintenanceStore{walSize: 2 << 20}
	monitor, sink := newTestMonitor(t, MonitorConfig{})
	m := NewMaintenanceScheduler(st, monitor, MaintenanceConfig{
		WALWarnBytes:     1 << 20,
		WALCriticalBytes: 4 << 20,
	}, zaptest.NewLogger(t))

	m.Check(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.Len(t, sink.byType(model.AlertDatastoreWarning), 1)
	assert.Zero(t, st.runs())
}

func TestMaintenanceSurvivesCheckpointFailure(t *testing.T) {
	st := &fakeMaintenanceStore{walSize: 80 << 20, failMaintenance: true}
	m, sink := newTestScheduler(t, st)

	m.Check(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	assert.Len(t, sink.byType(model.AlertDatastoreWarning), 1)
	assert.Zero(t, st.runs())
}

func TestMaintenanceStatus(t *testing.T) {
	lastMaint := time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC)
	st := &fakeMaintenanceStore{
		walSize: 5 << 20,
		health: store.Health{
			SnapshotCount:   120,
			AlertCount:      4,
			LastMaintenance: lastMaint,
		},
	}
	m, _ := newTestScheduler(t, st)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.Check(now)

	status := m.Status()
	assert.Equal(t, int64(120), status.SnapshotCount)
	assert.Equal(t, int64(4), status.AlertCount)
	assert.Equal(t, int64(5<<20), status.WALSizeBytes)
	assert.Equal(t, now, status.LastCheck)
	assert.Equal(t, lastMaint, status.LastMaintenance)
}
