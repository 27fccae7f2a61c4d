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

type fakeRetentionStore struct {
	mu              sync.Mutex
	snapshotCutoffs []time.Time
	alertCutoffs    []time.Time
	health          store.Health
	failDeletes     bool
}

func (f *fakeRetentionStore) DeleteSnapshotsOlderThan(cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeletes {
		return 0, fmt.Errorf("database locked")
	}
	f.snapshotCutoffs = append(f.snapshotCutoffs, cutoff)
	return 3, nil
}

func (f *fakeRetentionStore) DeleteAlertsOlderThan(cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeletes {
		return 0, fmt.Errorf("database locked")
	}
	f.alertCutoffs = append(f.alertCutoffs, cutoff)
	return 1, nil
}

func (f *fakeRetentionStore) Health() (store.Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health, nil
}

func (f *fakeRetentionStore) snapshotTrims() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.snapshotCutoffs...)
}

func TestRetentionDefaultWindow(t *testing.T) {
	st := &fakeRetentionStore{}
	r := NewRetentionManager(st, nil, nil, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.CheckAndTrim(now)

	trims := st.snapshotTrims()
	require.Len(t, trims, 1)
	assert.Equal(t, now.Add(-14*24*time.Hour), trims[0])
}

func TestRetentionCheckGate(t *testing.T) {
	st := &fakeRetentionStore{}
	r := NewRetentionManager(st, nil, nil, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.CheckAndTrim(now)
	r.CheckAndTrim(now.Add(4 * time.Minute))
	assert.Len(t, st.snapshotTrims(), 1, "second pass inside the gate is skipped")

	r.CheckAndTrim(now.Add(5 * time.Minute))
	assert.Len(t, st.snapshotTrims(), 2)
}

func TestRetentionForceTrimBypassesGate(t *testing.T) {
	st := &fakeRetentionStore{}
	r := NewRetentionManager(st, nil, nil, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.CheckAndTrim(now)
	r.ForceTrimNow(now.Add(time.Second))
	assert.Len(t, st.snapshotTrims(), 2)
}

func TestRetentionAlertWindowFixedAt30Days(t *testing.T) {
	st := &fakeRetentionStore{}
	window := 48.0
	r := NewRetentionManager(st, nil, func() float64 { return window }, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.ForceTrimNow(now)

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.snapshotCutoffs, 1)
	require.Len(t, st.alertCutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), st.snapshotCutoffs[0])
	assert.Equal(t, now.Add(-30*24*time.Hour), st.alertCutoffs[0], "alert window ignores the snapshot preference")
}

func TestRetentionWindowChangeEmitsWarning(t *testing.T) {
	st := &fakeRetentionStore{}
	monitor, sink := newTestMonitor(t, MonitorConfig{})

	window := 336.0
	r := NewRetentionManager(st, monitor, func() float64 { return window }, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.ForceTrimNow(now)
	assert.Empty(t, sink.byType(model.AlertDatastoreWarning), "the seeded window is not a change")

	window = 168.0
	r.ForceTrimNow(now.Add(time.Minute))

	warnings := sink.byType(model.AlertDatastoreWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "reduced from 336.0h to 168.0h")
	assert.Contains(t, warnings[0].Message, "50% change")

	// The new window drives subsequent trims.
	trims := st.snapshotTrims()
	require.Len(t, trims, 2)
	assert.Equal(t, now.Add(time.Minute).Add(-168*time.Hour), trims[1])
}

func TestRetentionWindowExtensionDirection(t *testing.T) {
	st := &fakeRetentionStore{}
	monitor, sink := newTestMonitor(t, MonitorConfig{})

	window := 168.0
	r := NewRetentionManager(st, monitor, func() float64 { return window }, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window = 336.0
	r.ForceTrimNow(now)

	warnings := sink.byType(model.AlertDatastoreWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "extended from 168.0h to 336.0h")
}

func TestRetentionTinyWindowChangeIgnored(t *testing.T) {
	st := &fakeRetentionStore{}
	monitor, sink := newTestMonitor(t, MonitorConfig{})

	window := 336.0
	r := NewRetentionManager(st, monitor, func() float64 { return window }, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window = 336.05
	r.ForceTrimNow(now)

	assert.Empty(t, sink.byType(model.AlertDatastoreWarning))
	assert.Equal(t, 336.0, r.Status().RetentionHours)
}

func TestRetentionSurvivesStoreFailure(t *testing.T) {
	st := &fakeRetentionStore{failDeletes: true}
	r := NewRetentionManager(st, nil, nil, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.ForceTrimNow(now)

	st.failDeletes = false
	r.ForceTrimNow(now.Add(time.Minute))
	assert.Len(t, st.snapshotTrims(), 1, "retries on the next pass")
}

func TestRetentionStatusCleanupEstimate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeRetentionStore{health: store.Health{
		OldestSnapshot: now.Add(-28 * 24 * time.Hour),
		NewestSnapshot: now,
	}}
	r := NewRetentionManager(st, nil, nil, zaptest.NewLogger(t))

	status := r.Status()
	assert.Equal(t, float64(defaultRetentionHours), status.RetentionHours)
	// 28-day span against a 14-day window: half the data is past due.
	assert.InDelta(t, 50.0, status.EstimatedCleanupPercent, 0.01)
}

func TestRetentionStatusNoDataNoEstimate(t *testing.T) {
	st := &fakeRetentionStore{}
	r := NewRetentionManager(st, nil, nil, zaptest.NewLogger(t))

	status := r.Status()
	assert.Zero(t, status.EstimatedCleanupPercent)
}
