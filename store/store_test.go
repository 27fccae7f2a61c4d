package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ftahirops/memwatch/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memwatch.sqlite"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testMetrics() model.SystemMetrics {
	return model.SystemMetrics{
		TotalGB: 16, UsedGB: 10, FreeGB: 6, FreePercent: 37.5,
		SwapUsedMB: 512, SwapTotalMB: 2048, SwapFreePercent: 75,
		Pressure: model.PressureWarning,
	}
}

func testSamples(ts time.Time, memMBs ...float64) []model.ProcessSample {
	out := make([]model.ProcessSample, len(memMBs))
	for i, mb := range memMBs {
		out[i] = model.ProcessSample{
			PID: int32(100 + i), Name: "proc", MemoryMB: mb,
			MemoryPercent: 1, CPUPercent: 2, Timestamp: ts,
		}
	}
	return out
}

func TestRecordSnapshotAndHealth(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSnapshot(t0, testMetrics(), testSamples(t0, 100, 200, 300)))
	require.NoError(t, s.RecordSnapshot(t0.Add(time.Minute), testMetrics(), testSamples(t0.Add(time.Minute), 150, 250)))

	h, err := s.Health()
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.SnapshotCount)
	assert.Equal(t, int64(5), h.ProcessSampleCount)
	assert.Zero(t, h.AlertCount)
	assert.True(t, h.IntegrityOK)
	assert.WithinDuration(t, t0, h.OldestSnapshot, time.Millisecond)
	assert.WithinDuration(t, t0.Add(time.Minute), h.NewestSnapshot, time.Millisecond)
	assert.Greater(t, h.PageCount, int64(0))
}

func TestRecordSnapshotEmptyProcessList(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSnapshot(t0, testMetrics(), nil))

	h, err := s.Health()
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.SnapshotCount)
	assert.Zero(t, h.ProcessSampleCount)
}

func TestDeleteSnapshotsCutoffBoundary(t *testing.T) {
	s := openTestStore(t)
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSnapshot(cutoff.Add(-time.Second), testMetrics(), testSamples(cutoff.Add(-time.Second), 100)))
	require.NoError(t, s.RecordSnapshot(cutoff, testMetrics(), testSamples(cutoff, 200)))
	require.NoError(t, s.RecordSnapshot(cutoff.Add(time.Second), testMetrics(), testSamples(cutoff.Add(time.Second), 300)))

	removed, err := s.DeleteSnapshotsOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "only rows strictly older than cutoff go")

	h, err := s.Health()
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.SnapshotCount)
	assert.Equal(t, int64(2), h.ProcessSampleCount, "samples cascade with their snapshot")
	assert.WithinDuration(t, cutoff, h.OldestSnapshot, time.Millisecond)
}

func TestRecentSnapshotHistory(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ts := t0.Add(time.Duration(i) * time.Minute)
		samples := []model.ProcessSample{
			{PID: 1, Name: "small", MemoryMB: 100, Timestamp: ts},
			{PID: 2, Name: "big", MemoryMB: 900 + float64(i), Timestamp: ts},
		}
		require.NoError(t, s.RecordSnapshot(ts, testMetrics(), samples))
	}

	recs, err := s.RecentSnapshotHistory(3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	// Ascending time order, most recent three scans.
	assert.WithinDuration(t, t0.Add(2*time.Minute), recs[0].Timestamp, time.Millisecond)
	assert.WithinDuration(t, t0.Add(4*time.Minute), recs[2].Timestamp, time.Millisecond)
	for _, r := range recs {
		assert.Equal(t, "big", r.TopProcessName)
		assert.Greater(t, r.TopProcessMB, 900.0)
	}
}

func TestAlertRoundTripWithMetadata(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := model.NewHighSwapAlert(ts, testMetrics())
	require.NoError(t, s.InsertAlert(a))

	got, err := s.Alert(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertHighSwap, got.Type)
	assert.Equal(t, a.Message, got.Message)
	assert.Equal(t, "512", got.Metadata["swap_used_mb"])
	assert.WithinDuration(t, ts, got.Timestamp, time.Millisecond)
}

func TestAlertEnrichment(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := model.NewRapidGrowthAlert(ts, 42, "leaky", 250)
	require.NoError(t, s.InsertAlert(a))

	// A diagnostics collaborator attaches artifact details later.
	enriched := map[string]string{
		"artifact_path":   "~/MemoryWatch/artifacts/leaky-42.heap",
		"artifact_exists": "true",
	}
	require.NoError(t, s.UpdateAlertMetadata(a.ID, enriched))

	got, err := s.Alert(a.ID)
	require.NoError(t, err)
	assert.Equal(t, enriched, got.Metadata)
	assert.Equal(t, int32(42), got.PID)
	assert.Equal(t, "leaky", got.ProcessName)
}

func TestAlertNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Alert("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateAlertMetadata("missing", map[string]string{"k": "v"}), ErrNotFound)
}

func TestRecentAlertsFilterAndOrder(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		a := model.NewHighMemoryAlert(t0.Add(time.Duration(i)*time.Minute), int32(i+1), "p", 2000)
		require.NoError(t, s.InsertAlert(a))
	}
	require.NoError(t, s.InsertAlert(model.NewDatastoreWarning(t0.Add(10*time.Minute), "wal")))

	all, err := s.RecentAlerts(10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, model.AlertDatastoreWarning, all[0].Type, "newest first")

	mem, err := s.RecentAlerts(10, model.AlertHighMemory)
	require.NoError(t, err)
	require.Len(t, mem, 3)
	assert.Equal(t, int32(3), mem[0].PID)

	limited, err := s.RecentAlerts(2, model.AlertHighMemory)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteAlertsCutoffBoundary(t *testing.T) {
	s := openTestStore(t)
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := model.NewDatastoreWarning(cutoff.Add(-time.Second), "old")
	atCutoff := model.NewDatastoreWarning(cutoff, "at cutoff")
	require.NoError(t, s.InsertAlert(old))
	require.NoError(t, s.InsertAlert(atCutoff))

	removed, err := s.DeleteAlertsOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = s.Alert(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Alert(atCutoff.ID)
	assert.NoError(t, err)
}

func TestPerformMaintenance(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		ts := t0.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.RecordSnapshot(ts, testMetrics(), testSamples(ts, 100, 200)))
	}

	require.NoError(t, s.PerformMaintenance())

	h, err := s.Health()
	require.NoError(t, err)
	assert.False(t, h.LastMaintenance.IsZero())
	assert.True(t, h.IntegrityOK)
}

func TestProcessSamplesSince(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSnapshot(t0, testMetrics(), testSamples(t0, 100)))
	require.NoError(t, s.RecordSnapshot(t0.Add(time.Hour), testMetrics(), testSamples(t0.Add(time.Hour), 150)))

	rows, err := s.ProcessSamplesSince(t0.Add(30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 150.0, rows[0].MemoryMB)

	rows, err = s.ProcessSamplesSince(t0)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "cutoff itself is included")
}
