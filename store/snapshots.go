package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ftahirops/memwatch/model"
)

// SnapshotRecord is one persisted scan, annotated with its top-memory
// process when one was recorded.
type SnapshotRecord struct {
	ID             int64
	Timestamp      time.Time
	Metrics        model.SystemMetrics
	TopProcessName string
	TopProcessMB   float64
}

// RecordSnapshot writes one system-metrics row plus its process-sample
// rows as a single transaction. Partial writes are never observable;
// health counts derive from row counts.
func (s *Store) RecordSnapshot(ts time.Time, metrics model.SystemMetrics, samples []model.ProcessSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO snapshots
		(timestamp, total_gb, used_gb, free_gb, free_percent,
		 swap_used_mb, swap_total_mb, swap_free_percent, pressure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toUnixSeconds(ts), metrics.TotalGB, metrics.UsedGB, metrics.FreeGB,
		metrics.FreePercent, metrics.SwapUsedMB, metrics.SwapTotalMB,
		metrics.SwapFreePercent, metrics.Pressure.String())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO process_samples
		(snapshot_id, pid, name, path, memory_mb, memory_percent,
		 cpu_percent, read_mbs, write_mbs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range samples {
		if _, err := stmt.Exec(snapshotID, p.PID, p.Name, p.Path,
			p.MemoryMB, p.MemoryPercent, p.CPUPercent, p.ReadMBs, p.WriteMBs); err != nil {
			return fmt.Errorf("insert sample pid=%d: %w", p.PID, err)
		}
	}

	return tx.Commit()
}

// DeleteSnapshotsOlderThan removes snapshots strictly older than
// cutoff, cascading to their process samples. Rows exactly at cutoff
// are retained.
func (s *Store) DeleteSnapshotsOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM snapshots WHERE timestamp < ?", toUnixSeconds(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	return res.RowsAffected()
}

// RecentSnapshotHistory returns the most recent limit scans in
// ascending time order.
func (s *Store) RecentSnapshotHistory(limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(`SELECT id, timestamp, total_gb, used_gb, free_gb,
		free_percent, swap_used_mb, swap_total_mb, swap_free_percent, pressure
		FROM snapshots ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var recs []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		var ts float64
		var pressure string
		if err := rows.Scan(&r.ID, &ts, &r.Metrics.TotalGB, &r.Metrics.UsedGB,
			&r.Metrics.FreeGB, &r.Metrics.FreePercent, &r.Metrics.SwapUsedMB,
			&r.Metrics.SwapTotalMB, &r.Metrics.SwapFreePercent, &pressure); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.Timestamp = fromUnixSeconds(ts)
		r.Metrics.Pressure = parsePressure(pressure)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into ascending order, then annotate top processes.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	for i := range recs {
		if err := s.annotateTopProcess(&recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (s *Store) annotateTopProcess(rec *SnapshotRecord) error {
	err := s.db.QueryRow(`SELECT name, memory_mb FROM process_samples
		WHERE snapshot_id = ? ORDER BY memory_mb DESC LIMIT 1`, rec.ID).
		Scan(&rec.TopProcessName, &rec.TopProcessMB)
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

// SampleRow is one process sample joined with its snapshot timestamp,
// used by trend queries over the durable store.
type SampleRow struct {
	PID       int32
	Name      string
	MemoryMB  float64
	Timestamp time.Time
}

// ProcessSamplesSince returns all process samples recorded at or after
// cutoff, ascending by snapshot time.
func (s *Store) ProcessSamplesSince(cutoff time.Time) ([]SampleRow, error) {
	rows, err := s.db.Query(`SELECT ps.pid, ps.name, ps.memory_mb, sn.timestamp
		FROM process_samples ps
		JOIN snapshots sn ON ps.snapshot_id = sn.id
		WHERE sn.timestamp >= ?
		ORDER BY sn.timestamp ASC`, toUnixSeconds(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []SampleRow
	for rows.Next() {
		var r SampleRow
		var ts float64
		if err := rows.Scan(&r.PID, &r.Name, &r.MemoryMB, &ts); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		r.Timestamp = fromUnixSeconds(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SnapshotsSince returns system snapshots recorded at or after cutoff,
// ascending by time, without top-process annotation.
func (s *Store) SnapshotsSince(cutoff time.Time) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(`SELECT id, timestamp, total_gb, used_gb, free_gb,
		free_percent, swap_used_mb, swap_total_mb, swap_free_percent, pressure
		FROM snapshots WHERE timestamp >= ? ORDER BY timestamp ASC`, toUnixSeconds(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var recs []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		var ts float64
		var pressure string
		if err := rows.Scan(&r.ID, &ts, &r.Metrics.TotalGB, &r.Metrics.UsedGB,
			&r.Metrics.FreeGB, &r.Metrics.FreePercent, &r.Metrics.SwapUsedMB,
			&r.Metrics.SwapTotalMB, &r.Metrics.SwapFreePercent, &pressure); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.Timestamp = fromUnixSeconds(ts)
		r.Metrics.Pressure = parsePressure(pressure)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func parsePressure(s string) model.PressureLevel {
	switch s {
	case "Warning":
		return model.PressureWarning
	case "Critical":
		return model.PressureCritical
	default:
		return model.PressureNormal
	}
}
