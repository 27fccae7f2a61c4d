// Package store is the durable, WAL-mode sqlite layer for scans and
// alerts. All historical queries, retention trims and maintenance run
// against it; the in-memory history store never reads it back except
// at warm start.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = fmt.Errorf("store: not found")

// Store wraps the sqlite database. Writes are serialized through mu;
// WAL mode keeps readers from blocking behind an in-flight writer.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	mu              sync.Mutex
	lastMaintenance time.Time
}

// Open opens (or creates) the database at path and applies schema and
// pragmas. The parent directory is created if missing.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Connection-scoped pragmas ride the DSN so every pooled
	// connection gets them; WAL and auto_vacuum persist in the file.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp REAL NOT NULL,
			total_gb REAL NOT NULL,
			used_gb REAL NOT NULL,
			free_gb REAL NOT NULL,
			free_percent REAL NOT NULL,
			swap_used_mb REAL NOT NULL,
			swap_total_mb REAL NOT NULL,
			swap_free_percent REAL NOT NULL,
			pressure TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(timestamp)`,
		`CREATE TABLE IF NOT EXISTS process_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			pid INTEGER NOT NULL,
			name TEXT NOT NULL,
			path TEXT,
			memory_mb REAL NOT NULL,
			memory_percent REAL NOT NULL,
			cpu_percent REAL NOT NULL,
			read_mbs REAL NOT NULL DEFAULT 0,
			write_mbs REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_snapshot ON process_samples(snapshot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_pid ON process_samples(pid)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			timestamp REAL NOT NULL,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			pid INTEGER,
			process_name TEXT,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(type, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// WALSize returns the current size of the write-ahead log in bytes.
// A missing -wal file counts as zero.
func (s *Store) WALSize() int64 {
	info, err := os.Stat(s.path + "-wal")
	if err != nil {
		return 0
	}
	return info.Size()
}

// Health describes the physical state of the store. It is recomputed
// on every call, never cached.
type Health struct {
	SnapshotCount      int64
	ProcessSampleCount int64
	AlertCount         int64
	OldestSnapshot     time.Time
	NewestSnapshot     time.Time
	DBSizeBytes        int64
	WALSizeBytes       int64
	PageCount          int64
	FreelistPages      int64
	IntegrityOK        bool
	LastMaintenance    time.Time
}

// Health returns live counts, sizes and the integrity flag, reflecting
// the store immediately after the most recent write.
func (s *Store) Health() (Health, error) {
	var h Health
	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM snapshots", &h.SnapshotCount},
		{"SELECT COUNT(*) FROM process_samples", &h.ProcessSampleCount},
		{"SELECT COUNT(*) FROM alerts", &h.AlertCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return h, fmt.Errorf("count rows: %w", err)
		}
	}

	var oldest, newest sql.NullFloat64
	err := s.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM snapshots").Scan(&oldest, &newest)
	if err != nil {
		return h, fmt.Errorf("snapshot span: %w", err)
	}
	if oldest.Valid {
		h.OldestSnapshot = fromUnixSeconds(oldest.Float64)
	}
	if newest.Valid {
		h.NewestSnapshot = fromUnixSeconds(newest.Float64)
	}

	if info, err := os.Stat(s.path); err == nil {
		h.DBSizeBytes = info.Size()
	}
	h.WALSizeBytes = s.WALSize()

	if err := s.db.QueryRow("PRAGMA page_count").Scan(&h.PageCount); err != nil {
		return h, fmt.Errorf("page count: %w", err)
	}
	if err := s.db.QueryRow("PRAGMA freelist_count").Scan(&h.FreelistPages); err != nil {
		return h, fmt.Errorf("freelist count: %w", err)
	}

	var check string
	if err := s.db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		return h, fmt.Errorf("quick check: %w", err)
	}
	h.IntegrityOK = check == "ok"

	s.mu.Lock()
	h.LastMaintenance = s.lastMaintenance
	s.mu.Unlock()

	return h, nil
}

// PerformMaintenance checkpoints the WAL into the main file, refreshes
// planner statistics and reclaims free pages incrementally. Safe to
// call frequently; it serializes with other writers.
func (s *Store) PerformMaintenance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := []string{
		"PRAGMA wal_checkpoint(TRUNCATE)",
		"ANALYZE",
		"PRAGMA incremental_vacuum",
	}
	for _, stmt := range steps {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("maintenance %q: %w", stmt, err)
		}
	}
	s.lastMaintenance = time.Now()
	s.logger.Debug("store maintenance complete",
		zap.Int64("wal_bytes", s.WALSize()))
	return nil
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9))
}
