package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ftahirops/memwatch/model"
)

// InsertAlert appends one alert row with its metadata serialized as
// JSON alongside.
func (s *Store) InsertAlert(a model.MemoryAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}
	var pid, name any
	if a.PID != 0 {
		pid = a.PID
	}
	if a.ProcessName != "" {
		name = a.ProcessName
	}
	_, err = s.db.Exec(`INSERT INTO alerts
		(id, timestamp, type, message, pid, process_name, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, toUnixSeconds(a.Timestamp), string(a.Type), a.Message, pid, name, meta)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Alert fetches one alert by id for external enrichment.
func (s *Store) Alert(id string) (model.MemoryAlert, error) {
	row := s.db.QueryRow(`SELECT id, timestamp, type, message, pid, process_name, metadata
		FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row.Scan)
	if err == sql.ErrNoRows {
		return model.MemoryAlert{}, ErrNotFound
	}
	return a, err
}

// UpdateAlertMetadata re-stores the metadata map of an existing alert.
// Diagnostics components use this to attach artifact paths after the
// alert was first persisted.
func (s *Store) UpdateAlertMetadata(id string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	res, err := s.db.Exec("UPDATE alerts SET metadata = ? WHERE id = ?", meta, id)
	if err != nil {
		return fmt.Errorf("update alert metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first. An empty
// types list matches every alert type.
func (s *Store) RecentAlerts(limit int, types ...model.AlertType) ([]model.MemoryAlert, error) {
	query := `SELECT id, timestamp, type, message, pid, process_name, metadata
		FROM alerts`
	var args []any
	if len(types) > 0 {
		query += " WHERE type IN (?" + repeatPlaceholder(len(types)-1) + ")"
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.MemoryAlert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AlertsSince returns alerts at or after cutoff, newest first, capped
// at limit.
func (s *Store) AlertsSince(cutoff time.Time, limit int, types ...model.AlertType) ([]model.MemoryAlert, error) {
	query := `SELECT id, timestamp, type, message, pid, process_name, metadata
		FROM alerts WHERE timestamp >= ?`
	args := []any{toUnixSeconds(cutoff)}
	if len(types) > 0 {
		query += " AND type IN (?" + repeatPlaceholder(len(types)-1) + ")"
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.MemoryAlert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DeleteAlertsOlderThan removes alerts strictly older than cutoff.
func (s *Store) DeleteAlertsOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM alerts WHERE timestamp < ?", toUnixSeconds(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete alerts: %w", err)
	}
	return res.RowsAffected()
}

func scanAlert(scan func(...any) error) (model.MemoryAlert, error) {
	var a model.MemoryAlert
	var ts float64
	var typ string
	var pid sql.NullInt64
	var name, meta sql.NullString
	if err := scan(&a.ID, &ts, &typ, &a.Message, &pid, &name, &meta); err != nil {
		return a, err
	}
	a.Timestamp = fromUnixSeconds(ts)
	a.Type = model.AlertType(typ)
	if pid.Valid {
		a.PID = int32(pid.Int64)
	}
	if name.Valid {
		a.ProcessName = name.String
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
			// Unreadable metadata should not hide the alert itself.
			a.Metadata = nil
		}
	}
	return a, nil
}

func marshalMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
