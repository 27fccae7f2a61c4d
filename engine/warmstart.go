package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ftahirops/memwatch/model"
)

// warmStartVersion guards the snapshot format; mismatches start cold.
const warmStartVersion = 1

// warmStartFile is the lightweight restart snapshot of raw per-process
// timelines, written on shutdown so the daemon can resume analysis
// without replaying the durable store.
type warmStartFile struct {
	Version   int                             `json:"version"`
	SavedAt   time.Time                       `json:"saved_at"`
	Timelines map[int32][]model.ProcessSample `json:"timelines"`
}

// SaveWarmStart writes the history store's timelines to path. The file
// is written to a temp name and renamed so a crash mid-write leaves
// either the old snapshot or none.
func SaveWarmStart(path string, h *HistoryStore) error {
	data, err := json.Marshal(warmStartFile{
		Version:   warmStartVersion,
		SavedAt:   time.Now(),
		Timelines: h.snapshotAll(),
	})
	if err != nil {
		return fmt.Errorf("marshal warm-start snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write warm-start snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadWarmStart rebuilds the history store from a prior snapshot. A
// missing, corrupt or incompatible file means "no prior history": the
// store is left empty and no error is reported.
func LoadWarmStart(path string, h *HistoryStore) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var f warmStartFile
	if err := json.Unmarshal(data, &f); err != nil || f.Version != warmStartVersion {
		// Stale or unreadable snapshots are discarded; cold start.
		_ = os.Remove(path)
		return false
	}
	h.restoreAll(f.Timelines)
	return true
}
