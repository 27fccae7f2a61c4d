package engine

import (
	"sync"
	"time"

	"github.com/ftahirops/memwatch/model"
)

const (
	// timelineCap bounds each per-process timeline; oldest samples are
	// dropped first on overflow.
	timelineCap = 1000

	// staleAfter is how long a timeline may go without a fresh sample
	// before the whole timeline is evicted.
	staleAfter = time.Hour
)

// HistoryStore keeps a bounded, ordered-by-time sample timeline per
// process id. It does no I/O; memory is bounded at timelineCap samples
// per tracked process.
type HistoryStore struct {
	timelines map[int32][]model.ProcessSample
	mu        sync.RWMutex
}

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{timelines: make(map[int32][]model.ProcessSample)}
}

// Record appends a sample to the pid's timeline, trimming to capacity.
func (h *HistoryStore) Record(pid int32, sample model.ProcessSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tl := append(h.timelines[pid], sample)
	if overflow := len(tl) - timelineCap; overflow > 0 {
		tl = tl[overflow:]
	}
	h.timelines[pid] = tl
}

// EvictStale removes every timeline whose most recent sample is older
// than the staleness threshold relative to now. It runs as part of
// every analysis pass so staleness is measured against scan time, not
// a wall-clock poller.
func (h *HistoryStore) EvictStale(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	evicted := 0
	for pid, tl := range h.timelines {
		if len(tl) == 0 || now.Sub(tl[len(tl)-1].Timestamp) > staleAfter {
			delete(h.timelines, pid)
			evicted++
		}
	}
	return evicted
}

// Timeline returns a copy of the pid's samples, oldest first.
func (h *HistoryStore) Timeline(pid int32) []model.ProcessSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tl := h.timelines[pid]
	if len(tl) == 0 {
		return nil
	}
	return append([]model.ProcessSample(nil), tl...)
}

// PIDs returns the currently tracked process ids.
func (h *HistoryStore) PIDs() []int32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	pids := make([]int32, 0, len(h.timelines))
	for pid := range h.timelines {
		pids = append(pids, pid)
	}
	return pids
}

// Len returns the number of tracked timelines.
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.timelines)
}

// snapshotAll copies every timeline for warm-start persistence.
func (h *HistoryStore) snapshotAll() map[int32][]model.ProcessSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int32][]model.ProcessSample, len(h.timelines))
	for pid, tl := range h.timelines {
		out[pid] = append([]model.ProcessSample(nil), tl...)
	}
	return out
}

// restoreAll replaces the store's contents, re-applying the capacity
// bound in case the snapshot was written by an older build.
func (h *HistoryStore) restoreAll(timelines map[int32][]model.ProcessSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timelines = make(map[int32][]model.ProcessSample, len(timelines))
	for pid, tl := range timelines {
		if overflow := len(tl) - timelineCap; overflow > 0 {
			tl = tl[overflow:]
		}
		h.timelines[pid] = tl
	}
}
