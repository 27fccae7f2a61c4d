package engine

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/memwatch/model"
)

const (
	// suspectFloorMB is the minimum tracked growth before a process is
	// materialized as a leak suspect; anything below is noise.
	suspectFloorMB = 10

	// rapidWindow and rapidDeltaMB define the short-window spike
	// override that bypasses the regression classifier.
	rapidWindow  = 10
	rapidDeltaMB = 100

	// highMemoryCeilingMB triggers an absolute-usage alert regardless
	// of growth.
	highMemoryCeilingMB = 1024

	// dedupWindow suppresses repeat alerts for the same (type, pid).
	dedupWindow = 5 * time.Minute
)

// AlertSink persists emitted alerts. The store satisfies it; a nil
// sink keeps the monitor fully in-memory.
type AlertSink interface {
	InsertAlert(model.MemoryAlert) error
}

// MonitorConfig tunes system-wide alerting.
type MonitorConfig struct {
	SwapAlertMB float64 // swap-used threshold for HIGH_SWAP
}

// Monitor orchestrates history updates and leak analysis per scan,
// producing ranked suspects and deduplicated alerts.
type Monitor struct {
	history *HistoryStore
	sink    AlertSink
	cfg     MonitorConfig
	logger  *zap.Logger

	mu        sync.Mutex
	suspects  map[int32]model.LeakSuspect
	lastAlert map[alertKey]time.Time
}

type alertKey struct {
	typ model.AlertType
	pid int32
}

// ScanResult summarizes one analysis pass.
type ScanResult struct {
	Tracked       int
	Evicted       int
	Suspects      int
	AlertsEmitted int
}

// NewMonitor creates a monitor over the given history store. sink may
// be nil for ephemeral, store-less operation.
func NewMonitor(history *HistoryStore, sink AlertSink, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	return &Monitor{
		history:   history,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
		suspects:  make(map[int32]model.LeakSuspect),
		lastAlert: make(map[alertKey]time.Time),
	}
}

// Observe ingests one scan: records samples, evicts stale timelines,
// re-derives the suspect set and emits alerts. An empty process list
// is fine; system-wide alerts still fire.
func (m *Monitor) Observe(scan model.Scan) ScanResult {
	for _, p := range scan.Processes {
		m.history.Record(p.PID, p)
	}
	res := m.analyze(scan.Timestamp)

	// Absolute ceiling is independent of growth and sample count.
	for _, p := range scan.Processes {
		if p.MemoryMB > highMemoryCeilingMB {
			res.AlertsEmitted += m.emit(model.NewHighMemoryAlert(scan.Timestamp, p.PID, p.Name, p.MemoryMB))
		}
	}

	if m.cfg.SwapAlertMB > 0 && scan.Metrics.SwapUsedMB > m.cfg.SwapAlertMB {
		res.AlertsEmitted += m.emit(model.NewHighSwapAlert(scan.Timestamp, scan.Metrics))
	}
	if scan.Metrics.Pressure == model.PressureCritical {
		res.AlertsEmitted += m.emit(model.NewPressureAlert(scan.Timestamp, scan.Metrics))
	}

	return res
}

// Rescan re-runs analysis over existing history without new samples,
// used after a warm start to rebuild the suspect set before queries
// are served.
func (m *Monitor) Rescan(now time.Time) ScanResult {
	return m.analyze(now)
}

func (m *Monitor) analyze(now time.Time) ScanResult {
	evicted := m.history.EvictStale(now)
	res := ScanResult{Tracked: m.history.Len(), Evicted: evicted}
	suspects := make(map[int32]model.LeakSuspect)

	for _, pid := range m.history.PIDs() {
		tl := m.history.Timeline(pid)
		ev := Evaluate(tl)
		if ev == nil {
			continue
		}
		level := SuspicionFor(*ev)

		// Sharp spikes hide inside a long regression window; a raw
		// delta over the most recent samples escalates immediately.
		rapid := false
		if delta := recentDelta(tl, rapidWindow); delta > rapidDeltaMB {
			rapid = true
			level = model.SuspicionCritical
			last := tl[len(tl)-1]
			res.AlertsEmitted += m.emit(model.NewRapidGrowthAlert(now, pid, last.Name, delta))
		}

		if ev.GrowthMB <= suspectFloorMB && !rapid {
			continue
		}

		first, last := tl[0], tl[len(tl)-1]
		s := model.LeakSuspect{
			PID:             pid,
			Name:            last.Name,
			InitialMemoryMB: first.MemoryMB,
			CurrentMemoryMB: last.MemoryMB,
			GrowthMB:        ev.GrowthMB,
			GrowthRateMBH:   ev.SlopeMBPerHour,
			FirstSeen:       first.Timestamp,
			LastSeen:        last.Timestamp,
			Level:           level,
		}
		suspects[pid] = s

		if level >= model.SuspicionHigh {
			res.AlertsEmitted += m.emit(model.NewLeakAlert(now, s))
		}
	}

	m.mu.Lock()
	m.suspects = suspects
	m.pruneDedupLocked(now)
	m.mu.Unlock()

	res.Suspects = len(suspects)
	return res
}

// Emit routes an externally produced alert (retention, maintenance,
// diagnostics) through the same dedup and persistence path. Returns
// true if the alert survived deduplication.
func (m *Monitor) Emit(a model.MemoryAlert) bool {
	return m.emit(a) == 1
}

// emit applies the (type, pid) dedup window and persists best-effort.
// Returns 1 if the alert was recorded, 0 if suppressed.
func (m *Monitor) emit(a model.MemoryAlert) int {
	key := alertKey{a.Type, a.PID}

	m.mu.Lock()
	if last, ok := m.lastAlert[key]; ok && a.Timestamp.Sub(last) < dedupWindow {
		m.mu.Unlock()
		return 0
	}
	m.lastAlert[key] = a.Timestamp
	m.mu.Unlock()

	m.logger.Info("alert",
		zap.String("type", string(a.Type)),
		zap.Int32("pid", a.PID),
		zap.String("message", a.Message))

	if m.sink != nil {
		// A failed persist must not abort the scan loop or drop the
		// in-memory suspect state.
		if err := m.sink.InsertAlert(a); err != nil {
			m.logger.Warn("alert persist failed", zap.Error(err))
		}
	}
	return 1
}

// pruneDedupLocked drops dedup entries old enough to never suppress
// again, keeping the map bounded over indefinite uptime.
func (m *Monitor) pruneDedupLocked(now time.Time) {
	for key, ts := range m.lastAlert {
		if now.Sub(ts) > 2*dedupWindow {
			delete(m.lastAlert, key)
		}
	}
}

// LeakSuspects returns suspects at or above minLevel, sorted by growth
// rate descending with pid ascending as the tie-break. limit <= 0
// returns all.
func (m *Monitor) LeakSuspects(minLevel model.SuspicionLevel, limit int) []model.LeakSuspect {
	m.mu.Lock()
	out := make([]model.LeakSuspect, 0, len(m.suspects))
	for _, s := range m.suspects {
		if s.Level >= minLevel {
			out = append(out, s)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].GrowthRateMBH != out[j].GrowthRateMBH {
			return out[i].GrowthRateMBH > out[j].GrowthRateMBH
		}
		return out[i].PID < out[j].PID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// recentDelta is the raw memory change across the newest window of
// samples (last minus first), or 0 when under two samples.
func recentDelta(tl []model.ProcessSample, window int) float64 {
	n := len(tl)
	if n < 2 {
		return 0
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	return tl[n-1].MemoryMB - tl[start].MemoryMB
}
