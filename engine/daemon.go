package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/memwatch/collector"
	"github.com/ftahirops/memwatch/store"
)

// DaemonConfig holds the scan-loop configuration.
type DaemonConfig struct {
	Interval      time.Duration
	WarmStartPath string
}

// Daemon runs the single-threaded scan loop: collect, record, analyze,
// alert, then nudge retention and maintenance in the background.
type Daemon struct {
	cfg         DaemonConfig
	collector   collector.Collector
	history     *HistoryStore
	monitor     *Monitor
	store       *store.Store
	retention   *RetentionManager
	maintenance *MaintenanceScheduler
	logger      *zap.Logger
}

// NewDaemon wires the scan loop. All components must be non-nil; the
// caller owns opening the store and constructing the monitor.
func NewDaemon(cfg DaemonConfig, col collector.Collector, history *HistoryStore,
	monitor *Monitor, st *store.Store, retention *RetentionManager,
	maintenance *MaintenanceScheduler, logger *zap.Logger) *Daemon {
	return &Daemon{
		cfg:         cfg,
		collector:   col,
		history:     history,
		monitor:     monitor,
		store:       st,
		retention:   retention,
		maintenance: maintenance,
		logger:      logger,
	}
}

// Run executes the scan loop until ctx is cancelled. On shutdown it
// synchronously flushes the warm-start snapshot and logs a final
// summary; no new scans start once shutdown begins.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.WarmStartPath != "" {
		if LoadWarmStart(d.cfg.WarmStartPath, d.history) {
			// Rebuild suspect state from restored timelines before any
			// query can observe the monitor.
			res := d.monitor.Rescan(time.Now())
			d.logger.Info("warm start",
				zap.Int("timelines", res.Tracked),
				zap.Int("suspects", res.Suspects))
		}
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.logger.Info("daemon started", zap.Duration("interval", d.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			return d.shutdown()
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Daemon) tick(ctx context.Context) {
	scan, err := d.collector.Collect(ctx)
	if err != nil {
		d.logger.Warn("collect failed", zap.Error(err))
		return
	}

	res := d.monitor.Observe(scan)

	if err := d.store.RecordSnapshot(scan.Timestamp, scan.Metrics, scan.Processes); err != nil {
		// Durable history degrades; in-memory analysis carries on.
		d.logger.Warn("snapshot persist failed", zap.Error(err))
	}

	// Background checks self-gate on their own timers, so overlapping
	// nudges beyond the first are no-ops.
	go d.retention.CheckAndTrim(scan.Timestamp)
	go d.maintenance.Check(scan.Timestamp)

	d.logger.Info("scan",
		zap.Int("processes", len(scan.Processes)),
		zap.Int("tracked", res.Tracked),
		zap.Int("suspects", res.Suspects),
		zap.Int("alerts", res.AlertsEmitted),
		zap.String("pressure", scan.Metrics.Pressure.String()))
}

func (d *Daemon) shutdown() error {
	d.logger.Info("daemon shutting down")

	if d.cfg.WarmStartPath != "" {
		if err := SaveWarmStart(d.cfg.WarmStartPath, d.history); err != nil {
			d.logger.Warn("warm-start flush failed", zap.Error(err))
		}
	}

	suspects := d.monitor.LeakSuspects(0, 0)
	health, err := d.store.Health()
	if err != nil {
		d.logger.Warn("final health read failed", zap.Error(err))
	}
	d.logger.Info("final summary",
		zap.Int("timelines", d.history.Len()),
		zap.Int("suspects", len(suspects)),
		zap.Int64("stored_snapshots", health.SnapshotCount),
		zap.Int64("stored_alerts", health.AlertCount))
	return nil
}
