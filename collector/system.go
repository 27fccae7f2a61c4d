package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ftahirops/memwatch/model"
)

const bytesPerMB = 1024 * 1024

// SystemCollector reads live system and per-process memory state via
// gopsutil. It keeps per-pid I/O counters between scans to derive
// read/write rates.
type SystemCollector struct {
	limit int // max processes per scan, largest resident first

	mu         sync.Mutex
	lastIO     map[int32]ioSample
	lastIOTime time.Time
}

type ioSample struct {
	readBytes  uint64
	writeBytes uint64
}

// NewSystemCollector creates a collector that reports the top limit
// processes by resident memory.
func NewSystemCollector(limit int) *SystemCollector {
	if limit <= 0 {
		limit = 30
	}
	return &SystemCollector{limit: limit, lastIO: make(map[int32]ioSample)}
}

// Collect gathers one scan. Individual unreadable processes are
// skipped; only whole-system read failures surface as errors.
func (c *SystemCollector) Collect(ctx context.Context) (model.Scan, error) {
	now := time.Now()

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.Scan{}, fmt.Errorf("read virtual memory: %w", err)
	}
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return model.Scan{}, fmt.Errorf("read swap: %w", err)
	}

	freePct := 100 - vm.UsedPercent
	swapFreePct := 100.0
	if swap.Total > 0 {
		swapFreePct = 100 - swap.UsedPercent
	}
	metrics := model.SystemMetrics{
		TotalGB:         float64(vm.Total) / (bytesPerMB * 1024),
		UsedGB:          float64(vm.Used) / (bytesPerMB * 1024),
		FreeGB:          float64(vm.Available) / (bytesPerMB * 1024),
		FreePercent:     freePct,
		SwapUsedMB:      float64(swap.Used) / bytesPerMB,
		SwapTotalMB:     float64(swap.Total) / bytesPerMB,
		SwapFreePercent: swapFreePct,
		Pressure:        model.PressureFor(freePct),
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return model.Scan{}, fmt.Errorf("list processes: %w", err)
	}

	c.mu.Lock()
	elapsed := now.Sub(c.lastIOTime).Seconds()
	prevIO := c.lastIO
	nextIO := make(map[int32]ioSample, len(procs))
	c.mu.Unlock()

	samples := make([]model.ProcessSample, 0, len(procs))
	for _, p := range procs {
		info, err := p.MemoryInfoWithContext(ctx)
		if err != nil || info == nil {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		s := model.ProcessSample{
			PID:       p.Pid,
			Name:      name,
			MemoryMB:  float64(info.RSS) / bytesPerMB,
			Timestamp: now,
		}
		if path, err := p.ExeWithContext(ctx); err == nil {
			s.Path = path
		}
		if pct, err := p.MemoryPercentWithContext(ctx); err == nil {
			s.MemoryPercent = float64(pct)
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			s.CPUPercent = cpu
		}
		if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
			cur := ioSample{readBytes: io.ReadBytes, writeBytes: io.WriteBytes}
			nextIO[p.Pid] = cur
			// Counters restart when a pid is recycled; skip the delta
			// for that scan rather than report a bogus rate.
			if prev, ok := prevIO[p.Pid]; ok && elapsed > 0 &&
				cur.readBytes >= prev.readBytes && cur.writeBytes >= prev.writeBytes {
				s.ReadMBs = float64(cur.readBytes-prev.readBytes) / bytesPerMB / elapsed
				s.WriteMBs = float64(cur.writeBytes-prev.writeBytes) / bytesPerMB / elapsed
			}
		}
		samples = append(samples, s)
	}

	c.mu.Lock()
	c.lastIO = nextIO
	c.lastIOTime = now
	c.mu.Unlock()

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].MemoryMB > samples[j].MemoryMB
	})
	if len(samples) > c.limit {
		samples = samples[:c.limit]
	}

	return model.Scan{Timestamp: now, Metrics: metrics, Processes: samples}, nil
}
