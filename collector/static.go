package collector

import (
	"context"

	"github.com/ftahirops/memwatch/model"
)

// StaticCollector replays a fixed sequence of scans, then repeats the
// last one. It exists for tests and offline analysis of recorded data.
type StaticCollector struct {
	scans []model.Scan
	next  int
}

// NewStaticCollector creates a collector over the given scans. At least
// one scan is required.
func NewStaticCollector(scans ...model.Scan) *StaticCollector {
	return &StaticCollector{scans: scans}
}

func (c *StaticCollector) Collect(ctx context.Context) (model.Scan, error) {
	if err := ctx.Err(); err != nil {
		return model.Scan{}, err
	}
	if len(c.scans) == 0 {
		return model.Scan{}, nil
	}
	scan := c.scans[c.next]
	if c.next < len(c.scans)-1 {
		c.next++
	}
	return scan, nil
}
