// Package collector produces one scan (system metrics + process list)
// per interval. The engine consumes scans through the Collector
// interface and never touches the OS directly.
package collector

import (
	"context"

	"github.com/ftahirops/memwatch/model"
)

// Collector is a scan source.
type Collector interface {
	Collect(ctx context.Context) (model.Scan, error)
}
