package engine

import (
	"math"
	"sort"

	"github.com/ftahirops/memwatch/model"
)

// minEvaluationSamples is the minimum timeline length the regression
// needs before it will produce a diagnosis.
const minEvaluationSamples = 5

// tierRule is one row of the suspicion threshold table, checked in
// order with first match winning.
type tierRule struct {
	level      model.SuspicionLevel
	minSlope   float64 // MB/hour
	minGrowth  float64 // MB
	minR2      float64
	maxNoise   float64 // noise ratio upper bound; <0 disables
	minPosFrac float64 // positive-interval ratio; <0 disables
}

var tierRules = []tierRule{
	{model.SuspicionCritical, 80, 400, 0.70, 0.40, -1},
	{model.SuspicionHigh, 45, 250, 0.55, 0.55, -1},
	{model.SuspicionMedium, 25, 120, 0, -1, 0.68},
	{model.SuspicionLow, 12, 80, 0, -1, 0.60},
}

// Evaluate fits a least-squares line through a process timeline and
// derives the growth diagnosis. It returns nil when fewer than five
// samples exist; that is "insufficient data", not "benign".
func Evaluate(samples []model.ProcessSample) *model.Evaluation {
	n := len(samples)
	if n < minEvaluationSamples {
		return nil
	}

	t0 := samples[0].Timestamp
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range samples {
		xs[i] = s.Timestamp.Sub(t0).Hours()
		ys[i] = s.MemoryMB
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	var slope float64
	if denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssRes, ssTot float64
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		pred := slope*xs[i] + intercept
		residuals[i] = ys[i] - pred
		ssRes += residuals[i] * residuals[i]
		d := ys[i] - meanY
		ssTot += d * d
	}
	// A perfectly flat series has zero variance to explain; treat the
	// fit as trivially perfect rather than undefined.
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	var positive int
	for i := 1; i < n; i++ {
		if ys[i] > ys[i-1] {
			positive++
		}
	}

	duration := xs[n-1]
	growth := slope * duration
	if growth < 0 {
		growth = 0
	}

	return &model.Evaluation{
		SlopeMBPerHour:        slope,
		Intercept:             intercept,
		R2:                    r2,
		MAD:                   medianAbsoluteDeviation(residuals),
		PositiveIntervalRatio: float64(positive) / float64(n-1),
		GrowthMB:              growth,
		DurationHours:         duration,
		SampleCount:           n,
	}
}

// SuspicionFor maps an evaluation onto the suspicion tier table.
func SuspicionFor(ev model.Evaluation) model.SuspicionLevel {
	noise := ev.NoiseRatio()
	for _, r := range tierRules {
		if ev.SlopeMBPerHour < r.minSlope || ev.GrowthMB < r.minGrowth {
			continue
		}
		if ev.R2 < r.minR2 {
			continue
		}
		if r.maxNoise >= 0 && noise >= r.maxNoise {
			continue
		}
		if r.minPosFrac >= 0 && ev.PositiveIntervalRatio < r.minPosFrac {
			continue
		}
		return r.level
	}
	return model.SuspicionLow
}

func medianAbsoluteDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := median(values)
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - m)
	}
	return median(devs)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
