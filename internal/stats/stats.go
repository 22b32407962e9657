// Package stats provides the pure numeric kernels the detectors share:
// descriptive statistics, trapezoidal curve area, and daily activity
// baselines. Everything here is deterministic and side-effect free.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, or 0 for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the sample variance, or 0 when fewer than two samples.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSqDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSqDiff += diff * diff
	}
	return sumSqDiff / float64(len(values)-1)
}

// StdDev returns the sample standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Median returns the middle value, averaging the two central values for
// even-sized samples. Empty input returns 0; callers must guard.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// CV returns the coefficient of variation stdDev/mean, the dimensionless
// dispersion measure behind metronomic-timing detection. A non-positive
// mean yields 0.
func CV(values []float64) float64 {
	mean := Mean(values)
	if mean <= 0 {
		return 0
	}
	return StdDev(values) / mean
}

// Point is an (x, y) sample on a curve.
type Point struct {
	X float64
	Y float64
}

// TrapezoidAUC integrates y over x with the trapezoidal rule. The input is
// sorted by X first; runs of equal X contribute no width, so degenerate
// curves (every recall identical) integrate to 0.
func TrapezoidAUC(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	area := 0.0
	for i := 1; i < len(sorted); i++ {
		width := sorted[i].X - sorted[i-1].X
		if width <= 0 {
			continue
		}
		area += width * (sorted[i].Y + sorted[i-1].Y) / 2
	}
	return area
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
