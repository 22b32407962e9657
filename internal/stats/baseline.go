package stats

import (
	"math"
	"sort"
	"time"
)

// Baseline summarizes historical daily activity for anomaly comparison.
type Baseline struct {
	Mean        float64
	StdDev      float64
	SampleCount int
}

// NewBaseline computes a plain baseline over historical samples.
func NewBaseline(values []float64) Baseline {
	return Baseline{
		Mean:        Mean(values),
		StdDev:      StdDev(values),
		SampleCount: len(values),
	}
}

// EWMABaseline smooths samples in order with an exponentially weighted
// moving average, weighting recent days more as alpha grows. Alpha outside
// (0,1] falls back to the plain baseline. Variance uses the incremental
// exponentially weighted recurrence.
func EWMABaseline(values []float64, alpha float64) Baseline {
	if alpha <= 0 || alpha > 1 {
		return NewBaseline(values)
	}
	if len(values) == 0 {
		return Baseline{}
	}

	mean := values[0]
	variance := 0.0
	for _, v := range values[1:] {
		diff := v - mean
		incr := alpha * diff
		mean += incr
		variance = (1 - alpha) * (variance + diff*incr)
	}
	return Baseline{
		Mean:        mean,
		StdDev:      math.Sqrt(variance),
		SampleCount: len(values),
	}
}

// ZScore reports how many standard deviations v sits from the baseline
// mean. A zero-spread baseline returns 0.
func (b Baseline) ZScore(v float64) float64 {
	if b.StdDev == 0 {
		return 0
	}
	return (v - b.Mean) / b.StdDev
}

// TimedValue is a timestamped measurement, the unit of daily binning.
type TimedValue struct {
	At    time.Time
	Value float64
}

// DayBucket aggregates the values that fell on one calendar day.
type DayBucket struct {
	Day   time.Time
	Total float64
	Count int
}

// BinDaily sums samples into calendar-day buckets evaluated in loc (UTC
// when nil), returned in ascending day order.
func BinDaily(samples []TimedValue, loc *time.Location) []DayBucket {
	if len(samples) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	buckets := make(map[time.Time]*DayBucket)
	for _, s := range samples {
		local := s.At.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		b := buckets[day]
		if b == nil {
			b = &DayBucket{Day: day}
			buckets[day] = b
		}
		b.Total += s.Value
		b.Count++
	}

	out := make([]DayBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
