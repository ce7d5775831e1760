package buckets

import (
	"math"
	"sort"
)

// Percentiles is the default set of percentiles computed for every timer,
// matching spec.md's {50, 90, 95, 99}. computeTimerStats reads this
// package-level slice, so changing it changes the set for every timer.
var Percentiles = []float64{50, 90, 95, 99}

// TimerStats holds the derived statistics for one timer bucket, computed
// once per flush in Buckets.Process from the raw ascending-sorted samples.
type TimerStats struct {
	Count      int
	Min        float64
	Max        float64
	Sum        float64
	SumSquares float64
	Mean       float64
	Median     float64
	Std        float64
	Rate       float64

	// Percentile-keyed derived values, e.g. Upper[90], Mean90[90], Sum90[90].
	Upper map[int]float64
	Mean90 map[int]float64 //nolint:revive // kept as a descriptive field name pair with Upper/Sum
	Sum90  map[int]float64
}

func computeTimerStats(samples []float64, flushIntervalSeconds float64) TimerStats {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	n := len(sorted)
	stats := TimerStats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Upper:  make(map[int]float64, len(Percentiles)),
		Mean90: make(map[int]float64, len(Percentiles)),
		Sum90:  make(map[int]float64, len(Percentiles)),
	}

	var sum, sumSquares float64
	for _, v := range sorted {
		sum += v
		sumSquares += v * v
	}
	stats.Sum = sum
	stats.SumSquares = sumSquares
	stats.Mean = sum / float64(n)

	mid := n / 2
	if n%2 == 1 {
		stats.Median = sorted[mid]
	} else {
		stats.Median = sorted[mid-1] // lower-middle of the two center samples
	}

	var variance float64
	for _, v := range sorted {
		d := v - stats.Mean
		variance += d * d
	}
	stats.Std = math.Sqrt(variance / float64(n))

	if flushIntervalSeconds <= 0 {
		flushIntervalSeconds = 1
	}
	stats.Rate = float64(n) / flushIntervalSeconds

	for _, p := range Percentiles {
		k := int(math.Ceil(p / 100 * float64(n)))
		if k < 1 {
			k = 1
		}
		if k > n {
			k = n
		}
		upper := sorted[k-1]
		var sumP float64
		for _, v := range sorted[:k] {
			sumP += v
		}
		pi := int(p)
		stats.Upper[pi] = upper
		stats.Sum90[pi] = sumP
		stats.Mean90[pi] = sumP / float64(k)
	}

	return stats
}
