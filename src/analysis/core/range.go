package core

import (
	"math"

	"level-observer/src/models"

	"github.com/montanaflynn/stats"
)

// AverageRangeSamples is both how many leading candles are sampled and the
// divisor applied, even when the series is shorter.
const AverageRangeSamples = 100

// -----------------------------------------------------------------------------

// AverageRange returns the summed high-low range of the first
// AverageRangeSamples candles divided by AverageRangeSamples. Candles with a
// non-finite range contribute nothing. An empty series yields 0.
func AverageRange(series []models.MCandle) float64 {
	n := len(series)
	if n > AverageRangeSamples {
		n = AverageRangeSamples
	}

	ranges := make(stats.Float64Data, 0, n)
	for _, c := range series[:n] {
		r := c.High - c.Low
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		ranges = append(ranges, r)
	}

	sum, err := stats.Sum(ranges)
	if err != nil {
		// stats.EmptyInputErr
		return 0
	}
	return sum / AverageRangeSamples
}
