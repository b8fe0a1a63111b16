package analysis

import (
	"math"
	"sort"

	"level-observer/src/models"
)

// ResampleCandles folds candles into windows aligned on windowSeconds
// (start = ts - ts%window). Each output candle is stamped with its window
// start: open of the first candle, close of the last, extreme high and low,
// summed volume. Input order does not matter; output is ascending.
func ResampleCandles(candles []models.MCandle, windowSeconds int64) []models.MCandle {
	if len(candles) == 0 || windowSeconds <= 0 {
		return []models.MCandle{}
	}

	sorted := make([]models.MCandle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	out := make([]models.MCandle, 0, len(sorted))
	for _, c := range sorted {
		start, _ := CalculateWindowBoundaries(c.Timestamp, windowSeconds)

		n := len(out)
		if n == 0 || out[n-1].Timestamp != start {
			out = append(out, models.MCandle{
				Timestamp: start,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			})
			continue
		}

		w := &out[n-1]
		w.High = math.Max(w.High, c.High)
		w.Low = math.Min(w.Low, c.Low)
		w.Close = c.Close
		w.Volume += c.Volume
	}
	return out
}

// -----------------------------------------------------------------------------

// CalculateWindowBoundaries returns the aligned window holding ts.
// Negative timestamps floor toward the earlier window.
func CalculateWindowBoundaries(ts int64, window int64) (int64, int64) {
	start := ts - (ts % window)
	if ts%window < 0 {
		start -= window
	}
	return start, start + window
}
