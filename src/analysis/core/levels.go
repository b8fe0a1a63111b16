// Package core holds the pure support/resistance detection functions. Nothing
// here allocates state that outlives a call.
package core

import (
	"math"

	"level-observer/src/models"
)

const (
	// MaxLevels caps the aggregator output.
	MaxLevels = 8
	// MergeRangeFactor scales the average range into the merge radius.
	MergeRangeFactor = 2.0
	// windowSide is how many neighbours each side of a pivot must confirm it.
	windowSide = 2
)

// -----------------------------------------------------------------------------

// classifiable reports whether i has windowSide neighbours on both sides.
func classifiable(series []models.MCandle, i int) bool {
	return i >= windowSide && i+windowSide < len(series)
}

// -----------------------------------------------------------------------------

// IsSupport reports whether the candle at i is a width-5 V in the low:
// lows strictly fall into i and strictly rise after it.
func IsSupport(series []models.MCandle, i int) bool {
	if !classifiable(series, i) {
		return false
	}
	return series[i].Low < series[i+1].Low &&
		series[i+1].Low < series[i+2].Low &&
		series[i].Low < series[i-1].Low &&
		series[i-1].Low < series[i-2].Low
}

// -----------------------------------------------------------------------------

// IsResistance reports whether the candle at i is a width-5 peak in the high.
func IsResistance(series []models.MCandle, i int) bool {
	if !classifiable(series, i) {
		return false
	}
	return series[i].High > series[i+1].High &&
		series[i+1].High > series[i+2].High &&
		series[i].High > series[i-1].High &&
		series[i-1].High > series[i-2].High
}

// -----------------------------------------------------------------------------

// candidate returns the level value the candle at i proposes, if any.
// Support is checked first and wins when both patterns match.
func candidate(series []models.MCandle, i int) (float64, bool) {
	c := series[i]
	var v float64
	switch {
	case IsSupport(series, i):
		v = math.Min(c.Open, c.Close)
	case IsResistance(series, i):
		v = math.Max(c.Open, c.Close)
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// -----------------------------------------------------------------------------

// closeToExisting returns the index of the first level strictly within radius
// of value, or -1.
func closeToExisting(levels []models.MLevel, value, radius float64) int {
	for i, l := range levels {
		if math.Abs(l.Value-value) < radius {
			return i
		}
	}
	return -1
}

// -----------------------------------------------------------------------------

// AggregateLevels scans series once and returns at most MaxLevels levels in
// insertion order. A candidate within 2x the average range of an existing
// level replaces it with their mean, stamped with the newer candle and moved
// to the end. Levels discovered after the first MaxLevels clusters are dropped.
func AggregateLevels(series []models.MCandle) []models.MLevel {
	levels := make([]models.MLevel, 0, MaxLevels)
	if len(series) < 2*windowSide+1 {
		return levels
	}

	radius := MergeRangeFactor * AverageRange(series)
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		radius = 0
	}

	for i := range series {
		value, ok := candidate(series, i)
		if !ok {
			continue
		}

		if idx := closeToExisting(levels, value, radius); idx > -1 {
			value = (value + levels[idx].Value) / 2
			levels = append(levels[:idx], levels[idx+1:]...)
		}
		levels = append(levels, models.MLevel{Timestamp: series[i].Timestamp, Value: value})
	}

	if len(levels) > MaxLevels {
		levels = levels[:MaxLevels]
	}
	return levels
}
