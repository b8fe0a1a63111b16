package core

import "math"

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates percentage change as a fraction.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 || math.IsNaN(previous) {
		return 0.0
	}
	return (current - previous) / previous
}

// -----------------------------------------------------------------------------

// IsFinite reports whether every value is a real number.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
