package utils

import "math"

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

// Percent returns part/whole*100 rounded to two decimals, and 0 when whole is 0.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(part / whole * 100)
}

// PercentChange computes (current-previous)/previous*100 rounded to two decimals.
// When previous is 0 the ratio is undefined: isNew reports a rise from zero and the
// change is 0.
func PercentChange(current, previous float64) (change float64, isNew bool) {
	if previous == 0 {
		return 0, current > 0
	}
	return Round2((current - previous) / previous * 100), false
}
