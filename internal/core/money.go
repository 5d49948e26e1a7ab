// Package core holds the trip ledger domain model: trips, expenses,
// budgets, forex cards and the shared monetary rounding rules.
package core

import "math"

// Epsilon treats floating noise around zero as zero when comparing
// monetary deltas.
const Epsilon = 1e-9

// Round2 rounds to 2 decimal places with round-half-up semantics. All
// derived monetary values pass through here so analytics, rates and the
// ledger agree on rounding.
func Round2(v float64) float64 {
	if v < 0 {
		return -math.Floor(-v*100+0.5) / 100
	}
	return math.Floor(v*100+0.5) / 100
}

// Negligible reports whether a monetary delta is indistinguishable from
// zero.
func Negligible(v float64) bool {
	return math.Abs(v) < Epsilon
}
