// Package mathutil provides common rate and factor arithmetic.
package mathutil

import (
	"math"

	"github.com/iwvelando/curve-factors/pkg/constants"
)

// MonthlyFromAnnual converts an annual effective rate into the equivalent
// monthly effective rate, (1+r)^(1/12) - 1.
func MonthlyFromAnnual(annual float64) float64 {
	return math.Pow(1+annual, 1.0/constants.MonthsPerYear) - 1
}

// AnnualPowerFactor raises (1+annual) to the tenor expressed in years, i.e.
// the accumulation over months at a flat annual effective rate.
func AnnualPowerFactor(annual float64, months int) float64 {
	return math.Pow(1+annual, float64(months)/constants.MonthsPerYear)
}

// IsValidRate reports whether a rate is finite and strictly above -100%.
func IsValidRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate > constants.MinimumRate
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}
