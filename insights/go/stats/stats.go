// Package stats has the small statistical functions the detection engines
// share: Pearson correlation, percentage deviation, and rounding to
// significant digits.
package stats

import (
	"math"
)

// Pearson computes the Pearson correlation coefficient over the paired
// samples x and y. It returns ok=false if the coefficient is undefined:
// mismatched or too short inputs, or zero variance in either sample.
func Pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

// PercentDeviation returns how far curr is from prev, as a signed percentage
// of prev. It returns ok=false when prev is zero, in which case the deviation
// is undefined.
func PercentDeviation(curr, prev float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	return (curr - prev) / prev * 100, true
}

// RoundToSignificant rounds x to the given number of significant digits, e.g.
// RoundToSignificant(233.333, 3) == 233 and RoundToSignificant(0.95823, 3) ==
// 0.958.
func RoundToSignificant(x float64, digits int) float64 {
	if x == 0 || digits <= 0 {
		return 0
	}
	magnitude := math.Ceil(math.Log10(math.Abs(x)))
	power := float64(digits) - magnitude
	scale := math.Pow(10, power)
	return math.Round(x*scale) / scale
}
