// Package mathx provides the bounded math helpers used by every stage of the
// governor pipeline. All functions are pure and allocation-free.
package mathx

import "math"

// #region clamp

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// #endregion clamp

// #region finite

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize returns v unchanged when finite, fallback otherwise.
func Sanitize(v, fallback float64) float64 {
	if IsFinite(v) {
		return v
	}
	return fallback
}

// #endregion finite

// #region sign

// Sign returns -1, 0, or 1 for negative, zero, and positive v.
// NaN maps to 0 so a poisoned sample cannot flip a transition series.
func Sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// #endregion sign

// #region stats

// Norm computes the L2 norm of xs.
func Norm(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Mean computes the arithmetic mean of xs. Empty input returns 0.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev computes the population standard deviation of xs.
// Fewer than 2 samples returns 0.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// #endregion stats
