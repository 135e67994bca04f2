package utils

import "math"

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// CountNaN returns how many entries of xs are NaN.
func CountNaN(xs []float64) int {
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) {
			n++
		}
	}
	return n
}

// FactorOf maps a correlation to its signed square root.
func FactorOf(corr float64) float64 {
	if corr < 0 {
		return -math.Sqrt(-corr)
	}
	return math.Sqrt(corr)
}

// CorrelationOf maps a factor back to a correlation, keeping the sign.
func CorrelationOf(factor float64) float64 {
	if factor < 0 {
		return -factor * factor
	}
	return factor * factor
}
