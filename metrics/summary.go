package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// finite drops NaN entries.
func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// NaNMean is the mean of the non-NaN entries of xs, or 0 when there are none.
func NaNMean(xs []float64) float64 {
	vals := finite(xs)
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

// NaNStdDev is the sample standard deviation of the non-NaN entries of xs, or 0 when
// fewer than two remain.
func NaNStdDev(xs []float64) float64 {
	vals := finite(xs)
	if len(vals) < 2 {
		return 0
	}
	return stat.StdDev(vals, nil)
}

// CountNaN returns how many entries of xs are NaN.
func CountNaN(xs []float64) int {
	return len(xs) - len(finite(xs))
}
