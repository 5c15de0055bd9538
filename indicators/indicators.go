// Package indicators computes technical indicator series over a window
// of closed bars.
//
// Every function returns one value per input bar. Values that are not yet
// defined (warmup) are NaN; callers check with math.IsNaN before use.
package indicators

import "math"

// RollingMean returns the simple moving average of in over p values.
// out[i] is NaN until p values exist, or while any value in the window
// is NaN.
func RollingMean(in []float64, p int) []float64 {
	out := nanSeries(len(in))
	if p <= 0 {
		return out
	}

	for i := p - 1; i < len(in); i++ {
		sum := 0.0
		for _, v := range in[i-p+1 : i+1] {
			sum += v
		}
		// NaN anywhere in the window propagates through the sum.
		out[i] = sum / float64(p)
	}
	return out
}

// Slope is the change of series over the last k values,
// series[n-1] - series[n-1-k]. It is NaN when the series is too short
// or either end is undefined. k <= 0 yields 0.
func Slope(series []float64, k int) float64 {
	if k <= 0 {
		return 0
	}
	n := len(series)
	if n <= k {
		return math.NaN()
	}
	return series[n-1] - series[n-1-k]
}

// Last returns the final value of series, or NaN for an empty series.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// MeanLast averages the final n values of series. Any NaN in that tail
// makes the result NaN.
func MeanLast(series []float64, n int) float64 {
	if n <= 0 || len(series) < n {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range series[len(series)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
