// Package dsp holds small numeric helpers shared by the filter, spectral and
// metrics code.
package dsp

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Median returns the median of x, averaging the two middle values when len(x)
// is even. It returns 0 for an empty slice. x is not modified.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	s := slices.Clone(x)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Mean returns the arithmetic mean of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}
