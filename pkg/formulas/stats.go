// Package formulas holds small numeric helpers built on gonum/stat.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (N-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Median returns the middle value of data, averaging the two central values
// for even lengths. The input slice is not modified.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// AnnualizeMean scales a per-period mean to an annual figure.
func AnnualizeMean(mean float64, periodsPerYear int) float64 {
	return mean * float64(periodsPerYear)
}

// AnnualizeVolatility scales a per-period standard deviation by sqrt(periodsPerYear).
func AnnualizeVolatility(stdDev float64, periodsPerYear int) float64 {
	return stdDev * math.Sqrt(float64(periodsPerYear))
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
