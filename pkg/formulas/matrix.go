package formulas

import (
	"fmt"
	"math"
)

// CorrelationMatrixFromCovariance calculates the correlation matrix from a covariance matrix.
//
// Formula: corr(i,j) = cov(i,j) / sqrt(cov(i,i) * cov(j,j))
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix is not square")
		}
	}

	vars := make([]float64, n)
	for i := 0; i < n; i++ {
		v := cov[i][i]
		if v <= 0 || !IsFinite(v) {
			return nil, fmt.Errorf("invalid variance on diagonal at %d: %v", i, v)
		}
		vars[i] = v
	}

	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		corr[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			val := ClampCorrelation(cov[i][j] / math.Sqrt(vars[i]*vars[j]))
			corr[i][j] = val
			corr[j][i] = val
		}
	}
	return corr, nil
}

// CorrelationToDistance converts a correlation matrix to the angular distance
// d_ij = sqrt(2 * (1 - rho_ij)) used for hierarchical clustering.
func CorrelationToDistance(corr [][]float64) [][]float64 {
	n := len(corr)
	dist := make([][]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			dist[i][j] = math.Sqrt(2.0 * (1.0 - ClampCorrelation(corr[i][j])))
		}
	}
	return dist
}

// ClampCorrelation clamps v to [-1, 1]. NaN is returned unchanged.
func ClampCorrelation(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
