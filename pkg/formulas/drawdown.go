package formulas

import "math"

// CumulativeReturns builds the cumulative-return curve C_t = prod(g_i) - 1
// from per-period growth factors g_i (1+r for simple returns, exp(r) for log
// returns).
func CumulativeReturns(growth []float64) []float64 {
	curve := make([]float64, len(growth))
	wealth := 1.0
	for i, g := range growth {
		wealth *= g
		curve[i] = wealth - 1
	}
	return curve
}

// GrowthFactors converts a return series into per-period growth factors.
func GrowthFactors(returns []float64, logReturns bool) []float64 {
	growth := make([]float64, len(returns))
	for i, r := range returns {
		if logReturns {
			growth[i] = math.Exp(r)
		} else {
			growth[i] = 1 + r
		}
	}
	return growth
}

// TotalReturn is prod(g_i) - 1 over the full series.
func TotalReturn(growth []float64) float64 {
	wealth := 1.0
	for _, g := range growth {
		wealth *= g
	}
	return wealth - 1
}

// MaxDrawdown returns the deepest peak-to-trough decline of a cumulative-return
// curve as a non-positive fraction:
//
//	min over t of (C_t - M_t) / (1 + M_t),  M_t = max(0, C_1..C_t)
//
// The running peak starts at 0 (initial wealth), so a loss on the very first
// period counts as drawdown.
func MaxDrawdown(curve []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, c := range curve {
		if c > peak {
			peak = c
		}
		if 1+peak <= 0 {
			continue
		}
		dd := (c - peak) / (1 + peak)
		if dd < worst {
			worst = dd
		}
	}
	return worst
}
