package formulas

// SharpeRatio computes (meanReturn - riskFreeRate) / volatility.
//
// Both inputs must be on the same scale (per-period or annualized). When the
// volatility is exactly zero the ratio is undefined; the function returns the
// sentinel 0 and ok=false instead of dividing.
func SharpeRatio(meanReturn, volatility, riskFreeRate float64) (sharpe float64, ok bool) {
	if volatility == 0 {
		return 0, false
	}
	return (meanReturn - riskFreeRate) / volatility, true
}
