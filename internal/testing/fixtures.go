package testing

import (
	"math"
	"time"

	"github.com/aristath/frontier/internal/domain"
)

// FixtureStart is the first date of every synthetic series
var FixtureStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SyntheticPrices builds a deterministic daily series starting at
// FixtureStart. Series with different freq are far from collinear, so their
// sample covariance is well conditioned. scale multiplies every price
// without changing returns.
func SyntheticPrices(freq, drift float64, days int, scale float64) []domain.DailyPrice {
	out := make([]domain.DailyPrice, days)
	p := 100.0
	for t := 0; t < days; t++ {
		if t > 0 {
			x := float64(t)
			p *= 1 + drift + 0.01*math.Sin(x*freq) + 0.004*math.Cos(x*freq*2.7)
		}
		c := p * scale
		out[t] = domain.DailyPrice{Date: FixtureStart.AddDate(0, 0, t), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

// NewPriceFixtures returns four 160-day series. AAA2 is AAA at twice the
// price, so the two have identical returns.
func NewPriceFixtures() map[string][]domain.DailyPrice {
	return map[string][]domain.DailyPrice{
		"AAA":  SyntheticPrices(0.7, 0.0008, 160, 1),
		"AAA2": SyntheticPrices(0.7, 0.0008, 160, 2),
		"BBB":  SyntheticPrices(1.9, 0.0004, 160, 1),
		"CCC":  SyntheticPrices(3.1, 0.0006, 160, 1),
	}
}
