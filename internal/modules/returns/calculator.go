// Package returns converts price series into periodic return series and
// aligns series on common dates.
package returns

import (
	"math"
	"time"

	"github.com/aristath/frontier/internal/domain"
	"github.com/rs/zerolog"
)

// Calculator converts price series into return series
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a return calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("component", "return_calculator").Logger(),
	}
}

// Compute derives the return series of one asset from its close prices.
func (c *Calculator) Compute(series domain.AssetSeries, method domain.ReturnMethod, periodsPerYear int) (domain.ReturnSeries, error) {
	rs, err := FromPrices(series.Symbol, series.Dates(), series.Closes(), method, periodsPerYear)
	if err != nil {
		return domain.ReturnSeries{}, err
	}
	c.log.Debug().
		Str("symbol", series.Symbol).
		Str("method", string(method)).
		Int("observations", rs.Len()).
		Msg("Computed returns")
	return rs, nil
}

// ComputeAll computes return series for several assets, preserving order.
func (c *Calculator) ComputeAll(series []domain.AssetSeries, method domain.ReturnMethod, periodsPerYear int) ([]domain.ReturnSeries, error) {
	out := make([]domain.ReturnSeries, 0, len(series))
	for _, s := range series {
		rs, err := c.Compute(s, method, periodsPerYear)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

// FromPrices computes simple or log returns from an ordered price sequence.
// dates may be nil; when present it must match prices in length.
func FromPrices(symbol string, dates []time.Time, prices []float64, method domain.ReturnMethod, periodsPerYear int) (domain.ReturnSeries, error) {
	if periodsPerYear <= 0 {
		return domain.ReturnSeries{}, domain.ValidationError("compute_returns", "periods_per_year", "periods_per_year must be positive, got %d", periodsPerYear)
	}
	if method == "" {
		method = domain.ReturnMethodSimple
	}
	if method != domain.ReturnMethodSimple && method != domain.ReturnMethodLog {
		return domain.ReturnSeries{}, domain.ValidationError("compute_returns", "method", "unknown return method %q", method)
	}
	if len(prices) < 2 {
		return domain.ReturnSeries{}, domain.DataError("compute_returns", "%s: need at least 2 prices, got %d", symbol, len(prices))
	}
	if dates != nil && len(dates) != len(prices) {
		return domain.ReturnSeries{}, domain.DataError("compute_returns", "%s: %d dates for %d prices", symbol, len(dates), len(prices))
	}

	values := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
			return domain.ReturnSeries{}, domain.DataError("compute_returns", "%s: non-finite price at index %d", symbol, i)
		}
		switch method {
		case domain.ReturnMethodLog:
			if prev <= 0 || cur <= 0 {
				return domain.ReturnSeries{}, domain.DataError("compute_returns", "%s: non-positive price at index %d", symbol, i)
			}
			values[i-1] = math.Log(cur / prev)
		default:
			if prev == 0 {
				return domain.ReturnSeries{}, domain.DataError("compute_returns", "%s: zero price at index %d", symbol, i-1)
			}
			values[i-1] = (cur - prev) / prev
		}
	}

	var retDates []time.Time
	if dates != nil {
		retDates = make([]time.Time, len(dates)-1)
		copy(retDates, dates[1:])
	}

	return domain.ReturnSeries{
		Symbol:         symbol,
		Dates:          retDates,
		Values:         values,
		Method:         method,
		PeriodsPerYear: periodsPerYear,
	}, nil
}
