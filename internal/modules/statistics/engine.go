// Package statistics computes per-asset return statistics.
package statistics

import (
	"sort"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/pkg/formulas"
	"github.com/rs/zerolog"
)

// Options controls how statistics are scaled
type Options struct {
	RiskFreeRate   float64 // annual rate, decimal
	PeriodsPerYear int
	Annualize      bool // report MeanReturn/Volatility/SharpeRatio on the annual scale
}

// AssetStatistics is the statistics row for one asset.
//
// MeanReturn, Volatility and SharpeRatio follow Options.Annualize; the
// *Daily and *Annual fields are always both populated.
type AssetStatistics struct {
	Symbol       string  `json:"ticker"`
	MeanReturn   float64 `json:"meanReturn"`
	Volatility   float64 `json:"volatility"`
	SharpeRatio  float64 `json:"sharpeRatio"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
	TotalReturn  float64 `json:"totalReturn"`
	Observations int     `json:"observations"`

	MeanReturnDaily  float64 `json:"mean_return_daily"`
	VolatilityDaily  float64 `json:"volatility_daily"`
	SharpeDaily      float64 `json:"sharpe_daily"`
	MeanReturnAnnual float64 `json:"mean_return_annual"`
	VolatilityAnnual float64 `json:"volatility_annual"`
	SharpeAnnual     float64 `json:"sharpe_annual"`

	// SharpeDegenerate is set when volatility was zero and the Sharpe ratio
	// fell back to the 0 sentinel.
	SharpeDegenerate bool `json:"sharpe_degenerate,omitempty"`
}

// Engine computes AssetStatistics
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a statistics engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "statistics").Logger(),
	}
}

// Compute returns the statistics of a single return series. A zero
// Options.PeriodsPerYear defers to the series' own value. A single return
// has zero volatility and the Sharpe sentinel.
func (e *Engine) Compute(rs domain.ReturnSeries, opts Options) (AssetStatistics, error) {
	const op = "compute_statistics"
	ppy := opts.PeriodsPerYear
	if ppy < 0 {
		return AssetStatistics{}, domain.ValidationError(op, "periods_per_year", "periods_per_year must be positive, got %d", ppy)
	}
	if ppy == 0 {
		ppy = rs.PeriodsPerYear
	}
	if ppy <= 0 {
		return AssetStatistics{}, domain.ValidationError(op, "periods_per_year", "periods_per_year must be positive, got %d", ppy)
	}
	if rs.Len() == 0 {
		return AssetStatistics{}, domain.DataError(op, "%s: no returns", rs.Symbol)
	}
	for i, v := range rs.Values {
		if !formulas.IsFinite(v) {
			return AssetStatistics{}, domain.DataError(op, "%s: non-finite return at index %d", rs.Symbol, i)
		}
	}

	meanDaily := formulas.Mean(rs.Values)
	volDaily := formulas.StdDev(rs.Values)
	meanAnnual := formulas.AnnualizeMean(meanDaily, ppy)
	volAnnual := formulas.AnnualizeVolatility(volDaily, ppy)

	sharpeDaily, okDaily := formulas.SharpeRatio(meanDaily, volDaily, opts.RiskFreeRate/float64(ppy))
	sharpeAnnual, okAnnual := formulas.SharpeRatio(meanAnnual, volAnnual, opts.RiskFreeRate)
	degenerate := !okDaily || !okAnnual
	if degenerate {
		e.log.Warn().
			Err(domain.NumericError(op, "%s has zero volatility", rs.Symbol)).
			Str("symbol", rs.Symbol).
			Msg("Sharpe ratio undefined, using 0")
	}

	growth := formulas.GrowthFactors(rs.Values, rs.Method == domain.ReturnMethodLog)
	curve := formulas.CumulativeReturns(growth)

	st := AssetStatistics{
		Symbol:           rs.Symbol,
		MaxDrawdown:      formulas.MaxDrawdown(curve),
		TotalReturn:      formulas.TotalReturn(growth),
		Observations:     rs.Len(),
		MeanReturnDaily:  meanDaily,
		VolatilityDaily:  volDaily,
		SharpeDaily:      sharpeDaily,
		MeanReturnAnnual: meanAnnual,
		VolatilityAnnual: volAnnual,
		SharpeAnnual:     sharpeAnnual,
		SharpeDegenerate: degenerate,
	}
	if opts.Annualize {
		st.MeanReturn, st.Volatility, st.SharpeRatio = meanAnnual, volAnnual, sharpeAnnual
	} else {
		st.MeanReturn, st.Volatility, st.SharpeRatio = meanDaily, volDaily, sharpeDaily
	}
	return st, nil
}

// Summary computes statistics for every series, ordered by annual Sharpe
// ratio descending (ties by symbol).
func (e *Engine) Summary(series []domain.ReturnSeries, opts Options) ([]AssetStatistics, error) {
	rows := make([]AssetStatistics, 0, len(series))
	for _, rs := range series {
		st, err := e.Compute(rs, opts)
		if err != nil {
			return nil, err
		}
		rows = append(rows, st)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SharpeAnnual != rows[j].SharpeAnnual {
			return rows[i].SharpeAnnual > rows[j].SharpeAnnual
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	return rows, nil
}
