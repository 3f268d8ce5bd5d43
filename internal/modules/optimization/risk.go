package optimization

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/correlation"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/pkg/formulas"
)

// Shrinkage selects the covariance estimator
type Shrinkage string

const (
	ShrinkageNone       Shrinkage = "none"
	ShrinkageLedoitWolf Shrinkage = "ledoit_wolf"
)

// ParseShrinkage maps "" to none.
func ParseShrinkage(s string) (Shrinkage, error) {
	switch Shrinkage(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShrinkageNone:
		return ShrinkageNone, nil
	case ShrinkageLedoitWolf:
		return ShrinkageLedoitWolf, nil
	default:
		return "", domain.ValidationError("portfolio_inputs", "shrinkage", "unknown shrinkage %q (want none or ledoit_wolf)", s)
	}
}

// EstimationOptions control how mu and sigma are estimated from returns.
type EstimationOptions struct {
	Annualize      bool
	PeriodsPerYear int
	RiskFreeRate   float64
	Shrinkage      Shrinkage
}

// InputsBuilder estimates PortfolioInputs from return series.
type InputsBuilder struct {
	corr *correlation.Engine
	log  zerolog.Logger
}

func NewInputsBuilder(corr *correlation.Engine, log zerolog.Logger) *InputsBuilder {
	return &InputsBuilder{
		corr: corr,
		log:  log.With().Str("component", "inputs_builder").Logger(),
	}
}

// Build aligns the series and returns sample means and covariance, scaled by
// periods per year when annualizing.
func (b *InputsBuilder) Build(series []domain.ReturnSeries, opts EstimationOptions) (domain.PortfolioInputs, error) {
	const op = "portfolio_inputs"
	if len(series) < 2 {
		return domain.PortfolioInputs{}, domain.ValidationError(op, "tickers", "portfolio operations need at least 2 assets, got %d", len(series))
	}
	if opts.PeriodsPerYear <= 0 {
		return domain.PortfolioInputs{}, domain.ValidationError(op, "periods_per_year", "periods_per_year must be positive, got %d", opts.PeriodsPerYear)
	}

	aligned, err := returns.Align(series)
	if err != nil {
		return domain.PortfolioInputs{}, err
	}
	cov, err := b.corr.Covariance(aligned)
	if err != nil {
		return domain.PortfolioInputs{}, err
	}

	scale := 1.0
	if opts.Annualize {
		scale = float64(opts.PeriodsPerYear)
	}

	symbols := make([]string, len(aligned))
	mu := make([]float64, len(aligned))
	for i, s := range aligned {
		symbols[i] = s.Symbol
		mu[i] = formulas.Mean(s.Values) * scale
	}

	values := make([][]float64, len(cov.Values))
	for i, row := range cov.Values {
		values[i] = make([]float64, len(row))
		for j, v := range row {
			values[i][j] = v * scale
		}
	}

	if opts.Shrinkage == ShrinkageLedoitWolf {
		shrunk, delta, err := applyLedoitWolfShrinkage(values)
		if err != nil {
			return domain.PortfolioInputs{}, domain.DataError(op, "ledoit-wolf shrinkage: %v", err)
		}
		b.log.Debug().Float64("intensity", delta).Int("assets", len(values)).Msg("Applied Ledoit-Wolf shrinkage")
		values = shrunk
	}

	inputs := domain.PortfolioInputs{
		Symbols:         symbols,
		ExpectedReturns: mu,
		Covariance:      domain.Matrix{Symbols: symbols, Values: values},
		RiskFreeRate:    opts.RiskFreeRate,
	}
	if err := inputs.Validate(); err != nil {
		return domain.PortfolioInputs{}, err
	}
	return inputs, nil
}

// applyLedoitWolfShrinkage shrinks a sample covariance towards a constant
// correlation target: (1-d)*S + d*F. The intensity d is a simplified estimate
// capped at 0.5.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "Honey, I shrunk the sample covariance matrix"
func applyLedoitWolfShrinkage(sample [][]float64) ([][]float64, float64, error) {
	n := len(sample)
	if n == 0 {
		return nil, 0, fmt.Errorf("empty covariance matrix")
	}

	vol := make([]float64, n)
	for i := range sample {
		if sample[i][i] < 0 {
			return nil, 0, fmt.Errorf("negative variance at %d", i)
		}
		vol[i] = math.Sqrt(sample[i][i])
	}

	// average off-diagonal correlation
	rbar, pairs := 0.0, 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if vol[i] > 0 && vol[j] > 0 {
				rbar += sample[i][j] / (vol[i] * vol[j])
				pairs++
			}
		}
	}
	if pairs > 0 {
		rbar /= float64(pairs)
	}

	target := make([][]float64, n)
	for i := range target {
		target[i] = make([]float64, n)
		for j := range target[i] {
			if i == j {
				target[i][j] = sample[i][i]
			} else {
				target[i][j] = rbar * vol[i] * vol[j]
			}
		}
	}

	delta := 0.2
	if n > 2 {
		sqDiff, total, totalSq := 0.0, 0.0, 0.0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				d := sample[i][j] - target[i][j]
				sqDiff += d * d
				total += sample[i][j]
				totalSq += sample[i][j] * sample[i][j]
			}
		}
		cells := float64(n * n)
		meanSqDiff := sqDiff / cells
		spread := totalSq/cells - (total/cells)*(total/cells)
		if spread > 0 && meanSqDiff > 0 {
			delta = math.Min(0.5, math.Max(0, spread/(spread+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := range shrunk {
		shrunk[i] = make([]float64, n)
		for j := range shrunk[i] {
			shrunk[i][j] = (1-delta)*sample[i][j] + delta*target[i][j]
		}
	}
	return shrunk, delta, nil
}
