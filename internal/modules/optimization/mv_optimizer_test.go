package optimization

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/domain"
)

func twoAssetInputs() domain.PortfolioInputs {
	symbols := []string{"A", "B"}
	return domain.PortfolioInputs{
		Symbols:         symbols,
		ExpectedReturns: []float64{0.08, 0.12},
		Covariance: domain.Matrix{Symbols: symbols, Values: [][]float64{
			{0.04, 0.02},
			{0.02, 0.09},
		}},
		RiskFreeRate: 0.02,
	}
}

// fourAssetInputs builds a positive definite covariance from vols and a
// diagonally dominant correlation matrix.
func fourAssetInputs() domain.PortfolioInputs {
	symbols := []string{"AAA", "BBB", "CCC", "DDD"}
	vols := []float64{0.20, 0.25, 0.15, 0.30}
	corr := [][]float64{
		{1, 0.30, 0.10, 0.20},
		{0.30, 1, 0.25, 0.40},
		{0.10, 0.25, 1, 0.05},
		{0.20, 0.40, 0.05, 1},
	}
	cov := make([][]float64, 4)
	for i := range cov {
		cov[i] = make([]float64, 4)
	}
	for i := 0; i < 4; i++ {
		for j := i; j < 4; j++ {
			v := corr[i][j] * vols[i] * vols[j]
			cov[i][j], cov[j][i] = v, v
		}
	}
	return domain.PortfolioInputs{
		Symbols:         symbols,
		ExpectedReturns: []float64{0.08, 0.12, 0.05, 0.15},
		Covariance:      domain.Matrix{Symbols: symbols, Values: cov},
		RiskFreeRate:    0.02,
	}
}

func longOnly(max float64) Params {
	return DefaultParams().With(WithShorts(false), WithWeightBounds(0, max))
}

func portfolioRisk(inputs domain.PortfolioInputs, w []float64) float64 {
	v := 0.0
	for i := range w {
		for j := range w {
			v += w[i] * inputs.Covariance.Values[i][j] * w[j]
		}
	}
	return math.Sqrt(v)
}

func assertValidWeights(t *testing.T, p Params, r *Result) {
	t.Helper()
	assert.InDelta(t, 1.0, r.Weights.Sum(), 1e-6, "budget")
	if p.AllowShort {
		assert.LessOrEqual(t, r.Weights.Gross(), p.MaxLeverage+1e-9, "gross exposure")
		return
	}
	for _, e := range r.Weights {
		assert.GreaterOrEqual(t, e.Weight, p.MinWeight-1e-9, e.Symbol)
		assert.LessOrEqual(t, e.Weight, p.MaxWeight+1e-9, e.Symbol)
		assert.False(t, e.IsShort, e.Symbol)
	}
}

func TestOptimizer_TangencyMatchesClosedForm(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	inputs := twoAssetInputs()

	// S^-1 (mu - rf) is proportional to [0.0034, 0.0028]
	want := []float64{0.0034 / 0.0062, 0.0028 / 0.0062}

	for name, p := range map[string]Params{
		"shorts":    DefaultParams(),
		"long-only": longOnly(1),
	} {
		t.Run(name, func(t *testing.T) {
			r, err := opt.Optimize(context.Background(), inputs, p.With(WithObjective(ObjectiveMaxSharpe)))
			require.NoError(t, err)

			w := r.Weights.Values()
			assert.InDelta(t, want[0], w[0], 1e-10)
			assert.InDelta(t, want[1], w[1], 1e-10)
			assert.Equal(t, SolverAnalytical, r.Info.Solver)
			assert.True(t, r.Info.Analytical)
			assert.InDelta(t, portfolioRisk(inputs, w), r.Risk, 1e-12)
			assert.InDelta(t, (r.Return-0.02)/r.Risk, r.Sharpe, 1e-12)
		})
	}
}

func TestOptimizer_MinVarianceAnalytical(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	r, err := opt.Optimize(context.Background(), twoAssetInputs(), DefaultParams().With(WithObjective(ObjectiveMinVariance)))
	require.NoError(t, err)

	w := r.Weights.Values()
	assert.InDelta(t, 7.0/9.0, w[0], 1e-10)
	assert.InDelta(t, 2.0/9.0, w[1], 1e-10)
	// 1/A with A = 0.09/0.0032
	assert.InDelta(t, math.Sqrt(0.0032/0.09), r.Risk, 1e-10)
	assert.Equal(t, SolverAnalytical, r.Info.Solver)
}

func TestOptimizer_MinVarianceWithBindingBound(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	p := longOnly(0.6).With(WithObjective(ObjectiveMinVariance))

	r, err := opt.Optimize(context.Background(), twoAssetInputs(), p)
	require.NoError(t, err)

	w := r.Weights.Values()
	assert.InDelta(t, 0.6, w[0], 1e-7)
	assert.InDelta(t, 0.4, w[1], 1e-7)
	assert.Equal(t, SolverIterative, r.Info.Solver)
	assert.False(t, r.Info.Analytical)
	assert.True(t, r.Info.Converged)
	assertValidWeights(t, p, r)
}

func TestOptimizer_MaxReturn(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	inputs := twoAssetInputs()

	r, err := opt.Optimize(context.Background(), inputs, longOnly(1).With(WithObjective(ObjectiveMaxReturn)))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, r.Weights.Values())
	assert.InDelta(t, 0.12, r.Return, 1e-12)

	r, err = opt.Optimize(context.Background(), inputs, DefaultParams().With(WithObjective(ObjectiveMaxReturn)))
	require.NoError(t, err)
	assert.InDelta(t, -0.5, r.Weights[0].Weight, 1e-12)
	assert.InDelta(t, 1.5, r.Weights[1].Weight, 1e-12)
	assert.True(t, r.Weights[0].IsShort)
	assert.InDelta(t, 2.0, r.Weights.Gross(), 1e-12)
}

func TestOptimizer_TargetReturnHitsTarget(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	inputs := fourAssetInputs()

	for name, p := range map[string]Params{
		"shorts":    DefaultParams().With(WithMaxLeverage(1.5)),
		"long-only": longOnly(0.5),
	} {
		t.Run(name, func(t *testing.T) {
			p := p.With(WithObjective(ObjectiveTargetReturn), WithTargetReturn(0.1))
			r, err := opt.Optimize(context.Background(), inputs, p)
			require.NoError(t, err)
			assert.InDelta(t, 0.1, r.Return, 1e-6)
			assertValidWeights(t, p, r)
		})
	}
}

func TestOptimizer_TargetRiskStaysWithinRisk(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	inputs := fourAssetInputs()
	p := longOnly(0.5).With(WithObjective(ObjectiveTargetRisk), WithTargetRisk(0.2))

	r, err := opt.Optimize(context.Background(), inputs, p)
	require.NoError(t, err)
	assertValidWeights(t, p, r)
	assert.LessOrEqual(t, r.Risk, 0.2+1e-6)

	gmv, err := opt.Optimize(context.Background(), inputs, p.With(WithObjective(ObjectiveMinVariance)))
	require.NoError(t, err)
	assert.Greater(t, r.Return, gmv.Return)
}

func TestOptimizer_AllObjectivesRespectConstraints(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	inputs := fourAssetInputs()

	regimes := map[string]Params{
		"long-only": longOnly(0.5),
		"shorts":    DefaultParams().With(WithMaxLeverage(1.5)),
	}
	objectives := []Params{
		DefaultParams().With(WithObjective(ObjectiveMaxSharpe)),
		DefaultParams().With(WithObjective(ObjectiveMinVariance)),
		DefaultParams().With(WithObjective(ObjectiveMaxReturn)),
		DefaultParams().With(WithObjective(ObjectiveTargetReturn), WithTargetReturn(0.1)),
		DefaultParams().With(WithObjective(ObjectiveTargetRisk), WithTargetRisk(0.2)),
		DefaultParams().With(WithObjective(ObjectiveRiskTolerance), WithRiskTolerance(0.5)),
		DefaultParams().With(WithObjective(ObjectiveHRP)),
	}

	for name, regime := range regimes {
		for _, obj := range objectives {
			if obj.Objective == ObjectiveHRP && regime.AllowShort {
				continue
			}
			t.Run(name+"/"+string(obj.Objective), func(t *testing.T) {
				p := regime.With(
					WithObjective(obj.Objective),
					func(p *Params) {
						p.TargetReturn = obj.TargetReturn
						p.TargetRisk = obj.TargetRisk
						p.RiskTolerance = obj.RiskTolerance
					},
				)
				r, err := opt.Optimize(context.Background(), inputs, p)
				require.NoError(t, err)
				assertValidWeights(t, p, r)
				assert.Len(t, r.Weights, 4)
				assert.InDelta(t, portfolioRisk(inputs, r.Weights.Values()), r.Risk, 1e-9)
			})
		}
	}
}

func TestOptimizer_HRPTwoAssetsIsInverseVariance(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	r, err := opt.Optimize(context.Background(), twoAssetInputs(), longOnly(1).With(WithObjective(ObjectiveHRP)))
	require.NoError(t, err)

	assert.InDelta(t, 0.09/0.13, r.Weights[0].Weight, 1e-12)
	assert.InDelta(t, 0.04/0.13, r.Weights[1].Weight, 1e-12)
	assert.Equal(t, SolverHRP, r.Info.Solver)
}

func singularInputs() domain.PortfolioInputs {
	symbols := []string{"X", "X2", "Y"}
	return domain.PortfolioInputs{
		Symbols:         symbols,
		ExpectedReturns: []float64{0.10, 0.10, 0.06},
		Covariance: domain.Matrix{Symbols: symbols, Values: [][]float64{
			{0.04, 0.04, 0.01},
			{0.04, 0.04, 0.01},
			{0.01, 0.01, 0.09},
		}},
	}
}

func TestOptimizer_SingularCovarianceFallsBackToMonteCarlo(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	p := longOnly(1).With(WithObjective(ObjectiveMinVariance), WithNumSamples(500), WithSeed(7))

	r, err := opt.Optimize(context.Background(), singularInputs(), p)
	require.NoError(t, err)
	assert.Equal(t, SolverMonteCarlo, r.Info.Solver)
	assert.False(t, r.Info.Analytical)
	assert.Equal(t, 500, r.Info.Samples)
	assert.Contains(t, r.Info.FallbackReason, "singular")
	assertValidWeights(t, p, r)

	again, err := opt.Optimize(context.Background(), singularInputs(), p)
	require.NoError(t, err)
	assert.Equal(t, r.Weights, again.Weights, "same seed, same answer")
}

func TestOptimizer_BudgetExhaustionFallsBackToMonteCarlo(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	p := longOnly(0.6).With(WithObjective(ObjectiveMinVariance), WithSolverBudget(1, 1e-12), WithNumSamples(100))

	r, err := opt.Optimize(context.Background(), twoAssetInputs(), p)
	require.NoError(t, err)
	assert.Equal(t, SolverMonteCarlo, r.Info.Solver)
	assert.Equal(t, 1, r.Info.Iterations)
	assert.Contains(t, r.Info.FallbackReason, "did not converge")
	// the unconverged iterate is already the constrained optimum and is kept as a candidate
	assert.InDelta(t, 0.6, r.Weights[0].Weight, 1e-7)
	assertValidWeights(t, p, r)
}

// wideInputs has one near-riskless asset, so the unconstrained minimum
// variance portfolio breaks any tight long-only cap.
func wideInputs(n int) domain.PortfolioInputs {
	symbols := make([]string, n)
	mu := make([]float64, n)
	vols := make([]float64, n)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%02d", i)
		mu[i] = 0.05 + 0.01*float64(i)
		vols[i] = math.Sqrt(0.04 + 0.01*float64(i))
	}
	vols[0] = math.Sqrt(0.001)

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		for j := range cov[i] {
			rho := 0.2
			if i == j {
				rho = 1
			}
			cov[i][j] = rho * vols[i] * vols[j]
		}
	}
	return domain.PortfolioInputs{
		Symbols:         symbols,
		ExpectedReturns: mu,
		Covariance:      domain.Matrix{Symbols: symbols, Values: cov},
		RiskFreeRate:    0.02,
	}
}

func TestOptimizer_TimeBudgetCoversWholeCall(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	t.Run("exhausted budget falls back to Monte Carlo", func(t *testing.T) {
		p := longOnly(0.2).With(
			WithObjective(ObjectiveTargetRisk),
			WithTargetRisk(0.5),
			WithTimeBudget(time.Nanosecond),
			WithNumSamples(200),
		)

		start := time.Now()
		r, err := opt.Optimize(context.Background(), wideInputs(12), p)
		elapsed := time.Since(start)
		require.NoError(t, err)

		assert.Less(t, elapsed, 2*time.Second)
		assert.Equal(t, SolverMonteCarlo, r.Info.Solver)
		assert.Contains(t, r.Info.FallbackReason, "time budget")
		assert.LessOrEqual(t, r.Risk, 0.5+1e-9)
		assertValidWeights(t, p, r)
	})

	t.Run("bisection stops at the deadline", func(t *testing.T) {
		budget := 100 * time.Millisecond
		p := longOnly(0.1).With(
			WithObjective(ObjectiveTargetRisk),
			WithTargetRisk(0.2),
			WithTimeBudget(budget),
			WithNumSamples(300),
		)

		start := time.Now()
		r, err := opt.Optimize(context.Background(), wideInputs(30), p)
		elapsed := time.Since(start)
		require.NoError(t, err)

		assert.Less(t, elapsed, budget+2*time.Second)
		assert.LessOrEqual(t, r.Risk, 0.2+1e-9)
		assertValidWeights(t, p, r)
	})
}

func TestOptimizer_ValidationErrors(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	inputs := twoAssetInputs()

	tests := []struct {
		name  string
		p     Params
		field string
	}{
		{"min above max", longOnly(1).With(WithWeightBounds(0.7, 0.6)), "min_weight"},
		{"min weights exceed budget", longOnly(1).With(WithWeightBounds(0.6, 1)), "min_weight"},
		{"max weights below budget", longOnly(0.4), "max_weight"},
		{"negative min without shorts", longOnly(1).With(WithWeightBounds(-0.1, 1)), "min_weight"},
		{"leverage below one", DefaultParams().With(WithMaxLeverage(0.5)), "max_leverage"},
		{"target return missing", DefaultParams().With(WithObjective(ObjectiveTargetReturn)), "target_return"},
		{"target return unreachable", longOnly(1).With(WithObjective(ObjectiveTargetReturn), WithTargetReturn(0.2)), "target_return"},
		{"target risk not positive", DefaultParams().With(WithObjective(ObjectiveTargetRisk), WithTargetRisk(0)), "target_risk"},
		{"target risk below minimum", DefaultParams().With(WithObjective(ObjectiveTargetRisk), WithTargetRisk(0.1)), "target_risk"},
		{"negative risk tolerance", DefaultParams().With(WithObjective(ObjectiveRiskTolerance), WithRiskTolerance(-1)), "risk_tolerance"},
		{"hrp with shorts", DefaultParams().With(WithObjective(ObjectiveHRP)), "allow_short"},
		{"unknown objective", DefaultParams().With(WithObjective("moonshot")), "optimization_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := opt.Optimize(context.Background(), inputs, tt.p)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindValidation), err.Error())

			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestOptimizer_RejectsBadInputs(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	single := domain.PortfolioInputs{
		Symbols:         []string{"A"},
		ExpectedReturns: []float64{0.1},
		Covariance:      domain.Matrix{Symbols: []string{"A"}, Values: [][]float64{{0.04}}},
	}
	_, err := opt.Optimize(context.Background(), single, DefaultParams())
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	nan := twoAssetInputs()
	nan.ExpectedReturns = []float64{math.NaN(), 0.1}
	_, err = opt.Optimize(context.Background(), nan, DefaultParams())
	assert.True(t, domain.IsKind(err, domain.KindData))

	indefinite := twoAssetInputs()
	indefinite.Covariance.Values = [][]float64{{0.04, 0.1}, {0.1, 0.04}}
	_, err = opt.Optimize(context.Background(), indefinite, DefaultParams())
	assert.True(t, domain.IsKind(err, domain.KindData))
}

func TestOptimizer_HonorsCancelledContext(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := longOnly(0.5).With(WithObjective(ObjectiveMaxSharpe))
	_, err := opt.Optimize(ctx, fourAssetInputs(), p)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
