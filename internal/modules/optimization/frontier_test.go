package optimization

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/domain"
)

func newFrontierGenerator() *FrontierGenerator {
	return NewFrontierGenerator(NewOptimizer(zerolog.Nop()), zerolog.Nop())
}

func TestFrontierGenerator_LongOnlyCurve(t *testing.T) {
	inputs := fourAssetInputs()
	p := longOnly(0.5).With(WithFrontierPoints(20), WithNumSamples(300))

	res, err := newFrontierGenerator().Generate(context.Background(), inputs, p)
	require.NoError(t, err)
	require.Len(t, res.Points, 20)

	assert.InDelta(t, 0.065, res.TargetReturnMin, 1e-12)
	assert.InDelta(t, 0.135, res.TargetReturnMax, 1e-12)
	assert.NotNil(t, res.Coefficients)

	prevRisk := 0.0
	for i, pt := range res.Points {
		if i > 0 {
			assert.Greater(t, pt.TargetReturn, res.Points[i-1].TargetReturn, "targets strictly increasing")
		}
		assert.InDelta(t, pt.TargetReturn, pt.Return, 1e-6)
		assert.InDelta(t, portfolioRisk(inputs, pt.Weights.Values()), pt.Risk, 1e-6)
		assert.InDelta(t, 1.0, pt.Weights.Sum(), 1e-6)
		assert.GreaterOrEqual(t, pt.Risk, res.GMVRisk-1e-9)
		if pt.Efficient {
			assert.GreaterOrEqual(t, pt.Risk, prevRisk-1e-7, "efficient branch risk is non-decreasing")
			prevRisk = pt.Risk
		}
	}
	assert.True(t, res.Points[len(res.Points)-1].Efficient)

	require.Len(t, res.FeasibleSet, 300)
	for _, s := range res.FeasibleSet {
		assert.GreaterOrEqual(t, s.Risk, res.GMVRisk-1e-9, "no sampled portfolio beats the minimum-variance portfolio")
		assert.InDelta(t, 1.0, s.Weights.Sum(), 1e-9)
		for _, e := range s.Weights {
			assert.GreaterOrEqual(t, e.Weight, -1e-9)
			assert.LessOrEqual(t, e.Weight, 0.5+1e-9)
		}
	}
}

func TestFrontierGenerator_TimeBudgetCoversAllPoints(t *testing.T) {
	inputs := wideInputs(12)
	p := longOnly(0.2).With(WithFrontierPoints(6), WithNumSamples(100), WithTimeBudget(time.Nanosecond))

	start := time.Now()
	res, err := newFrontierGenerator().Generate(context.Background(), inputs, p)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, 2*time.Second)
	require.Len(t, res.Points, 6)
	fallbacks := 0
	for i, pt := range res.Points {
		if i > 0 {
			assert.Greater(t, pt.TargetReturn, res.Points[i-1].TargetReturn)
		}
		if pt.Solver == SolverMonteCarlo {
			fallbacks++
		}
		assert.InDelta(t, 1.0, pt.Weights.Sum(), 1e-6)
		assert.InDelta(t, portfolioRisk(inputs, pt.Weights.Values()), pt.Risk, 1e-6)
		for _, e := range pt.Weights {
			assert.GreaterOrEqual(t, e.Weight, -1e-9)
			assert.LessOrEqual(t, e.Weight, 0.2+1e-9)
		}
	}
	assert.Positive(t, fallbacks, "points solved after the deadline use the Monte Carlo fallback")
}

func TestFrontierGenerator_ClosedFormWithShorts(t *testing.T) {
	p := DefaultParams().With(WithFrontierPoints(5), WithNumSamples(50))

	res, err := newFrontierGenerator().Generate(context.Background(), twoAssetInputs(), p)
	require.NoError(t, err)

	require.NotNil(t, res.Coefficients)
	assert.InDelta(t, 28.125, res.Coefficients.A, 1e-9)
	assert.InDelta(t, 2.5, res.Coefficients.B, 1e-9)
	assert.InDelta(t, 0.24, res.Coefficients.C, 1e-9)
	assert.InDelta(t, 0.5, res.Coefficients.D, 1e-9)

	assert.InDelta(t, 0.08, res.Points[0].TargetReturn, 1e-12)
	assert.InDelta(t, 0.12, res.Points[4].TargetReturn, 1e-12)
	for _, pt := range res.Points {
		assert.Equal(t, SolverAnalytical, pt.Solver)
		assert.InDelta(t, res.Coefficients.Variance(pt.Return), pt.Risk*pt.Risk, 1e-10)
	}
	// GMV return is 0.0889, so the first point sits on the lower branch
	assert.False(t, res.Points[0].Efficient)
	assert.True(t, res.Points[4].Efficient)
	assert.InDelta(t, math.Sqrt(1/28.125), res.GMVRisk, 1e-10)

	for _, s := range res.FeasibleSet {
		assert.LessOrEqual(t, s.Weights.Gross(), 2+1e-9)
	}
}

func TestFrontierGenerator_SeededCloudIsReproducible(t *testing.T) {
	p := longOnly(1).With(WithFrontierPoints(3), WithNumSamples(40), WithSeed(11))
	g := newFrontierGenerator()

	a, err := g.Generate(context.Background(), fourAssetInputs(), p)
	require.NoError(t, err)
	b, err := g.Generate(context.Background(), fourAssetInputs(), p)
	require.NoError(t, err)
	assert.Equal(t, a.FeasibleSet, b.FeasibleSet)

	c, err := g.Generate(context.Background(), fourAssetInputs(), p.With(WithSeed(12)))
	require.NoError(t, err)
	assert.NotEqual(t, a.FeasibleSet, c.FeasibleSet)
}

func TestFrontierGenerator_ExplicitRange(t *testing.T) {
	p := longOnly(1).With(WithFrontierPoints(4), WithNumSamples(0), WithTargetReturnRange(0.09, 0.11))

	res, err := newFrontierGenerator().Generate(context.Background(), twoAssetInputs(), p)
	require.NoError(t, err)
	assert.InDelta(t, 0.09, res.Points[0].TargetReturn, 1e-12)
	assert.InDelta(t, 0.11, res.Points[3].TargetReturn, 1e-12)
	assert.Empty(t, res.FeasibleSet)
}

func TestFrontierGenerator_ValidationErrors(t *testing.T) {
	g := newFrontierGenerator()
	tests := []struct {
		name  string
		p     Params
		field string
	}{
		{"one point", DefaultParams().With(WithFrontierPoints(1)), "num_frontier_points"},
		{"max above attainable", longOnly(1).With(WithTargetReturnRange(0.09, 0.2)), "target_return_max"},
		{"min below attainable", longOnly(1).With(WithTargetReturnRange(0.01, 0.1)), "target_return_min"},
		{"inverted range", longOnly(1).With(WithTargetReturnRange(0.11, 0.09)), "target_return_range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(context.Background(), twoAssetInputs(), tt.p)
			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domain.KindValidation, de.Kind)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestFrontierGenerator_EqualReturnsHaveEmptySpan(t *testing.T) {
	inputs := twoAssetInputs()
	inputs.ExpectedReturns = []float64{0.1, 0.1}

	_, err := newFrontierGenerator().Generate(context.Background(), inputs, DefaultParams())
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestSpecialPortfolioSolver(t *testing.T) {
	solver := NewSpecialPortfolioSolver(NewOptimizer(zerolog.Nop()))

	res, err := solver.Solve(context.Background(), twoAssetInputs(), DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, domain.SpecialTangency, res.Tangency.Kind)
	assert.InDelta(t, 0.0034/0.0062, res.Tangency.Weights[0].Weight, 1e-10)
	assert.Equal(t, SolverAnalytical, res.Tangency.Solver)

	assert.Equal(t, domain.SpecialMinimumVariance, res.MinimumVariance.Kind)
	assert.InDelta(t, 7.0/9.0, res.MinimumVariance.Weights[0].Weight, 1e-10)
	assert.Less(t, res.MinimumVariance.Risk, res.Tangency.Risk)
	assert.Greater(t, res.Tangency.Sharpe, res.MinimumVariance.Sharpe)
}
