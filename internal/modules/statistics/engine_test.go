package statistics

import (
	"bytes"
	"math"
	"testing"

	"github.com/aristath/frontier/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() domain.ReturnSeries {
	return domain.ReturnSeries{
		Symbol:         "FIX",
		Values:         []float64{0.01, -0.02, 0.03, 0.01},
		Method:         domain.ReturnMethodSimple,
		PeriodsPerYear: 252,
	}
}

func TestCompute_Fixture(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	st, err := e.Compute(fixture(), Options{PeriodsPerYear: 252, Annualize: true})
	require.NoError(t, err)

	assert.InDelta(t, 1.01*0.98*1.03*1.01-1, st.TotalReturn, 1e-12)
	assert.InDelta(t, 0.02968894, st.TotalReturn, 1e-8)
	// Cumulative curve: 0.01, -0.0102, 0.019494, 0.02968894.
	// Peak 0.01, trough -0.0102: (-0.0102 - 0.01) / 1.01 = -0.02.
	assert.InDelta(t, -0.02, st.MaxDrawdown, 1e-12)
	assert.LessOrEqual(t, st.MaxDrawdown, 0.0)

	assert.Equal(t, 4, st.Observations)
	assert.InDelta(t, 0.0075, st.MeanReturnDaily, 1e-12)
	assert.InDelta(t, 0.0075*252, st.MeanReturnAnnual, 1e-12)
	assert.InDelta(t, st.VolatilityDaily*math.Sqrt(252), st.VolatilityAnnual, 1e-12)
	assert.Equal(t, st.MeanReturnAnnual, st.MeanReturn)
	assert.InDelta(t, st.MeanReturnAnnual/st.VolatilityAnnual, st.SharpeRatio, 1e-12)
	assert.False(t, st.SharpeDegenerate)
}

func TestCompute_NotAnnualized(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	st, err := e.Compute(fixture(), Options{PeriodsPerYear: 252, RiskFreeRate: 0.0252})
	require.NoError(t, err)
	assert.Equal(t, st.MeanReturnDaily, st.MeanReturn)
	assert.Equal(t, st.VolatilityDaily, st.Volatility)
	assert.InDelta(t, (0.0075-0.0001)/st.VolatilityDaily, st.SharpeRatio, 1e-12)
}

func TestCompute_ZeroVolatilitySentinel(t *testing.T) {
	var buf bytes.Buffer
	e := NewEngine(zerolog.New(&buf))

	rs := domain.ReturnSeries{Symbol: "FLAT", Values: []float64{0.25, 0.25, 0.25}, PeriodsPerYear: 252}
	st, err := e.Compute(rs, Options{PeriodsPerYear: 252, Annualize: true, RiskFreeRate: 0.02})
	require.NoError(t, err)

	assert.Equal(t, 0.0, st.Volatility)
	assert.Equal(t, 0.0, st.SharpeRatio)
	assert.Equal(t, 0.0, st.SharpeDaily)
	assert.True(t, st.SharpeDegenerate)
	assert.Contains(t, buf.String(), "zero volatility")
}

func TestCompute_LogReturnsTotalReturn(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rs := domain.ReturnSeries{
		Symbol:         "LOG",
		Values:         []float64{math.Log(1.1), math.Log(0.5), math.Log(1.2)},
		Method:         domain.ReturnMethodLog,
		PeriodsPerYear: 252,
	}
	st, err := e.Compute(rs, Options{PeriodsPerYear: 252})
	require.NoError(t, err)
	assert.InDelta(t, 1.1*0.5*1.2-1, st.TotalReturn, 1e-12)
	assert.InDelta(t, -0.5, st.MaxDrawdown, 1e-12)
}

func TestCompute_Errors(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	_, err := e.Compute(domain.ReturnSeries{Symbol: "X"}, Options{PeriodsPerYear: 252})
	assert.Equal(t, domain.KindData, domain.KindOf(err))

	_, err = e.Compute(fixture(), Options{PeriodsPerYear: -1})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err), "negative periods are rejected, not replaced")

	_, err = e.Compute(domain.ReturnSeries{Symbol: "X", Values: []float64{0.1, 0.2}}, Options{})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err), "no periods anywhere")

	_, err = e.Compute(domain.ReturnSeries{Symbol: "X", Values: []float64{0.1, math.Inf(1)}, PeriodsPerYear: 252}, Options{})
	assert.Equal(t, domain.KindData, domain.KindOf(err))
}

func TestCompute_PeriodsPerYearFallback(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rs := fixture()
	rs.PeriodsPerYear = 12

	st, err := e.Compute(rs, Options{})
	require.NoError(t, err)
	assert.InDelta(t, st.MeanReturnDaily*12, st.MeanReturnAnnual, 1e-12)

	st, err = e.Compute(rs, Options{PeriodsPerYear: 52})
	require.NoError(t, err)
	assert.InDelta(t, st.MeanReturnDaily*52, st.MeanReturnAnnual, 1e-12)
}

func TestCompute_SingleReturn(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	st, err := e.Compute(domain.ReturnSeries{Symbol: "ONE", Values: []float64{0.05}, PeriodsPerYear: 252}, Options{Annualize: true})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Observations)
	assert.Equal(t, 0.0, st.Volatility)
	assert.Equal(t, 0.0, st.SharpeRatio)
	assert.True(t, st.SharpeDegenerate)
	assert.InDelta(t, 0.05, st.TotalReturn, 1e-12)
}

func TestSummary_SortedBySharpe(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	low := domain.ReturnSeries{Symbol: "LOW", Values: []float64{0.001, -0.002, 0.0015, -0.001}, PeriodsPerYear: 252}
	high := domain.ReturnSeries{Symbol: "HIGH", Values: []float64{0.01, 0.011, 0.009, 0.0105}, PeriodsPerYear: 252}

	rows, err := e.Summary([]domain.ReturnSeries{low, high}, Options{PeriodsPerYear: 252, Annualize: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "HIGH", rows[0].Symbol)
	assert.Equal(t, "LOW", rows[1].Symbol)
}
