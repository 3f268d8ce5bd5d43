package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanStdDev(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	assert.InDelta(t, 2.5, Mean(data), 1e-12)
	// sample std: sqrt(((1.5^2+0.5^2)*2)/3)
	assert.InDelta(t, math.Sqrt(5.0/3.0), StdDev(data), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{1}))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 0.0, Median(nil))

	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "input must not be reordered")
}

func TestAnnualize(t *testing.T) {
	assert.InDelta(t, 0.252, AnnualizeMean(0.001, 252), 1e-12)
	assert.InDelta(t, 0.01*math.Sqrt(252), AnnualizeVolatility(0.01, 252), 1e-12)
}

func TestSharpeRatio(t *testing.T) {
	s, ok := SharpeRatio(0.10, 0.20, 0.02)
	assert.True(t, ok)
	assert.InDelta(t, 0.4, s, 1e-12)

	s, ok = SharpeRatio(0.10, 0, 0.02)
	assert.False(t, ok)
	assert.Equal(t, 0.0, s)
}

func TestTotalReturnAndDrawdown(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, 0.01}
	growth := GrowthFactors(returns, false)

	assert.InDelta(t, 1.01*0.98*1.03*1.01-1, TotalReturn(growth), 1e-12)

	curve := CumulativeReturns(growth)
	require.Len(t, curve, 4)
	assert.InDelta(t, 0.01, curve[0], 1e-12)
	assert.InDelta(t, 1.01*0.98-1, curve[1], 1e-12)

	// Peak wealth 1.01 after day one, trough 0.9898 after day two.
	assert.InDelta(t, -0.02, MaxDrawdown(curve), 1e-12)
}

func TestMaxDrawdown_FirstPeriodLoss(t *testing.T) {
	curve := CumulativeReturns(GrowthFactors([]float64{-0.1, 0.05}, false))
	assert.InDelta(t, -0.1, MaxDrawdown(curve), 1e-12)
}

func TestMaxDrawdown_MonotoneGains(t *testing.T) {
	curve := CumulativeReturns(GrowthFactors([]float64{0.01, 0.02, 0.03}, false))
	assert.Equal(t, 0.0, MaxDrawdown(curve))
}

func TestGrowthFactors_Log(t *testing.T) {
	g := GrowthFactors([]float64{math.Log(1.1), math.Log(0.9)}, true)
	assert.InDelta(t, 1.1, g[0], 1e-12)
	assert.InDelta(t, 0.9, g[1], 1e-12)
}

func TestCorrelationMatrixFromCovariance(t *testing.T) {
	cov := [][]float64{{0.04, 0.02}, {0.02, 0.09}}
	corr, err := CorrelationMatrixFromCovariance(cov)
	require.NoError(t, err)
	assert.Equal(t, 1.0, corr[0][0])
	assert.Equal(t, 1.0, corr[1][1])
	assert.InDelta(t, 0.02/(0.2*0.3), corr[0][1], 1e-12)
	assert.Equal(t, corr[0][1], corr[1][0])

	_, err = CorrelationMatrixFromCovariance([][]float64{{0, 0}, {0, 1}})
	assert.Error(t, err)
	_, err = CorrelationMatrixFromCovariance(nil)
	assert.Error(t, err)
}

func TestCorrelationToDistance(t *testing.T) {
	d := CorrelationToDistance([][]float64{{1, -1}, {-1, 1}})
	assert.Equal(t, 0.0, d[0][0])
	assert.InDelta(t, 2.0, d[0][1], 1e-12)
}
