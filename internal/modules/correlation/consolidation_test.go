package correlation

import (
	"testing"

	"github.com/aristath/frontier/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsolidation() *ConsolidationEngine {
	return NewConsolidationEngine(NewEngine(zerolog.Nop()), zerolog.Nop())
}

func TestConsolidate_IdenticalSeriesMerge(t *testing.T) {
	c := newConsolidation()
	res, err := c.Consolidate([]domain.ReturnSeries{
		rs("BBB", 0.01, -0.02, 0.03, 0.01),
		rs("AAA", 0.01, -0.02, 0.03, 0.01),
		rs("CCC", 0.005, 0.01, -0.02, 0.002),
	}, ConsolidationOptions{Threshold: 1.0, Method: domain.ConsolidationMean})
	require.NoError(t, err)

	require.Len(t, res.Groups, 2)
	assert.Equal(t, []string{"AAA", "BBB"}, res.Groups[0].Members)
	assert.Equal(t, "AAA+BBB", res.Groups[0].Representative)
	assert.Equal(t, []string{"CCC"}, res.Groups[1].Members)
	require.Len(t, res.MergedGroups(), 1)

	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, res.Original.Symbols)
	assert.Equal(t, []string{"AAA+BBB", "CCC"}, res.Consolidated.Symbols)
	assertCorrelationInvariants(t, res.Original)
	assertCorrelationInvariants(t, res.Consolidated)

	assert.Equal(t, 3, res.Info.OriginalAssets)
	assert.Equal(t, 2, res.Info.ConsolidatedAssets)
	assert.Equal(t, 1.0, res.Info.Threshold)
	assert.Equal(t, MatrixRecompute, res.Info.Mode)
}

func TestConsolidate_TransitiveComponents(t *testing.T) {
	// A~B and B~C above threshold; A~C below. Union-find puts all three together.
	m := domain.Matrix{
		Symbols: []string{"A", "B", "C", "D"},
		Values: [][]float64{
			{1, 0.95, 0.5, 0},
			{0.95, 1, -0.92, 0},
			{0.5, -0.92, 1, 0},
			{0, 0, 0, 1},
		},
	}
	groups := GroupIndices(m, 0.9)
	assert.Equal(t, [][]int{{0, 1, 2}, {3}}, groups)
}

func TestConsolidate_ThresholdZeroMergesAll(t *testing.T) {
	m := domain.Matrix{
		Symbols: []string{"A", "B", "C"},
		Values:  [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	}
	assert.Equal(t, [][]int{{0, 1, 2}}, GroupIndices(m, 0))
}

func TestConsolidate_Methods(t *testing.T) {
	series := []domain.ReturnSeries{
		rs("A", 0.01, 0.02, 0.03),
		rs("B", 0.02, 0.04, 0.06),
		rs("C", 0.06, 0.08, 0.12),
	}
	c := newConsolidation()

	mean, err := c.Consolidate(series, ConsolidationOptions{Threshold: 0.9, Method: domain.ConsolidationMean})
	require.NoError(t, err)
	require.Len(t, mean.Representative, 1)
	assert.Equal(t, "A+B+C", mean.Representative[0].Symbol)
	assert.InDelta(t, 0.03, mean.Representative[0].Values[0], 1e-12)

	median, err := c.Consolidate(series, ConsolidationOptions{Threshold: 0.9, Method: domain.ConsolidationMedian})
	require.NoError(t, err)
	assert.InDelta(t, 0.02, median.Representative[0].Values[0], 1e-12)

	first, err := c.Consolidate(series, ConsolidationOptions{Threshold: 0.9, Method: domain.ConsolidationFirst})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 0.02, 0.03}, first.Representative[0].Values)
}

func TestConsolidate_AverageMode(t *testing.T) {
	series := []domain.ReturnSeries{
		rs("A", 0.01, -0.02, 0.03, 0.01, -0.01),
		rs("B", 0.01, -0.02, 0.03, 0.01, -0.01),
		rs("C", 0.02, 0.01, -0.01, 0.0, 0.03),
	}
	c := newConsolidation()
	res, err := c.Consolidate(series, ConsolidationOptions{Threshold: 0.99, Method: domain.ConsolidationMean, Mode: MatrixAverage})
	require.NoError(t, err)

	ac, _ := res.Original.Get("A", "C")
	bc, _ := res.Original.Get("B", "C")
	got, ok := res.Consolidated.Get("A+B", "C")
	require.True(t, ok)
	assert.InDelta(t, (ac+bc)/2, got, 1e-12)
	assertCorrelationInvariants(t, res.Consolidated)
}

func TestConsolidate_Validation(t *testing.T) {
	c := newConsolidation()
	series := []domain.ReturnSeries{rs("A", 1, 2, 3), rs("B", 3, 2, 1)}

	for _, th := range []float64{-0.1, 1.1} {
		_, err := c.Consolidate(series, ConsolidationOptions{Threshold: th})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), "threshold %v", th)
	}
	_, err := c.Consolidate(series, ConsolidationOptions{Threshold: 0.5, Method: "max"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = c.Consolidate(series, ConsolidationOptions{Threshold: 0.5, Mode: "blend"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestConsolidate_DeterministicAcrossInputOrder(t *testing.T) {
	c := newConsolidation()
	a := rs("A", 0.01, -0.02, 0.03, 0.01)
	b := rs("B", 0.011, -0.019, 0.031, 0.012)
	d := rs("D", -0.01, 0.02, 0.0, 0.005)

	r1, err := c.Consolidate([]domain.ReturnSeries{a, b, d}, ConsolidationOptions{Threshold: 0.9})
	require.NoError(t, err)
	r2, err := c.Consolidate([]domain.ReturnSeries{d, b, a}, ConsolidationOptions{Threshold: 0.9})
	require.NoError(t, err)
	assert.Equal(t, r1.Groups, r2.Groups)
	assert.Equal(t, r1.Consolidated, r2.Consolidated)
}
