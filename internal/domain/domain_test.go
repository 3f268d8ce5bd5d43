package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReturnMethod(t *testing.T) {
	m, err := ParseReturnMethod("")
	require.NoError(t, err)
	assert.Equal(t, ReturnMethodSimple, m)

	m, err = ParseReturnMethod(" LOG ")
	require.NoError(t, err)
	assert.Equal(t, ReturnMethodLog, m)

	_, err = ParseReturnMethod("geometric")
	assert.True(t, IsKind(err, KindValidation))
}

func TestParseConsolidationMethod(t *testing.T) {
	for _, in := range []string{"mean", "median", "first"} {
		m, err := ParseConsolidationMethod(in)
		require.NoError(t, err)
		assert.Equal(t, ConsolidationMethod(in), m)
	}
	_, err := ParseConsolidationMethod("max")
	assert.True(t, IsKind(err, KindValidation))
}

func TestError_FormattingAndKind(t *testing.T) {
	err := ValidationError("optimize", "min_weight", "min_weight %.2f exceeds max_weight %.2f", 0.6, 0.5)
	assert.Equal(t, "optimize: min_weight: min_weight 0.60 exceeds max_weight 0.50", err.Error())
	assert.Equal(t, KindValidation, KindOf(err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, KindValidation, KindOf(wrapped))

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.Equal(t, "min_weight", e.Field)
	assert.Equal(t, "min_weight 0.60 exceeds max_weight 0.50", e.Message())

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, KindData, KindOf(DataError("returns", "too short")))
	assert.Equal(t, KindOptimization, KindOf(OptimizationError("optimize", errors.New("x"))))
	assert.Equal(t, KindNumeric, KindOf(NumericError("sharpe", "zero volatility")))
}

func TestRepresentativeName(t *testing.T) {
	assert.Equal(t, "", RepresentativeName(nil))
	assert.Equal(t, "AAPL", RepresentativeName([]string{"AAPL"}))
	assert.Equal(t, "A+B+C", RepresentativeName([]string{"A", "B", "C"}))
	assert.Equal(t, "A+3others", RepresentativeName([]string{"A", "B", "C", "D"}))
}

func TestPortfolioWeights(t *testing.T) {
	pw := NewPortfolioWeights([]string{"A", "B", "C"}, []float64{0.7, 0.5, -0.2})
	assert.False(t, pw[0].IsShort)
	assert.True(t, pw[2].IsShort)
	assert.InDelta(t, 1.0, pw.Sum(), 1e-12)
	assert.InDelta(t, 1.4, pw.Gross(), 1e-12)
	assert.Equal(t, []float64{0.7, 0.5, -0.2}, pw.Values())
	assert.Equal(t, 0.5, pw.Map()["B"])
}

func TestMatrix_SymRoundTripAndValidate(t *testing.T) {
	m := Matrix{Symbols: []string{"A", "B"}, Values: [][]float64{{0.04, 0.02}, {0.02, 0.09}}}
	require.NoError(t, m.Validate(1e-12))

	back := NewMatrixFromSym(m.Symbols, m.Sym())
	assert.Equal(t, m, back)

	v, ok := m.Get("B", "A")
	assert.True(t, ok)
	assert.Equal(t, 0.02, v)
	_, ok = m.Get("A", "Z")
	assert.False(t, ok)

	bad := Matrix{Symbols: []string{"A", "B"}, Values: [][]float64{{1, 0.5}, {0.4, 1}}}
	assert.True(t, IsKind(bad.Validate(1e-12), KindValidation))
}

func TestPortfolioInputs_Validate(t *testing.T) {
	in := PortfolioInputs{
		Symbols:         []string{"A", "B"},
		ExpectedReturns: []float64{0.08, 0.12},
		Covariance:      Matrix{Symbols: []string{"A", "B"}, Values: [][]float64{{0.04, 0.02}, {0.02, 0.09}}},
	}
	require.NoError(t, in.Validate())

	in.ExpectedReturns = []float64{0.08}
	assert.True(t, IsKind(in.Validate(), KindValidation))
}
