// Package domain provides core domain models and types shared by the
// analytics engines, the history repository and the API layer.
package domain

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ReturnMethod selects how periodic returns are derived from prices
type ReturnMethod string

const (
	// ReturnMethodSimple is (P_t - P_{t-1}) / P_{t-1}
	ReturnMethodSimple ReturnMethod = "simple"
	// ReturnMethodLog is ln(P_t / P_{t-1})
	ReturnMethodLog ReturnMethod = "log"
)

// ParseReturnMethod validates a textual method. Empty input maps to simple.
func ParseReturnMethod(s string) (ReturnMethod, error) {
	switch ReturnMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReturnMethodSimple:
		return ReturnMethodSimple, nil
	case ReturnMethodLog:
		return ReturnMethodLog, nil
	default:
		return "", ValidationError("parse_return_method", "method", "unknown return method %q (want simple or log)", s)
	}
}

// DailyPrice is one OHLCV bar
type DailyPrice struct {
	Date   time.Time `json:"date" msgpack:"date"`
	Open   float64   `json:"open" msgpack:"open"`
	High   float64   `json:"high" msgpack:"high"`
	Low    float64   `json:"low" msgpack:"low"`
	Close  float64   `json:"close" msgpack:"close"`
	Volume *int64    `json:"volume,omitempty" msgpack:"volume,omitempty"`
}

// AssetSeries is the price history of one instrument in ascending date order
type AssetSeries struct {
	Symbol string       `json:"symbol"`
	Prices []DailyPrice `json:"prices"`
}

// Closes extracts the close prices in series order
func (a AssetSeries) Closes() []float64 {
	out := make([]float64, len(a.Prices))
	for i, p := range a.Prices {
		out[i] = p.Close
	}
	return out
}

// Dates extracts the bar dates in series order
func (a AssetSeries) Dates() []time.Time {
	out := make([]time.Time, len(a.Prices))
	for i, p := range a.Prices {
		out[i] = p.Date
	}
	return out
}

// ReturnSeries is a periodic return series. Dates[i] is the later date of the
// price pair that produced Values[i].
type ReturnSeries struct {
	Symbol         string       `json:"symbol"`
	Dates          []time.Time  `json:"dates"`
	Values         []float64    `json:"values"`
	Method         ReturnMethod `json:"method"`
	PeriodsPerYear int          `json:"periods_per_year"`
}

// Len returns the number of observations
func (r ReturnSeries) Len() int {
	return len(r.Values)
}

// Matrix is a symmetric, symbol-labelled matrix (covariance or correlation).
type Matrix struct {
	Symbols []string    `json:"symbols" msgpack:"symbols"`
	Values  [][]float64 `json:"values" msgpack:"values"`
}

// NewMatrixFromSym copies a gonum symmetric matrix into a labelled Matrix.
func NewMatrixFromSym(symbols []string, s mat.Symmetric) Matrix {
	n := s.SymmetricDim()
	values := make([][]float64, n)
	for i := 0; i < n; i++ {
		values[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			values[i][j] = s.At(i, j)
		}
	}
	syms := make([]string, len(symbols))
	copy(syms, symbols)
	return Matrix{Symbols: syms, Values: values}
}

// Size returns the matrix dimension
func (m Matrix) Size() int {
	return len(m.Symbols)
}

// Sym converts the matrix into a gonum SymDense (upper triangle is used).
func (m Matrix) Sym() *mat.SymDense {
	n := len(m.Values)
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, m.Values[i][j])
		}
	}
	return s
}

// Index returns the position of symbol or -1
func (m Matrix) Index(symbol string) int {
	for i, s := range m.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Get returns the entry for a symbol pair
func (m Matrix) Get(a, b string) (float64, bool) {
	i, j := m.Index(a), m.Index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

// Validate checks that the matrix is square, labelled and symmetric within tol.
func (m Matrix) Validate(tol float64) error {
	n := len(m.Symbols)
	if len(m.Values) != n {
		return ValidationError("matrix", "values", "matrix has %d rows for %d symbols", len(m.Values), n)
	}
	for i := 0; i < n; i++ {
		if len(m.Values[i]) != n {
			return ValidationError("matrix", "values", "row %d has %d columns, want %d", i, len(m.Values[i]), n)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := m.Values[i][j], m.Values[j][i]
			if d := a - b; d > tol || d < -tol {
				return ValidationError("matrix", "values", "matrix not symmetric at (%s,%s): %g vs %g", m.Symbols[i], m.Symbols[j], a, b)
			}
		}
	}
	return nil
}

// PortfolioInputs are the estimated moments an optimizer works on
type PortfolioInputs struct {
	Symbols         []string  `json:"symbols" msgpack:"symbols"`
	ExpectedReturns []float64 `json:"mu" msgpack:"mu"`
	Covariance      Matrix    `json:"sigma" msgpack:"sigma"`
	RiskFreeRate    float64   `json:"r_f" msgpack:"r_f"`
}

// Validate checks dimensions and finiteness
func (p PortfolioInputs) Validate() error {
	n := len(p.Symbols)
	if len(p.ExpectedReturns) != n {
		return ValidationError("portfolio_inputs", "mu", "expected returns has %d entries for %d symbols", len(p.ExpectedReturns), n)
	}
	if p.Covariance.Size() != n {
		return ValidationError("portfolio_inputs", "sigma", "covariance is %dx%d for %d symbols", p.Covariance.Size(), p.Covariance.Size(), n)
	}
	if err := p.Covariance.Validate(1e-10); err != nil {
		return err
	}
	for i, v := range p.ExpectedReturns {
		if !finite(v) {
			return DataError("portfolio_inputs", "expected return for %s is not finite", p.Symbols[i])
		}
	}
	for i, row := range p.Covariance.Values {
		for j, v := range row {
			if !finite(v) {
				return DataError("portfolio_inputs", "covariance entry (%s,%s) is not finite", p.Symbols[i], p.Symbols[j])
			}
		}
		if row[i] < 0 {
			return DataError("portfolio_inputs", "negative variance for %s", p.Symbols[i])
		}
	}
	return nil
}

// WeightEntry is one asset allocation
type WeightEntry struct {
	Symbol  string  `json:"symbol"`
	Weight  float64 `json:"weight"`
	IsShort bool    `json:"is_short"`
}

// PortfolioWeights is an ordered allocation across symbols
type PortfolioWeights []WeightEntry

// NewPortfolioWeights pairs symbols with weights, tagging negative weights as short.
func NewPortfolioWeights(symbols []string, w []float64) PortfolioWeights {
	out := make(PortfolioWeights, len(symbols))
	for i, s := range symbols {
		out[i] = WeightEntry{Symbol: s, Weight: w[i], IsShort: w[i] < 0}
	}
	return out
}

// Values returns the raw weights in order
func (pw PortfolioWeights) Values() []float64 {
	out := make([]float64, len(pw))
	for i, e := range pw {
		out[i] = e.Weight
	}
	return out
}

// Map returns symbol -> weight
func (pw PortfolioWeights) Map() map[string]float64 {
	out := make(map[string]float64, len(pw))
	for _, e := range pw {
		out[e.Symbol] = e.Weight
	}
	return out
}

// Sum is the net exposure
func (pw PortfolioWeights) Sum() float64 {
	s := 0.0
	for _, e := range pw {
		s += e.Weight
	}
	return s
}

// Gross is sum(|w|)
func (pw PortfolioWeights) Gross() float64 {
	s := 0.0
	for _, e := range pw {
		if e.Weight < 0 {
			s -= e.Weight
		} else {
			s += e.Weight
		}
	}
	return s
}

// EfficientFrontierPoint is one optimized point of the frontier
type EfficientFrontierPoint struct {
	TargetReturn float64          `json:"target_return"`
	Risk         float64          `json:"risk"`
	Return       float64          `json:"return"`
	Sharpe       float64          `json:"sharpe"`
	Efficient    bool             `json:"efficient"`
	Solver       string           `json:"solver"`
	Weights      PortfolioWeights `json:"weights"`
}

// SpecialKind tags a SpecialPortfolio
type SpecialKind string

const (
	SpecialTangency        SpecialKind = "tangency"
	SpecialMinimumVariance SpecialKind = "minimum_variance"
)

// SpecialPortfolio is either the tangency or the global minimum-variance portfolio
type SpecialPortfolio struct {
	Kind    SpecialKind      `json:"kind"`
	Risk    float64          `json:"risk"`
	Return  float64          `json:"return"`
	Sharpe  float64          `json:"sharpe"`
	Solver  string           `json:"solver"`
	Weights PortfolioWeights `json:"weights"`
}

// ConsolidationMethod selects how a group collapses into one series
type ConsolidationMethod string

const (
	ConsolidationMean   ConsolidationMethod = "mean"
	ConsolidationMedian ConsolidationMethod = "median"
	ConsolidationFirst  ConsolidationMethod = "first"
)

// ParseConsolidationMethod validates a textual method. Empty input maps to mean.
func ParseConsolidationMethod(s string) (ConsolidationMethod, error) {
	switch ConsolidationMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", ConsolidationMean:
		return ConsolidationMean, nil
	case ConsolidationMedian:
		return ConsolidationMedian, nil
	case ConsolidationFirst:
		return ConsolidationFirst, nil
	default:
		return "", ValidationError("parse_consolidation_method", "consolidation_method", "unknown consolidation method %q (want mean, median or first)", s)
	}
}

// ConsolidationGroup is a set of symbols merged under a correlation threshold
type ConsolidationGroup struct {
	Representative string              `json:"representative"`
	Members        []string            `json:"members"`
	Method         ConsolidationMethod `json:"method"`
}

// RepresentativeName names a group: members joined by "+" for up to three
// members, otherwise "<first>+<n-1>others".
func RepresentativeName(members []string) string {
	switch {
	case len(members) == 0:
		return ""
	case len(members) <= 3:
		return strings.Join(members, "+")
	default:
		return fmt.Sprintf("%s+%dothers", members[0], len(members)-1)
	}
}
