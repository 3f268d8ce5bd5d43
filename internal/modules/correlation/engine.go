// Package correlation computes correlation/covariance structure over aligned
// return series and consolidates highly correlated assets.
package correlation

import (
	"math"
	"sort"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Engine computes Pearson correlation and sample covariance matrices
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a correlation engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "correlation").Logger(),
	}
}

// Correlation aligns the series on common dates and returns their Pearson
// correlation matrix, in input order.
func (e *Engine) Correlation(series []domain.ReturnSeries) (domain.Matrix, error) {
	aligned, err := prepare("compute_correlation", series)
	if err != nil {
		return domain.Matrix{}, err
	}
	return e.correlationOf(aligned), nil
}

// CorrelationBySymbol is Correlation over a symbol-keyed mapping; the matrix is
// ordered by symbol name.
func (e *Engine) CorrelationBySymbol(series map[string]domain.ReturnSeries) (domain.Matrix, error) {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]domain.ReturnSeries, len(keys))
	for i, k := range keys {
		list[i] = series[k]
		list[i].Symbol = k
	}
	return e.Correlation(list)
}

// Covariance aligns the series and returns the sample covariance matrix of
// per-period returns.
func (e *Engine) Covariance(series []domain.ReturnSeries) (domain.Matrix, error) {
	aligned, err := prepare("compute_covariance", series)
	if err != nil {
		return domain.Matrix{}, err
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, observations(aligned), nil)
	return domain.NewMatrixFromSym(symbolsOf(aligned), &cov), nil
}

func (e *Engine) correlationOf(aligned []domain.ReturnSeries) domain.Matrix {
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, observations(aligned), nil)

	m := domain.NewMatrixFromSym(symbolsOf(aligned), &corr)
	n := m.Size()
	for i := 0; i < n; i++ {
		m.Values[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			v := m.Values[i][j]
			if math.IsNaN(v) {
				e.log.Warn().
					Err(domain.NumericError("compute_correlation", "zero variance in %s or %s", m.Symbols[i], m.Symbols[j])).
					Msg("Correlation undefined, using 0")
				v = 0
			}
			v = formulas.ClampCorrelation(v)
			// sqrt(var)^2 can miss var by an ulp; identical series must read as exactly 1.
			if math.Abs(v) > 1-1e-12 {
				v = math.Copysign(1, v)
			}
			m.Values[i][j] = v
			m.Values[j][i] = v
		}
	}
	return m
}

func prepare(op string, series []domain.ReturnSeries) ([]domain.ReturnSeries, error) {
	if len(series) == 0 {
		return nil, domain.ValidationError(op, "tickers", "no return series supplied")
	}
	seen := make(map[string]struct{}, len(series))
	for _, s := range series {
		if _, dup := seen[s.Symbol]; dup {
			return nil, domain.ValidationError(op, "tickers", "duplicate symbol %q", s.Symbol)
		}
		seen[s.Symbol] = struct{}{}
	}
	return returns.Align(series)
}

// observations lays aligned series out as a T x n matrix (one column per asset).
func observations(aligned []domain.ReturnSeries) *mat.Dense {
	rows := aligned[0].Len()
	x := mat.NewDense(rows, len(aligned), nil)
	for j, s := range aligned {
		for i, v := range s.Values {
			x.Set(i, j, v)
		}
	}
	return x
}

func symbolsOf(series []domain.ReturnSeries) []string {
	out := make([]string, len(series))
	for i, s := range series {
		out[i] = s.Symbol
	}
	return out
}
