package analytics

import (
	"math"
	"time"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/correlation"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/utils"
)

// Requests use pointer fields for every optional parameter; nil means "use
// the configured default".

// SeriesRequest selects the price series an operation runs on.
// Empty tickers selects every stored symbol.
type SeriesRequest struct {
	Tickers        []string `json:"tickers"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
	Method         *string  `json:"method,omitempty"`
	PeriodsPerYear *int     `json:"periods_per_year,omitempty"`
}

// SummaryRequest is the body of computeStatistics
type SummaryRequest struct {
	SeriesRequest
	RiskFreeRate *float64 `json:"r_f,omitempty"`
	Annualize    *bool    `json:"annualize,omitempty"`
}

// CorrelationRequest is the body of computeCorrelation
type CorrelationRequest struct {
	SeriesRequest
}

// ConsolidationParams are shared by consolidate and every portfolio operation
type ConsolidationParams struct {
	CorrelationThreshold        *float64 `json:"correlation_threshold,omitempty"`
	ConsolidationMethod         *string  `json:"consolidation_method,omitempty"`
	ConsolidatedCorrelationMode *string  `json:"consolidated_correlation_mode,omitempty"`
}

// ConsolidationRequest is the body of consolidate
type ConsolidationRequest struct {
	SeriesRequest
	ConsolidationParams
}

// InputsRequest is the body of portfolioInputs. With consolidate_correlated
// set, mu and sigma are estimated over the group representatives.
type InputsRequest struct {
	SeriesRequest
	ConsolidationParams
	Annualize             *bool    `json:"annualize,omitempty"`
	RiskFreeRate          *float64 `json:"r_f,omitempty"`
	ConsolidateCorrelated *bool    `json:"consolidate_correlated,omitempty"`
	Shrinkage             *string  `json:"shrinkage,omitempty"`
}

// OptimizeRequest is the body of optimize and solveSpecialPortfolios
type OptimizeRequest struct {
	InputsRequest
	AllowShort         *bool    `json:"allow_short,omitempty"`
	OptimizationMethod *string  `json:"optimization_method,omitempty"`
	TargetReturn       *float64 `json:"target_return,omitempty"`
	TargetRisk         *float64 `json:"target_risk,omitempty"`
	RiskTolerance      *float64 `json:"risk_tolerance,omitempty"`
	MaxWeight          *float64 `json:"max_weight,omitempty"`
	MinWeight          *float64 `json:"min_weight,omitempty"`
	MaxLeverage        *float64 `json:"max_leverage,omitempty"`
	NumSamples         *int     `json:"num_samples,omitempty"`
	Seed               *uint64  `json:"seed,omitempty"`
}

// FrontierRequest is the body of generateFrontier and frontierChart
type FrontierRequest struct {
	OptimizeRequest
	NumFrontierPoints *int     `json:"num_frontier_points,omitempty"`
	TargetReturnMin   *float64 `json:"target_return_min,omitempty"`
	TargetReturnMax   *float64 `json:"target_return_max,omitempty"`
}

// seriesSpec is a resolved SeriesRequest
type seriesSpec struct {
	Tickers        []string            `msgpack:"tickers"`
	Start          time.Time           `msgpack:"start"`
	End            time.Time           `msgpack:"end"`
	Method         domain.ReturnMethod `msgpack:"method"`
	PeriodsPerYear int                 `msgpack:"periods_per_year"`
}

// inputsSpec is a resolved InputsRequest; it doubles as the cache key.
type inputsSpec struct {
	Series        seriesSpec                       `msgpack:"series"`
	Annualize     bool                             `msgpack:"annualize"`
	RiskFreeRate  float64                          `msgpack:"r_f"`
	Consolidate   bool                             `msgpack:"consolidate"`
	Consolidation correlation.ConsolidationOptions `msgpack:"consolidation"`
	Shrinkage     optimization.Shrinkage           `msgpack:"shrinkage"`
}

func normalizeTickers(tickers []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		s := history.NormalizeSymbol(t)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (r SeriesRequest) resolve(d config.AnalyticsDefaults) (seriesSpec, error) {
	const op = "resolve_request"
	spec := seriesSpec{Tickers: normalizeTickers(r.Tickers)}

	var err error
	if spec.Start, err = utils.ParseDate(r.StartDate); err != nil {
		return spec, domain.ValidationError(op, "start_date", "%v", err)
	}
	if spec.End, err = utils.ParseDate(r.EndDate); err != nil {
		return spec, domain.ValidationError(op, "end_date", "%v", err)
	}
	if !spec.Start.IsZero() && !spec.End.IsZero() && spec.End.Before(spec.Start) {
		return spec, domain.ValidationError(op, "end_date", "end_date %s is before start_date %s", r.EndDate, r.StartDate)
	}

	if spec.Method, err = domain.ParseReturnMethod(stringOr(r.Method, d.Method)); err != nil {
		return spec, err
	}
	spec.PeriodsPerYear = intOr(r.PeriodsPerYear, d.PeriodsPerYear)
	if spec.PeriodsPerYear <= 0 {
		return spec, domain.ValidationError(op, "periods_per_year", "periods_per_year must be positive, got %d", spec.PeriodsPerYear)
	}
	return spec, nil
}

func (c ConsolidationParams) resolve(d config.AnalyticsDefaults) (correlation.ConsolidationOptions, error) {
	return correlation.ConsolidationOptions{
		Threshold: floatOr(c.CorrelationThreshold, d.CorrelationThreshold),
		Method:    domain.ConsolidationMethod(stringOr(c.ConsolidationMethod, d.ConsolidationMethod)),
		Mode:      correlation.MatrixMode(stringOr(c.ConsolidatedCorrelationMode, d.ConsolidatedCorrelationMode)),
	}.Validate()
}

func (r InputsRequest) resolve(d config.AnalyticsDefaults) (inputsSpec, error) {
	series, err := r.SeriesRequest.resolve(d)
	if err != nil {
		return inputsSpec{}, err
	}
	cons, err := r.ConsolidationParams.resolve(d)
	if err != nil {
		return inputsSpec{}, err
	}
	shrinkage, err := optimization.ParseShrinkage(stringOr(r.Shrinkage, d.Shrinkage))
	if err != nil {
		return inputsSpec{}, err
	}
	rf := floatOr(r.RiskFreeRate, d.RiskFreeRate)
	if math.IsNaN(rf) || math.IsInf(rf, 0) {
		return inputsSpec{}, domain.ValidationError("resolve_request", "r_f", "r_f must be finite")
	}
	return inputsSpec{
		Series:        series,
		Annualize:     boolOr(r.Annualize, d.Annualize),
		RiskFreeRate:  rf,
		Consolidate:   boolOr(r.ConsolidateCorrelated, false),
		Consolidation: cons,
		Shrinkage:     shrinkage,
	}, nil
}

// params layers the request overrides on the configured defaults.
// Cross-field checks happen in the optimizer.
func (r OptimizeRequest) params(d config.AnalyticsDefaults) (optimization.Params, error) {
	p, err := d.Params()
	if err != nil {
		return p, err
	}

	var opts []optimization.Option
	if r.OptimizationMethod != nil {
		objective, err := optimization.ParseObjective(*r.OptimizationMethod)
		if err != nil {
			return p, err
		}
		opts = append(opts, optimization.WithObjective(objective))
	}
	if r.AllowShort != nil {
		opts = append(opts, optimization.WithShorts(*r.AllowShort))
	}
	opts = append(opts, optimization.WithWeightBounds(floatOr(r.MinWeight, p.MinWeight), floatOr(r.MaxWeight, p.MaxWeight)))
	if r.MaxLeverage != nil {
		opts = append(opts, optimization.WithMaxLeverage(*r.MaxLeverage))
	}
	if r.TargetReturn != nil {
		opts = append(opts, optimization.WithTargetReturn(*r.TargetReturn))
	}
	if r.TargetRisk != nil {
		opts = append(opts, optimization.WithTargetRisk(*r.TargetRisk))
	}
	if r.RiskTolerance != nil {
		opts = append(opts, optimization.WithRiskTolerance(*r.RiskTolerance))
	}
	if r.NumSamples != nil {
		opts = append(opts, optimization.WithNumSamples(*r.NumSamples))
	}
	if r.Seed != nil {
		opts = append(opts, optimization.WithSeed(*r.Seed))
	}
	return p.With(opts...), nil
}

func (r FrontierRequest) params(d config.AnalyticsDefaults) (optimization.Params, error) {
	p, err := r.OptimizeRequest.params(d)
	if err != nil {
		return p, err
	}
	if r.NumFrontierPoints != nil {
		if *r.NumFrontierPoints < 2 {
			return p, domain.ValidationError("generate_frontier", "num_frontier_points", "num_frontier_points must be at least 2, got %d", *r.NumFrontierPoints)
		}
		p = p.With(optimization.WithFrontierPoints(*r.NumFrontierPoints))
	}
	switch {
	case r.TargetReturnMin != nil && r.TargetReturnMax != nil:
		p = p.With(optimization.WithTargetReturnRange(*r.TargetReturnMin, *r.TargetReturnMax))
	case r.TargetReturnMin != nil || r.TargetReturnMax != nil:
		return p, domain.ValidationError("generate_frontier", "target_return_range", "target_return_min and target_return_max must be given together")
	}
	return p, nil
}

func stringOr(v *string, d string) string {
	if v == nil {
		return d
	}
	return *v
}

func intOr(v *int, d int) int {
	if v == nil {
		return d
	}
	return *v
}

func floatOr(v *float64, d float64) float64 {
	if v == nil {
		return d
	}
	return *v
}

func boolOr(v *bool, d bool) bool {
	if v == nil {
		return d
	}
	return *v
}
