package optimization

import (
	"math"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/domain"
)

// Objective selects what the optimizer maximizes or minimizes
type Objective string

const (
	ObjectiveMaxSharpe     Objective = "max_sharpe"
	ObjectiveMinVariance   Objective = "min_variance"
	ObjectiveMaxReturn     Objective = "max_return"
	ObjectiveTargetReturn  Objective = "target_return"
	ObjectiveTargetRisk    Objective = "target_risk"
	ObjectiveRiskTolerance Objective = "risk_tolerance"
	ObjectiveHRP           Objective = "hrp"
)

// ParseObjective maps wire names (including legacy aliases) to an Objective.
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "max_sharpe", "sharpe", "tangency":
		return ObjectiveMaxSharpe, nil
	case "min_variance", "min_volatility", "minimum_variance":
		return ObjectiveMinVariance, nil
	case "max_return":
		return ObjectiveMaxReturn, nil
	case "target_return", "efficient_return":
		return ObjectiveTargetReturn, nil
	case "target_risk", "efficient_risk":
		return ObjectiveTargetRisk, nil
	case "risk_tolerance":
		return ObjectiveRiskTolerance, nil
	case "hrp":
		return ObjectiveHRP, nil
	default:
		return "", domain.ValidationError("optimize", "optimization_method", "unknown optimization method %q", s)
	}
}

// Params is an immutable optimizer configuration. Derive variants with With.
type Params struct {
	Objective     Objective
	AllowShort    bool
	MinWeight     float64
	MaxWeight     float64
	MaxLeverage   float64
	TargetReturn  *float64
	TargetRisk    *float64
	RiskTolerance float64

	// Monte Carlo sampling (fallback and feasible cloud)
	NumSamples int
	Seed       uint64

	// Iterative solver budget
	MaxIterations int
	Tolerance     float64
	TimeBudget    time.Duration

	// Frontier
	NumFrontierPoints int
	TargetReturnMin   *float64
	TargetReturnMax   *float64
}

// DefaultParams returns the engine defaults
func DefaultParams() Params {
	return Params{
		Objective:         ObjectiveMaxSharpe,
		AllowShort:        true,
		MinWeight:         0,
		MaxWeight:         1,
		MaxLeverage:       2,
		RiskTolerance:     1,
		NumSamples:        2000,
		Seed:              42,
		MaxIterations:     2000,
		Tolerance:         1e-8,
		TimeBudget:        5 * time.Second,
		NumFrontierPoints: 50,
	}
}

// Option changes one aspect of a Params copy
type Option func(*Params)

// With returns a copy of p with the options applied; p itself is unchanged.
func (p Params) With(opts ...Option) Params {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func WithObjective(o Objective) Option {
	return func(p *Params) { p.Objective = o }
}

func WithShorts(allow bool) Option {
	return func(p *Params) { p.AllowShort = allow }
}

func WithWeightBounds(min, max float64) Option {
	return func(p *Params) { p.MinWeight, p.MaxWeight = min, max }
}

func WithMaxLeverage(l float64) Option {
	return func(p *Params) { p.MaxLeverage = l }
}

func WithTargetReturn(r float64) Option {
	return func(p *Params) { p.TargetReturn = &r }
}

func WithTargetRisk(r float64) Option {
	return func(p *Params) { p.TargetRisk = &r }
}

func WithRiskTolerance(t float64) Option {
	return func(p *Params) { p.RiskTolerance = t }
}

func WithNumSamples(n int) Option {
	return func(p *Params) { p.NumSamples = n }
}

func WithSeed(seed uint64) Option {
	return func(p *Params) { p.Seed = seed }
}

// WithSolverBudget bounds the iterative solver
func WithSolverBudget(maxIterations int, tolerance float64) Option {
	return func(p *Params) { p.MaxIterations, p.Tolerance = maxIterations, tolerance }
}

// WithTimeBudget caps the wall time spent in iterative solves by one
// Optimize or Generate call; zero disables the cap.
func WithTimeBudget(d time.Duration) Option {
	return func(p *Params) { p.TimeBudget = d }
}

func WithFrontierPoints(n int) Option {
	return func(p *Params) { p.NumFrontierPoints = n }
}

// WithTargetReturnRange fixes the frontier range instead of deriving it from expected returns.
func WithTargetReturnRange(min, max float64) Option {
	return func(p *Params) { p.TargetReturnMin, p.TargetReturnMax = &min, &max }
}

// validate checks everything that does not depend on the inputs.
func (p Params) validate(n int) error {
	const op = "optimize"
	if n < 2 {
		return domain.ValidationError(op, "tickers", "portfolio operations need at least 2 assets, got %d", n)
	}
	if badFloat(p.MinWeight) || badFloat(p.MaxWeight) || badFloat(p.MaxLeverage) || badFloat(p.RiskTolerance) {
		return domain.ValidationError(op, "params", "weight bounds, leverage and risk tolerance must be finite")
	}
	if p.MinWeight > p.MaxWeight {
		return domain.ValidationError(op, "min_weight", "min_weight %g exceeds max_weight %g", p.MinWeight, p.MaxWeight)
	}
	if p.MaxLeverage < 1 {
		return domain.ValidationError(op, "max_leverage", "max_leverage must be at least 1 for a fully invested portfolio, got %g", p.MaxLeverage)
	}
	if !p.AllowShort {
		if p.MinWeight < 0 {
			return domain.ValidationError(op, "min_weight", "min_weight %g is negative but short positions are not allowed", p.MinWeight)
		}
		if float64(n)*p.MinWeight > 1+1e-12 {
			return domain.ValidationError(op, "min_weight", "%d assets at min_weight %g exceed the budget of 1", n, p.MinWeight)
		}
		if float64(n)*p.MaxWeight < 1-1e-12 {
			return domain.ValidationError(op, "max_weight", "%d assets at max_weight %g cannot reach the budget of 1", n, p.MaxWeight)
		}
	}
	if p.RiskTolerance < 0 {
		return domain.ValidationError(op, "risk_tolerance", "risk_tolerance must be non-negative, got %g", p.RiskTolerance)
	}
	if p.NumSamples < 0 {
		return domain.ValidationError(op, "num_samples", "num_samples must be non-negative, got %d", p.NumSamples)
	}
	if p.MaxIterations <= 0 {
		return domain.ValidationError(op, "max_iterations", "max_iterations must be positive, got %d", p.MaxIterations)
	}
	if !(p.Tolerance > 0) {
		return domain.ValidationError(op, "tolerance", "tolerance must be positive, got %g", p.Tolerance)
	}
	if p.TimeBudget < 0 {
		return domain.ValidationError(op, "time_budget", "time budget must not be negative, got %s", p.TimeBudget)
	}

	switch p.Objective {
	case ObjectiveMaxSharpe, ObjectiveMinVariance, ObjectiveMaxReturn, ObjectiveRiskTolerance:
	case ObjectiveTargetReturn:
		if p.TargetReturn == nil || badFloat(*p.TargetReturn) {
			return domain.ValidationError(op, "target_return", "target_return is required for the target_return objective")
		}
	case ObjectiveTargetRisk:
		if p.TargetRisk == nil || badFloat(*p.TargetRisk) || *p.TargetRisk <= 0 {
			return domain.ValidationError(op, "target_risk", "a positive target_risk is required for the target_risk objective")
		}
	case ObjectiveHRP:
		if p.AllowShort {
			return domain.ValidationError(op, "allow_short", "hrp allocates long-only portfolios; set allow_short=false")
		}
	default:
		return domain.ValidationError(op, "optimization_method", "unknown optimization method %q", p.Objective)
	}
	return nil
}

func badFloat(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
