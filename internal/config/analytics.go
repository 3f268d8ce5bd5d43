package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/correlation"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// AnalyticsDefaults are the values used when a request omits a parameter.
type AnalyticsDefaults struct {
	Method         string  `toml:"method"`
	Annualize      bool    `toml:"annualize"`
	PeriodsPerYear int     `toml:"periods_per_year"`
	RiskFreeRate   float64 `toml:"risk_free_rate"`

	AllowShort  bool    `toml:"allow_short"`
	MaxLeverage float64 `toml:"max_leverage"`
	MinWeight   float64 `toml:"min_weight"`
	MaxWeight   float64 `toml:"max_weight"`

	NumFrontierPoints int `toml:"num_frontier_points"`
	NumSamples        int `toml:"num_samples"`

	CorrelationThreshold        float64 `toml:"correlation_threshold"`
	ConsolidationMethod         string  `toml:"consolidation_method"`
	ConsolidatedCorrelationMode string  `toml:"consolidated_correlation_mode"`

	OptimizationMethod string  `toml:"optimization_method"`
	RiskTolerance      float64 `toml:"risk_tolerance"`
	Seed               uint64  `toml:"seed"`
	MaxIterations      int     `toml:"max_iterations"`
	Tolerance          float64 `toml:"tolerance"`
	SolverTimeBudget   string  `toml:"solver_time_budget"` // Go duration, e.g. "5s"

	Shrinkage string `toml:"shrinkage"`
}

// DefaultAnalytics returns the built-in analytics defaults
func DefaultAnalytics() AnalyticsDefaults {
	return AnalyticsDefaults{
		Method:                      string(domain.ReturnMethodSimple),
		Annualize:                   true,
		PeriodsPerYear:              252,
		RiskFreeRate:                0,
		AllowShort:                  true,
		MaxLeverage:                 2,
		MinWeight:                   0,
		MaxWeight:                   1,
		NumFrontierPoints:           50,
		NumSamples:                  2000,
		CorrelationThreshold:        0.9,
		ConsolidationMethod:         string(domain.ConsolidationMean),
		ConsolidatedCorrelationMode: string(correlation.MatrixRecompute),
		OptimizationMethod:          string(optimization.ObjectiveMaxSharpe),
		RiskTolerance:               1,
		Seed:                        42,
		MaxIterations:               2000,
		Tolerance:                   1e-8,
		SolverTimeBudget:            "5s",
		Shrinkage:                   string(optimization.ShrinkageNone),
	}
}

// LoadAnalyticsDefaults overlays the TOML file at path onto the built-in
// defaults. An empty path or a missing file yields the defaults. Unknown keys
// are rejected.
func LoadAnalyticsDefaults(path string) (AnalyticsDefaults, error) {
	defaults := DefaultAnalytics()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("failed to read analytics config %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defaults); err != nil {
		return defaults, fmt.Errorf("failed to parse analytics config %s: %w", path, err)
	}
	return defaults, nil
}

// TimeBudget parses SolverTimeBudget; "" and "0" disable the cap.
func (a AnalyticsDefaults) TimeBudget() (time.Duration, error) {
	if a.SolverTimeBudget == "" || a.SolverTimeBudget == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.SolverTimeBudget)
	if err != nil {
		return 0, fmt.Errorf("solver_time_budget %q: %w", a.SolverTimeBudget, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("solver_time_budget must not be negative, got %s", d)
	}
	return d, nil
}

// Validate checks ranges and enumerations
func (a AnalyticsDefaults) Validate() error {
	if _, err := domain.ParseReturnMethod(a.Method); err != nil {
		return err
	}
	if a.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods_per_year must be positive, got %d", a.PeriodsPerYear)
	}
	if a.CorrelationThreshold < 0 || a.CorrelationThreshold > 1 {
		return fmt.Errorf("correlation_threshold must be within [0, 1], got %v", a.CorrelationThreshold)
	}
	if _, err := (correlation.ConsolidationOptions{
		Threshold: a.CorrelationThreshold,
		Method:    domain.ConsolidationMethod(a.ConsolidationMethod),
		Mode:      correlation.MatrixMode(a.ConsolidatedCorrelationMode),
	}).Validate(); err != nil {
		return err
	}
	if _, err := optimization.ParseObjective(a.OptimizationMethod); err != nil {
		return err
	}
	if _, err := optimization.ParseShrinkage(a.Shrinkage); err != nil {
		return err
	}
	if a.NumFrontierPoints < 2 {
		return fmt.Errorf("num_frontier_points must be at least 2, got %d", a.NumFrontierPoints)
	}
	if a.NumSamples < 0 {
		return fmt.Errorf("num_samples must not be negative, got %d", a.NumSamples)
	}
	if a.MinWeight > a.MaxWeight {
		return fmt.Errorf("min_weight %v exceeds max_weight %v", a.MinWeight, a.MaxWeight)
	}
	if a.MaxLeverage < 1 {
		return fmt.Errorf("max_leverage must be at least 1, got %v", a.MaxLeverage)
	}
	if a.RiskTolerance < 0 {
		return fmt.Errorf("risk_tolerance must not be negative, got %v", a.RiskTolerance)
	}
	if a.MaxIterations <= 0 || !(a.Tolerance > 0) {
		return fmt.Errorf("max_iterations and tolerance must be positive")
	}
	if _, err := a.TimeBudget(); err != nil {
		return err
	}
	return nil
}

// Params converts the defaults into optimizer parameters
func (a AnalyticsDefaults) Params() (optimization.Params, error) {
	objective, err := optimization.ParseObjective(a.OptimizationMethod)
	if err != nil {
		return optimization.Params{}, err
	}
	budget, err := a.TimeBudget()
	if err != nil {
		return optimization.Params{}, err
	}
	return optimization.DefaultParams().With(
		optimization.WithObjective(objective),
		optimization.WithShorts(a.AllowShort),
		optimization.WithWeightBounds(a.MinWeight, a.MaxWeight),
		optimization.WithMaxLeverage(a.MaxLeverage),
		optimization.WithRiskTolerance(a.RiskTolerance),
		optimization.WithNumSamples(a.NumSamples),
		optimization.WithSeed(a.Seed),
		optimization.WithSolverBudget(a.MaxIterations, a.Tolerance),
		optimization.WithTimeBudget(budget),
		optimization.WithFrontierPoints(a.NumFrontierPoints),
	), nil
}
