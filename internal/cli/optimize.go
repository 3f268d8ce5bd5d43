package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/aristath/frontier/internal/modules/analytics"
)

// portfolioFlags are shared by optimize and frontier
type portfolioFlags struct {
	series      seriesFlags
	rf          float64
	consolidate bool
	threshold   float64
	shrinkage   string
	allowShort  bool
	maxWeight   float64
	minWeight   float64
	maxLeverage float64
	samples     int
	seed        uint64
}

func (p *portfolioFlags) register(f *flag.FlagSet) {
	p.series.register(f)
	f.Float64Var(&p.rf, "rf", 0, "Annual risk-free rate")
	f.BoolVar(&p.consolidate, "consolidate", false, "Merge highly correlated tickers before estimating")
	f.Float64Var(&p.threshold, "threshold", 0, "Correlation threshold for -consolidate")
	f.StringVar(&p.shrinkage, "shrinkage", "", "Covariance shrinkage (none, ledoit_wolf)")
	f.BoolVar(&p.allowShort, "short", true, "Allow short positions")
	f.Float64Var(&p.maxWeight, "max-weight", 0, "Upper bound per asset")
	f.Float64Var(&p.minWeight, "min-weight", 0, "Lower bound per asset")
	f.Float64Var(&p.maxLeverage, "max-leverage", 0, "Cap on the sum of absolute weights")
	f.IntVar(&p.samples, "samples", 0, "Feasible portfolios to sample")
	f.Uint64Var(&p.seed, "seed", 0, "Random seed")
}

func (p *portfolioFlags) request(set map[string]bool) analytics.OptimizeRequest {
	req := analytics.OptimizeRequest{
		InputsRequest: analytics.InputsRequest{SeriesRequest: p.series.request(set)},
	}
	if set["rf"] {
		req.RiskFreeRate = &p.rf
	}
	if set["consolidate"] {
		req.ConsolidateCorrelated = &p.consolidate
	}
	if set["threshold"] {
		req.CorrelationThreshold = &p.threshold
	}
	if set["shrinkage"] {
		req.Shrinkage = &p.shrinkage
	}
	if set["short"] {
		req.AllowShort = &p.allowShort
	}
	if set["max-weight"] {
		req.MaxWeight = &p.maxWeight
	}
	if set["min-weight"] {
		req.MinWeight = &p.minWeight
	}
	if set["max-leverage"] {
		req.MaxLeverage = &p.maxLeverage
	}
	if set["samples"] {
		req.NumSamples = &p.samples
	}
	if set["seed"] {
		req.Seed = &p.seed
	}
	return req
}

type optimizeCmd struct {
	portfolio     portfolioFlags
	objective     string
	targetReturn  float64
	targetRisk    float64
	riskTolerance float64
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "solve for optimal portfolio weights" }
func (*optimizeCmd) Usage() string {
	return `frontier optimize [-t <tickers>] [-objective <name>] [-target-return <r>] [-short=false] [-json]

  Objectives: max_sharpe, min_variance, max_return, target_return,
  target_risk, risk_tolerance, hrp.
`
}

func (c *optimizeCmd) SetFlags(f *flag.FlagSet) {
	c.portfolio.register(f)
	f.StringVar(&c.objective, "objective", "", "Optimization objective")
	f.Float64Var(&c.targetReturn, "target-return", 0, "Annual return for target_return")
	f.Float64Var(&c.targetRisk, "target-risk", 0, "Annual volatility for target_risk")
	f.Float64Var(&c.riskTolerance, "risk-tolerance", 0, "Weight on expected return for risk_tolerance")
}

func (c *optimizeCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	set := visited(f)
	req := c.portfolio.request(set)
	if set["objective"] {
		req.OptimizationMethod = &c.objective
	}
	if set["target-return"] {
		req.TargetReturn = &c.targetReturn
	}
	if set["target-risk"] {
		req.TargetRisk = &c.targetRisk
	}
	if set["risk-tolerance"] {
		req.RiskTolerance = &c.riskTolerance
	}

	return run(ctx, func(ctx context.Context, a *app) error {
		resp, err := a.Analytics.Optimize(ctx, req)
		if err != nil {
			return err
		}
		if c.portfolio.series.json {
			return printJSON(resp)
		}
		printMarkdown(optimizeMarkdown(resp))
		return nil
	})
}
