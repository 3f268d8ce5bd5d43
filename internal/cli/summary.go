package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/aristath/frontier/internal/modules/analytics"
)

// seriesFlags are shared by every command that loads return series
type seriesFlags struct {
	tickers tickersFlag
	start   string
	end     string
	method  string
	ppy     int
	json    bool
}

func (s *seriesFlags) register(f *flag.FlagSet) {
	f.Var(&s.tickers, "t", "Ticker, repeatable or comma separated (default: every stored symbol)")
	f.StringVar(&s.start, "start", "", "First date, YYYY-MM-DD")
	f.StringVar(&s.end, "end", "", "Last date, YYYY-MM-DD")
	f.StringVar(&s.method, "method", "", "Return method (simple, log)")
	f.IntVar(&s.ppy, "ppy", 0, "Periods per year")
	f.BoolVar(&s.json, "json", false, "Print JSON instead of a report")
}

func (s *seriesFlags) request(set map[string]bool) analytics.SeriesRequest {
	req := analytics.SeriesRequest{
		Tickers:   s.tickers,
		StartDate: s.start,
		EndDate:   s.end,
	}
	if set["method"] {
		req.Method = &s.method
	}
	if set["ppy"] {
		req.PeriodsPerYear = &s.ppy
	}
	return req
}

type summaryCmd struct {
	series    seriesFlags
	rf        float64
	annualize bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "per-asset return, volatility, Sharpe and drawdown" }
func (*summaryCmd) Usage() string {
	return `frontier summary [-t <tickers>] [-start <date>] [-end <date>] [-rf <rate>] [-json]

  Prints summary statistics for each ticker, best Sharpe ratio first.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.series.register(f)
	f.Float64Var(&c.rf, "rf", 0, "Annual risk-free rate")
	f.BoolVar(&c.annualize, "annualize", true, "Report annualized figures")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	set := visited(f)
	req := analytics.SummaryRequest{SeriesRequest: c.series.request(set)}
	if set["rf"] {
		req.RiskFreeRate = &c.rf
	}
	if set["annualize"] {
		req.Annualize = &c.annualize
	}

	return run(ctx, func(ctx context.Context, a *app) error {
		resp, err := a.Analytics.ComputeStatistics(ctx, req)
		if err != nil {
			return err
		}
		if c.series.json {
			return printJSON(resp)
		}
		printMarkdown(summaryMarkdown(resp))
		return nil
	})
}
