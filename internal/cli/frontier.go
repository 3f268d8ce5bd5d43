package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/aristath/frontier/internal/modules/analytics"
	"github.com/aristath/frontier/internal/modules/charts"
)

type frontierCmd struct {
	portfolio portfolioFlags
	points    int
	minReturn float64
	maxReturn float64
	png       string
	width     int
	height    int
}

func (*frontierCmd) Name() string { return "frontier" }
func (*frontierCmd) Synopsis() string {
	return "trace the efficient frontier and the special portfolios"
}
func (*frontierCmd) Usage() string {
	return `frontier frontier [-t <tickers>] [-points <n>] [-png <file>] [-json]

  Traces the minimum-variance frontier, samples the feasible set and solves
  the tangency and minimum-variance portfolios. -png also draws the chart.
`
}

func (c *frontierCmd) SetFlags(f *flag.FlagSet) {
	c.portfolio.register(f)
	f.IntVar(&c.points, "points", 0, "Number of frontier points")
	f.Float64Var(&c.minReturn, "min-return", 0, "Lowest target return (with -max-return)")
	f.Float64Var(&c.maxReturn, "max-return", 0, "Highest target return (with -min-return)")
	f.StringVar(&c.png, "png", "", "Write the frontier chart to this PNG file")
	f.IntVar(&c.width, "width", 0, "Chart width in pixels")
	f.IntVar(&c.height, "height", 0, "Chart height in pixels")
}

func (c *frontierCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	set := visited(f)
	req := analytics.FrontierRequest{OptimizeRequest: c.portfolio.request(set)}
	if set["points"] {
		req.NumFrontierPoints = &c.points
	}
	if set["min-return"] {
		req.TargetReturnMin = &c.minReturn
	}
	if set["max-return"] {
		req.TargetReturnMax = &c.maxReturn
	}

	return run(ctx, func(ctx context.Context, a *app) error {
		resp, err := a.Analytics.GenerateFrontier(ctx, req)
		if err != nil {
			return err
		}

		if c.png != "" {
			img, err := a.Renderer.RenderFrontier(charts.FrontierChart{
				Frontier:        resp.Points,
				Cloud:           resp.FeasibleSet,
				Tangency:        &resp.Special.Tangency,
				MinimumVariance: &resp.Special.MinimumVariance,
				RiskFreeRate:    resp.RiskFreeRate,
				Width:           c.width,
				Height:          c.height,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(c.png, img, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", c.png, err)
			}
			fmt.Fprintf(os.Stderr, "Chart written to %s\n", c.png)
		}

		if c.portfolio.series.json {
			return printJSON(resp)
		}
		printMarkdown(frontierMarkdown(resp))
		return nil
	})
}
