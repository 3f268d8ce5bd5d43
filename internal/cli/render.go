package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/analytics"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/utils"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func symbolsMarkdown(symbols []history.SymbolSummary) string {
	var b strings.Builder
	b.WriteString("# Stored symbols\n\n")
	if len(symbols) == 0 {
		b.WriteString("No price history stored. Use `frontier import` first.\n")
		return b.String()
	}
	b.WriteString("| Symbol | Prices | First | Last |\n|---|---:|---|---|\n")
	for _, s := range symbols {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", s.Symbol, s.Count, s.First.Format(utils.DateLayout), s.Last.Format(utils.DateLayout))
	}
	return b.String()
}

func summaryMarkdown(resp *analytics.SummaryResponse) string {
	var b strings.Builder
	period := "annualized"
	if !resp.Annualized {
		period = "per period"
	}
	fmt.Fprintf(&b, "# Summary (%s, r_f %s)\n\n", period, pct(resp.RiskFreeRate))
	b.WriteString("| Ticker | Mean return | Volatility | Sharpe | Max drawdown | Total return | Obs |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for _, r := range resp.Summary {
		fmt.Fprintf(&b, "| %s | %s | %s | %.3f | %s | %s | %d |\n",
			r.Symbol, pct(r.MeanReturn), pct(r.Volatility), r.SharpeRatio, pct(r.MaxDrawdown), pct(r.TotalReturn), r.Observations)
	}
	return b.String()
}

func weightsTable(b *strings.Builder, weights domain.PortfolioWeights) {
	b.WriteString("| Asset | Weight |\n|---|---:|\n")
	for _, w := range weights {
		fmt.Fprintf(b, "| %s | %s |\n", w.Symbol, pct(w.Weight))
	}
}

func groupsList(b *strings.Builder, groups []domain.ConsolidationGroup) {
	var merged []domain.ConsolidationGroup
	for _, g := range groups {
		if len(g.Members) > 1 {
			merged = append(merged, g)
		}
	}
	if len(merged) == 0 {
		return
	}
	b.WriteString("\n## Consolidated groups\n\n")
	for _, g := range merged {
		fmt.Fprintf(b, "- **%s**: %s (%s)\n", g.Representative, strings.Join(g.Members, ", "), g.Method)
	}
}

func optimizeMarkdown(resp *analytics.OptimizeResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio (%s)\n\n", resp.Objective)
	fmt.Fprintf(&b, "Return %s, risk %s, Sharpe %.3f. Solved by %s", pct(resp.Return), pct(resp.Risk), resp.Sharpe, resp.Solver.Solver)
	if resp.Solver.Iterations > 0 {
		fmt.Fprintf(&b, " in %d iterations", resp.Solver.Iterations)
	}
	b.WriteString(".\n\n")
	weightsTable(&b, resp.Weights)
	groupsList(&b, resp.Groups)
	return b.String()
}

func frontierMarkdown(resp *analytics.FrontierResponse) string {
	var b strings.Builder
	b.WriteString("# Efficient frontier\n\n")
	fmt.Fprintf(&b, "Minimum variance at risk %s, return %s. %d feasible portfolios sampled.\n\n",
		pct(resp.GMVRisk), pct(resp.GMVReturn), len(resp.FeasibleSet))

	b.WriteString("| Target | Return | Risk | Sharpe | Efficient |\n|---:|---:|---:|---:|:---:|\n")
	for _, p := range resp.Points {
		mark := ""
		if p.Efficient {
			mark = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.3f | %s |\n", pct(p.TargetReturn), pct(p.Return), pct(p.Risk), p.Sharpe, mark)
	}

	for _, sp := range []domain.SpecialPortfolio{resp.Special.Tangency, resp.Special.MinimumVariance} {
		fmt.Fprintf(&b, "\n## %s\n\nReturn %s, risk %s, Sharpe %.3f.\n\n", strings.ReplaceAll(string(sp.Kind), "_", " "), pct(sp.Return), pct(sp.Risk), sp.Sharpe)
		weightsTable(&b, sp.Weights)
	}
	groupsList(&b, resp.Groups)
	return b.String()
}
