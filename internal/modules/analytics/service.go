// Package analytics orchestrates the engines: it loads price history, derives
// returns and portfolio inputs, runs the requested analysis and assembles the
// wire response.
package analytics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/calculations"
	"github.com/aristath/frontier/internal/modules/correlation"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/modules/statistics"
	"github.com/aristath/frontier/internal/utils"
)

// cacheKindInputs is the cache namespace of estimated portfolio inputs
const cacheKindInputs = "portfolio_inputs"

// SymbolLister is implemented by providers that can enumerate stored symbols.
// Requests without tickers fall back to it.
type SymbolLister interface {
	ListSymbols(ctx context.Context) ([]history.SymbolSummary, error)
}

// DataVersioner is implemented by providers that count writes per symbol.
// The counts are part of the inputs cache key, so new prices are picked up
// immediately.
type DataVersioner interface {
	DataVersions(ctx context.Context) (map[string]int64, error)
}

var (
	_ SymbolLister  = (*history.HistoryDB)(nil)
	_ DataVersioner = (*history.HistoryDB)(nil)
)

// Service runs analytics requests end to end
type Service struct {
	provider      domain.PriceHistoryProvider
	calculator    *returns.Calculator
	stats         *statistics.Engine
	corr          *correlation.Engine
	consolidation *correlation.ConsolidationEngine
	inputs        *optimization.InputsBuilder
	optimizer     *optimization.Optimizer
	frontier      *optimization.FrontierGenerator
	special       *optimization.SpecialPortfolioSolver
	assembler     *ResultAssembler

	cache    *calculations.Cache // optional
	group    singleflight.Group
	defaults config.AnalyticsDefaults
	maxLoads int
	log      zerolog.Logger
}

// Options configures a Service
type Options struct {
	Defaults           config.AnalyticsDefaults
	MaxConcurrentLoads int
	Cache              *calculations.Cache // nil disables memoization
}

// NewService wires the engines around a price-history provider
func NewService(provider domain.PriceHistoryProvider, opts Options, log zerolog.Logger) *Service {
	corr := correlation.NewEngine(log)
	opt := optimization.NewOptimizer(log)
	maxLoads := opts.MaxConcurrentLoads
	if maxLoads < 1 {
		maxLoads = 1
	}
	return &Service{
		provider:      provider,
		calculator:    returns.NewCalculator(log),
		stats:         statistics.NewEngine(log),
		corr:          corr,
		consolidation: correlation.NewConsolidationEngine(corr, log),
		inputs:        optimization.NewInputsBuilder(corr, log),
		optimizer:     opt,
		frontier:      optimization.NewFrontierGenerator(opt, log),
		special:       optimization.NewSpecialPortfolioSolver(opt),
		assembler:     NewResultAssembler(),
		cache:         opts.Cache,
		defaults:      opts.Defaults,
		maxLoads:      maxLoads,
		log:           log.With().Str("service", "analytics").Logger(),
	}
}

// Defaults returns the analytics defaults the service resolves requests against
func (s *Service) Defaults() config.AnalyticsDefaults {
	return s.defaults
}

// ComputeReturns returns the aligned return series of the requested tickers.
func (s *Service) ComputeReturns(ctx context.Context, req SeriesRequest) (*ReturnsResponse, error) {
	spec, err := req.resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	series, err := s.returnSeries(ctx, spec)
	if err != nil {
		return nil, err
	}
	return s.assembler.Returns(series), nil
}

// ComputeStatistics returns one summary row per ticker, best Sharpe first.
func (s *Service) ComputeStatistics(ctx context.Context, req SummaryRequest) (*SummaryResponse, error) {
	spec, err := req.SeriesRequest.resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	series, err := s.returnSeries(ctx, spec)
	if err != nil {
		return nil, err
	}
	opts := statistics.Options{
		RiskFreeRate:   floatOr(req.RiskFreeRate, s.defaults.RiskFreeRate),
		PeriodsPerYear: spec.PeriodsPerYear,
		Annualize:      boolOr(req.Annualize, s.defaults.Annualize),
	}
	rows, err := s.stats.Summary(series, opts)
	if err != nil {
		return nil, err
	}
	return s.assembler.Summary(rows, opts), nil
}

// ComputeCorrelation returns the Pearson correlation matrix of the tickers.
func (s *Service) ComputeCorrelation(ctx context.Context, req CorrelationRequest) (*CorrelationResponse, error) {
	spec, err := req.resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	series, err := s.returnSeries(ctx, spec)
	if err != nil {
		return nil, err
	}
	m, err := s.corr.Correlation(series)
	if err != nil {
		return nil, err
	}
	return s.assembler.Correlation(m), nil
}

// Consolidate groups highly correlated tickers and returns both matrices.
func (s *Service) Consolidate(ctx context.Context, req ConsolidationRequest) (*ConsolidationResponse, error) {
	spec, err := req.SeriesRequest.resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	opts, err := req.ConsolidationParams.resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	series, err := s.returnSeries(ctx, spec)
	if err != nil {
		return nil, err
	}
	result, err := s.consolidation.Consolidate(series, opts)
	if err != nil {
		return nil, err
	}
	return s.assembler.Consolidation(result), nil
}

// PortfolioInputs returns the estimated expected returns and covariance.
func (s *Service) PortfolioInputs(ctx context.Context, req InputsRequest) (*InputsResponse, error) {
	spec, err := req.resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	built, err := s.buildInputs(ctx, spec)
	if err != nil {
		return nil, err
	}
	return s.assembler.Inputs(built), nil
}

// Optimize solves for the weights of the requested objective.
func (s *Service) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	defer utils.OperationTimer("optimize", s.log)()

	p, err := req.params(s.defaults)
	if err != nil {
		return nil, err
	}
	built, err := s.inputsFor(ctx, req.InputsRequest)
	if err != nil {
		return nil, err
	}
	result, err := s.optimizer.Optimize(ctx, built.Inputs, p)
	if err != nil {
		return nil, err
	}
	return s.assembler.Optimize(result, built), nil
}

// GenerateFrontier traces the efficient frontier, samples the feasible set
// and solves the two special portfolios under the same constraints.
func (s *Service) GenerateFrontier(ctx context.Context, req FrontierRequest) (*FrontierResponse, error) {
	defer utils.OperationTimer("generate_frontier", s.log)()

	p, err := req.params(s.defaults)
	if err != nil {
		return nil, err
	}
	built, err := s.inputsFor(ctx, req.InputsRequest)
	if err != nil {
		return nil, err
	}
	frontier, err := s.frontier.Generate(ctx, built.Inputs, p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	special, err := s.special.Solve(ctx, built.Inputs, p)
	if err != nil {
		return nil, err
	}
	return s.assembler.Frontier(frontier, special, built), nil
}

// SolveSpecialPortfolios returns the tangency and minimum-variance portfolios.
func (s *Service) SolveSpecialPortfolios(ctx context.Context, req OptimizeRequest) (*SpecialResponse, error) {
	p, err := req.params(s.defaults)
	if err != nil {
		return nil, err
	}
	built, err := s.inputsFor(ctx, req.InputsRequest)
	if err != nil {
		return nil, err
	}
	special, err := s.special.Solve(ctx, built.Inputs, p)
	if err != nil {
		return nil, err
	}
	return s.assembler.Special(special, built), nil
}

func (s *Service) inputsFor(ctx context.Context, req InputsRequest) (*builtInputs, error) {
	spec, err := req.resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	return s.buildInputs(ctx, spec)
}

// returnSeries loads, aligns and converts prices for spec.
func (s *Service) returnSeries(ctx context.Context, spec seriesSpec) ([]domain.ReturnSeries, error) {
	prices, err := s.loadPrices(ctx, spec)
	if err != nil {
		return nil, err
	}
	aligned, err := returns.AlignPrices(prices)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.calculator.ComputeAll(aligned, spec.Method, spec.PeriodsPerYear)
}

// loadPrices fetches every ticker concurrently, at most maxLoads at a time.
// The result keeps request order.
func (s *Service) loadPrices(ctx context.Context, spec seriesSpec) ([]domain.AssetSeries, error) {
	tickers := spec.Tickers
	if len(tickers) == 0 {
		var err error
		if tickers, err = s.storedSymbols(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]domain.AssetSeries, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxLoads)
	for i, symbol := range tickers {
		g.Go(func() error {
			prices, err := s.provider.GetDailyPrices(gctx, symbol, spec.Start, spec.End)
			if err != nil {
				return fmt.Errorf("failed to load prices for %s: %w", symbol, err)
			}
			if len(prices) == 0 {
				return domain.DataError("load_prices", "no price history for %s in the requested range", symbol)
			}
			out[i] = domain.AssetSeries{Symbol: symbol, Prices: prices}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Debug().Int("symbols", len(out)).Msg("Loaded price series")
	return out, nil
}

func (s *Service) storedSymbols(ctx context.Context) ([]string, error) {
	lister, ok := s.provider.(SymbolLister)
	if !ok {
		return nil, domain.ValidationError("load_prices", "tickers", "tickers are required")
	}
	summaries, err := lister.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, domain.DataError("load_prices", "no price history stored")
	}
	out := make([]string, len(summaries))
	for i, sm := range summaries {
		out[i] = sm.Symbol
	}
	return out, nil
}
