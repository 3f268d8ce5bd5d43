package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/calculations"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// flightTimeout bounds one shared inputs estimation, which runs detached
// from the callers waiting on it
const flightTimeout = 2 * time.Minute

// builtInputs are estimated portfolio inputs plus the consolidation groups
// they were estimated over, if any.
type builtInputs struct {
	Inputs domain.PortfolioInputs      `msgpack:"inputs"`
	Groups []domain.ConsolidationGroup `msgpack:"groups"`
}

// inputsKey identifies one estimation: the resolved request plus the data
// version of every symbol it reads.
type inputsKey struct {
	Spec     inputsSpec      `msgpack:"spec"`
	Versions []symbolVersion `msgpack:"versions"`
}

type symbolVersion struct {
	Symbol  string `msgpack:"symbol"`
	Version int64  `msgpack:"version"`
}

// buildInputs estimates mu and sigma for spec. Concurrent identical requests
// share one estimation, and results are memoized in the cache when present.
func (s *Service) buildInputs(ctx context.Context, spec inputsSpec) (*builtInputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	versions, err := s.dataVersions(ctx, spec.Series.Tickers)
	if err != nil {
		return nil, err
	}
	key, err := calculations.Key(inputsKey{Spec: spec, Versions: versions})
	if err != nil {
		return nil, err
	}

	// A caller that gives up stops waiting without failing the others.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return s.cachedInputs(fctx, key, spec)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug().Str("key", key[:12]).Msg("Shared in-flight inputs estimation")
		}
		return res.Val.(*builtInputs), nil
	}
}

func (s *Service) cachedInputs(ctx context.Context, key string, spec inputsSpec) (*builtInputs, error) {
	if s.cache != nil {
		var cached builtInputs
		ok, err := s.cache.Get(ctx, cacheKindInputs, key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Msg("Cache read failed, recomputing inputs")
		} else if ok {
			s.log.Debug().Str("key", key[:12]).Msg("Portfolio inputs cache hit")
			return &cached, nil
		}
	}

	built, err := s.estimateInputs(ctx, spec)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if _, err := s.cache.Set(ctx, cacheKindInputs, key, built); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache portfolio inputs")
		}
	}
	return built, nil
}

// dataVersions returns the write counters of tickers, or of every versioned
// symbol when tickers is empty. Providers without versions yield nil, so
// their cached inputs only expire with the TTL.
func (s *Service) dataVersions(ctx context.Context, tickers []string) ([]symbolVersion, error) {
	dv, ok := s.provider.(DataVersioner)
	if !ok {
		return nil, nil
	}
	all, err := dv.DataVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		tickers = make([]string, 0, len(all))
		for symbol := range all {
			tickers = append(tickers, symbol)
		}
		sort.Strings(tickers)
	}
	out := make([]symbolVersion, len(tickers))
	for i, t := range tickers {
		out[i] = symbolVersion{Symbol: t, Version: all[t]}
	}
	return out, nil
}

func (s *Service) estimateInputs(ctx context.Context, spec inputsSpec) (*builtInputs, error) {
	series, err := s.returnSeries(ctx, spec.Series)
	if err != nil {
		return nil, err
	}

	var groups []domain.ConsolidationGroup
	if spec.Consolidate {
		result, err := s.consolidation.Consolidate(series, spec.Consolidation)
		if err != nil {
			return nil, err
		}
		series = result.Representative
		groups = result.Groups
		s.log.Info().
			Int("original_assets", result.Info.OriginalAssets).
			Int("consolidated_assets", result.Info.ConsolidatedAssets).
			Msg("Estimating inputs over consolidated assets")
	}

	inputs, err := s.inputs.Build(series, optimization.EstimationOptions{
		Annualize:      spec.Annualize,
		PeriodsPerYear: spec.Series.PeriodsPerYear,
		RiskFreeRate:   spec.RiskFreeRate,
		Shrinkage:      spec.Shrinkage,
	})
	if err != nil {
		return nil, err
	}
	return &builtInputs{Inputs: inputs, Groups: groups}, nil
}
