package optimization

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/pkg/formulas"
)

// FeasiblePoint is one random feasible portfolio of the cloud drawn around the frontier.
type FeasiblePoint struct {
	Risk    float64                 `json:"risk"`
	Return  float64                 `json:"return"`
	Sharpe  float64                 `json:"sharpe"`
	Weights domain.PortfolioWeights `json:"weights"`
}

// FrontierResult holds the frontier curve, the feasible cloud and the
// global minimum-variance anchor.
type FrontierResult struct {
	Points          []domain.EfficientFrontierPoint `json:"frontier"`
	FeasibleSet     []FeasiblePoint                 `json:"feasible_set"`
	GMVRisk         float64                         `json:"gmv_risk"`
	GMVReturn       float64                         `json:"gmv_return"`
	TargetReturnMin float64                         `json:"target_return_min"`
	TargetReturnMax float64                         `json:"target_return_max"`
	Coefficients    *FrontierCoefficients           `json:"coefficients,omitempty"`
}

// FrontierGenerator traces the constrained efficient frontier.
type FrontierGenerator struct {
	opt *Optimizer
	log zerolog.Logger
}

func NewFrontierGenerator(opt *Optimizer, log zerolog.Logger) *FrontierGenerator {
	return &FrontierGenerator{
		opt: opt,
		log: log.With().Str("component", "frontier").Logger(),
	}
}

// Generate solves min w'Sw at evenly spaced target returns and samples
// p.NumSamples feasible portfolios.
func (g *FrontierGenerator) Generate(ctx context.Context, inputs domain.PortfolioInputs, p Params) (*FrontierResult, error) {
	const op = "generate_frontier"
	p = p.With(WithObjective(ObjectiveMinVariance))
	pr, err := g.opt.prepare(inputs, p)
	if err != nil {
		return nil, err
	}
	if p.NumFrontierPoints < 2 {
		return nil, domain.ValidationError(op, "num_frontier_points", "need at least 2 frontier points, got %d", p.NumFrontierPoints)
	}

	lo, hi, err := targetRange(pr)
	if err != nil {
		return nil, err
	}

	gmv, err := pr.globalMinVariance(ctx)
	if err != nil {
		return nil, err
	}
	if !gmv.converged {
		g.log.Warn().Int("iterations", gmv.iterations).Msg("Minimum-variance solve did not converge")
	}
	gmvReturn := dot(pr.mu, gmv.w)

	res := &FrontierResult{
		Points:          make([]domain.EfficientFrontierPoint, 0, p.NumFrontierPoints),
		GMVRisk:         math.Sqrt(math.Max(gmv.value, 0)),
		GMVReturn:       gmvReturn,
		TargetReturnMin: lo,
		TargetReturnMax: hi,
	}
	if pr.inv != nil {
		coef := pr.inv.coef
		res.Coefficients = &coef
	}

	warm := gmv.w
	step := (hi - lo) / float64(p.NumFrontierPoints-1)
	for i := 0; i < p.NumFrontierPoints; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := lo + float64(i)*step
		if i == p.NumFrontierPoints-1 {
			target = hi
		}

		it, err := pr.minVarianceAt(ctx, target, warm)
		if err != nil {
			return nil, err
		}
		w := it.w
		info := SolveInfo{Solver: SolverIterative, Iterations: it.iterations, Converged: it.converged}
		switch {
		case it.closedForm:
			info = SolveInfo{Solver: SolverAnalytical, Analytical: true, Converged: true}
		case !it.converged && pr.expired():
			w, info, err = g.opt.monteCarlo(pr.atTarget(target), [][]float64{it.w},
				SolveInfo{Iterations: it.iterations, FallbackReason: pr.fallbackReason(it.iterations)})
			if err != nil {
				return nil, err
			}
		case !it.converged:
			g.log.Warn().Float64("target_return", target).Int("iterations", it.iterations).Msg("Frontier point did not converge")
		}
		r, err := g.opt.finalize(pr, w, info)
		if err != nil {
			return nil, err
		}
		res.Points = append(res.Points, domain.EfficientFrontierPoint{
			TargetReturn: target,
			Risk:         r.Risk,
			Return:       r.Return,
			Sharpe:       r.Sharpe,
			Efficient:    r.Return >= gmvReturn-1e-9,
			Solver:       info.Solver,
			Weights:      r.Weights,
		})
		warm = w
	}

	res.FeasibleSet = sampleCloud(pr)
	g.log.Debug().
		Int("points", len(res.Points)).
		Int("samples", len(res.FeasibleSet)).
		Float64("gmv_risk", res.GMVRisk).
		Msg("Frontier generated")
	return res, nil
}

// atTarget is pr restated as a target-return problem, for ranking fallback
// candidates of one frontier point.
func (pr *problem) atTarget(r float64) *problem {
	cp := *pr
	cp.p = pr.p.With(WithObjective(ObjectiveTargetReturn), WithTargetReturn(r))
	return &cp
}

// targetRange resolves the frontier's return span inside the attainable range.
func targetRange(pr *problem) (float64, float64, error) {
	const op = "generate_frontier"
	rmin, rmax := pr.cs.returnRange(pr.mu)
	slack := 1e-12 * math.Max(1, math.Abs(rmax-rmin))

	lo, hi := pr.mu[0], pr.mu[0]
	for _, m := range pr.mu {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	lo, hi = math.Max(lo, rmin), math.Min(hi, rmax)

	if pr.p.TargetReturnMin != nil {
		lo = *pr.p.TargetReturnMin
		if badFloat(lo) || lo < rmin-slack {
			return 0, 0, domain.ValidationError(op, "target_return_min", "target_return_min %g is below the attainable minimum %g", lo, rmin)
		}
		lo = math.Max(lo, rmin)
	}
	if pr.p.TargetReturnMax != nil {
		hi = *pr.p.TargetReturnMax
		if badFloat(hi) || hi > rmax+slack {
			return 0, 0, domain.ValidationError(op, "target_return_max", "target_return_max %g is above the attainable maximum %g", hi, rmax)
		}
		hi = math.Min(hi, rmax)
	}
	if !(hi-lo > slack) {
		return 0, 0, domain.ValidationError(op, "target_return_range", "empty target return range [%g, %g]", lo, hi)
	}
	return lo, hi, nil
}

func sampleCloud(pr *problem) []FeasiblePoint {
	s := newSampler(pr.cs, pr.p.Seed)
	cloud := make([]FeasiblePoint, 0, pr.p.NumSamples)
	for i := 0; i < pr.p.NumSamples; i++ {
		w := s.draw()
		risk := math.Sqrt(math.Max(quadForm(pr.sigma, w), 0))
		ret := dot(pr.mu, w)
		sharpe, _ := formulas.SharpeRatio(ret, risk, pr.rf)
		cloud = append(cloud, FeasiblePoint{
			Risk:    risk,
			Return:  ret,
			Sharpe:  sharpe,
			Weights: domain.NewPortfolioWeights(pr.symbols, w),
		})
	}
	return cloud
}
