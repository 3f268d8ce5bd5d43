package optimization

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/pkg/formulas"
)

// Solver names reported in SolveInfo
const (
	SolverAnalytical = "analytical"
	SolverIterative  = "projected_gradient"
	SolverMonteCarlo = "monte_carlo"
	SolverHRP        = "hrp"
)

// SolveInfo describes how a weight vector was produced.
type SolveInfo struct {
	Solver         string `json:"solver"`
	Analytical     bool   `json:"analytical"`
	Iterations     int    `json:"iterations"`
	Converged      bool   `json:"converged"`
	Regularized    bool   `json:"regularized,omitempty"`
	Samples        int    `json:"samples,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Result is a validated optimizer output.
type Result struct {
	Objective Objective               `json:"objective"`
	Weights   domain.PortfolioWeights `json:"weights"`
	Risk      float64                 `json:"risk"`
	Return    float64                 `json:"return"`
	Sharpe    float64                 `json:"sharpe"`
	Info      SolveInfo               `json:"info"`
}

// Optimizer solves mean-variance problems in three stages: closed form when
// the constraints allow it, projected gradient otherwise, and a seeded Monte
// Carlo search when the covariance is singular or the solver runs out of budget.
type Optimizer struct {
	log zerolog.Logger
	hrp *HRPOptimizer
}

// NewOptimizer creates an optimizer; HRP requests use single linkage.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{
		log: log.With().Str("component", "optimizer").Logger(),
		hrp: NewHRPOptimizer(LinkageSingle),
	}
}

// problem is one validated optimization instance.
type problem struct {
	n        int
	symbols  []string
	mu       []float64
	sigma    *mat.SymDense
	rf       float64
	cs       constraintSet
	inv      *inverse // nil when sigma is singular
	lmax     float64
	singular bool
	p        Params
	deadline time.Time // zero when p.TimeBudget is unset
}

// Optimize validates inputs and params, then solves for p.Objective.
func (o *Optimizer) Optimize(ctx context.Context, inputs domain.PortfolioInputs, p Params) (*Result, error) {
	pr, err := o.prepare(inputs, p)
	if err != nil {
		return nil, err
	}
	if err := pr.checkTargets(); err != nil {
		return nil, err
	}

	w, info, err := o.solve(ctx, pr)
	if err != nil {
		return nil, err
	}
	return o.finalize(pr, w, info)
}

func (o *Optimizer) prepare(inputs domain.PortfolioInputs, p Params) (*problem, error) {
	if err := inputs.Validate(); err != nil {
		return nil, err
	}
	n := len(inputs.Symbols)
	if err := p.validate(n); err != nil {
		return nil, err
	}

	sigma := inputs.Covariance.Sym()
	lmin, lmax, ok := eigenRange(sigma)
	if !ok {
		return nil, domain.DataError("optimize", "eigen decomposition of the covariance matrix failed")
	}
	if lmin < -psdTolerance*math.Max(math.Abs(lmax), 1) {
		return nil, domain.DataError("optimize", "covariance matrix is not positive semi-definite (smallest eigenvalue %g)", lmin)
	}

	pr := &problem{
		n:       n,
		symbols: inputs.Symbols,
		mu:      inputs.ExpectedReturns,
		sigma:   sigma,
		rf:      inputs.RiskFreeRate,
		cs:      newConstraintSet(n, p),
		lmax:    math.Max(lmax, nearZeroValue),
		p:       p,
	}
	if p.TimeBudget > 0 {
		pr.deadline = time.Now().Add(p.TimeBudget)
	}
	pr.singular = lmin <= nearZeroValue*pr.lmax
	if !pr.singular {
		pr.inv = invert(sigma, pr.mu)
		pr.singular = pr.inv == nil
	}
	if pr.inv != nil && pr.inv.regularized {
		o.log.Warn().Int("assets", n).Msg("Covariance matrix is ill-conditioned, using ridge regularization")
	}
	return pr, nil
}

// checkTargets rejects target returns outside the attainable range before
// any solving starts.
func (pr *problem) checkTargets() error {
	if pr.p.Objective != ObjectiveTargetReturn {
		return nil
	}
	t := *pr.p.TargetReturn
	rmin, rmax := pr.cs.returnRange(pr.mu)
	slack := 1e-12 * math.Max(1, math.Abs(rmax-rmin))
	if t < rmin-slack || t > rmax+slack {
		return domain.ValidationError("optimize", "target_return",
			"target return %g is outside the attainable range [%g, %g]", t, rmin, rmax)
	}
	return nil
}

func (o *Optimizer) solve(ctx context.Context, pr *problem) ([]float64, SolveInfo, error) {
	if pr.p.Objective == ObjectiveHRP {
		return o.solveHRP(pr)
	}

	w, ok, err := pr.analytical()
	if err != nil {
		return nil, SolveInfo{}, err
	}
	if ok {
		return w, SolveInfo{
			Solver:      SolverAnalytical,
			Analytical:  true,
			Converged:   true,
			Regularized: pr.regularized(),
		}, nil
	}

	if pr.singular {
		o.log.Warn().Str("objective", string(pr.p.Objective)).Msg("Covariance matrix is singular, falling back to Monte Carlo search")
		return o.monteCarlo(pr, nil, SolveInfo{FallbackReason: "covariance matrix is singular"})
	}

	it, err := pr.iterative(ctx)
	if err != nil {
		return nil, SolveInfo{}, err
	}
	info := SolveInfo{
		Solver:      SolverIterative,
		Iterations:  it.iterations,
		Converged:   it.converged,
		Regularized: pr.regularized(),
	}
	if it.converged && pr.cs.feasible(it.w) {
		return it.w, info, nil
	}

	info.FallbackReason = pr.fallbackReason(it.iterations)
	o.log.Warn().
		Str("objective", string(pr.p.Objective)).
		Int("iterations", it.iterations).
		Str("reason", info.FallbackReason).
		Msg("Iterative solver gave up, falling back to Monte Carlo search")
	return o.monteCarlo(pr, [][]float64{it.w}, info)
}

func (pr *problem) fallbackReason(iterations int) string {
	if pr.expired() {
		return fmt.Sprintf("time budget of %s exhausted after %d iterations", pr.p.TimeBudget, iterations)
	}
	return fmt.Sprintf("iterative solver did not converge within %d iterations", iterations)
}

func (o *Optimizer) solveHRP(pr *problem) ([]float64, SolveInfo, error) {
	rows := make([][]float64, pr.n)
	for i := range rows {
		rows[i] = make([]float64, pr.n)
		for j := range rows[i] {
			rows[i][j] = pr.sigma.At(i, j)
		}
	}
	w, err := o.hrp.Allocate(rows)
	if err != nil {
		return nil, SolveInfo{}, domain.OptimizationError("optimize", err)
	}
	if !pr.cs.feasible(w) {
		w = pr.cs.project(w)
	}
	return w, SolveInfo{Solver: SolverHRP, Converged: true}, nil
}

// analytical returns the closed-form solution when one exists and satisfies
// the constraints. A target risk below the frontier minimum is an error.
func (pr *problem) analytical() ([]float64, bool, error) {
	if pr.p.Objective == ObjectiveMaxReturn {
		return pr.cs.extremeReturn(pr.mu, true), true, nil
	}
	if pr.inv == nil {
		return nil, false, nil
	}

	inv := pr.inv
	fc := inv.coef
	var w []float64
	switch pr.p.Objective {
	case ObjectiveMinVariance:
		w = scaled(inv.invOnes, 1/fc.A)
	case ObjectiveMaxSharpe:
		z := make([]float64, pr.n)
		for i := range z {
			z[i] = inv.invMu[i] - pr.rf*inv.invOnes[i]
		}
		s := sum(z)
		if s <= nearZeroValue {
			return nil, false, nil
		}
		w = scaled(z, 1/s)
	case ObjectiveTargetReturn:
		if inv.frontierDegenerate() {
			return nil, false, nil
		}
		w = pr.frontierWeights(*pr.p.TargetReturn)
	case ObjectiveTargetRisk:
		target := *pr.p.TargetRisk
		if target*target < (1/fc.A)*(1-1e-12) {
			return nil, false, domain.ValidationError("optimize", "target_risk",
				"target risk %g is below the minimum achievable risk %g", target, math.Sqrt(1/fc.A))
		}
		if inv.frontierDegenerate() {
			return nil, false, nil
		}
		r := fc.B/fc.A + math.Sqrt(math.Max(target*target-1/fc.A, 0)*fc.D/fc.A)
		w = pr.frontierWeights(r)
	case ObjectiveRiskTolerance:
		tau := pr.p.RiskTolerance
		w = make([]float64, pr.n)
		for i := range w {
			w[i] = inv.invOnes[i]/fc.A + tau*(inv.invMu[i]-fc.B/fc.A*inv.invOnes[i])
		}
	default:
		return nil, false, nil
	}
	return w, pr.cs.feasible(w), nil
}

// frontierWeights is the budget-only minimum-variance portfolio with return r.
func (pr *problem) frontierWeights(r float64) []float64 {
	fc := pr.inv.coef
	lambda := (fc.C - fc.B*r) / fc.D
	gamma := (fc.A*r - fc.B) / fc.D
	w := make([]float64, pr.n)
	for i := range w {
		w[i] = lambda*pr.inv.invOnes[i] + gamma*pr.inv.invMu[i]
	}
	return w
}

func (pr *problem) regularized() bool {
	return pr.inv != nil && pr.inv.regularized
}

// minVariance is a lower bound on achievable portfolio variance.
func (pr *problem) minVariance() float64 {
	if pr.inv != nil {
		return 1 / pr.inv.coef.A
	}
	return 0
}

func (pr *problem) equalWeights() []float64 {
	w := make([]float64, pr.n)
	for i := range w {
		w[i] = 1 / float64(pr.n)
	}
	return w
}

func (pr *problem) iterative(ctx context.Context) (iterate, error) {
	switch pr.p.Objective {
	case ObjectiveMinVariance:
		return pr.descend(ctx, pr.varianceObjective(), pr.cs.project, pr.equalWeights())
	case ObjectiveRiskTolerance:
		return pr.descend(ctx, pr.toleranceObjective(pr.p.RiskTolerance), pr.cs.project, pr.equalWeights())
	case ObjectiveTargetReturn:
		return pr.minVarianceAt(ctx, *pr.p.TargetReturn, pr.equalWeights())
	case ObjectiveTargetRisk:
		return pr.maxReturnAtRisk(ctx, *pr.p.TargetRisk)
	case ObjectiveMaxSharpe:
		return pr.maxSharpe(ctx)
	default:
		return iterate{}, fmt.Errorf("objective %q has no iterative form", pr.p.Objective)
	}
}

// minVarianceAt minimizes variance on the constrained set with mu'w = r.
// The budget-only closed form is used when it is feasible.
func (pr *problem) minVarianceAt(ctx context.Context, r float64, warm []float64) (iterate, error) {
	if pr.inv != nil && !pr.inv.frontierDegenerate() {
		if w := pr.frontierWeights(r); pr.cs.feasible(w) {
			return iterate{w: w, value: quadForm(pr.sigma, w), converged: true, closedForm: true}, nil
		}
	}
	project := func(v []float64) []float64 { return pr.cs.projectWithReturn(v, pr.mu, r) }
	return pr.descend(ctx, pr.varianceObjective(), project, warm)
}

// maxReturnAtRisk finds the highest-return frontier portfolio whose risk does
// not exceed target, by bisection on the target return.
func (pr *problem) maxReturnAtRisk(ctx context.Context, target float64) (iterate, error) {
	gmv, err := pr.globalMinVariance(ctx)
	if err != nil || !gmv.converged {
		return gmv, err
	}
	gmvRisk := math.Sqrt(math.Max(gmv.value, 0))
	if target < gmvRisk*(1-1e-9) {
		return iterate{}, domain.ValidationError("optimize", "target_risk",
			"target risk %g is below the minimum achievable risk %g", target, gmvRisk)
	}

	top := pr.cs.extremeReturn(pr.mu, true)
	if math.Sqrt(quadForm(pr.sigma, top)) <= target {
		return iterate{w: top, value: quadForm(pr.sigma, top), iterations: gmv.iterations, converged: true}, nil
	}

	lo, hi := dot(pr.mu, gmv.w), dot(pr.mu, top)
	best := gmv
	total := gmv.iterations
	converged := true
	for k := 0; k < bisectionRounds && hi-lo > pr.p.Tolerance*(1+math.Abs(hi)); k++ {
		if pr.expired() {
			converged = false
			break
		}
		mid := 0.5 * (lo + hi)
		it, err := pr.minVarianceAt(ctx, mid, best.w)
		if err != nil {
			return it, err
		}
		total += it.iterations
		converged = converged && it.converged
		if math.Sqrt(math.Max(it.value, 0)) <= target {
			lo, best = mid, it
		} else {
			hi = mid
		}
	}
	best.iterations = total
	best.converged = converged
	return best, nil
}

func (pr *problem) globalMinVariance(ctx context.Context) (iterate, error) {
	if pr.inv != nil {
		if w := scaled(pr.inv.invOnes, 1/pr.inv.coef.A); pr.cs.feasible(w) {
			return iterate{w: w, value: quadForm(pr.sigma, w), converged: true, closedForm: true}, nil
		}
	}
	return pr.descend(ctx, pr.varianceObjective(), pr.cs.project, pr.equalWeights())
}

// maxSharpe starts from whichever of equal weights and the max-return vertex
// has the higher Sharpe ratio.
func (pr *problem) maxSharpe(ctx context.Context) (iterate, error) {
	obj := pr.sharpeObjective()
	start := pr.equalWeights()
	if top := pr.cs.extremeReturn(pr.mu, true); obj.value(top) < obj.value(start) {
		start = top
	}
	return pr.descend(ctx, obj, pr.cs.project, start)
}

// score ranks a candidate; the tier is compared first.
type score struct {
	tier  int
	value float64
}

func (s score) better(o score) bool {
	if s.tier != o.tier {
		return s.tier > o.tier
	}
	return s.value > o.value
}

func (pr *problem) scorer() func(w []float64) score {
	rmin, rmax := pr.cs.returnRange(pr.mu)
	band := math.Max(1e-4, 0.01*(rmax-rmin))
	return func(w []float64) score {
		variance := math.Max(quadForm(pr.sigma, w), 0)
		ret := dot(pr.mu, w)
		switch pr.p.Objective {
		case ObjectiveMinVariance:
			return score{value: -variance}
		case ObjectiveMaxReturn:
			return score{value: ret}
		case ObjectiveRiskTolerance:
			return score{value: pr.p.RiskTolerance*ret - 0.5*variance}
		case ObjectiveTargetReturn:
			gap := math.Abs(ret - *pr.p.TargetReturn)
			if gap <= band {
				return score{tier: 1, value: -variance}
			}
			return score{value: -gap}
		case ObjectiveTargetRisk:
			vol := math.Sqrt(variance)
			if vol <= *pr.p.TargetRisk {
				return score{tier: 1, value: ret}
			}
			return score{value: -vol}
		default:
			s, _ := formulas.SharpeRatio(ret, math.Sqrt(variance), pr.rf)
			return score{value: s}
		}
	}
}

// monteCarlo evaluates NumSamples seeded feasible draws plus any feasible
// candidates and keeps the best under the objective's ranking.
func (o *Optimizer) monteCarlo(pr *problem, candidates [][]float64, info SolveInfo) ([]float64, SolveInfo, error) {
	rank := pr.scorer()
	var best []float64
	var bestScore score
	consider := func(w []float64) {
		if w == nil || !pr.cs.feasible(w) {
			return
		}
		if s := rank(w); best == nil || s.better(bestScore) {
			best, bestScore = w, s
		}
	}

	for _, c := range candidates {
		consider(c)
	}
	s := newSampler(pr.cs, pr.p.Seed)
	for i := 0; i < pr.p.NumSamples; i++ {
		consider(s.draw())
	}

	info.Solver = SolverMonteCarlo
	info.Analytical = false
	info.Converged = false
	info.Samples = pr.p.NumSamples
	if best == nil {
		return nil, info, domain.OptimizationError("optimize",
			fmt.Errorf("monte carlo search found no feasible portfolio in %d samples (%s)", pr.p.NumSamples, info.FallbackReason))
	}
	o.log.Debug().
		Int("samples", pr.p.NumSamples).
		Int("tier", bestScore.tier).
		Float64("score", bestScore.value).
		Msg("Monte Carlo search finished")
	return best, info, nil
}

// finalize snaps negligible weights, verifies every constraint and computes
// the portfolio metrics. A vector that fails the checks is never returned.
func (o *Optimizer) finalize(pr *problem, w []float64, info SolveInfo) (*Result, error) {
	w = append([]float64(nil), w...)
	for i, v := range w {
		if math.Abs(v) < nearZeroValue {
			w[i] = 0
		}
	}
	if err := pr.cs.check(w); err != nil {
		return nil, domain.OptimizationError("optimize", fmt.Errorf("%s solution rejected: %w", info.Solver, err))
	}

	risk := math.Sqrt(math.Max(quadForm(pr.sigma, w), 0))
	ret := dot(pr.mu, w)
	sharpe, ok := formulas.SharpeRatio(ret, risk, pr.rf)
	if !ok {
		o.log.Warn().
			Err(domain.NumericError("optimize", "zero volatility")).
			Str("objective", string(pr.p.Objective)).
			Msg("Portfolio has zero volatility, Sharpe ratio set to 0")
	}

	return &Result{
		Objective: pr.p.Objective,
		Weights:   domain.NewPortfolioWeights(pr.symbols, w),
		Risk:      risk,
		Return:    ret,
		Sharpe:    sharpe,
		Info:      info,
	}, nil
}
