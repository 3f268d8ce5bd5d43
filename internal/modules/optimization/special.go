package optimization

import (
	"context"
	"fmt"

	"github.com/aristath/frontier/internal/domain"
)

// SpecialPortfolios are the tangency and global minimum-variance portfolios.
type SpecialPortfolios struct {
	Tangency        domain.SpecialPortfolio `json:"tangency"`
	MinimumVariance domain.SpecialPortfolio `json:"minimum_variance"`
}

// SpecialPortfolioSolver delegates both portfolios to the Optimizer, which
// uses the closed forms whenever the constraints allow.
type SpecialPortfolioSolver struct {
	opt *Optimizer
}

func NewSpecialPortfolioSolver(opt *Optimizer) *SpecialPortfolioSolver {
	return &SpecialPortfolioSolver{opt: opt}
}

func (s *SpecialPortfolioSolver) Solve(ctx context.Context, inputs domain.PortfolioInputs, p Params) (*SpecialPortfolios, error) {
	tangency, err := s.opt.Optimize(ctx, inputs, p.With(WithObjective(ObjectiveMaxSharpe)))
	if err != nil {
		return nil, fmt.Errorf("tangency portfolio: %w", err)
	}
	minVar, err := s.opt.Optimize(ctx, inputs, p.With(WithObjective(ObjectiveMinVariance)))
	if err != nil {
		return nil, fmt.Errorf("minimum variance portfolio: %w", err)
	}
	return &SpecialPortfolios{
		Tangency:        special(domain.SpecialTangency, tangency),
		MinimumVariance: special(domain.SpecialMinimumVariance, minVar),
	}, nil
}

func special(kind domain.SpecialKind, r *Result) domain.SpecialPortfolio {
	return domain.SpecialPortfolio{
		Kind:    kind,
		Risk:    r.Risk,
		Return:  r.Return,
		Sharpe:  r.Sharpe,
		Solver:  r.Info.Solver,
		Weights: r.Weights,
	}
}
