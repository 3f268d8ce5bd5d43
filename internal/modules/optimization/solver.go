package optimization

import (
	"context"
	"math"
	"time"
)

const (
	maxBacktracks = 60
	stepGrowth    = 1.25
)

// smooth is a differentiable objective to minimize.
type smooth struct {
	value     func(w []float64) float64
	grad      func(w, g []float64)
	lipschitz float64
}

// iterate is the state of the projected gradient solver after it stops.
type iterate struct {
	w          []float64
	value      float64
	iterations int
	converged  bool
	closedForm bool
}

func (pr *problem) varianceObjective() smooth {
	return smooth{
		value: func(w []float64) float64 { return quadForm(pr.sigma, w) },
		grad: func(w, g []float64) {
			mulVec(pr.sigma, w, g)
			for i := range g {
				g[i] *= 2
			}
		},
		lipschitz: 2 * pr.lmax,
	}
}

// toleranceObjective is 1/2 w'Sw - tau mu'w
func (pr *problem) toleranceObjective(tau float64) smooth {
	return smooth{
		value: func(w []float64) float64 { return 0.5*quadForm(pr.sigma, w) - tau*dot(pr.mu, w) },
		grad: func(w, g []float64) {
			mulVec(pr.sigma, w, g)
			for i := range g {
				g[i] -= tau * pr.mu[i]
			}
		},
		lipschitz: pr.lmax,
	}
}

// sharpeObjective is the negated Sharpe ratio. Near-zero volatility points
// are given a zero value and a pure return gradient.
func (pr *problem) sharpeObjective() smooth {
	sw := make([]float64, pr.n)
	return smooth{
		value: func(w []float64) float64 {
			vol := math.Sqrt(math.Max(quadForm(pr.sigma, w), 0))
			if vol < nearZeroValue {
				return 0
			}
			return -(dot(pr.mu, w) - pr.rf) / vol
		},
		grad: func(w, g []float64) {
			variance := math.Max(quadForm(pr.sigma, w), 0)
			vol := math.Sqrt(variance)
			if vol < nearZeroValue {
				for i := range g {
					g[i] = -pr.mu[i]
				}
				return
			}
			excess := dot(pr.mu, w) - pr.rf
			mulVec(pr.sigma, w, sw)
			for i := range g {
				g[i] = -(pr.mu[i]/vol - excess*sw[i]/(variance*vol))
			}
		},
		lipschitz: 2 * pr.lmax / math.Max(pr.minVariance(), nearZeroValue),
	}
}

// expired reports whether the call's time budget is used up.
func (pr *problem) expired() bool {
	return !pr.deadline.IsZero() && time.Now().After(pr.deadline)
}

// descend runs projected gradient descent with Armijo backtracking from w0.
// It stops on convergence, on the iteration budget, when the call's deadline
// passes, or when ctx ends. Only convergence sets it.converged.
func (pr *problem) descend(ctx context.Context, obj smooth, project func([]float64) []float64, w0 []float64) (iterate, error) {
	w := project(w0)
	f := obj.value(w)
	g := make([]float64, pr.n)
	refStep := 1 / math.Max(obj.lipschitz, nearZeroValue)
	step := refStep
	maxStep := 1e6 * refStep
	tol := pr.p.Tolerance

	it := iterate{w: w, value: f}
	trial := make([]float64, pr.n)
	for k := 1; k <= pr.p.MaxIterations; k++ {
		if err := ctx.Err(); err != nil {
			return it, err
		}
		if pr.expired() {
			return it, nil
		}
		it.iterations = k

		obj.grad(w, g)
		var cand []float64
		var fc float64
		accepted := false
		for bt := 0; bt < maxBacktracks; bt++ {
			for i := range trial {
				trial[i] = w[i] - step*g[i]
			}
			cand = project(trial)
			fc = obj.value(cand)
			gd, dd := 0.0, 0.0
			for i := range cand {
				d := cand[i] - w[i]
				gd += g[i] * d
				dd += d * d
			}
			if fc <= f+gd+dd/(2*step)+1e-15*(1+math.Abs(f)) {
				accepted = true
				break
			}
			step /= 2
		}
		if !accepted {
			// no step length improves the objective; w is stationary up to rounding
			it.converged = true
			return it, nil
		}

		df := math.Abs(f - fc)
		dw := 0.0
		for i := range cand {
			dw = math.Max(dw, math.Abs(cand[i]-w[i]))
		}
		w, f = cand, fc
		it.w, it.value = w, f
		// a shortened step understates how far w is from stationarity
		dw *= math.Max(1, refStep/step)
		if df <= tol*(1+math.Abs(f)) && dw <= 100*tol {
			it.converged = true
			return it, nil
		}
		step = math.Min(step*stepGrowth, maxStep)
	}
	return it, nil
}
