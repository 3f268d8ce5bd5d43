package optimization

import (
	"fmt"
	"math"
	"sort"
)

const (
	budgetTolerance = 1e-6
	boundTolerance  = 1e-9
	bisectionRounds = 200
)

// constraintSet is the feasible region {w : sum(w) = 1} intersected with either
// a per-asset box [lo, hi] (long-only) or the gross-exposure ball
// sum(|w|) <= leverage (shorts allowed).
type constraintSet struct {
	n          int
	allowShort bool
	lo, hi     float64
	leverage   float64
}

func newConstraintSet(n int, p Params) constraintSet {
	cs := constraintSet{
		n:          n,
		allowShort: p.AllowShort,
		lo:         p.MinWeight,
		hi:         p.MaxWeight,
		leverage:   p.MaxLeverage,
	}
	if cs.allowShort {
		cs.lo, cs.hi = -cs.leverage, cs.leverage
	}
	return cs
}

// base projects u onto the box or the L1 ball, ignoring the budget.
func (cs constraintSet) base(u, dst []float64) {
	if !cs.allowShort {
		for i, v := range u {
			dst[i] = math.Min(cs.hi, math.Max(cs.lo, v))
		}
		return
	}
	projectL1Ball(u, cs.leverage, dst)
}

// project returns the Euclidean projection of v onto the feasible set. The
// budget multiplier is found by bisection: sum(base(v - lambda)) is
// non-increasing in lambda.
func (cs constraintSet) project(v []float64) []float64 {
	out := make([]float64, len(v))
	cs.projectInto(v, out, make([]float64, len(v)))
	return out
}

func (cs constraintSet) projectInto(v, dst, scratch []float64) {
	vmin, vmax := v[0], v[0]
	for _, x := range v {
		vmin = math.Min(vmin, x)
		vmax = math.Max(vmax, x)
	}
	span := math.Max(math.Max(math.Abs(cs.lo), math.Abs(cs.hi)), cs.leverage) + 1
	lo, hi := vmin-span, vmax+span

	sumAt := func(lambda float64) float64 {
		for i, x := range v {
			scratch[i] = x - lambda
		}
		cs.base(scratch, dst)
		s := 0.0
		for _, w := range dst {
			s += w
		}
		return s
	}

	for k := 0; k < bisectionRounds; k++ {
		mid := 0.5 * (lo + hi)
		if mid <= lo || mid >= hi {
			break
		}
		if sumAt(mid) > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}
	sLo, sHi := sumAt(lo), sumAt(hi)
	lambda := hi
	if math.Abs(sLo-1) < math.Abs(sHi-1) {
		lambda = lo
	}
	sumAt(lambda)
}

// projectWithReturn projects v onto the feasible set intersected with the
// hyperplane mu'w = target. The return multiplier gamma is found by bisection:
// mu'P(v - gamma*mu) is non-increasing in gamma.
func (cs constraintSet) projectWithReturn(v, mu []float64, target float64) []float64 {
	n := len(v)
	shifted := make([]float64, n)
	out := make([]float64, n)
	scratch := make([]float64, n)

	returnAt := func(gamma float64) float64 {
		for i := range v {
			shifted[i] = v[i] - gamma*mu[i]
		}
		cs.projectInto(shifted, out, scratch)
		return dot(mu, out)
	}

	muScale := 0.0
	for _, m := range mu {
		muScale = math.Max(muScale, math.Abs(m))
	}
	if muScale == 0 {
		cs.projectInto(v, out, scratch)
		return out
	}

	g := 1 / muScale
	lo, hi := -g, g
	for k := 0; k < 64 && returnAt(lo) < target; k++ {
		lo *= 2
	}
	for k := 0; k < 64 && returnAt(hi) > target; k++ {
		hi *= 2
	}
	for k := 0; k < bisectionRounds; k++ {
		mid := 0.5 * (lo + hi)
		if mid <= lo || mid >= hi {
			break
		}
		if returnAt(mid) > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	rLo, rHi := returnAt(lo), returnAt(hi)
	if math.Abs(rLo-target) < math.Abs(rHi-target) {
		returnAt(lo)
	}
	return out
}

// projectL1Ball projects u onto {x : sum(|x|) <= radius} (Duchi et al. 2008).
func projectL1Ball(u []float64, radius float64, dst []float64) {
	norm := 0.0
	for _, v := range u {
		norm += math.Abs(v)
	}
	if norm <= radius {
		copy(dst, u)
		return
	}
	abs := make([]float64, len(u))
	for i, v := range u {
		abs[i] = math.Abs(v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(abs)))

	theta := 0.0
	cum := 0.0
	for i, a := range abs {
		cum += a
		t := (cum - radius) / float64(i+1)
		if a-t > 0 {
			theta = t
		} else {
			break
		}
	}
	for i, v := range u {
		m := math.Max(math.Abs(v)-theta, 0)
		dst[i] = math.Copysign(m, v)
	}
}

// returnRange is the lowest and highest portfolio return reachable inside
// the feasible set; both are linear programs with closed-form solutions.
func (cs constraintSet) returnRange(mu []float64) (float64, float64) {
	return dot(mu, cs.extremeReturn(mu, false)), dot(mu, cs.extremeReturn(mu, true))
}

// extremeReturn returns the feasible weights maximizing (or minimizing) mu'w.
func (cs constraintSet) extremeReturn(mu []float64, maximize bool) []float64 {
	n := len(mu)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if maximize {
			return mu[order[a]] > mu[order[b]]
		}
		return mu[order[a]] < mu[order[b]]
	})

	w := make([]float64, n)
	if cs.allowShort {
		best, worst := order[0], order[n-1]
		if mu[best] == mu[worst] || cs.leverage == 1 {
			w[best] = 1
			return w
		}
		w[best] = (1 + cs.leverage) / 2
		w[worst] = -(cs.leverage - 1) / 2
		return w
	}

	remaining := 1.0
	for i := range w {
		w[i] = cs.lo
		remaining -= cs.lo
	}
	for _, idx := range order {
		if remaining <= 0 {
			break
		}
		add := math.Min(cs.hi-cs.lo, remaining)
		w[idx] += add
		remaining -= add
	}
	return w
}

// check verifies budget, bounds and gross exposure on a final weight vector.
func (cs constraintSet) check(w []float64) error {
	sum, gross := 0.0, 0.0
	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight vector contains non-finite values")
		}
		sum += v
		gross += math.Abs(v)
	}
	if math.Abs(sum-1) > budgetTolerance {
		return fmt.Errorf("weights sum to %.10f, want 1", sum)
	}
	if cs.allowShort {
		if gross > cs.leverage+boundTolerance {
			return fmt.Errorf("gross exposure %.10f exceeds max_leverage %g", gross, cs.leverage)
		}
		return nil
	}
	for i, v := range w {
		if v < cs.lo-boundTolerance || v > cs.hi+boundTolerance {
			return fmt.Errorf("weight %d = %.10f outside [%g, %g]", i, v, cs.lo, cs.hi)
		}
	}
	return nil
}

// feasible is check without the error detail
func (cs constraintSet) feasible(w []float64) bool {
	return cs.check(w) == nil
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
