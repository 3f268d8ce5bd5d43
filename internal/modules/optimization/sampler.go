package optimization

import (
	"math"
	"math/rand/v2"
)

const (
	boxRejections   = 64
	shortRejections = 1000
)

// sampler draws random feasible weight vectors. Given the same seed it
// produces the same sequence.
type sampler struct {
	rng *rand.Rand
	cs  constraintSet
	n   int
}

func newSampler(cs constraintSet, seed uint64) *sampler {
	return &sampler{
		rng: rand.New(rand.NewPCG(seed, seed)),
		cs:  cs,
		n:   cs.n,
	}
}

// draw returns one feasible weight vector.
func (s *sampler) draw() []float64 {
	if s.cs.allowShort {
		return s.drawShort()
	}
	return s.drawBox()
}

// drawBox places lo in every asset and spreads the remaining budget with a
// flat Dirichlet draw, rejecting draws that break the upper bound.
func (s *sampler) drawBox() []float64 {
	w := make([]float64, s.n)
	free := 1 - float64(s.n)*s.cs.lo
	for try := 0; try < boxRejections; try++ {
		total := 0.0
		for i := range w {
			w[i] = s.rng.ExpFloat64()
			total += w[i]
		}
		ok := true
		for i := range w {
			w[i] = s.cs.lo + free*w[i]/total
			if w[i] > s.cs.hi+boundTolerance {
				ok = false
			}
		}
		if ok {
			return w
		}
	}
	return s.cs.project(w)
}

// drawShort normalizes Gaussian draws to the budget, rejecting draws whose
// gross exposure exceeds the leverage limit.
func (s *sampler) drawShort() []float64 {
	w := make([]float64, s.n)
	for try := 0; try < shortRejections; try++ {
		total := 0.0
		for i := range w {
			w[i] = s.rng.NormFloat64()
			total += w[i]
		}
		if math.Abs(total) < 1e-6 {
			continue
		}
		gross := 0.0
		for i := range w {
			w[i] /= total
			gross += math.Abs(w[i])
		}
		if gross <= s.cs.leverage {
			return w
		}
	}
	return s.cs.project(w)
}
