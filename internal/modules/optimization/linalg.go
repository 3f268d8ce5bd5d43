package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	ridgeScale    = 1e-8
	maxCondition  = 1e14
	psdTolerance  = 1e-10
	nearZeroValue = 1e-12
)

// FrontierCoefficients are the closed-form constants of the budget-only
// frontier: A = 1'S^-1 1, B = 1'S^-1 mu, C = mu'S^-1 mu, D = AC - B^2.
// Portfolio variance at return r is 1/A + (A/D)(r - B/A)^2.
type FrontierCoefficients struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
}

// Variance is the minimum budget-only variance at return r.
func (fc FrontierCoefficients) Variance(r float64) float64 {
	return 1/fc.A + (fc.A/fc.D)*(r-fc.B/fc.A)*(r-fc.B/fc.A)
}

// inverse caches the solves needed by the analytical solutions.
type inverse struct {
	chol        mat.Cholesky
	invOnes     []float64 // S^-1 1
	invMu       []float64 // S^-1 mu
	coef        FrontierCoefficients
	regularized bool
}

// invert factorizes sigma. An ill-conditioned matrix gets a diagonal ridge of
// ridgeScale * mean(diag); if that still fails the matrix is treated as singular
// and nil is returned.
func invert(sigma *mat.SymDense, mu []float64) *inverse {
	n := sigma.SymmetricDim()
	inv := &inverse{}
	if !inv.chol.Factorize(sigma) || inv.chol.Cond() > maxCondition {
		meanDiag := 0.0
		for i := 0; i < n; i++ {
			meanDiag += sigma.At(i, i)
		}
		meanDiag /= float64(n)
		ridge := ridgeScale * math.Max(meanDiag, nearZeroValue)

		reg := mat.NewSymDense(n, nil)
		reg.CopySym(sigma)
		for i := 0; i < n; i++ {
			reg.SetSym(i, i, reg.At(i, i)+ridge)
		}
		if !inv.chol.Factorize(reg) || inv.chol.Cond() > maxCondition {
			return nil
		}
		inv.regularized = true
	}

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	var err error
	if inv.invOnes, err = inv.solve(ones); err != nil {
		return nil
	}
	if inv.invMu, err = inv.solve(mu); err != nil {
		return nil
	}

	a := sum(inv.invOnes)
	b := sum(inv.invMu)
	c := dot(mu, inv.invMu)
	inv.coef = FrontierCoefficients{A: a, B: b, C: c, D: a*c - b*b}
	if !(a > 0) {
		return nil
	}
	return inv
}

func (inv *inverse) solve(b []float64) ([]float64, error) {
	var x mat.VecDense
	if err := inv.chol.SolveVecTo(&x, mat.NewVecDense(len(b), b)); err != nil {
		return nil, err
	}
	out := make([]float64, len(b))
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

// frontierDegenerate reports whether the budget-only frontier collapses
// (all expected returns effectively equal).
func (inv *inverse) frontierDegenerate() bool {
	return inv.coef.D <= nearZeroValue*math.Max(1, inv.coef.A*inv.coef.C)
}

// eigenRange returns the smallest and largest eigenvalues of sigma.
func eigenRange(sigma *mat.SymDense) (float64, float64, bool) {
	var es mat.EigenSym
	if !es.Factorize(sigma, false) {
		return 0, 0, false
	}
	vals := es.Values(nil)
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, true
}

func quadForm(sigma *mat.SymDense, w []float64) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, sigma, v)
}

func mulVec(sigma *mat.SymDense, w, dst []float64) {
	var out mat.VecDense
	out.MulVec(sigma, mat.NewVecDense(len(w), w))
	for i := range dst {
		dst[i] = out.AtVec(i)
	}
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

func scaled(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * k
	}
	return out
}
