package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/frontier/pkg/formulas"
)

// Linkage is the agglomerative clustering rule used by HRP.
type Linkage string

const (
	LinkageSingle   Linkage = "single"
	LinkageComplete Linkage = "complete"
	LinkageAverage  Linkage = "average"
)

// HRPOptimizer allocates by Hierarchical Risk Parity:
// correlation distance, a dendrogram, quasi-diagonal leaf order, then
// recursive bisection with inverse-variance cluster risk.
type HRPOptimizer struct {
	linkage Linkage
}

func NewHRPOptimizer(linkage Linkage) *HRPOptimizer {
	if linkage == "" {
		linkage = LinkageSingle
	}
	return &HRPOptimizer{linkage: linkage}
}

type cluster struct {
	left, right *cluster
	members     []int
	first       int // smallest asset index; breaks distance ties
}

// Allocate returns long-only weights summing to 1, in the order of cov.
func (h *HRPOptimizer) Allocate(cov [][]float64) ([]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	if n == 1 {
		return []float64{1}, nil
	}

	corr, err := formulas.CorrelationMatrixFromCovariance(cov)
	if err != nil {
		return nil, fmt.Errorf("hrp correlation: %w", err)
	}
	dist := formulas.CorrelationToDistance(corr)

	order := h.leafOrder(h.cluster(dist))
	if len(order) != n {
		return nil, fmt.Errorf("hrp leaf order has %d entries, want %d", len(order), n)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	bisect(w, cov, order)

	total := 0.0
	for _, v := range w {
		total += v
	}
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("hrp produced invalid weight total %v", total)
	}
	for i := range w {
		w[i] /= total
	}
	return w, nil
}

func (h *HRPOptimizer) cluster(dist [][]float64) *cluster {
	active := make([]*cluster, len(dist))
	for i := range active {
		active[i] = &cluster{members: []int{i}, first: i}
	}

	for len(active) > 1 {
		bi, bj := 0, 1
		best := h.distance(dist, active[0], active[1])
		for i := 0; i < len(active); i++ {
			for j := i + 1; j < len(active); j++ {
				d := h.distance(dist, active[i], active[j])
				if d < best || (d == best && pairBefore(active[i], active[j], active[bi], active[bj])) {
					best, bi, bj = d, i, j
				}
			}
		}

		left, right := active[bi], active[bj]
		if right.first < left.first {
			left, right = right, left
		}
		merged := &cluster{
			left:    left,
			right:   right,
			members: append(append(make([]int, 0, len(left.members)+len(right.members)), left.members...), right.members...),
			first:   left.first,
		}

		next := active[:0:0]
		for k, c := range active {
			if k != bi && k != bj {
				next = append(next, c)
			}
		}
		active = append(next, merged)
	}
	return active[0]
}

func pairBefore(a1, b1, a2, b2 *cluster) bool {
	x1, y1 := minMax(a1.first, b1.first)
	x2, y2 := minMax(a2.first, b2.first)
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

func minMax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

func (h *HRPOptimizer) distance(dist [][]float64, a, b *cluster) float64 {
	switch h.linkage {
	case LinkageComplete:
		worst := math.Inf(-1)
		for _, i := range a.members {
			for _, j := range b.members {
				worst = math.Max(worst, dist[i][j])
			}
		}
		return worst
	case LinkageAverage:
		total := 0.0
		for _, i := range a.members {
			for _, j := range b.members {
				total += dist[i][j]
			}
		}
		return total / float64(len(a.members)*len(b.members))
	default:
		nearest := math.Inf(1)
		for _, i := range a.members {
			for _, j := range b.members {
				nearest = math.Min(nearest, dist[i][j])
			}
		}
		return nearest
	}
}

func (h *HRPOptimizer) leafOrder(c *cluster) []int {
	if c.left == nil {
		return []int{c.members[0]}
	}
	return append(h.leafOrder(c.left), h.leafOrder(c.right)...)
}

// bisect splits order in halves and scales each half by the other half's
// share of the combined cluster variance.
func bisect(w []float64, cov [][]float64, order []int) {
	if len(order) < 2 {
		return
	}
	left, right := order[:len(order)/2], order[len(order)/2:]
	vl, vr := clusterVariance(cov, left), clusterVariance(cov, right)

	alpha := 0.5
	if vl+vr > 0 {
		alpha = math.Max(0, math.Min(1, 1-vl/(vl+vr)))
	}
	for _, i := range left {
		w[i] *= alpha
	}
	for _, i := range right {
		w[i] *= 1 - alpha
	}
	bisect(w, cov, left)
	bisect(w, cov, right)
}

// clusterVariance is the variance of the inverse-variance portfolio of idx.
func clusterVariance(cov [][]float64, idx []int) float64 {
	ivp := make([]float64, len(idx))
	total := 0.0
	for k, i := range idx {
		ivp[k] = 1 / math.Max(cov[i][i], nearZeroValue)
		total += ivp[k]
	}
	v := 0.0
	for a, i := range idx {
		for b, j := range idx {
			v += ivp[a] / total * cov[i][j] * ivp[b] / total
		}
	}
	return math.Max(v, 0)
}
