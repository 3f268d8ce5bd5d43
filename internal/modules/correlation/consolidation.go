package correlation

import (
	"math"
	"sort"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/pkg/formulas"
	"github.com/rs/zerolog"
)

// MatrixMode selects how the consolidated correlation matrix is derived
type MatrixMode string

const (
	// MatrixRecompute runs Pearson correlation over the representative series
	MatrixRecompute MatrixMode = "recompute"
	// MatrixAverage averages the original entries between groups
	MatrixAverage MatrixMode = "average"
)

// ConsolidationOptions configures a consolidation run
type ConsolidationOptions struct {
	Threshold float64
	Method    domain.ConsolidationMethod
	Mode      MatrixMode
}

// ConsolidationInfo summarises a consolidation run
type ConsolidationInfo struct {
	Threshold          float64                    `json:"threshold"`
	Method             domain.ConsolidationMethod `json:"method"`
	Mode               MatrixMode                 `json:"mode"`
	OriginalAssets     int                        `json:"original_assets"`
	ConsolidatedAssets int                        `json:"consolidated_assets"`
}

// ConsolidationResult holds both matrices, the groups and the representative series
type ConsolidationResult struct {
	Original       domain.Matrix
	Consolidated   domain.Matrix
	Groups         []domain.ConsolidationGroup
	Representative []domain.ReturnSeries
	Info           ConsolidationInfo
}

// MergedGroups returns only the groups with more than one member.
func (r *ConsolidationResult) MergedGroups() []domain.ConsolidationGroup {
	var out []domain.ConsolidationGroup
	for _, g := range r.Groups {
		if len(g.Members) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// ConsolidationEngine merges highly correlated assets into representatives
type ConsolidationEngine struct {
	corr *Engine
	log  zerolog.Logger
}

// NewConsolidationEngine creates a consolidation engine on top of a correlation engine
func NewConsolidationEngine(corr *Engine, log zerolog.Logger) *ConsolidationEngine {
	return &ConsolidationEngine{
		corr: corr,
		log:  log.With().Str("component", "consolidation").Logger(),
	}
}

// Validate checks the options, filling defaults for empty method and mode.
func (o ConsolidationOptions) Validate() (ConsolidationOptions, error) {
	if o.Threshold < 0 || o.Threshold > 1 || math.IsNaN(o.Threshold) {
		return o, domain.ValidationError("consolidate", "correlation_threshold", "threshold must be within [0, 1], got %v", o.Threshold)
	}
	method, err := domain.ParseConsolidationMethod(string(o.Method))
	if err != nil {
		return o, err
	}
	o.Method = method
	switch o.Mode {
	case "":
		o.Mode = MatrixRecompute
	case MatrixRecompute, MatrixAverage:
	default:
		return o, domain.ValidationError("consolidate", "consolidated_correlation_mode", "unknown mode %q (want recompute or average)", o.Mode)
	}
	return o, nil
}

// Consolidate groups symbols whose absolute correlation reaches the threshold
// and collapses each group into one representative return series.
func (c *ConsolidationEngine) Consolidate(series []domain.ReturnSeries, opts ConsolidationOptions) (*ConsolidationResult, error) {
	opts, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	aligned, err := prepare("consolidate", series)
	if err != nil {
		return nil, err
	}

	// Work in symbol order so grouping is independent of request order.
	aligned = append([]domain.ReturnSeries(nil), aligned...)
	sort.SliceStable(aligned, func(i, j int) bool { return aligned[i].Symbol < aligned[j].Symbol })
	original := c.corr.correlationOf(aligned)

	components := GroupIndices(original, opts.Threshold)
	groups := make([]domain.ConsolidationGroup, len(components))
	reps := make([]domain.ReturnSeries, len(components))
	for g, members := range components {
		names := make([]string, len(members))
		for k, idx := range members {
			names[k] = aligned[idx].Symbol
		}
		groups[g] = domain.ConsolidationGroup{
			Representative: domain.RepresentativeName(names),
			Members:        names,
			Method:         opts.Method,
		}
		reps[g] = representativeSeries(aligned, members, groups[g].Representative, opts.Method)
	}

	var consolidated domain.Matrix
	switch opts.Mode {
	case MatrixAverage:
		consolidated = averageMatrix(original, components, groups)
	default:
		consolidated = c.corr.correlationOf(reps)
	}

	info := ConsolidationInfo{
		Threshold:          opts.Threshold,
		Method:             opts.Method,
		Mode:               opts.Mode,
		OriginalAssets:     len(aligned),
		ConsolidatedAssets: len(groups),
	}
	c.log.Debug().
		Float64("threshold", opts.Threshold).
		Int("original_assets", info.OriginalAssets).
		Int("consolidated_assets", info.ConsolidatedAssets).
		Msg("Consolidated correlated assets")

	return &ConsolidationResult{
		Original:       original,
		Consolidated:   consolidated,
		Groups:         groups,
		Representative: reps,
		Info:           info,
	}, nil
}

// GroupIndices returns the connected components of the graph with an edge
// between i and j whenever |m[i][j]| >= threshold. Components are ordered by
// their lowest index and members are ascending, so a matrix whose symbols are
// sorted yields name-ordered groups.
func GroupIndices(m domain.Matrix, threshold float64) [][]int {
	n := m.Size()
	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := m.Values[i][j]
			if v < 0 {
				v = -v
			}
			if v >= threshold {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]int, n)
	var order []int
	for i := 0; i < n; i++ {
		r := uf.find(i)
		if _, ok := byRoot[r]; !ok {
			order = append(order, r)
		}
		byRoot[r] = append(byRoot[r], i)
	}
	out := make([][]int, len(order))
	for k, r := range order {
		out[k] = byRoot[r]
	}
	return out
}

func representativeSeries(aligned []domain.ReturnSeries, members []int, name string, method domain.ConsolidationMethod) domain.ReturnSeries {
	first := aligned[members[0]]
	values := make([]float64, first.Len())
	column := make([]float64, len(members))
	for t := range values {
		for k, idx := range members {
			column[k] = aligned[idx].Values[t]
		}
		switch method {
		case domain.ConsolidationMedian:
			values[t] = formulas.Median(column)
		case domain.ConsolidationFirst:
			values[t] = column[0]
		default:
			values[t] = formulas.Mean(column)
		}
	}
	return domain.ReturnSeries{
		Symbol:         name,
		Dates:          first.Dates,
		Values:         values,
		Method:         first.Method,
		PeriodsPerYear: first.PeriodsPerYear,
	}
}

func averageMatrix(original domain.Matrix, components [][]int, groups []domain.ConsolidationGroup) domain.Matrix {
	k := len(components)
	symbols := make([]string, k)
	values := make([][]float64, k)
	for g := range components {
		symbols[g] = groups[g].Representative
		values[g] = make([]float64, k)
	}
	for g := 0; g < k; g++ {
		values[g][g] = 1.0
		for h := g + 1; h < k; h++ {
			sum := 0.0
			for _, i := range components[g] {
				for _, j := range components[h] {
					sum += original.Values[i][j]
				}
			}
			v := formulas.ClampCorrelation(sum / float64(len(components[g])*len(components[h])))
			values[g][h] = v
			values[h][g] = v
		}
	}
	return domain.Matrix{Symbols: symbols, Values: values}
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union links the higher root under the lower one so roots stay the minimum index.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
