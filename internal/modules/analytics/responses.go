package analytics

import (
	"time"

	"github.com/google/uuid"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/correlation"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/statistics"
)

// Metadata identifies one engine run
type Metadata struct {
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
}

// ReturnsResponse is the result of computeReturns
type ReturnsResponse struct {
	Returns  []domain.ReturnSeries `json:"returns"`
	Metadata Metadata              `json:"metadata"`
}

// SummaryResponse is the result of computeStatistics
type SummaryResponse struct {
	Summary        []statistics.AssetStatistics `json:"summary"`
	RiskFreeRate   float64                      `json:"r_f"`
	PeriodsPerYear int                          `json:"periods_per_year"`
	Annualized     bool                         `json:"annualized"`
	Metadata       Metadata                     `json:"metadata"`
}

// CorrelationResponse is the result of computeCorrelation
type CorrelationResponse struct {
	Matrix   domain.Matrix `json:"matrix"`
	Metadata Metadata      `json:"metadata"`
}

// ConsolidationResponse is the result of consolidate
type ConsolidationResponse struct {
	OriginalMatrix     domain.Matrix                 `json:"original_matrix"`
	ConsolidatedMatrix domain.Matrix                 `json:"consolidated_matrix"`
	Groups             []domain.ConsolidationGroup   `json:"groups"`
	ConsolidationInfo  correlation.ConsolidationInfo `json:"consolidation_info"`
	Metadata           Metadata                      `json:"metadata"`
}

// InputsResponse is the result of portfolioInputs
type InputsResponse struct {
	domain.PortfolioInputs
	Groups   []domain.ConsolidationGroup `json:"groups,omitempty"`
	Metadata Metadata                    `json:"metadata"`
}

// OptimizeResponse is the result of optimize
type OptimizeResponse struct {
	Objective optimization.Objective      `json:"optimization_method"`
	Weights   domain.PortfolioWeights     `json:"weights"`
	Risk      float64                     `json:"risk"`
	Return    float64                     `json:"return"`
	Sharpe    float64                     `json:"sharpe"`
	Solver    optimization.SolveInfo      `json:"solver"`
	Groups    []domain.ConsolidationGroup `json:"groups,omitempty"`
	Metadata  Metadata                    `json:"metadata"`
}

// SpecialResponse is the result of solveSpecialPortfolios
type SpecialResponse struct {
	optimization.SpecialPortfolios
	RiskFreeRate float64                     `json:"r_f"`
	Groups       []domain.ConsolidationGroup `json:"groups,omitempty"`
	Metadata     Metadata                    `json:"metadata"`
}

// FrontierResponse is the result of generateFrontier. The special portfolios
// are included so a chart can mark them without a second request.
type FrontierResponse struct {
	optimization.FrontierResult
	Special      optimization.SpecialPortfolios `json:"special_portfolios"`
	RiskFreeRate float64                        `json:"r_f"`
	Symbols      []string                       `json:"symbols"`
	Groups       []domain.ConsolidationGroup    `json:"groups,omitempty"`
	Metadata     Metadata                       `json:"metadata"`
}

// ResultAssembler packages engine outputs into wire responses. It performs
// no computation beyond copying.
type ResultAssembler struct {
	now   func() time.Time
	newID func() string
}

// NewResultAssembler creates an assembler stamping uuid run ids and UTC timestamps
func NewResultAssembler() *ResultAssembler {
	return &ResultAssembler{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

func (a *ResultAssembler) metadata() Metadata {
	return Metadata{
		RunID:     a.newID(),
		Timestamp: a.now().UTC().Format(time.RFC3339),
	}
}

func (a *ResultAssembler) Returns(series []domain.ReturnSeries) *ReturnsResponse {
	return &ReturnsResponse{Returns: series, Metadata: a.metadata()}
}

func (a *ResultAssembler) Summary(rows []statistics.AssetStatistics, opts statistics.Options) *SummaryResponse {
	return &SummaryResponse{
		Summary:        rows,
		RiskFreeRate:   opts.RiskFreeRate,
		PeriodsPerYear: opts.PeriodsPerYear,
		Annualized:     opts.Annualize,
		Metadata:       a.metadata(),
	}
}

func (a *ResultAssembler) Correlation(m domain.Matrix) *CorrelationResponse {
	return &CorrelationResponse{Matrix: m, Metadata: a.metadata()}
}

func (a *ResultAssembler) Consolidation(r *correlation.ConsolidationResult) *ConsolidationResponse {
	return &ConsolidationResponse{
		OriginalMatrix:     r.Original,
		ConsolidatedMatrix: r.Consolidated,
		Groups:             r.Groups,
		ConsolidationInfo:  r.Info,
		Metadata:           a.metadata(),
	}
}

func (a *ResultAssembler) Inputs(b *builtInputs) *InputsResponse {
	return &InputsResponse{
		PortfolioInputs: b.Inputs,
		Groups:          b.Groups,
		Metadata:        a.metadata(),
	}
}

func (a *ResultAssembler) Optimize(r *optimization.Result, b *builtInputs) *OptimizeResponse {
	return &OptimizeResponse{
		Objective: r.Objective,
		Weights:   r.Weights,
		Risk:      r.Risk,
		Return:    r.Return,
		Sharpe:    r.Sharpe,
		Solver:    r.Info,
		Groups:    b.Groups,
		Metadata:  a.metadata(),
	}
}

func (a *ResultAssembler) Special(s *optimization.SpecialPortfolios, b *builtInputs) *SpecialResponse {
	return &SpecialResponse{
		SpecialPortfolios: *s,
		RiskFreeRate:      b.Inputs.RiskFreeRate,
		Groups:            b.Groups,
		Metadata:          a.metadata(),
	}
}

func (a *ResultAssembler) Frontier(f *optimization.FrontierResult, s *optimization.SpecialPortfolios, b *builtInputs) *FrontierResponse {
	return &FrontierResponse{
		FrontierResult: *f,
		Special:        *s,
		RiskFreeRate:   b.Inputs.RiskFreeRate,
		Symbols:        b.Inputs.Symbols,
		Groups:         b.Groups,
		Metadata:       a.metadata(),
	}
}
