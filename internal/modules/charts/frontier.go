// Package charts renders PNG charts of optimization results.
package charts

import (
	"bytes"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// FrontierChart is everything drawn on a frontier chart
type FrontierChart struct {
	Title           string
	Frontier        []domain.EfficientFrontierPoint
	Cloud           []optimization.FeasiblePoint
	Tangency        *domain.SpecialPortfolio
	MinimumVariance *domain.SpecialPortfolio
	RiskFreeRate    float64
	Width, Height   int
}

// Renderer draws frontier charts
type Renderer struct {
	log zerolog.Logger
}

// NewRenderer creates a chart renderer
func NewRenderer(log zerolog.Logger) *Renderer {
	return &Renderer{
		log: log.With().Str("component", "charts").Logger(),
	}
}

// RenderFrontier renders the feasible cloud, the frontier (efficient branch
// solid, inefficient branch dashed), the capital market line and the special
// portfolios as a PNG. Risk is on the x axis.
func (r *Renderer) RenderFrontier(fc FrontierChart) ([]byte, error) {
	if len(fc.Frontier) < 2 {
		return nil, fmt.Errorf("need at least 2 frontier points, got %d", len(fc.Frontier))
	}
	width, height := fc.Width, fc.Height
	if width <= 0 {
		width = 1000
	}
	if height <= 0 {
		height = 600
	}
	title := fc.Title
	if title == "" {
		title = "Efficient Frontier"
	}

	var series []chart.Series

	if len(fc.Cloud) > 0 {
		xs := make([]float64, len(fc.Cloud))
		ys := make([]float64, len(fc.Cloud))
		for i, p := range fc.Cloud {
			xs[i], ys[i] = p.Risk, p.Return
		}
		series = append(series, chart.ContinuousSeries{
			Name: "Feasible portfolios",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    1.5,
				DotColor:    drawing.ColorFromHex("cbd5e1"), // slate-300
			},
			XValues: xs,
			YValues: ys,
		})
	}

	var effX, effY, inX, inY []float64
	for _, p := range fc.Frontier {
		if p.Efficient {
			effX, effY = append(effX, p.Risk), append(effY, p.Return)
		} else {
			inX, inY = append(inX, p.Risk), append(inY, p.Return)
		}
	}
	// Join the branches at the first efficient point so the curve is continuous.
	if len(inX) > 0 && len(effX) > 0 {
		inX, inY = append(inX, effX[0]), append(inY, effY[0])
	}
	if len(inX) >= 2 {
		series = append(series, chart.ContinuousSeries{
			Name: "Inefficient frontier",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("94a3b8"), // slate-400
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: inX,
			YValues: inY,
		})
	}
	if len(effX) >= 2 {
		series = append(series, chart.ContinuousSeries{
			Name: "Efficient frontier",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2.5,
			},
			XValues: effX,
			YValues: effY,
		})
	}

	if t := fc.Tangency; t != nil && t.Risk > 0 {
		maxRisk := t.Risk
		for _, p := range fc.Frontier {
			maxRisk = math.Max(maxRisk, p.Risk)
		}
		slope := (t.Return - fc.RiskFreeRate) / t.Risk
		series = append(series, chart.ContinuousSeries{
			Name: "Capital market line",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("16a34a"), // green-600
				StrokeWidth:     1,
				StrokeDashArray: []float64{2.0, 2.0},
			},
			XValues: []float64{0, maxRisk},
			YValues: []float64{fc.RiskFreeRate, fc.RiskFreeRate + slope*maxRisk},
		})
	}

	for _, sp := range []struct {
		p     *domain.SpecialPortfolio
		name  string
		color string
	}{
		{fc.Tangency, "Tangency", "dc2626"},
		{fc.MinimumVariance, "Minimum variance", "f59e0b"},
	} {
		if sp.p == nil {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name: sp.name,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    6,
				DotColor:    drawing.ColorFromHex(sp.color),
			},
			XValues: []float64{sp.p.Risk},
			YValues: []float64{sp.p.Return},
		})
	}

	percent := func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%.1f%%", f*100)
		}
		return ""
	}

	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name:           "Risk (volatility)",
			ValueFormatter: percent,
		},
		YAxis: chart.YAxis{
			Name:           "Return",
			ValueFormatter: percent,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	r.log.Debug().
		Int("frontier_points", len(fc.Frontier)).
		Int("cloud_points", len(fc.Cloud)).
		Int("bytes", buf.Len()).
		Msg("Rendered frontier chart")
	return buf.Bytes(), nil
}
