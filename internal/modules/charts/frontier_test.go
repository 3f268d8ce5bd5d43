package charts

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/optimization"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func sampleChart() FrontierChart {
	var points []domain.EfficientFrontierPoint
	for i := 0; i < 10; i++ {
		r := 0.02 + 0.01*float64(i)
		points = append(points, domain.EfficientFrontierPoint{
			TargetReturn: r,
			Return:       r,
			Risk:         0.1 + (r-0.05)*(r-0.05)*20,
			Efficient:    r >= 0.05,
		})
	}
	cloud := []optimization.FeasiblePoint{
		{Risk: 0.15, Return: 0.04},
		{Risk: 0.2, Return: 0.07},
		{Risk: 0.25, Return: 0.05},
	}
	return FrontierChart{
		Frontier:        points,
		Cloud:           cloud,
		Tangency:        &domain.SpecialPortfolio{Kind: domain.SpecialTangency, Risk: 0.118, Return: 0.08},
		MinimumVariance: &domain.SpecialPortfolio{Kind: domain.SpecialMinimumVariance, Risk: 0.1, Return: 0.05},
		RiskFreeRate:    0.01,
	}
}

func TestRenderFrontier(t *testing.T) {
	r := NewRenderer(zerolog.Nop())

	png, err := r.RenderFrontier(sampleChart())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))

	fc := sampleChart()
	fc.Cloud, fc.Tangency, fc.MinimumVariance = nil, nil, nil
	fc.Width, fc.Height = 400, 300
	png, err = r.RenderFrontier(fc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestRenderFrontier_TooFewPoints(t *testing.T) {
	r := NewRenderer(zerolog.Nop())
	fc := sampleChart()
	fc.Frontier = fc.Frontier[:1]
	_, err := r.RenderFrontier(fc)
	assert.ErrorContains(t, err, "at least 2")
}
