package risk

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"quant-lab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seriesOf(closes []float64) model.Series {
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, len(closes))
	for i, c := range closes {
		s[i] = model.PricePoint{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return s
}

func TestAnalyzer_FlatSeries(t *testing.T) {
	a := NewAnalyzer(0.02, zap.NewNop())
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 42
	}

	m, err := a.Analyze(seriesOf(closes))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Volatility)
	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.SortinoRatio)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.CalmarRatio)
	assert.Equal(t, 1.0, m.Beta)
}

func TestAnalyzer_SmallPath(t *testing.T) {
	a := NewAnalyzer(0, zap.NewNop())
	m, err := a.AnalyzePrices([]float64{100, 110, 99})
	require.NoError(t, err)

	assert.InDelta(t, math.Log(0.9), m.ValueAtRisk95, 1e-12)
	assert.InDelta(t, math.Log(0.9), m.CVaR95, 1e-12)
	assert.InDelta(t, 0.1, m.MaxDrawdown, 1e-12)
	assert.Equal(t, 1.0, m.Beta)

	_, err = a.AnalyzePrices([]float64{1, 2})
	assert.True(t, errors.Is(err, model.ErrInsufficientData))

	_, err = a.AnalyzePrices([]float64{1, 0, 2})
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestAnalyzer_RandomWalkBounds(t *testing.T) {
	a := NewAnalyzer(0.02, zap.NewNop())
	rng := rand.New(rand.NewSource(7))

	closes := make([]float64, 300)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * (1 + rng.NormFloat64()*0.02)
	}

	m, err := a.Analyze(seriesOf(closes))
	require.NoError(t, err)
	assert.Greater(t, m.Volatility, 0.0)
	assert.GreaterOrEqual(t, m.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, m.MaxDrawdown, 1.0)
	assert.LessOrEqual(t, m.CVaR95, m.ValueAtRisk95)
	assert.Less(t, m.ValueAtRisk95, 0.0)
	assert.False(t, math.IsNaN(m.Beta))

	alpha := a.Alpha(closes, m.Beta)
	assert.False(t, math.IsNaN(alpha))
}

func TestVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01}
	assert.InDelta(t, 0.01*math.Sqrt(252), Volatility(returns), 1e-12)
}

func TestBeta_ShortInputDefaults(t *testing.T) {
	assert.Equal(t, 1.0, Beta(make([]float64, 10)))
}
