package classifier

import (
	"context"
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

func buildSeries(n int, price func(i int) float64) model.Series {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, n)
	for i := 0; i < n; i++ {
		p := price(i)
		s[i] = model.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   p * 0.995,
			High:   p * 1.01,
			Low:    p * 0.985,
			Close:  p,
			Volume: 1e6 + 3e5*math.Sin(float64(i)/3),
		}
	}
	return s
}

func wave(i int) float64 {
	return 60 + 8*math.Sin(float64(i)/9) + 3*math.Cos(float64(i)/4) + 0.04*float64(i)
}

func TestExtractFeatures(t *testing.T) {
	series := buildSeries(250, wave)
	rows, err := ExtractFeatures(series)
	require.NoError(t, err)
	require.Len(t, rows, 250-WarmupBars)

	for _, r := range rows {
		require.Len(t, r, len(FeatureNames))
		for _, v := range r {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}

	last := rows[len(rows)-1]
	rsi := last[16]
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
	trend := last[21]
	assert.GreaterOrEqual(t, trend, -1.0)
	assert.LessOrEqual(t, trend, 1.0)

	_, err = ExtractFeatures(buildSeries(WarmupBars, wave))
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}

func TestExtractFeatures_NoLookahead(t *testing.T) {
	series := buildSeries(260, wave)
	full, err := ExtractFeatures(series)
	require.NoError(t, err)
	cut, err := ExtractFeatures(series[:230])
	require.NoError(t, err)

	for k := range cut {
		for j := range cut[k] {
			// gct-ta columns are excluded
			if FeatureNames[j] == "macd" || FeatureNames[j] == "atr" || FeatureNames[j] == "obv" {
				continue
			}
			assert.InDelta(t, full[k][j], cut[k][j], 1e-9, "row %d %s", k, FeatureNames[j])
		}
	}
}

func TestMakeLabels(t *testing.T) {
	up := buildSeries(220, func(i int) float64 { return 10 + float64(i) })
	labels, err := MakeLabels(up, 5)
	require.NoError(t, err)
	require.Len(t, labels, 20)
	for _, l := range labels {
		assert.Equal(t, 1, l)
	}

	down := buildSeries(220, func(i int) float64 { return 1000 - float64(i) })
	labels, err = MakeLabels(down, 3)
	require.NoError(t, err)
	for _, l := range labels {
		assert.Equal(t, 0, l)
	}

	// tail rows repeat the last label that could be computed
	mixed := buildSeries(210, func(i int) float64 {
		if i < 205 {
			return 100 - float64(i)*0.1
		}
		return 200 + float64(i)
	})
	labels, err = MakeLabels(mixed, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 1, 1, 1, 1, 1, 1}, labels)

	_, err = MakeLabels(up, 0)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestNormalize(t *testing.T) {
	rows := [][]float64{
		{1, 5, math.NaN()},
		{3, 5, 2},
		{2, 5, 4},
	}
	out := Normalize(rows)
	require.Len(t, out, 3)

	assert.Equal(t, 0.0, out[0][0])
	assert.Equal(t, 1.0, out[1][0])
	assert.Equal(t, 0.5, out[2][0])
	// constant column is left unscaled
	assert.Equal(t, 5.0, out[1][1])
	assert.Equal(t, 0.0, out[0][2])
	assert.Nil(t, Normalize(nil))
}

func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		v := float64(i) / float64(n)
		x[i] = []float64{v, rng.Float64(), rng.Float64()}
		if v >= 0.5 {
			y[i] = 1
		}
	}
	return x, y
}

func TestForest(t *testing.T) {
	x, y := separable(120, 3)
	cfg := ForestConfig{Trees: 40, MaxDepth: 6, MaxFeatures: 3, MinSamplesSplit: 4, MinSamplesLeaf: 2, Bootstrap: true, Workers: 4}

	forest := NewForest(cfg, zap.NewNop())
	assert.False(t, forest.Trained())
	_, err := forest.PredictProba([]float64{0.5, 0.5, 0.5})
	assert.True(t, errors.Is(err, model.ErrIllegalState))

	require.NoError(t, forest.Train(context.Background(), x, y, 42))
	assert.True(t, forest.Trained())

	class, err := forest.Predict([]float64{0.95, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1, class)
	class, err = forest.Predict([]float64{0.05, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, class)

	twin := NewForest(cfg, zap.NewNop())
	require.NoError(t, twin.Train(context.Background(), x, y, 42))
	for _, sample := range [][]float64{{0.2, 0.1, 0.9}, {0.49, 0.7, 0.3}, {0.51, 0.2, 0.2}} {
		a, err := forest.PredictProba(sample)
		require.NoError(t, err)
		b, err := twin.PredictProba(sample)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.GreaterOrEqual(t, a, 0.0)
		assert.LessOrEqual(t, a, 1.0)
	}
}

func TestForest_Errors(t *testing.T) {
	forest := NewForest(ForestConfig{Trees: 5, MaxDepth: 3}, zap.NewNop())
	err := forest.Train(context.Background(), [][]float64{{1}, {2}}, []int{1}, 1)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x, y := separable(20, 1)
	assert.Error(t, forest.Train(ctx, x, y, 1))
	assert.False(t, forest.Trained())
}

func TestConfigFor(t *testing.T) {
	small := ConfigFor(60, 23)
	assert.Equal(t, 50, small.Trees)
	assert.Equal(t, 8, small.MaxDepth)
	assert.Equal(t, 11, small.MaxFeatures)
	assert.Equal(t, 4, small.MinSamplesSplit)
	assert.Equal(t, 2, small.MinSamplesLeaf)

	large := ConfigFor(2000, 23)
	assert.Equal(t, 200, large.Trees)
	assert.Equal(t, 14, large.MaxDepth)
	assert.Equal(t, 10, large.MinSamplesSplit)
	assert.Equal(t, 5, large.MinSamplesLeaf)
}

func TestTreeLeafMajority(t *testing.T) {
	b := &treeBuilder{y: []int{1, 0, 1, 0}}
	assert.Equal(t, 1, b.leaf([]int{0, 1}).class)
	assert.Equal(t, 0, b.leaf([]int{1, 3}).class)
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit(" weeks ")
	require.NoError(t, err)
	assert.Equal(t, UnitWeeks, u)

	_, err = ParseUnit("YEARS")
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	asOf := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), UnitDays.add(asOf, 3))
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), UnitWeeks.add(asOf, 2))
	assert.Equal(t, 10, UnitWeeks.bars(2))
	assert.Equal(t, 21, UnitMonths.bars(1))
}

func TestPredictor(t *testing.T) {
	series := buildSeries(330, wave)
	p := NewPredictor(11, 4, zap.NewNop())

	resp, err := p.Predict(context.Background(), "AAPL", series, 2, UnitWeeks)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", resp.Symbol)
	assert.Equal(t, series.Last().Date, resp.AsOfDate)
	assert.Equal(t, series.Last().Date.AddDate(0, 0, 14), resp.TargetDate)
	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
	assert.Equal(t, resp.Confidence > 0.5, resp.PriceGoingUp)
	assert.Equal(t, direction(resp.PriceGoingUp), resp.Direction)
	assert.Contains(t, resp.Indicators, "RSI")
	assert.Contains(t, resp.Indicators, "volatilityRegime")

	again, err := p.Predict(context.Background(), "AAPL", series, 2, UnitWeeks)
	require.NoError(t, err)
	assert.Equal(t, resp.Confidence, again.Confidence)
}

func TestPredictor_Errors(t *testing.T) {
	p := NewPredictor(1, 2, zap.NewNop())
	ctx := context.Background()

	_, err := p.Predict(ctx, "AAPL", buildSeries(WarmupBars+MinTrainingRows-1, wave), 1, UnitDays)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))

	_, err = p.Predict(ctx, "AAPL", buildSeries(300, wave), 1, Unit("YEARS"))
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	_, err = p.Predict(ctx, "", buildSeries(300, wave), 1, UnitDays)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	_, err = p.Predict(ctx, "AAPL", buildSeries(300, wave), 0, UnitDays)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}
