package scenario

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"quant-lab/internal/engine"
	"quant-lab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildSeries(n int, price func(i int) float64) model.Series {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, n)
	for i := 0; i < n; i++ {
		p := price(i)
		s[i] = model.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   p,
			High:   p * 1.01,
			Low:    p * 0.99,
			Close:  p,
			Volume: 1e6,
		}
	}
	return s
}

func wave(i int) float64 {
	return 100 + 15*math.Sin(float64(i)/11) + 0.05*float64(i)
}

func newTestEngine() *Engine {
	logger := zap.NewNop()
	return NewEngine(engine.NewWorkerPool(4, logger), logger)
}

func TestCompare(t *testing.T) {
	e := newTestEngine()
	series := buildSeries(260, wave)

	names := []string{"SMAAggressive", "SMAModerate", "RSI"}
	cmp, err := e.Compare(series, names)
	require.NoError(t, err)
	require.Len(t, cmp.Results, len(names))

	best, ok := cmp.Get(cmp.Best)
	require.True(t, ok)
	for _, r := range cmp.Results {
		assert.LessOrEqual(t, r.Metrics.SharpeRatio, best.SharpeRatio)
	}

	_, err = e.Compare(series, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	_, err = e.Compare(series, []string{"NoSuchStrategy"})
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestWalkForward_Validation(t *testing.T) {
	e := newTestEngine()

	_, err := e.WalkForward(buildSeries(200, wave), "SMA", 1)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	_, err = e.WalkForward(buildSeries(50, wave), "SMA", 3)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))

	_, err = e.WalkForward(buildSeries(200, wave), "Unknown", 3)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestWalkForward(t *testing.T) {
	e := newTestEngine()
	series := buildSeries(300, wave)

	res, err := e.WalkForward(series, "SMAAggressive", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res.Windows)
	assert.LessOrEqual(t, len(res.Windows), 2)
	assert.Equal(t, "SMAAggressive", res.Aggregate.StrategyName)

	for _, w := range res.Windows {
		assert.True(t, w.TestStart.After(w.TrainEnd))
		assert.NotEmpty(t, w.Metrics.Trades)
		// out-of-sample only
		for _, tr := range w.Metrics.Trades {
			assert.False(t, tr.Date.Before(w.TestStart))
		}
	}
	for i := 1; i < len(res.Aggregate.Trades); i++ {
		assert.False(t, res.Aggregate.Trades[i].Date.Before(res.Aggregate.Trades[i-1].Date))
	}
	for i := 1; i < len(res.Aggregate.EquityCurve); i++ {
		assert.True(t, res.Aggregate.EquityCurve[i].Date.After(res.Aggregate.EquityCurve[i-1].Date))
	}
}

func TestWalkForward_FlatSeriesGivesZeroAggregate(t *testing.T) {
	e := newTestEngine()
	flat := buildSeries(150, func(int) float64 { return 50 })

	res, err := e.WalkForward(flat, "SMA", 2)
	require.NoError(t, err)
	assert.Empty(t, res.Windows)
	assert.Equal(t, 0.0, res.Aggregate.TotalReturnPct)
	assert.Equal(t, 0.0, res.Aggregate.SharpeRatio)
	assert.Empty(t, res.Aggregate.Trades)
}

func TestAggregate(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2021, 1, d, 0, 0, 0, 0, time.UTC) }
	windows := []Window{
		{Metrics: model.BacktestMetrics{
			TotalReturnPct: 10, SharpeRatio: 1, MaxDrawdownPct: 5, WinRatePct: 100,
			Trades:      []model.Trade{{Date: day(3), Action: model.ActionBuy}},
			EquityCurve: []model.EquityPoint{{Date: day(3), Equity: 100}, {Date: day(4), Equity: 110}},
		}},
		{Metrics: model.BacktestMetrics{
			TotalReturnPct: -4, SharpeRatio: -1, MaxDrawdownPct: 12, WinRatePct: 0,
			Trades:      []model.Trade{{Date: day(1), Action: model.ActionBuy}},
			EquityCurve: []model.EquityPoint{{Date: day(1), Equity: 90}, {Date: day(4), Equity: 130}},
		}},
	}

	agg := aggregate(windows)
	assert.InDelta(t, 3.0, agg.TotalReturnPct, 1e-12)
	assert.InDelta(t, 0.0, agg.SharpeRatio, 1e-12)
	assert.InDelta(t, 50.0, agg.WinRatePct, 1e-12)
	assert.Equal(t, 12.0, agg.MaxDrawdownPct)
	require.Len(t, agg.Trades, 2)
	assert.Equal(t, day(1), agg.Trades[0].Date)

	require.Len(t, agg.EquityCurve, 3)
	assert.Equal(t, model.EquityPoint{Date: day(4), Equity: 120}, agg.EquityCurve[2])

	empty := aggregate(nil)
	assert.Equal(t, 0.0, empty.TotalReturnPct)
	assert.NotNil(t, empty.EquityCurve)
}

func TestMonteCarlo(t *testing.T) {
	e := newTestEngine()
	series := buildSeries(200, wave)
	ctx := context.Background()

	results, err := e.MonteCarlo(ctx, series, "SMAAggressive", 50, 42)
	require.NoError(t, err)
	require.Len(t, results, 50)
	for _, r := range results {
		assert.False(t, math.IsNaN(r.TotalReturnPct))
		assert.GreaterOrEqual(t, r.MaxDrawdownPct, 0.0)
		assert.LessOrEqual(t, r.MaxDrawdownPct, 100.0)
		assert.NotEmpty(t, r.EquityCurve)
	}

	again, err := e.MonteCarlo(ctx, series, "SMAAggressive", 50, 42)
	require.NoError(t, err)
	for i := range results {
		assert.Equal(t, results[i].TotalReturnPct, again[i].TotalReturnPct)
	}

	summary := SummarizeMonteCarlo(results)
	assert.Equal(t, 50, summary.Simulations)
	assert.GreaterOrEqual(t, summary.P95ReturnPct, summary.P5ReturnPct)
	assert.GreaterOrEqual(t, summary.WorstDrawdownPct, results[0].MaxDrawdownPct)
	assert.GreaterOrEqual(t, summary.LossProbability, 0.0)
	assert.LessOrEqual(t, summary.LossProbability, 1.0)
}

func TestMonteCarlo_Errors(t *testing.T) {
	e := newTestEngine()
	series := buildSeries(100, wave)

	_, err := e.MonteCarlo(context.Background(), series, "SMA", 0, 1)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	_, err = e.MonteCarlo(context.Background(), series, "Nope", 5, 1)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.MonteCarlo(ctx, series, "SMAAggressive", 5, 1)
	assert.Error(t, err)
}

func TestPerturb(t *testing.T) {
	series := buildSeries(100, wave)
	out := perturb(series, 0.5, rand.New(rand.NewSource(7)))

	require.Len(t, out, len(series))
	for i, p := range out {
		assert.Equal(t, series[i].Date, p.Date)
		assert.Equal(t, series[i].Volume, p.Volume)
		assert.Greater(t, p.Close, 0.0)
		assert.Greater(t, p.High, p.Close)
		assert.Less(t, p.Low, p.Close)
	}
	assert.NotEqual(t, simulationSeed(1, 0), simulationSeed(1, 1))
}

func TestStressTest(t *testing.T) {
	e := newTestEngine()
	series := buildSeries(200, wave)

	res, err := e.StressTest(series, "SMAModerate")
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 3)

	worst := res.Scenarios[0]
	for _, s := range res.Scenarios {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
		if s.Score < worst.Score {
			worst = s
		}
	}
	assert.Equal(t, worst.Name, res.Worst)
	assert.Equal(t, worst.Metrics.TotalReturnPct, res.Metrics.TotalReturnPct)

	_, err = e.StressTest(series, "Unknown")
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestScoreScenarios(t *testing.T) {
	results := []ScenarioResult{
		{Name: "good", Metrics: model.BacktestMetrics{TotalReturnPct: 10, SharpeRatio: 1, MaxDrawdownPct: 5, WinRatePct: 60}},
		{Name: "bad", Metrics: model.BacktestMetrics{TotalReturnPct: -5, SharpeRatio: -1, MaxDrawdownPct: 20, WinRatePct: 40}},
	}
	scoreScenarios(results)
	assert.InDelta(t, 1.0, results[0].Score, 1e-12)
	assert.InDelta(t, 0.0, results[1].Score, 1e-12)

	same := []ScenarioResult{{Name: "a"}, {Name: "b"}}
	scoreScenarios(same)
	assert.InDelta(t, 0.5, same[0].Score, 1e-12)
	assert.InDelta(t, 0.5, same[1].Score, 1e-12)
}
