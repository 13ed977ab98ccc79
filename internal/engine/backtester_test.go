package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"quant-lab/internal/model"
	"quant-lab/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildSeries(n int, price func(i int) float64) model.Series {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, n)
	for i := 0; i < n; i++ {
		p := price(i)
		s[i] = model.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   p * 0.995,
			High:   p * 1.01,
			Low:    p * 0.99,
			Close:  p,
			Volume: 1e6 + float64(i%7)*1e4,
		}
	}
	return s
}

func wave(i int) float64 {
	return 100 + 12*math.Sin(float64(i)/9) + 0.05*float64(i)
}

func TestBacktester_IncreasingSeriesSingleBuy(t *testing.T) {
	bt := NewBacktester(zap.NewNop())
	strat, err := strategy.NewSMACrossover(5, 20)
	require.NoError(t, err)

	series := buildSeries(60, func(i int) float64 { return 100 + float64(i) })

	signals := bt.Signals(series, strat)
	var buys, sells int
	for i, a := range signals {
		switch a {
		case model.ActionBuy:
			buys++
			assert.Equal(t, 19, i)
		case model.ActionSell:
			sells++
		}
	}
	assert.Equal(t, 1, buys)
	assert.Equal(t, 0, sells)

	report, err := bt.Run(series, strat)
	require.NoError(t, err)
	require.Len(t, report.Trades, 1)

	trade := report.Trades[0]
	assert.Equal(t, model.ActionBuy, trade.Action)
	assert.Equal(t, int64(798), trade.Shares) // floor(100000*0.95/119)
	assert.Equal(t, 119.0, trade.Price)
	assert.Len(t, report.EquityCurve, 60-19)
	assert.Equal(t, 0.0, report.WinRatePct)

	final := 100000 - 798*119.0 + 798*159.0
	assert.InDelta(t, (final-100000)/100000*100, report.TotalReturnPct, 1e-9)
}

func TestBacktester_NoLookahead(t *testing.T) {
	bt := NewBacktester(zap.NewNop())
	series := buildSeries(200, wave)

	for _, name := range []string{"SMAAggressive", "RSI", "VolatilityBreakout"} {
		strat, err := strategy.Lookup(name)
		require.NoError(t, err)

		full := bt.Signals(series, strat)
		for _, k := range []int{40, 90, 150} {
			truncated := bt.Signals(series[:k+1], strat)
			assert.Equal(t, full[:k+1], truncated, "%s truncated at %d", name, k)
		}
	}
}

func TestBacktester_Deterministic(t *testing.T) {
	bt := NewBacktester(zap.NewNop())
	series := buildSeries(250, wave)

	for _, name := range []string{"SMAModerate", "RSI", "VolatilityBreakout"} {
		strat, _ := strategy.Lookup(name)
		a, err := bt.Run(series, strat)
		require.NoError(t, err)
		b, err := bt.Run(series, strat)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		assert.GreaterOrEqual(t, a.MaxDrawdownPct, 0.0)
		assert.LessOrEqual(t, a.MaxDrawdownPct, 100.0)
		assert.GreaterOrEqual(t, a.WinRatePct, 0.0)
		assert.LessOrEqual(t, a.WinRatePct, 100.0)
	}
}

// perDay hides any batch path of the embedded strategy.
type perDay struct {
	strategy.Strategy
}

func TestBacktester_BatchPathMatchesPerDay(t *testing.T) {
	bt := NewBacktester(zap.NewNop())
	series := buildSeries(250, wave)
	strat, err := strategy.Lookup("RSI")
	require.NoError(t, err)
	_, ok := strat.(strategy.Batch)
	require.True(t, ok)

	batched, err := bt.Run(series, strat)
	require.NoError(t, err)
	daily, err := bt.Run(series, perDay{strat})
	require.NoError(t, err)
	assert.Equal(t, daily, batched)
	assert.Equal(t, bt.Signals(series, perDay{strat}), bt.Signals(series, strat))
}

func TestBacktester_FlatSeries(t *testing.T) {
	bt := NewBacktester(zap.NewNop())
	series := buildSeries(80, func(int) float64 { return 50 })
	strat, _ := strategy.Lookup("RSI")

	report, err := bt.Run(series, strat)
	require.NoError(t, err)
	assert.Empty(t, report.Trades)
	assert.Equal(t, 0.0, report.SharpeRatio)
	assert.Equal(t, 0.0, report.MaxDrawdownPct)
	assert.Equal(t, 0.0, report.TotalReturnPct)
}

func TestBacktester_RunFrom(t *testing.T) {
	bt := NewBacktester(zap.NewNop())
	series := buildSeries(120, wave)
	strat, _ := strategy.Lookup("SMAAggressive")

	report, err := bt.RunFrom(series, strat, 100)
	require.NoError(t, err)
	assert.Len(t, report.EquityCurve, 20)
	assert.Equal(t, series[100].Date, report.EquityCurve[0].Date)

	_, err = bt.Run(series[:10], strat)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}

func TestWinRatePct(t *testing.T) {
	trades := []model.Trade{
		{Action: model.ActionBuy, Price: 10},
		{Action: model.ActionSell, Price: 12},
		{Action: model.ActionBuy, Price: 12},
		{Action: model.ActionSell, Price: 11},
		{Action: model.ActionBuy, Price: 11},
	}
	assert.Equal(t, 50.0, winRatePct(trades))
	assert.Equal(t, 0.0, winRatePct(nil))
}

type faultyStrategy struct {
	strategy.Strategy
	failAt int
}

func (f faultyStrategy) Signal(history model.Series) (model.Action, error) {
	if len(history)-1 == f.failAt {
		panic("boom")
	}
	if len(history)-1 == f.failAt+1 {
		return model.ActionHold, errors.New("indicator blew up")
	}
	return f.Strategy.Signal(history)
}

func TestBacktester_SignalFailureDegradesToHold(t *testing.T) {
	bt := NewBacktester(zap.NewNop())
	series := buildSeries(60, func(i int) float64 { return 100 + float64(i) })
	base, _ := strategy.NewSMACrossover(5, 20)

	// the only golden cross happens at index 19; dropping it leaves no trades
	report, err := bt.Run(series, faultyStrategy{Strategy: base, failAt: 19})
	require.NoError(t, err)
	assert.Empty(t, report.Trades)
	assert.Len(t, report.EquityCurve, 41)
}
