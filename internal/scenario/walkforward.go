package scenario

import (
	"fmt"
	"math"
	"sort"
	"time"

	"quant-lab/internal/model"
	"quant-lab/internal/optimizer"
	"quant-lab/internal/strategy"

	"go.uber.org/zap"
)

const (
	// MinWalkForwardBars is the shortest series walk-forward accepts
	MinWalkForwardBars = 100
	MinWindows         = 2
)

// Window describes one train/test split and the parameters picked on it.
type Window struct {
	TrainStart time.Time             `json:"train_start"`
	TrainEnd   time.Time             `json:"train_end"`
	TestStart  time.Time             `json:"test_start"`
	TestEnd    time.Time             `json:"test_end"`
	Parameters model.ParameterSet    `json:"parameters"`
	Metrics    model.BacktestMetrics `json:"metrics"`
}

type WalkForwardResult struct {
	Aggregate model.BacktestMetrics `json:"aggregate"`
	Windows   []Window              `json:"windows"`
}

// WalkForward cuts the series into equal windows. Window i trains on slice i and
// tests on slice i+1: parameters are chosen by in-sample Sharpe, then the
// out-of-sample days are replayed with the training bars as lookback only.
func (e *Engine) WalkForward(series model.Series, name string, windows int) (WalkForwardResult, error) {
	if windows < MinWindows {
		return WalkForwardResult{}, fmt.Errorf("%w: walk-forward needs at least %d windows, got %d",
			model.ErrInvalidArgument, MinWindows, windows)
	}
	if len(series) < MinWalkForwardBars {
		return WalkForwardResult{}, fmt.Errorf("%w: walk-forward needs %d bars, have %d",
			model.ErrInsufficientData, MinWalkForwardBars, len(series))
	}
	base, err := strategy.Lookup(name)
	if err != nil {
		return WalkForwardResult{}, err
	}

	size := len(series) / windows
	if size < 1 {
		size = 1
	}

	var kept []Window
	for i := 0; i < windows-1; i++ {
		trainStart, trainEnd := i*size, (i+1)*size
		testEnd := (i + 2) * size
		if testEnd > len(series) || i == windows-2 {
			testEnd = len(series)
		}
		if trainEnd >= testEnd {
			break
		}

		train := series[trainStart:trainEnd]
		strat := e.fitWindow(train, base)

		m, err := e.backtester.RunFrom(series[trainStart:testEnd], strat, trainEnd-trainStart)
		if err != nil {
			e.logger.Warn("skipping walk-forward window",
				zap.Int("window", i),
				zap.String("strategy", name),
				zap.Error(err),
			)
			continue
		}
		if len(m.Trades) == 0 {
			continue
		}
		m.StrategyName = name
		kept = append(kept, Window{
			TrainStart: series[trainStart].Date,
			TrainEnd:   series[trainEnd-1].Date,
			TestStart:  series[trainEnd].Date,
			TestEnd:    series[testEnd-1].Date,
			Parameters: strat.Params(),
			Metrics:    m,
		})
	}

	result := WalkForwardResult{Aggregate: aggregate(kept), Windows: kept}
	result.Aggregate.StrategyName = name
	if result.Windows == nil {
		result.Windows = []Window{}
	}

	e.logger.Info("walk-forward finished",
		zap.String("strategy", name),
		zap.Int("windows", windows),
		zap.Int("kept", len(kept)),
		zap.Float64("return_pct", result.Aggregate.TotalReturnPct),
	)
	return result, nil
}

// fitWindow returns the candidate with the best in-sample Sharpe, or base when no
// candidate fits the training slice.
func (e *Engine) fitWindow(train model.Series, base strategy.Strategy) strategy.Strategy {
	prefs := optimizer.DefaultPreferences()
	prefs.AdaptToMarket = false
	grid, err := optimizer.Grid(base.Kind(), model.MarketConditions{}, prefs)
	if err != nil {
		return base
	}

	best, bestSharpe := base, math.Inf(-1)
	for _, params := range grid {
		candidate, err := strategy.New(base.Kind(), params)
		if err != nil {
			continue
		}
		m, err := e.backtester.Run(train, candidate)
		if err != nil {
			continue
		}
		if m.SharpeRatio > bestSharpe {
			best, bestSharpe = candidate, m.SharpeRatio
		}
	}
	return best
}

// aggregate averages return, Sharpe and win rate across windows, keeps the worst
// drawdown, merges trades by date and averages equity values sharing a date.
func aggregate(windows []Window) model.BacktestMetrics {
	out := model.BacktestMetrics{
		Trades:      []model.Trade{},
		EquityCurve: []model.EquityPoint{},
	}
	if len(windows) == 0 {
		return out
	}

	type bucket struct {
		sum   float64
		count int
	}
	equity := make(map[time.Time]*bucket)

	n := float64(len(windows))
	for _, w := range windows {
		m := w.Metrics
		out.TotalReturnPct += m.TotalReturnPct / n
		out.SharpeRatio += m.SharpeRatio / n
		out.WinRatePct += m.WinRatePct / n
		out.MaxDrawdownPct = math.Max(out.MaxDrawdownPct, m.MaxDrawdownPct)
		out.Trades = append(out.Trades, m.Trades...)
		for _, p := range m.EquityCurve {
			b, ok := equity[p.Date]
			if !ok {
				b = &bucket{}
				equity[p.Date] = b
			}
			b.sum += p.Equity
			b.count++
		}
	}

	sort.SliceStable(out.Trades, func(i, j int) bool {
		return out.Trades[i].Date.Before(out.Trades[j].Date)
	})
	for date, b := range equity {
		out.EquityCurve = append(out.EquityCurve, model.EquityPoint{Date: date, Equity: b.sum / float64(b.count)})
	}
	sort.Slice(out.EquityCurve, func(i, j int) bool {
		return out.EquityCurve[i].Date.Before(out.EquityCurve[j].Date)
	})
	return out
}
