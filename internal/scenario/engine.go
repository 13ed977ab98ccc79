// Package scenario runs the advanced backtests: side-by-side comparison,
// walk-forward validation, Monte Carlo re-sampling and stress scenarios.
package scenario

import (
	"fmt"
	"math"

	"quant-lab/internal/engine"
	"quant-lab/internal/model"
	"quant-lab/internal/strategy"

	"go.uber.org/zap"
)

// Engine shares one stateless backtester and a worker pool across requests.
type Engine struct {
	backtester *engine.Backtester
	pool       *engine.WorkerPool
	logger     *zap.Logger
}

func NewEngine(pool *engine.WorkerPool, logger *zap.Logger) *Engine {
	return &Engine{
		backtester: engine.NewBacktester(logger),
		pool:       pool,
		logger:     logger,
	}
}

// StrategyResult pairs a strategy name with its backtest.
type StrategyResult struct {
	Name    string                `json:"name"`
	Metrics model.BacktestMetrics `json:"metrics"`
}

type Comparison struct {
	Results []StrategyResult `json:"results"`
	Best    string           `json:"best"`
}

// Get returns the result recorded for name.
func (c Comparison) Get(name string) (model.BacktestMetrics, bool) {
	for _, r := range c.Results {
		if r.Name == name {
			return r.Metrics, true
		}
	}
	return model.BacktestMetrics{}, false
}

// Compare backtests each named strategy on the same series. Best is the highest
// Sharpe ratio; ties keep the earlier name.
func (e *Engine) Compare(series model.Series, names []string) (Comparison, error) {
	if len(names) == 0 {
		return Comparison{}, fmt.Errorf("%w: no strategies to compare", model.ErrInvalidArgument)
	}

	out := Comparison{Results: make([]StrategyResult, 0, len(names))}
	bestSharpe := math.Inf(-1)
	for _, name := range names {
		strat, err := strategy.Lookup(name)
		if err != nil {
			return Comparison{}, err
		}
		m, err := e.backtester.Run(series, strat)
		if err != nil {
			return Comparison{}, fmt.Errorf("compare %s: %w", name, err)
		}
		out.Results = append(out.Results, StrategyResult{Name: name, Metrics: m})
		if m.SharpeRatio > bestSharpe {
			bestSharpe = m.SharpeRatio
			out.Best = name
		}
	}
	if out.Best == "" {
		out.Best = out.Results[0].Name
	}

	e.logger.Info("strategies compared",
		zap.Strings("strategies", names),
		zap.String("best", out.Best),
	)
	return out, nil
}
