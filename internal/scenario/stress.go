package scenario

import (
	"fmt"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"
	"quant-lab/internal/strategy"

	"go.uber.org/zap"
)

const (
	ScenarioBearMarket     = "bearMarket"
	ScenarioHighVolatility = "highVolatility"
	ScenarioLowLiquidity   = "lowLiquidity"
)

// score weights for the worst-scenario pick
const (
	weightReturn   = 0.3
	weightSharpe   = 0.3
	weightDrawdown = 0.25
	weightWinRate  = 0.15
)

type stressScenario struct {
	name      string
	transform func(model.PricePoint) model.PricePoint
}

var stressScenarios = []stressScenario{
	{ScenarioBearMarket, func(p model.PricePoint) model.PricePoint {
		p.Open *= 0.95
		p.High *= 0.95
		p.Low *= 0.95
		p.Close *= 0.95
		return p
	}},
	{ScenarioHighVolatility, func(p model.PricePoint) model.PricePoint {
		p.Open *= 1.1
		p.High *= 1.2
		p.Low *= 0.8
		p.Close *= 0.9
		return p
	}},
	{ScenarioLowLiquidity, func(p model.PricePoint) model.PricePoint {
		p.Volume /= 2
		return p
	}},
}

type ScenarioResult struct {
	Name    string                `json:"name"`
	Metrics model.BacktestMetrics `json:"metrics"`
	Score   float64               `json:"score"`
}

type StressResult struct {
	Worst     string                `json:"worst"`
	Metrics   model.BacktestMetrics `json:"metrics"`
	Scenarios []ScenarioResult      `json:"scenarios"`
}

// StressTest replays the named strategy under each stress scenario and reports the
// one with the lowest composite score.
func (e *Engine) StressTest(series model.Series, name string) (StressResult, error) {
	strat, err := strategy.Lookup(name)
	if err != nil {
		return StressResult{}, err
	}

	results := make([]ScenarioResult, 0, len(stressScenarios))
	for _, sc := range stressScenarios {
		stressed := make(model.Series, len(series))
		for i, p := range series {
			stressed[i] = sc.transform(p)
		}
		m, err := e.backtester.Run(stressed, strat)
		if err != nil {
			return StressResult{}, fmt.Errorf("stress scenario %s: %w", sc.name, err)
		}
		results = append(results, ScenarioResult{Name: sc.name, Metrics: m})
	}

	scoreScenarios(results)
	worst := 0
	for i, r := range results {
		if r.Score < results[worst].Score {
			worst = i
		}
	}

	e.logger.Info("stress test finished",
		zap.String("strategy", name),
		zap.String("worst", results[worst].Name),
		zap.Float64("score", results[worst].Score),
	)
	return StressResult{
		Worst:     results[worst].Name,
		Metrics:   results[worst].Metrics,
		Scenarios: results,
	}, nil
}

// scoreScenarios min-max normalizes each metric across the scenarios, inverting
// drawdown, and fills in the weighted score. Higher is better.
func scoreScenarios(results []ScenarioResult) {
	pick := func(f func(model.BacktestMetrics) float64) []float64 {
		out := make([]float64, len(results))
		for i, r := range results {
			out[i] = f(r.Metrics)
		}
		return out
	}
	returns := pick(func(m model.BacktestMetrics) float64 { return m.TotalReturnPct })
	sharpes := pick(func(m model.BacktestMetrics) float64 { return m.SharpeRatio })
	drawdowns := pick(func(m model.BacktestMetrics) float64 { return m.MaxDrawdownPct })
	winRates := pick(func(m model.BacktestMetrics) float64 { return m.WinRatePct })

	for i := range results {
		results[i].Score = normalize(returns, i)*weightReturn +
			normalize(sharpes, i)*weightSharpe +
			(1-normalize(drawdowns, i))*weightDrawdown +
			normalize(winRates, i)*weightWinRate
	}
}

// normalize maps values[i] into [0, 1]; a constant metric scores 0.5.
func normalize(values []float64, i int) float64 {
	lo, hi := stats.MinMax(values)
	if hi == lo {
		return 0.5
	}
	return (values[i] - lo) / (hi - lo)
}
