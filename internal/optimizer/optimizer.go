// Package optimizer searches regime-adapted strategy parameters and explains the
// winner: each candidate is backtested, its equity curve run through the risk
// analyzer, and the result scored with caller-supplied metric weights.
package optimizer

import (
	"fmt"
	"math"
	"sort"

	"quant-lab/internal/engine"
	"quant-lab/internal/model"
	"quant-lab/internal/risk"
	"quant-lab/internal/strategy"

	"go.uber.org/zap"
)

// MinBars is the shortest series the optimizer accepts
const MinBars = 60

// Preferences steer the search and the risk constraints
type Preferences struct {
	VolatilityThreshold  float64            `json:"volatility_threshold"`
	MaxDrawdownThreshold float64            `json:"max_drawdown_threshold"`
	MinSharpeRatio       float64            `json:"min_sharpe_ratio"`
	RiskFreeRate         float64            `json:"risk_free_rate"`
	AdaptToMarket        bool               `json:"adapt_to_market"`
	MetricWeights        map[string]float64 `json:"metric_weights"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		VolatilityThreshold:  0.3,
		MaxDrawdownThreshold: 0.2,
		MinSharpeRatio:       1.0,
		RiskFreeRate:         0.02,
		AdaptToMarket:        true,
		MetricWeights: map[string]float64{
			"return":      0.3,
			"sharpe":      0.2,
			"maxDrawdown": 0.2,
			"volatility":  0.15,
			"sortino":     0.15,
		},
	}
}

// Candidate is the evaluation of one parameter set
type Candidate struct {
	Parameters  model.ParameterSet `json:"parameters"`
	Score       float64            `json:"score"`
	ReturnPct   float64            `json:"return_pct"`
	RiskMetrics model.RiskMetrics  `json:"risk_metrics"`
}

type Report struct {
	Outcome            model.OptimizationOutcome `json:"outcome"`
	Backtest           model.BacktestMetrics     `json:"backtest"`
	PerformanceMetrics map[string]float64        `json:"performance_metrics"`
	MarketConditions   model.MarketConditions    `json:"market_conditions"`
	MarketRisk         model.RiskMetrics         `json:"market_risk"`
	Thresholds         Thresholds                `json:"thresholds"`
	MeetsConstraints   bool                      `json:"meets_constraints"`
	Volume             VolumeMetrics             `json:"volume"`
	Rolling            RollingMetrics            `json:"rolling"`
	Streaks            StreakAnalysis            `json:"streaks"`
	Feedback           Feedback                  `json:"feedback"`
	Candidates         []Candidate               `json:"candidates"`
}

type Optimizer struct {
	series     model.Series
	kind       strategy.Kind
	prefs      Preferences
	conditions model.MarketConditions
	backtester *engine.Backtester
	analyzer   *risk.Analyzer
	logger     *zap.Logger
}

// New validates the inputs and computes the market conditions once.
func New(series model.Series, kind strategy.Kind, prefs Preferences, logger *zap.Logger) (*Optimizer, error) {
	if len(series) < MinBars {
		return nil, fmt.Errorf("%w: optimizer needs %d bars, have %d", model.ErrInsufficientData, MinBars, len(series))
	}
	if prefs.MetricWeights == nil {
		prefs.MetricWeights = DefaultPreferences().MetricWeights
	}
	return &Optimizer{
		series:     series,
		kind:       kind,
		prefs:      prefs,
		conditions: AnalyzeMarketConditions(series),
		backtester: engine.NewBacktester(logger),
		analyzer:   risk.NewAnalyzer(prefs.RiskFreeRate, logger),
		logger:     logger,
	}, nil
}

func (o *Optimizer) MarketConditions() model.MarketConditions {
	return o.conditions
}

// evaluation is the immutable result of scoring one parameter set
type evaluation struct {
	params   model.ParameterSet
	backtest model.BacktestMetrics
	risk     model.RiskMetrics
	metrics  map[string]float64
	score    float64
}

func (o *Optimizer) Optimize() (Report, error) {
	grid, err := Grid(o.kind, o.conditions, o.prefs)
	if err != nil {
		return Report{}, err
	}

	var (
		best       *evaluation
		candidates = make([]Candidate, 0, len(grid))
	)
	for _, params := range grid {
		ev, err := o.evaluate(params)
		if err != nil {
			o.logger.Warn("skipping candidate",
				zap.Stringer("params", params),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, Candidate{
			Parameters:  ev.params,
			Score:       ev.score,
			ReturnPct:   ev.backtest.TotalReturnPct,
			RiskMetrics: ev.risk,
		})
		if best == nil || ev.score > best.score {
			best = &ev
		}
	}
	if best == nil {
		return Report{}, fmt.Errorf("%w: no %s candidate could be evaluated on %d bars", model.ErrInsufficientData, o.kind, len(o.series))
	}

	marketRisk, err := o.analyzer.Analyze(o.series)
	if err != nil {
		return Report{}, err
	}

	volume := AnalyzeVolume(o.series)
	rolling := Rolling(o.series, o.prefs.RiskFreeRate)

	metrics := make(map[string]float64, len(best.metrics)+4)
	for k, v := range best.metrics {
		metrics[k] = v
	}
	metrics["volumeVolatility"] = volume.VolumeVolatility
	metrics["volumeTrend"] = volume.VolumeTrend
	metrics["volumeMomentum"] = volume.VolumeMomentum
	metrics["priceVolumeCorrelation"] = volume.PriceVolumeCorrelation

	report := Report{
		Outcome: model.OptimizationOutcome{
			Parameters: best.params,
			Result: model.OptimizationResult{
				Parameters:     best.params,
				TotalReturnPct: best.backtest.TotalReturnPct,
			},
			Score:       best.score,
			RiskMetrics: best.risk,
		},
		Backtest:           best.backtest,
		PerformanceMetrics: metrics,
		MarketConditions:   o.conditions,
		MarketRisk:         marketRisk,
		Thresholds:         DynamicThresholds(o.prefs, o.conditions),
		MeetsConstraints:   o.MeetsRiskConstraints(best.risk),
		Volume:             volume,
		Rolling:            rolling,
		Streaks:            AnalyzeStreaks(rolling.Returns),
		Feedback:           buildFeedback(o.prefs, o.conditions, best.risk, metrics, volume),
		Candidates:         candidates,
	}

	o.logger.Info("optimization finished",
		zap.String("strategy", string(o.kind)),
		zap.Int("candidates", len(candidates)),
		zap.Stringer("best", best.params),
		zap.Float64("score", best.score),
		zap.String("risk_level", string(report.Feedback.RiskAssessment.Level)),
	)
	return report, nil
}

func (o *Optimizer) evaluate(params model.ParameterSet) (evaluation, error) {
	strat, err := strategy.New(o.kind, params)
	if err != nil {
		return evaluation{}, err
	}
	bt, err := o.backtester.Run(o.series, strat)
	if err != nil {
		return evaluation{}, err
	}
	rm, err := o.analyzer.AnalyzeEquity(bt.EquityCurve)
	if err != nil {
		return evaluation{}, err
	}
	metrics := o.performanceMetrics(bt, rm)
	return evaluation{
		params:   params,
		backtest: bt,
		risk:     rm,
		metrics:  metrics,
		score:    WeightedScore(metrics, o.prefs.MetricWeights),
	}, nil
}

// performanceMetrics negates the risk entries so that larger is better for every weighted name.
func (o *Optimizer) performanceMetrics(bt model.BacktestMetrics, rm model.RiskMetrics) map[string]float64 {
	equity := make([]float64, len(bt.EquityCurve))
	for i, p := range bt.EquityCurve {
		equity[i] = p.Equity
	}
	return map[string]float64{
		"return":      bt.TotalReturnPct / 100,
		"sharpe":      rm.SharpeRatio,
		"maxDrawdown": -rm.MaxDrawdown,
		"volatility":  -rm.Volatility,
		"sortino":     rm.SortinoRatio,
		"beta":        rm.Beta,
		"alpha":       o.analyzer.Alpha(equity, rm.Beta),
		"cvar":        -rm.CVaR95,
		"calmar":      rm.CalmarRatio,
	}
}

// WeightedScore sums weight*metric over the weighted names present in metrics.
func WeightedScore(metrics, weights map[string]float64) float64 {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var score float64
	for _, name := range names {
		if v, ok := metrics[name]; ok && !math.IsNaN(v) {
			score += weights[name] * v
		}
	}
	return score
}

// MeetsRiskConstraints checks the candidate against the baseline preferences.
func (o *Optimizer) MeetsRiskConstraints(rm model.RiskMetrics) bool {
	return rm.Volatility <= o.prefs.VolatilityThreshold &&
		rm.MaxDrawdown <= o.prefs.MaxDrawdownThreshold &&
		rm.SharpeRatio >= o.prefs.MinSharpeRatio
}
