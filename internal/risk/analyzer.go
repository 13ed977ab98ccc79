// Package risk derives volatility, tail-loss, drawdown and risk-adjusted return
// measures from a price (or equity) path. All returns are log returns.
package risk

import (
	"fmt"
	"math"
	"sort"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"

	"go.uber.org/zap"
)

const (
	// MinPrices is the shortest path the analyzer accepts
	MinPrices = 3
	// BetaWindow is the moving-average length of the benchmark proxy
	BetaWindow = 20
	// DefaultRiskFreeRate is the annual rate used when none is configured
	DefaultRiskFreeRate = 0.02

	varConfidenceTail = 0.05
	defaultBeta       = 1.0
)

type Analyzer struct {
	riskFreeRate float64
	logger       *zap.Logger
}

func NewAnalyzer(riskFreeRate float64, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		riskFreeRate: riskFreeRate,
		logger:       logger,
	}
}

func (a *Analyzer) RiskFreeRate() float64 {
	return a.riskFreeRate
}

// Analyze computes the risk profile of a series' closes.
func (a *Analyzer) Analyze(series model.Series) (model.RiskMetrics, error) {
	return a.AnalyzePrices(series.Closes())
}

// AnalyzeEquity computes the risk profile of a backtest equity curve.
func (a *Analyzer) AnalyzeEquity(curve []model.EquityPoint) (model.RiskMetrics, error) {
	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Equity
	}
	return a.AnalyzePrices(values)
}

func (a *Analyzer) AnalyzePrices(prices []float64) (model.RiskMetrics, error) {
	if len(prices) < MinPrices {
		return model.RiskMetrics{}, fmt.Errorf("%w: risk analysis needs %d prices, have %d", model.ErrInsufficientData, MinPrices, len(prices))
	}
	for _, p := range prices {
		if p <= 0 {
			return model.RiskMetrics{}, fmt.Errorf("%w: non-positive price %v", model.ErrInvalidArgument, p)
		}
	}

	returns := stats.LogReturns(prices)
	volatility := Volatility(returns)
	valueAtRisk, cvar := tailRisk(returns)
	maxDD := stats.MaxDrawdown(prices)
	beta := Beta(returns)

	annualReturn := stats.Mean(returns) * stats.TradingDaysPerYear
	var sharpe float64
	if volatility > 0 {
		sharpe = (annualReturn - a.riskFreeRate) / volatility
	}

	var sortino float64
	if dd := downsideDeviation(returns) * math.Sqrt(stats.TradingDaysPerYear); dd > 0 {
		sortino = (annualReturn - a.riskFreeRate) / dd
	}

	var calmar float64
	if maxDD > 0 {
		total := prices[len(prices)-1]/prices[0] - 1
		annualized := math.Pow(1+total, stats.TradingDaysPerYear/float64(len(returns))) - 1
		calmar = annualized / maxDD
	}

	if math.Abs(beta) > 3 {
		a.logger.Warn("unusual beta against moving-average proxy", zap.Float64("beta", beta))
	}

	return model.RiskMetrics{
		Volatility:    volatility,
		ValueAtRisk95: valueAtRisk,
		MaxDrawdown:   maxDD,
		Beta:          beta,
		SharpeRatio:   stats.Finite(sharpe),
		SortinoRatio:  stats.Finite(sortino),
		CVaR95:        cvar,
		CalmarRatio:   stats.Finite(calmar),
	}, nil
}

// Alpha is Jensen's alpha of the path against the moving-average proxy, both
// annualized geometrically from their mean daily log return.
func (a *Analyzer) Alpha(prices []float64, beta float64) float64 {
	returns := stats.LogReturns(prices)
	proxy, aligned := benchmarkProxy(returns)
	if len(proxy) == 0 {
		return 0
	}
	assetAnnual := math.Exp(stats.Mean(aligned)*stats.TradingDaysPerYear) - 1
	proxyAnnual := math.Exp(stats.Mean(proxy)*stats.TradingDaysPerYear) - 1
	alpha := (assetAnnual - a.riskFreeRate) - beta*(proxyAnnual-a.riskFreeRate)
	if math.Abs(alpha) > 1 {
		a.logger.Warn("unusual alpha", zap.Float64("alpha", alpha), zap.Float64("beta", beta))
	}
	return stats.Finite(alpha)
}

// Volatility annualizes the population deviation of daily returns.
func Volatility(returns []float64) float64 {
	return math.Sqrt(stats.PopulationVariance(returns) * stats.TradingDaysPerYear)
}

// tailRisk returns the empirical 5% quantile and the mean of every return at or below it.
func tailRisk(returns []float64) (valueAtRisk, cvar float64) {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(len(sorted)) * varConfidenceTail))
	valueAtRisk = sorted[idx]
	cvar = stats.Mean(sorted[:idx+1])
	return valueAtRisk, cvar
}

// downsideDeviation uses only negative returns, measured from the overall mean.
func downsideDeviation(returns []float64) float64 {
	mean := stats.Mean(returns)
	var sum float64
	var count int
	for _, r := range returns {
		if r < 0 {
			d := r - mean
			sum += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// Beta regresses returns on their own 20-day moving average. No external benchmark
// is available, so the proxy stands in for the market. Too little data or a constant
// proxy gives 1.
func Beta(returns []float64) float64 {
	proxy, aligned := benchmarkProxy(returns)
	if len(proxy) < 2 {
		return defaultBeta
	}
	variance := stats.SampleVariance(proxy)
	if variance == 0 {
		return defaultBeta
	}
	return stats.SampleCovariance(aligned, proxy) / variance
}

func benchmarkProxy(returns []float64) (proxy, aligned []float64) {
	if len(returns) < BetaWindow {
		return nil, nil
	}
	for i := BetaWindow - 1; i < len(returns); i++ {
		proxy = append(proxy, stats.Mean(returns[i-BetaWindow+1:i+1]))
		aligned = append(aligned, returns[i])
	}
	return proxy, aligned
}
