package optimizer

import (
	"math"
	"time"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"
)

const (
	RollingWindow = 63
	// windows with fewer returns report zero volatility and Sharpe
	minWindowPoints   = 20
	streakBucketCount = 20
)

// RollingMetrics are aligned slices, one entry per window end date.
type RollingMetrics struct {
	Dates            []time.Time `json:"dates"`
	Returns          []float64   `json:"returns"`
	Volatilities     []float64   `json:"volatilities"`
	SharpeRatios     []float64   `json:"sharpe_ratios"`
	Drawdowns        []float64   `json:"drawdowns"`
	EfficiencyRatios []float64   `json:"efficiency_ratios"`
}

// Rolling slides a 63-day window of simple returns over the series. Each window
// reports its compounded return, annualized volatility, daily Sharpe, drawdown and
// efficiency ratio.
func Rolling(series model.Series, riskFreeRate float64) RollingMetrics {
	var out RollingMetrics
	returns := stats.SimpleReturns(series.Closes())

	for i := RollingWindow; i < len(series); i++ {
		window := returns[i-RollingWindow : i]
		vol := windowVolatility(window)

		var sharpe float64
		if vol > 0 {
			sharpe = (stats.Mean(window) - riskFreeRate/stats.TradingDaysPerYear) / vol
		}

		out.Dates = append(out.Dates, series[i].Date)
		out.Returns = append(out.Returns, compound(window))
		out.Volatilities = append(out.Volatilities, vol*math.Sqrt(stats.TradingDaysPerYear))
		out.SharpeRatios = append(out.SharpeRatios, sharpe)
		out.Drawdowns = append(out.Drawdowns, compoundedDrawdown(window))
		out.EfficiencyRatios = append(out.EfficiencyRatios, efficiencyRatio(window))
	}
	return out
}

func windowVolatility(returns []float64) float64 {
	if len(returns) < minWindowPoints {
		return 0
	}
	return stats.PopulationStandardDeviation(returns)
}

func compound(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	return growth - 1
}

// compoundedDrawdown measures from the first compounded value, so a loss on the
// window's first day is not a drawdown.
func compoundedDrawdown(returns []float64) float64 {
	value := 1.0
	values := make([]float64, 0, len(returns))
	for _, r := range returns {
		value *= 1 + r
		values = append(values, value)
	}
	return stats.MaxDrawdown(values)
}

// efficiencyRatio is net move over path length.
func efficiencyRatio(returns []float64) float64 {
	var path float64
	for _, r := range returns {
		path += math.Abs(r)
	}
	if path == 0 {
		return 0
	}
	return math.Abs(compound(returns)) / path
}

type StreakAnalysis struct {
	MaxWinStreak  int     `json:"max_win_streak"`
	MaxLossStreak int     `json:"max_loss_streak"`
	AvgWinStreak  float64 `json:"avg_win_streak"`
	AvgLossStreak float64 `json:"avg_loss_streak"`
	// CurrentStreak is positive for wins, negative for losses
	CurrentStreak int `json:"current_streak"`
	// Distribution counts completed streaks by length; the last bucket collects 19 and longer
	Distribution []int `json:"distribution"`
}

// AnalyzeStreaks counts runs of strictly positive and strictly negative values.
// Zeros neither extend nor break a run.
func AnalyzeStreaks(returns []float64) StreakAnalysis {
	out := StreakAnalysis{Distribution: make([]int, streakBucketCount)}
	var wins, losses []float64
	current := 0

	closeStreak := func() {
		if current == 0 {
			return
		}
		length := current
		if length < 0 {
			length = -length
			losses = append(losses, float64(length))
		} else {
			wins = append(wins, float64(length))
		}
		if length > streakBucketCount-1 {
			length = streakBucketCount - 1
		}
		out.Distribution[length]++
	}

	for _, r := range returns {
		switch {
		case r > 0:
			if current > 0 {
				current++
			} else {
				closeStreak()
				current = 1
			}
			if current > out.MaxWinStreak {
				out.MaxWinStreak = current
			}
		case r < 0:
			if current < 0 {
				current--
			} else {
				closeStreak()
				current = -1
			}
			if -current > out.MaxLossStreak {
				out.MaxLossStreak = -current
			}
		}
	}
	closeStreak()

	out.CurrentStreak = current
	out.AvgWinStreak = stats.Mean(wins)
	out.AvgLossStreak = stats.Mean(losses)
	return out
}
