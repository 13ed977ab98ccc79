package optimizer

import (
	"math"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"
)

// AnalyzeMarketConditions snapshots the regime of the whole series: annualized
// sample volatility of log returns, a trend blending annualized growth with the
// normalized regression slope, and mean volume.
func AnalyzeMarketConditions(series model.Series) model.MarketConditions {
	closes := series.Closes()
	return model.MarketConditions{
		Volatility:    stats.SampleStandardDeviation(stats.LogReturns(closes)) * math.Sqrt(stats.TradingDaysPerYear),
		Trend:         marketTrend(closes),
		AverageVolume: stats.Mean(series.Volumes()),
	}
}

func marketTrend(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	n := float64(len(closes))
	normalizedSlope := stats.Slope(closes) / stats.Mean(closes)
	annualized := math.Pow(closes[len(closes)-1]/closes[0], stats.TradingDaysPerYear/n) - 1
	return stats.Finite(0.7*annualized + 0.3*normalizedSlope)
}
