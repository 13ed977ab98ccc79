package optimizer

import (
	"fmt"

	"quant-lab/internal/model"
	"quant-lab/internal/strategy"
)

const (
	trendThreshold = 0.1
	// overbought must clear oversold by this many RSI points
	minRSIBand = 20
)

// Grid lists the candidate parameter sets for kind. With AdaptToMarket the ranges
// follow the detected regime: shorter windows when volatility runs above the
// threshold, RSI bands shifted with the trend direction.
func Grid(kind strategy.Kind, conditions model.MarketConditions, prefs Preferences) ([]model.ParameterSet, error) {
	highVol := conditions.Volatility > prefs.VolatilityThreshold

	switch kind {
	case strategy.KindSMACrossover:
		switch {
		case !prefs.AdaptToMarket:
			return smaGrid([]int{5, 10, 20}, []int{20, 50, 200}), nil
		case highVol:
			return smaGrid([]int{3, 5, 8, 10}, []int{15, 20, 25, 30}), nil
		default:
			return smaGrid([]int{10, 15, 20, 25}, []int{30, 50, 75, 100}), nil
		}

	case strategy.KindRSI:
		if !prefs.AdaptToMarket {
			return rsiGrid([]int{14, 21}, []float64{30}, []float64{70}), nil
		}
		periods := []int{14, 21, 28, 30}
		if highVol {
			periods = []int{7, 9, 11, 14}
		}
		var oversold, overbought []float64
		switch {
		case conditions.Trend > trendThreshold:
			oversold, overbought = []float64{25, 30, 35}, []float64{70, 75, 80}
		case conditions.Trend < -trendThreshold:
			oversold, overbought = []float64{20, 25, 30}, []float64{65, 70, 75}
		default:
			oversold, overbought = []float64{20, 25, 30, 35}, []float64{65, 70, 75, 80}
		}
		return rsiGrid(periods, oversold, overbought), nil

	case strategy.KindVolatilityBreakout:
		switch {
		case !prefs.AdaptToMarket:
			return breakoutGrid([]int{10, 20, 30}, []float64{1.5, 2, 2.5}), nil
		case highVol:
			return breakoutGrid([]int{10, 14, 20}, []float64{2, 2.5, 3}), nil
		default:
			return breakoutGrid([]int{20, 30, 40}, []float64{1.5, 2}), nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported strategy type %q", model.ErrInvalidArgument, kind)
}

func smaGrid(shorts, longs []int) []model.ParameterSet {
	var out []model.ParameterSet
	for _, s := range shorts {
		for _, l := range longs {
			if s < l {
				out = append(out, model.NewParameterSet(strategy.ParamShortPeriod, s, strategy.ParamLongPeriod, l))
			}
		}
	}
	return out
}

func rsiGrid(periods []int, oversold, overbought []float64) []model.ParameterSet {
	var out []model.ParameterSet
	for _, p := range periods {
		for _, os := range oversold {
			for _, ob := range overbought {
				if ob > os+minRSIBand {
					out = append(out, model.NewParameterSet(
						strategy.ParamPeriod, p,
						strategy.ParamOversold, os,
						strategy.ParamOverbought, ob,
					))
				}
			}
		}
	}
	return out
}

func breakoutGrid(periods []int, multipliers []float64) []model.ParameterSet {
	var out []model.ParameterSet
	for _, p := range periods {
		for _, k := range multipliers {
			out = append(out, model.NewParameterSet(strategy.ParamPeriod, p, strategy.ParamStdDevMultiplier, k))
		}
	}
	return out
}
