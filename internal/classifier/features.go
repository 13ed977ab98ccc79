// Package classifier predicts next-horizon price direction with a bagged forest of
// Gini decision trees trained on technical features.
package classifier

import (
	"fmt"
	"math"

	"quant-lab/internal/indicator"
	"quant-lab/internal/model"
	"quant-lab/internal/stats"

	"github.com/thrasher-corp/gct-ta/indicators"
)

// WarmupBars is the lookback consumed before the first feature row (the 200-day MA).
const WarmupBars = 200

var (
	momentumPeriods   = []int{5, 10, 20, 30}
	volatilityPeriods = []int{5, 10, 20, 30}
	maPeriods         = []int{5, 10, 20, 50, 200}
)

const (
	relativeVolumePeriod = 20
	vwapPeriod           = 5
	obvPeriod            = 10
	rsiPeriod            = 14
	macdFast             = 12
	macdSlow             = 26
	macdSignal           = 9
	bollingerPeriod      = 20
	atrPeriod            = 14
	stochasticPeriod     = 14
)

// FeatureNames labels the columns produced by ExtractFeatures, in order.
var FeatureNames = []string{
	"momentum5", "momentum10", "momentum20", "momentum30",
	"volatility5", "volatility10", "volatility20", "volatility30",
	"priceToMA5", "priceToMA10", "priceToMA20", "priceToMA50", "priceToMA200",
	"relativeVolume", "vwap", "obv",
	"rsi", "macd", "bollingerPosition", "atr", "stochastic",
	"trendStrength", "volatilityRatio",
}

// columns precomputes the full-series indicators shared by every row
type columns struct {
	closes, highs, lows, volumes []float64
	rsi, macd, atr, obv          []float64
}

func newColumns(series model.Series) columns {
	c := columns{
		closes:  series.Closes(),
		highs:   series.Highs(),
		lows:    series.Lows(),
		volumes: series.Volumes(),
	}
	c.rsi = indicator.RSI(c.closes, rsiPeriod)
	c.macd, _, _ = indicators.MACD(c.closes, macdFast, macdSlow, macdSignal)
	c.atr = indicators.ATR(c.highs, c.lows, c.closes, atrPeriod)
	c.obv = indicators.OBV(c.closes, c.volumes)
	return c
}

// at reads an indicator output aligned to the end of the input series. Values the
// library did not produce read as NaN.
func at(values []float64, n, i int) float64 {
	j := i - (n - len(values))
	if j < 0 || j >= len(values) {
		return math.NaN()
	}
	return values[j]
}

// ExtractFeatures returns one raw feature row per bar from WarmupBars onwards.
// Row k describes series[WarmupBars+k] using only bars up to that index.
func ExtractFeatures(series model.Series) ([][]float64, error) {
	if len(series) <= WarmupBars {
		return nil, fmt.Errorf("%w: feature extraction needs more than %d bars, have %d",
			model.ErrInsufficientData, WarmupBars, len(series))
	}
	c := newColumns(series)
	rows := make([][]float64, 0, len(series)-WarmupBars)
	for i := WarmupBars; i < len(series); i++ {
		rows = append(rows, c.row(i))
	}
	return rows, nil
}

func (c columns) row(i int) []float64 {
	n := len(c.closes)
	last := c.closes[i]
	out := make([]float64, 0, len(FeatureNames))

	for _, p := range momentumPeriods {
		prev := c.closes[i-p]
		out = append(out, (last-prev)/prev)
	}
	for _, p := range volatilityPeriods {
		out = append(out, c.volatility(i, p))
	}
	for _, p := range maPeriods {
		ma, _ := indicator.SMA(c.closes, i, p)
		out = append(out, (last-ma)/ma)
	}

	out = append(out,
		c.relativeVolume(i),
		c.vwap(i),
		at(c.obv, n, i)-at(c.obv, n, i-obvPeriod),
		c.rsi[i],
		at(c.macd, n, i),
		c.bollingerPosition(i),
		at(c.atr, n, i),
		c.stochastic(i),
		c.trendStrength(i),
		c.volatility(i, 10)/c.volatility(i, 30),
	)
	for k, v := range out {
		out[k] = stats.Finite(v)
	}
	return out
}

func (c columns) volatility(i, period int) float64 {
	return stats.PopulationStandardDeviation(c.closes[i-period+1 : i+1])
}

// relativeVolume compares today's volume with the mean of the previous 20 days.
func (c columns) relativeVolume(i int) float64 {
	avg := stats.Mean(c.volumes[i-relativeVolumePeriod : i])
	return c.volumes[i] / avg
}

func (c columns) vwap(i int) float64 {
	var pv, v float64
	for j := i - vwapPeriod + 1; j <= i; j++ {
		pv += c.closes[j] * c.volumes[j]
		v += c.volumes[j]
	}
	return pv / v
}

func (c columns) bollingerPosition(i int) float64 {
	bands, ok := indicator.Bollinger(c.closes, i, bollingerPeriod, 2)
	if !ok {
		return math.NaN()
	}
	return (c.closes[i] - bands.Lower) / (bands.Upper - bands.Lower)
}

func (c columns) stochastic(i int) float64 {
	lowest, _ := stats.MinMax(c.lows[i-stochasticPeriod+1 : i+1])
	_, highest := stats.MinMax(c.highs[i-stochasticPeriod+1 : i+1])
	return (c.closes[i] - lowest) / (highest - lowest) * 100
}

// trendStrength averages three votes: SMA20 over SMA50, SMA50 over SMA200 and
// close over SMA20. The result lies in [-1, 1].
func (c columns) trendStrength(i int) float64 {
	sma20, _ := indicator.SMA(c.closes, i, 20)
	sma50, _ := indicator.SMA(c.closes, i, 50)
	sma200, _ := indicator.SMA(c.closes, i, 200)
	vote := func(up bool) float64 {
		if up {
			return 1
		}
		return -1
	}
	return (vote(sma20 > sma50) + vote(sma50 > sma200) + vote(c.closes[i] > sma20)) / 3
}

// Normalize min-max scales every column of rows into a new matrix. Constant
// columns keep their raw values; NaN and infinities become 0.
func Normalize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	lo := make([]float64, width)
	hi := make([]float64, width)
	for j := 0; j < width; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
	}
	for _, r := range rows {
		for j, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
	}

	out := make([][]float64, len(rows))
	for i, r := range rows {
		scaled := make([]float64, width)
		for j, v := range r {
			if hi[j]-lo[j] > 1e-10 {
				v = (v - lo[j]) / (hi[j] - lo[j])
			}
			scaled[j] = stats.Finite(v)
		}
		out[i] = scaled
	}
	return out
}

// MakeLabels marks row k with 1 when the close horizon bars after
// series[WarmupBars+k] is higher. Rows too close to the end to look ahead repeat
// the previous label.
func MakeLabels(series model.Series, horizon int) ([]int, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be at least 1, got %d", model.ErrInvalidArgument, horizon)
	}
	if len(series) <= WarmupBars {
		return nil, fmt.Errorf("%w: labelling needs more than %d bars, have %d",
			model.ErrInsufficientData, WarmupBars, len(series))
	}
	labels := make([]int, len(series)-WarmupBars)
	for k := range labels {
		i := WarmupBars + k
		switch {
		case i+horizon < len(series):
			if series[i+horizon].Close > series[i].Close {
				labels[k] = 1
			}
		case k > 0:
			labels[k] = labels[k-1]
		}
	}
	return labels, nil
}
