// Package indicator holds the moving-window indicators the strategies evaluate on a
// growing history. Every function reads only the slice it is given.
package indicator

import (
	"math"

	"quant-lab/internal/stats"
)

// SMA returns the mean of the last period values ending at index end (inclusive).
// ok is false when fewer than period values are available.
func SMA(values []float64, end, period int) (float64, bool) {
	if period <= 0 || end < period-1 || end >= len(values) {
		return 0, false
	}
	var sum float64
	for i := end - period + 1; i <= end; i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// RSI computes Wilder-smoothed relative strength for every index. Entries before
// index period are NaN. A zero average loss yields 100.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		var g, l float64
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bands is a Bollinger envelope around a simple moving average
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// Bollinger builds bands from the period values ending at end using population deviation.
func Bollinger(values []float64, end, period int, k float64) (Bands, bool) {
	mid, ok := SMA(values, end, period)
	if !ok {
		return Bands{}, false
	}
	sd := stats.PopulationStandardDeviation(values[end-period+1 : end+1])
	return Bands{Middle: mid, Upper: mid + k*sd, Lower: mid - k*sd}, true
}
