package stats

import (
	"math"
	"sort"
)

// TradingDaysPerYear is the annualisation factor for daily data
const TradingDaysPerYear = 252

// Mean returns the arithmetic average, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// squaredDeviations sums (v - mean)^2
func squaredDeviations(values []float64) float64 {
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return ss
}

// PopulationVariance divides the squared deviations by n
func PopulationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return squaredDeviations(values) / float64(len(values))
}

func PopulationStandardDeviation(values []float64) float64 {
	return math.Sqrt(PopulationVariance(values))
}

// SampleVariance divides the squared deviations by n-1, 0 below two values
func SampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return squaredDeviations(values) / float64(len(values)-1)
}

// SampleStandardDeviation is the square root of SampleVariance.
func SampleStandardDeviation(values []float64) float64 {
	return math.Sqrt(SampleVariance(values))
}

// SampleCovariance of two equally long series using n-1
func SampleCovariance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	ma, mb := Mean(a[:n]), Mean(b[:n])
	var sum float64
	for i := 0; i < n; i++ {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	return sum / float64(n-1)
}

// Correlation is the Pearson coefficient, 0 when either side is constant
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	ma, mb := Mean(a[:n]), Mean(b[:n])
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// SimpleReturns returns p[i]/p[i-1]-1 for consecutive values
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = prices[i]/prices[i-1] - 1
	}
	return out
}

// LogReturns returns ln(p[i]/p[i-1]) for consecutive values
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return out
}

// MaxDrawdown is the largest (peak-value)/peak fraction seen, peak starting at the first value
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	var maxDD float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Slope of the least-squares line through (i, values[i])
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Quantile returns the value at floor(q*n) of a sorted copy
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Floor(q * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// MinMax returns the extremes of values
func MinMax(values []float64) (minimum, maximum float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minimum, maximum = values[0], values[0]
	for _, v := range values[1:] {
		if v < minimum {
			minimum = v
		}
		if v > maximum {
			maximum = v
		}
	}
	return minimum, maximum
}

// Finite maps NaN and infinities to 0
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
