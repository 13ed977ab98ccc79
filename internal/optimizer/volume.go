package optimizer

import (
	"sort"
	"time"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"
)

const (
	volumeMAPeriod       = 20
	volumeSpikeThreshold = 2.0
)

// VolumeDistribution holds order statistics of daily volume
type VolumeDistribution struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

type VolumeMetrics struct {
	AverageVolume          float64            `json:"average_volume"`
	VolumeVolatility       float64            `json:"volume_volatility"`
	VolumeTrend            float64            `json:"volume_trend"`
	VolumeSpikeDates       []time.Time        `json:"volume_spike_dates"`
	VolumeMomentum         float64            `json:"volume_momentum"`
	PriceVolumeCorrelation float64            `json:"price_volume_correlation"`
	Distribution           VolumeDistribution `json:"distribution"`
}

// AnalyzeVolume summarises trading activity. The average is taken over the last
// 20 bars and spikes are days above twice that average.
func AnalyzeVolume(series model.Series) VolumeMetrics {
	volumes := series.Volumes()
	if len(volumes) == 0 {
		return VolumeMetrics{}
	}

	avg := trailingMean(volumes, volumeMAPeriod)
	var spikes []time.Time
	for _, p := range series {
		if p.Volume > avg*volumeSpikeThreshold {
			spikes = append(spikes, p.Date)
		}
	}

	var volatility, trend float64
	if mean := stats.Mean(volumes); mean > 0 {
		volatility = stats.PopulationStandardDeviation(volumes) / mean
	}
	if volumes[0] > 0 {
		trend = stats.Slope(volumes) / volumes[0]
	}

	return VolumeMetrics{
		AverageVolume:          avg,
		VolumeVolatility:       volatility,
		VolumeTrend:            trend,
		VolumeSpikeDates:       spikes,
		VolumeMomentum:         volumeMomentum(volumes),
		PriceVolumeCorrelation: priceVolumeCorrelation(series),
		Distribution:           distribution(volumes),
	}
}

func trailingMean(values []float64, period int) float64 {
	start := len(values) - period
	if start < 0 {
		start = 0
	}
	return stats.Mean(values[start:])
}

// volumeMomentum compares the last 10 bars with the last 20.
func volumeMomentum(volumes []float64) float64 {
	if len(volumes) < volumeMAPeriod {
		return 0
	}
	short := trailingMean(volumes, volumeMAPeriod/2)
	long := trailingMean(volumes, volumeMAPeriod)
	if long == 0 {
		return 0
	}
	return (short - long) / long
}

func priceVolumeCorrelation(series model.Series) float64 {
	var priceChanges, volumeChanges []float64
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		if prev.Volume == 0 {
			continue
		}
		priceChanges = append(priceChanges, (cur.Close-prev.Close)/prev.Close)
		volumeChanges = append(volumeChanges, (cur.Volume-prev.Volume)/prev.Volume)
	}
	return stats.Correlation(priceChanges, volumeChanges)
}

func distribution(volumes []float64) VolumeDistribution {
	sorted := make([]float64, len(volumes))
	copy(sorted, volumes)
	sort.Float64s(sorted)
	n := len(sorted)
	return VolumeDistribution{
		Min:    sorted[0],
		Q1:     sorted[n/4],
		Median: sorted[n/2],
		Q3:     sorted[3*n/4],
		Max:    sorted[n-1],
	}
}
