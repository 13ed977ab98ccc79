package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"
	"quant-lab/internal/strategy"

	"go.uber.org/zap"
)

// minPriceFactor keeps perturbed closes strictly positive
const minPriceFactor = 0.01

// MonteCarloSummary condenses a batch of simulations
type MonteCarloSummary struct {
	Simulations      int     `json:"simulations"`
	MeanReturnPct    float64 `json:"mean_return_pct"`
	P5ReturnPct      float64 `json:"p5_return_pct"`
	P95ReturnPct     float64 `json:"p95_return_pct"`
	MeanSharpe       float64 `json:"mean_sharpe"`
	WorstDrawdownPct float64 `json:"worst_drawdown_pct"`
	LossProbability  float64 `json:"loss_probability"`
}

// MonteCarlo backtests the named strategy on n independently perturbed copies of
// the series. Every close is scaled by 1+z*sigma, z standard normal and sigma the
// standard deviation of daily returns; open, high and low are re-derived from the
// new close and volume is kept. A zero seed draws one from the clock, any other
// value makes the batch reproducible. Results are returned in simulation order.
func (e *Engine) MonteCarlo(ctx context.Context, series model.Series, name string, n int, seed int64) ([]model.BacktestMetrics, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: simulation count must be positive, got %d", model.ErrInvalidArgument, n)
	}
	strat, err := strategy.Lookup(name)
	if err != nil {
		return nil, err
	}
	if len(series) < 2 {
		return nil, fmt.Errorf("%w: monte carlo needs at least 2 bars, have %d", model.ErrInsufficientData, len(series))
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sigma := stats.PopulationStandardDeviation(stats.SimpleReturns(series.Closes()))
	results := make([]model.BacktestMetrics, n)

	err = e.pool.Run(ctx, n, func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng := rand.New(rand.NewSource(simulationSeed(seed, i)))
		m, err := e.backtester.Run(perturb(series, sigma, rng), strat)
		if err != nil {
			return fmt.Errorf("simulation %d: %w", i, err)
		}
		results[i] = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("monte carlo finished",
		zap.String("strategy", name),
		zap.Int("simulations", n),
		zap.Int("workers", e.pool.Size()),
		zap.Float64("sigma", sigma),
	)
	return results, nil
}

// simulationSeed spreads consecutive indices with the splitmix64 finalizer.
func simulationSeed(seed int64, i int) int64 {
	z := uint64(seed) + uint64(i+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

func perturb(series model.Series, sigma float64, rng *rand.Rand) model.Series {
	out := make(model.Series, len(series))
	for i, p := range series {
		factor := math.Max(minPriceFactor, 1+rng.NormFloat64()*sigma)
		price := p.Close * factor
		out[i] = model.PricePoint{
			Date:   p.Date,
			Open:   price * 0.99,
			High:   price * 1.02,
			Low:    price * 0.98,
			Close:  price,
			Volume: p.Volume,
		}
	}
	return out
}

// SummarizeMonteCarlo reports the return distribution of a batch.
func SummarizeMonteCarlo(results []model.BacktestMetrics) MonteCarloSummary {
	out := MonteCarloSummary{Simulations: len(results)}
	if len(results) == 0 {
		return out
	}

	returns := make([]float64, len(results))
	sharpes := make([]float64, len(results))
	losses := 0
	for i, m := range results {
		returns[i] = m.TotalReturnPct
		sharpes[i] = m.SharpeRatio
		out.WorstDrawdownPct = math.Max(out.WorstDrawdownPct, m.MaxDrawdownPct)
		if m.TotalReturnPct < 0 {
			losses++
		}
	}
	out.MeanReturnPct = stats.Mean(returns)
	out.P5ReturnPct = stats.Quantile(returns, 0.05)
	out.P95ReturnPct = stats.Quantile(returns, 0.95)
	out.MeanSharpe = stats.Mean(sharpes)
	out.LossProbability = float64(losses) / float64(len(results))
	return out
}
