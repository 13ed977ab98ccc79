package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_run_duration_seconds",
		Help:    "Duration of engine operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"operation"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_runs_total",
		Help: "Total number of engine operations by outcome",
	}, []string{"operation", "outcome"})

	BacktestTrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_trades_total",
		Help: "Total number of simulated trades",
	}, []string{"strategy"})

	TreesTrained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forest_trees_trained_total",
		Help: "Total number of decision trees trained",
	})

	WorkerPoolBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_pool_busy",
		Help: "Number of worker pool jobs currently running",
	})
)
