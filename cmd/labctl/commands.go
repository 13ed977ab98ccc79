package main

import (
	"fmt"
	"path/filepath"

	"quant-lab/internal/classifier"
	"quant-lab/internal/engine"
	"quant-lab/internal/marketdata"
	"quant-lab/internal/model"
	"quant-lab/internal/optimizer"
	"quant-lab/internal/risk"
	"quant-lab/internal/scenario"
	"quant-lab/internal/strategy"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/urfave/cli/v2"
)

var strategyFlag = &cli.StringFlag{
	Name:  "strategy",
	Usage: "strategy preset, see the strategies command",
	Value: "SMAModerate",
}

var strategiesCommand = &cli.Command{
	Name:  "strategies",
	Usage: "list the strategy presets",
	Action: func(c *cli.Context) error {
		return jsonOutput(strategy.Names())
	},
}

var backtestCommand = &cli.Command{
	Name:  "backtest",
	Usage: "simulate one strategy preset over a symbol's bars",
	Flags: withSeriesFlags(
		strategyFlag,
		&cli.Float64Flag{
			Name:  "risk-free-rate",
			Usage: "annual risk-free rate for the risk report",
			Value: risk.DefaultRiskFreeRate,
		},
	),
	Action: runBacktest,
}

func runBacktest(c *cli.Context) error {
	series, err := loadSeries(c)
	if err != nil {
		return err
	}
	strat, err := strategy.Lookup(c.String("strategy"))
	if err != nil {
		return err
	}
	metrics, err := engine.NewBacktester(logger()).Run(series, strat)
	if err != nil {
		return err
	}
	out := struct {
		Metrics model.BacktestMetrics `json:"metrics"`
		Risk    *model.RiskMetrics    `json:"risk,omitempty"`
	}{Metrics: metrics}
	if rm, err := risk.NewAnalyzer(c.Float64("risk-free-rate"), logger()).AnalyzeEquity(metrics.EquityCurve); err == nil {
		out.Risk = &rm
	}
	return jsonOutput(out)
}

var compareCommand = &cli.Command{
	Name:  "compare",
	Usage: "backtest several presets over the same bars",
	Flags: withSeriesFlags(
		&cli.StringSliceFlag{
			Name:  "strategies",
			Usage: "presets to compare",
			Value: cli.NewStringSlice("SMAConservative", "SMAModerate", "SMAAggressive", "RSI", "VolatilityBreakout"),
		},
	),
	Action: func(c *cli.Context) error {
		series, err := loadSeries(c)
		if err != nil {
			return err
		}
		result, err := newScenarioEngine(c).Compare(series, c.StringSlice("strategies"))
		if err != nil {
			return err
		}
		return jsonOutput(result)
	},
}

var walkForwardCommand = &cli.Command{
	Name:  "walkforward",
	Usage: "refit a preset per window and test it on the following window",
	Flags: withSeriesFlags(
		strategyFlag,
		&cli.IntFlag{
			Name:  "windows",
			Usage: "number of train/test windows",
			Value: 5,
		},
	),
	Action: func(c *cli.Context) error {
		series, err := loadSeries(c)
		if err != nil {
			return err
		}
		result, err := newScenarioEngine(c).WalkForward(series, c.String("strategy"), c.Int("windows"))
		if err != nil {
			return err
		}
		return jsonOutput(result)
	},
}

var monteCarloCommand = &cli.Command{
	Name:  "montecarlo",
	Usage: "backtest a preset over randomly perturbed copies of the bars",
	Flags: withSeriesFlags(
		strategyFlag,
		&cli.IntFlag{
			Name:  "simulations",
			Usage: "number of perturbed runs",
			Value: 100,
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed, 0 = time based",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "print only the summary",
		},
	),
	Action: func(c *cli.Context) error {
		series, err := loadSeries(c)
		if err != nil {
			return err
		}
		results, err := newScenarioEngine(c).MonteCarlo(c.Context, series, c.String("strategy"), c.Int("simulations"), c.Int64("seed"))
		if err != nil {
			return err
		}
		summary := scenario.SummarizeMonteCarlo(results)
		if c.Bool("summary") {
			return jsonOutput(summary)
		}
		return jsonOutput(struct {
			Summary scenario.MonteCarloSummary `json:"summary"`
			Results []model.BacktestMetrics    `json:"results"`
		}{summary, results})
	},
}

var stressCommand = &cli.Command{
	Name:  "stress",
	Usage: "backtest a preset under bear, volatile and illiquid versions of the bars",
	Flags: withSeriesFlags(strategyFlag),
	Action: func(c *cli.Context) error {
		series, err := loadSeries(c)
		if err != nil {
			return err
		}
		result, err := newScenarioEngine(c).StressTest(series, c.String("strategy"))
		if err != nil {
			return err
		}
		return jsonOutput(result)
	},
}

var optimizeCommand = &cli.Command{
	Name:  "optimize",
	Usage: "search the parameter grid of a strategy type",
	Flags: withSeriesFlags(
		&cli.StringFlag{
			Name:  "type",
			Usage: "strategy type: sma, rsi or volatility-breakout",
			Value: "sma",
		},
		&cli.Float64Flag{
			Name:  "max-drawdown",
			Usage: "maximum acceptable drawdown as a fraction",
			Value: optimizer.DefaultPreferences().MaxDrawdownThreshold,
		},
		&cli.Float64Flag{
			Name:  "max-volatility",
			Usage: "maximum acceptable annualized volatility",
			Value: optimizer.DefaultPreferences().VolatilityThreshold,
		},
		&cli.Float64Flag{
			Name:  "min-sharpe",
			Usage: "minimum acceptable Sharpe ratio",
			Value: optimizer.DefaultPreferences().MinSharpeRatio,
		},
		&cli.BoolFlag{
			Name:  "fixed-thresholds",
			Usage: "do not adapt grids and thresholds to market conditions",
		},
	),
	Action: func(c *cli.Context) error {
		kind, err := strategy.ParseKind(c.String("type"))
		if err != nil {
			return err
		}
		series, err := loadSeries(c)
		if err != nil {
			return err
		}
		prefs := optimizer.DefaultPreferences()
		prefs.MaxDrawdownThreshold = c.Float64("max-drawdown")
		prefs.VolatilityThreshold = c.Float64("max-volatility")
		prefs.MinSharpeRatio = c.Float64("min-sharpe")
		prefs.AdaptToMarket = !c.Bool("fixed-thresholds")

		opt, err := optimizer.New(series, kind, prefs, logger())
		if err != nil {
			return err
		}
		report, err := opt.Optimize()
		if err != nil {
			return err
		}
		return jsonOutput(report)
	},
}

var predictCommand = &cli.Command{
	Name:  "predict",
	Usage: "forecast the price direction with a random forest",
	Flags: withSeriesFlags(
		&cli.IntFlag{
			Name:  "horizon",
			Usage: "forecast horizon",
			Value: 5,
		},
		&cli.StringFlag{
			Name:  "unit",
			Usage: "horizon unit: days, weeks or months",
			Value: "days",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "forest seed, 0 = time based",
		},
	),
	Action: func(c *cli.Context) error {
		unit, err := classifier.ParseUnit(c.String("unit"))
		if err != nil {
			return err
		}
		series, err := loadSeries(c)
		if err != nil {
			return err
		}
		predictor := classifier.NewPredictor(c.Int64("seed"), c.Int("workers"), logger())
		resp, err := predictor.Predict(c.Context, marketdata.NormalizeSymbol(c.String("symbol")), series, c.Int("horizon"), unit)
		if err != nil {
			return err
		}
		return jsonOutput(resp)
	},
}

var importCommand = &cli.Command{
	Name:  "import",
	Usage: "load a bar file into the daily_bars table",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "dsn",
			Usage:    "postgres connection string",
			EnvVars:  []string{"DB_DSN"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "symbol",
			Usage:    "ticker the bars belong to",
			Required: true,
		},
		&cli.StringFlag{
			Name:      "filename",
			Usage:     "CSV file to load, defaults to <data-dir>/<SYMBOL>.csv",
			TakesFile: true,
		},
	},
	Action: runImport,
}

func runImport(c *cli.Context) error {
	symbol := marketdata.NormalizeSymbol(c.String("symbol"))
	filename := c.String("filename")
	if filename == "" {
		filename = filepath.Join(c.String("data-dir"), symbol+".csv")
	}
	series, err := marketdata.LoadCSVFile(filename)
	if err != nil {
		return err
	}

	pool, err := pgxpool.Connect(c.Context, c.String("dsn"))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	store := marketdata.NewPostgres(pool, logger())
	if err := store.EnsureSchema(c.Context); err != nil {
		return err
	}
	if err := store.Store(c.Context, symbol, series); err != nil {
		return err
	}
	return jsonOutput(struct {
		Symbol string `json:"symbol"`
		Bars   int    `json:"bars"`
	}{symbol, len(series)})
}
