package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quant-lab/internal/engine"
	"quant-lab/internal/infrastructure"
	"quant-lab/internal/marketdata"
	"quant-lab/internal/model"
	"quant-lab/internal/scenario"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp()
	app.Name = "labctl"
	app.Usage = "run backtests, scenarios and predictions over daily bar files"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "directory holding <SYMBOL>.csv bar files",
			Value: "./data",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level written to stderr",
			Value: "warn",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "worker count for simulations and forest training, 0 = number of CPUs",
		},
	}
	app.Before = func(c *cli.Context) error {
		return infrastructure.Init(c.String("log-level"))
	}
	app.Commands = []*cli.Command{
		strategiesCommand,
		backtestCommand,
		compareCommand,
		walkForwardCommand,
		monteCarloCommand,
		stressCommand,
		optimizeCommand,
		predictCommand,
		importCommand,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

var seriesFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "symbol",
		Usage:    "ticker whose bar file is read",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "start",
		Usage: "first date to include, YYYY-MM-DD",
	},
	&cli.StringFlag{
		Name:  "end",
		Usage: "last date to include, YYYY-MM-DD",
	},
}

func withSeriesFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, seriesFlags...), flags...)
}

func loadSeries(c *cli.Context) (model.Series, error) {
	var start, end time.Time
	var err error
	if s := c.String("start"); s != "" {
		if start, err = time.Parse(time.DateOnly, s); err != nil {
			return nil, fmt.Errorf("%w: start: %v", model.ErrInvalidArgument, err)
		}
	}
	if s := c.String("end"); s != "" {
		if end, err = time.Parse(time.DateOnly, s); err != nil {
			return nil, fmt.Errorf("%w: end: %v", model.ErrInvalidArgument, err)
		}
	}
	return marketdata.NewCSVDir(c.String("data-dir")).Load(c.Context, c.String("symbol"), start, end)
}

func logger() *zap.Logger {
	if infrastructure.Logger == nil {
		return zap.NewNop()
	}
	return infrastructure.Logger
}

func newScenarioEngine(c *cli.Context) *scenario.Engine {
	return scenario.NewEngine(engine.NewWorkerPool(c.Int("workers"), logger()), logger())
}

func jsonOutput(in any) error {
	j, err := json.MarshalIndent(in, "", " ")
	if err != nil {
		return err
	}
	fmt.Println(string(j))
	return nil
}
