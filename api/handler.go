package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"quant-lab/internal/classifier"
	"quant-lab/internal/engine"
	"quant-lab/internal/infrastructure"
	"quant-lab/internal/marketdata"
	"quant-lab/internal/model"
	"quant-lab/internal/optimizer"
	"quant-lab/internal/publish"
	"quant-lab/internal/risk"
	"quant-lab/internal/scenario"
	"quant-lab/internal/strategy"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options are the request limits and analysis defaults of the HTTP layer
type Options struct {
	RiskFreeRate   float64
	MaxSimulations int
}

type Handler struct {
	provider   marketdata.Provider
	publisher  publish.Publisher
	backtester *engine.Backtester
	scenarios  *scenario.Engine
	analyzer   *risk.Analyzer
	predictor  *classifier.Predictor
	opts       Options
	logger     *zap.Logger
}

func NewHandler(provider marketdata.Provider, publisher publish.Publisher, scenarios *scenario.Engine,
	predictor *classifier.Predictor, opts Options, logger *zap.Logger) *Handler {
	return &Handler{
		provider:   provider,
		publisher:  publisher,
		backtester: engine.NewBacktester(logger),
		scenarios:  scenarios,
		analyzer:   risk.NewAnalyzer(opts.RiskFreeRate, logger),
		predictor:  predictor,
		opts:       opts,
		logger:     logger,
	}
}

// RegisterRoutes mounts the engine endpoints on rg (normally /api/v1).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/strategies", h.ListStrategies)
	rg.POST("/backtest", h.RunBacktest)
	rg.POST("/compare", h.Compare)
	rg.POST("/walk-forward", h.WalkForward)
	rg.POST("/monte-carlo", h.MonteCarlo)
	rg.POST("/stress-test", h.StressTest)
	rg.POST("/optimize", h.Optimize)
	rg.POST("/predict", h.Predict)
}

// seriesRequest selects the bars every endpoint works on. Dates are YYYY-MM-DD;
// an empty end date means today.
type seriesRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r seriesRequest) dates() (start, end time.Time, err error) {
	if r.StartDate != "" {
		if start, err = time.Parse(time.DateOnly, r.StartDate); err != nil {
			return start, end, fmt.Errorf("%w: start_date: %v", model.ErrInvalidArgument, err)
		}
	}
	if r.EndDate != "" {
		if end, err = time.Parse(time.DateOnly, r.EndDate); err != nil {
			return start, end, fmt.Errorf("%w: end_date: %v", model.ErrInvalidArgument, err)
		}
	}
	return start, end, nil
}

func (h *Handler) load(ctx context.Context, req seriesRequest) (model.Series, error) {
	start, end, err := req.dates()
	if err != nil {
		return nil, err
	}
	return h.provider.Load(ctx, req.Symbol, start, end)
}

func (h *Handler) ListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.Names()})
}

type backtestResponse struct {
	Symbol  string                `json:"symbol"`
	Metrics model.BacktestMetrics `json:"metrics"`
	Risk    *model.RiskMetrics    `json:"risk,omitempty"`
}

func (h *Handler) RunBacktest(c *gin.Context) {
	var req struct {
		seriesRequest
		Strategy string `json:"strategy" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}

	h.serve(c, "backtest", req.Symbol, func(ctx context.Context) (any, error) {
		series, err := h.load(ctx, req.seriesRequest)
		if err != nil {
			return nil, err
		}
		strat, err := strategy.Lookup(req.Strategy)
		if err != nil {
			return nil, err
		}
		metrics, err := h.backtester.Run(series, strat)
		if err != nil {
			return nil, err
		}
		infrastructure.BacktestTrades.WithLabelValues(strat.Name()).Add(float64(len(metrics.Trades)))

		resp := backtestResponse{Symbol: req.Symbol, Metrics: metrics}
		if rm, err := h.analyzer.AnalyzeEquity(metrics.EquityCurve); err == nil {
			resp.Risk = &rm
		}
		return resp, nil
	})
}

func (h *Handler) Compare(c *gin.Context) {
	var req struct {
		seriesRequest
		Strategies []string `json:"strategies"`
	}
	if !bind(c, &req) {
		return
	}

	h.serve(c, "compare", req.Symbol, func(ctx context.Context) (any, error) {
		series, err := h.load(ctx, req.seriesRequest)
		if err != nil {
			return nil, err
		}
		return h.scenarios.Compare(series, req.Strategies)
	})
}

func (h *Handler) WalkForward(c *gin.Context) {
	var req struct {
		seriesRequest
		Strategy string `json:"strategy" binding:"required"`
		Windows  int    `json:"windows"`
	}
	if !bind(c, &req) {
		return
	}

	h.serve(c, "walk-forward", req.Symbol, func(ctx context.Context) (any, error) {
		series, err := h.load(ctx, req.seriesRequest)
		if err != nil {
			return nil, err
		}
		return h.scenarios.WalkForward(series, req.Strategy, req.Windows)
	})
}

type monteCarloResponse struct {
	Summary scenario.MonteCarloSummary `json:"summary"`
	Results []model.BacktestMetrics    `json:"results"`
}

func (h *Handler) MonteCarlo(c *gin.Context) {
	var req struct {
		seriesRequest
		Strategy    string `json:"strategy" binding:"required"`
		Simulations int    `json:"simulations"`
		Seed        int64  `json:"seed"`
	}
	if !bind(c, &req) {
		return
	}

	h.serve(c, "monte-carlo", req.Symbol, func(ctx context.Context) (any, error) {
		if h.opts.MaxSimulations > 0 && req.Simulations > h.opts.MaxSimulations {
			return nil, fmt.Errorf("%w: at most %d simulations per request, got %d",
				model.ErrInvalidArgument, h.opts.MaxSimulations, req.Simulations)
		}
		series, err := h.load(ctx, req.seriesRequest)
		if err != nil {
			return nil, err
		}
		results, err := h.scenarios.MonteCarlo(ctx, series, req.Strategy, req.Simulations, req.Seed)
		if err != nil {
			return nil, err
		}
		return monteCarloResponse{Summary: scenario.SummarizeMonteCarlo(results), Results: results}, nil
	})
}

func (h *Handler) StressTest(c *gin.Context) {
	var req struct {
		seriesRequest
		Strategy string `json:"strategy" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}

	h.serve(c, "stress-test", req.Symbol, func(ctx context.Context) (any, error) {
		series, err := h.load(ctx, req.seriesRequest)
		if err != nil {
			return nil, err
		}
		return h.scenarios.StressTest(series, req.Strategy)
	})
}

func (h *Handler) Optimize(c *gin.Context) {
	// Preferences is pre-seeded so the request only overrides the keys it sends.
	req := struct {
		seriesRequest
		StrategyType string                 `json:"strategy_type" binding:"required"`
		Preferences  *optimizer.Preferences `json:"preferences"`
	}{Preferences: h.defaultPreferences()}
	if !bind(c, &req) {
		return
	}
	if req.Preferences == nil {
		req.Preferences = h.defaultPreferences()
	}

	h.serve(c, "optimize", req.Symbol, func(ctx context.Context) (any, error) {
		kind, err := strategy.ParseKind(req.StrategyType)
		if err != nil {
			return nil, err
		}
		series, err := h.load(ctx, req.seriesRequest)
		if err != nil {
			return nil, err
		}
		opt, err := optimizer.New(series, kind, *req.Preferences, h.logger)
		if err != nil {
			return nil, err
		}
		return opt.Optimize()
	})
}

func (h *Handler) defaultPreferences() *optimizer.Preferences {
	prefs := optimizer.DefaultPreferences()
	prefs.RiskFreeRate = h.analyzer.RiskFreeRate()
	return &prefs
}

func (h *Handler) Predict(c *gin.Context) {
	var req struct {
		seriesRequest
		Horizon int    `json:"horizon"`
		Unit    string `json:"unit"`
	}
	if !bind(c, &req) {
		return
	}

	h.serve(c, "predict", req.Symbol, func(ctx context.Context) (any, error) {
		if req.Unit == "" {
			req.Unit = string(classifier.UnitDays)
		}
		unit, err := classifier.ParseUnit(req.Unit)
		if err != nil {
			return nil, err
		}
		series, err := h.load(ctx, req.seriesRequest)
		if err != nil {
			return nil, err
		}
		return h.predictor.Predict(ctx, marketdata.NormalizeSymbol(req.Symbol), series, req.Horizon, unit)
	})
}

// serve runs op, records its duration and outcome, publishes the result and
// writes the response.
func (h *Handler) serve(c *gin.Context, op, symbol string, run func(ctx context.Context) (any, error)) {
	ctx := c.Request.Context()
	start := time.Now()
	result, err := run(ctx)
	infrastructure.RunDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		infrastructure.RunsTotal.WithLabelValues(op, "error").Inc()
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("request failed", zap.String("operation", op), zap.String("symbol", symbol), zap.Error(err))
		} else {
			h.logger.Info("request rejected", zap.String("operation", op), zap.String("symbol", symbol), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	infrastructure.RunsTotal.WithLabelValues(op, "ok").Inc()

	if err := h.publisher.Publish(ctx, op, marketdata.NormalizeSymbol(symbol), result); err != nil {
		h.logger.Warn("failed to publish result", zap.String("operation", op), zap.Error(err))
	}
	c.JSON(http.StatusOK, result)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrIllegalState):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
