package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quant-lab/api"
	"quant-lab/internal/classifier"
	"quant-lab/internal/config"
	"quant-lab/internal/engine"
	"quant-lab/internal/infrastructure"
	"quant-lab/internal/marketdata"
	"quant-lab/internal/publish"
	"quant-lab/internal/scenario"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App defines the application structure and its dependencies
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *pgxpool.Pool
	NC         *nats.Conn
	JS         nats.JetStreamContext
	Provider   marketdata.Provider
	Publisher  publish.Publisher
	Pool       *engine.WorkerPool
	HTTPServer *http.Server
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := infrastructure.Init(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	return &App{
		Config: &cfg,
		Logger: infrastructure.Logger,
	}, nil
}

// Init initializes all application components. Postgres and NATS are optional:
// without DB_DSN bars are read from CSV files in DATA_DIR, and results are only
// published when PUBLISH_RESULTS is set.
func (a *App) Init(ctx context.Context) error {
	// 1. Market data
	if a.Config.DB_DSN != "" {
		dbPool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = dbPool

		store := marketdata.NewPostgres(dbPool, a.Logger)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.Provider = store
	} else {
		a.Logger.Info("no database configured, reading csv files", zap.String("dir", a.Config.DataDir))
		a.Provider = marketdata.NewCSVDir(a.Config.DataDir)
	}

	// 2. NATS
	a.Publisher = publish.Noop{}
	if a.Config.PublishResults && a.Config.NatsURL != "" {
		nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.NC = nc
		a.JS = js
		a.Publisher = publish.NewJetStream(js, a.Logger)
	}

	// 3. Services
	a.Pool = engine.NewWorkerPool(a.Config.MonteCarloWorkers, a.Logger)

	return nil
}

// Run starts the HTTP server and blocks until a shutdown signal arrives
func (a *App) Run(ctx context.Context) error {
	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown(ctx)
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	a.Logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if a.NC != nil {
		a.NC.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	_ = a.Logger.Sync()

	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	apiHandler := api.NewHandler(
		a.Provider,
		a.Publisher,
		scenario.NewEngine(a.Pool, a.Logger),
		classifier.NewPredictor(a.Config.ForestSeed, a.Pool.Size(), a.Logger),
		api.Options{RiskFreeRate: a.Config.RiskFreeRate, MaxSimulations: a.Config.MaxSimulations},
		a.Logger,
	)

	v1 := r.Group("/api/v1")
	apiHandler.RegisterRoutes(v1)

	return r
}
