package app

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quant-lab/internal/config"
	"quant-lab/internal/engine"
	"quant-lab/internal/marketdata"
	"quant-lab/internal/model"
	"quant-lab/internal/publish"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	series := make(model.Series, 180)
	for i := range series {
		p := 50 + 5*math.Sin(float64(i)/9)
		series[i] = model.PricePoint{Date: start.AddDate(0, 0, i), Open: p, High: p * 1.01, Low: p * 0.99, Close: p, Volume: 5e5}
	}
	f, err := os.Create(filepath.Join(dir, "SPY.csv"))
	require.NoError(t, err)
	require.NoError(t, marketdata.WriteCSV(f, series))
	require.NoError(t, f.Close())

	logger := zap.NewNop()
	return &App{
		Config:    &config.Config{Port: "0", DataDir: dir, RiskFreeRate: 0.02, MaxSimulations: 50},
		Logger:    logger,
		Provider:  marketdata.NewCSVDir(dir),
		Publisher: publish.Noop{},
		Pool:      engine.NewWorkerPool(2, logger),
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	r := newTestApp(t).setupRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterBacktestFromCSV(t *testing.T) {
	r := newTestApp(t).setupRouter()

	body := `{"symbol":"spy","strategy":"SMAModerate","start_date":"2022-01-03"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "equity_curve")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/backtest", bytes.NewBufferString(`{"symbol":"QQQ","strategy":"RSI"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "unknown symbols have no data")
}
