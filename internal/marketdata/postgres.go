package marketdata

import (
	"context"
	"fmt"
	"time"

	"quant-lab/internal/model"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// Schema creates the daily bar table read by Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS daily_bars (
	symbol TEXT NOT NULL,
	day    DATE NOT NULL,
	open   DOUBLE PRECISION NOT NULL,
	high   DOUBLE PRECISION NOT NULL,
	low    DOUBLE PRECISION NOT NULL,
	close  DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (symbol, day)
)`

const selectBars = `
	SELECT day, open, high, low, close, volume
	FROM daily_bars
	WHERE symbol = $1 AND day >= $2 AND day <= $3
	ORDER BY day ASC`

// Postgres serves bars from the daily_bars table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create daily_bars: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, symbol string, start, end time.Time) (model.Series, error) {
	symbol = NormalizeSymbol(symbol)
	if err := validateRange(symbol, start, end); err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = time.Now()
	}

	rows, err := p.pool.Query(ctx, selectBars, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	series, err := scanBars(rows)
	if err != nil {
		return nil, fmt.Errorf("scan bars for %s: %w", symbol, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s between %s and %s", model.ErrInsufficientData,
			symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	p.logger.Debug("loaded bars",
		zap.String("symbol", symbol),
		zap.Int("bars", len(series)),
	)
	return model.NewSeries(series)
}

// Store upserts series under symbol in one batch.
func (p *Postgres) Store(ctx context.Context, symbol string, series model.Series) error {
	symbol = NormalizeSymbol(symbol)
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, b := range series {
		_, err := tx.Exec(ctx, `
			INSERT INTO daily_bars (symbol, day, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol, day) DO UPDATE
			SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			    close = EXCLUDED.close, volume = EXCLUDED.volume`,
			symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("store bar %s %s: %w", symbol, b.Date.Format(time.DateOnly), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.logger.Info("stored bars", zap.String("symbol", symbol), zap.Int("bars", len(series)))
	return nil
}

// rowScanner is the part of pgx.Rows the loader consumes
type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanBars(rows rowScanner) ([]model.PricePoint, error) {
	var bars []model.PricePoint
	for rows.Next() {
		var b model.PricePoint
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
