package engine

import (
	"fmt"
	"math"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"
	"quant-lab/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// InitialCapital every simulation starts with
	InitialCapital = 100000.0
	// share of cash committed on entry, the rest stays as buffer
	cashUsage = 0.95
)

// Backtester replays a strategy over a series. It keeps no state between runs and
// can be shared across goroutines.
type Backtester struct {
	logger         *zap.Logger
	initialCapital decimal.Decimal
	cashUsage      decimal.Decimal
}

func NewBacktester(logger *zap.Logger) *Backtester {
	return &Backtester{
		logger:         logger,
		initialCapital: decimal.NewFromFloat(InitialCapital),
		cashUsage:      decimal.NewFromFloat(cashUsage),
	}
}

// ledger is the mutable account of a single run
type ledger struct {
	cash        decimal.Decimal
	shares      int64
	trades      []model.Trade
	equityCurve []model.EquityPoint
}

func (b *Backtester) Run(series model.Series, strat strategy.Strategy) (model.BacktestMetrics, error) {
	return b.RunFrom(series, strat, 0)
}

// RunFrom evaluates days from max(from, warmup) onwards. Earlier bars only serve as
// indicator lookback.
func (b *Backtester) RunFrom(series model.Series, strat strategy.Strategy, from int) (model.BacktestMetrics, error) {
	start := strat.Warmup()
	if from > start {
		start = from
	}
	if start >= len(series) {
		return model.BacktestMetrics{}, fmt.Errorf("%w: %s needs more than %d bars, have %d",
			model.ErrInsufficientData, strat.Name(), start, len(series))
	}

	l := &ledger{
		cash:        b.initialCapital,
		trades:      make([]model.Trade, 0),
		equityCurve: make([]model.EquityPoint, 0, len(series)-start),
	}

	batch := b.batchSignals(strat, series)
	for i := start; i < len(series); i++ {
		bar := series[i]
		var action model.Action
		if batch != nil {
			action = batch[i]
		} else {
			action = b.signal(strat, series[:i+1])
		}

		if action == model.ActionBuy && l.shares == 0 {
			b.buy(l, bar)
		} else if action == model.ActionSell && l.shares > 0 {
			b.sell(l, bar)
		}

		// Track equity curve
		equity := l.cash.Add(decimal.NewFromInt(l.shares).Mul(decimal.NewFromFloat(bar.Close)))
		l.equityCurve = append(l.equityCurve, model.EquityPoint{Date: bar.Date, Equity: equity.InexactFloat64()})
	}

	metrics := b.summarize(l)
	metrics.StrategyName = strat.Name()

	b.logger.Debug("backtest finished",
		zap.String("strategy", strat.Name()),
		zap.Int("bars", len(series)-start),
		zap.Int("trades", len(l.trades)),
		zap.Float64("return_pct", metrics.TotalReturnPct),
	)
	return metrics, nil
}

// Signals returns the action produced for every index, HOLD before warm-up.
func (b *Backtester) Signals(series model.Series, strat strategy.Strategy) []model.Action {
	out := make([]model.Action, len(series))
	batch := b.batchSignals(strat, series)
	for i := range series {
		switch {
		case i < strat.Warmup():
			out[i] = model.ActionHold
		case batch != nil:
			out[i] = batch[i]
		default:
			out[i] = b.signal(strat, series[:i+1])
		}
	}
	return out
}

// batchSignals returns nil when strat has no batch path or it fails, in which
// case the caller evaluates day by day.
func (b *Backtester) batchSignals(strat strategy.Strategy, series model.Series) (actions []model.Action) {
	batch, ok := strat.(strategy.Batch)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("batch signals panicked, evaluating per day",
				zap.String("strategy", strat.Name()),
				zap.Any("panic", r),
			)
			actions = nil
		}
	}()
	actions = batch.Signals(series)
	if len(actions) != len(series) {
		return nil
	}
	return actions
}

// signal never fails: errors and panics degrade the day to HOLD.
func (b *Backtester) signal(strat strategy.Strategy, history model.Series) (action model.Action) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("signal panicked, holding",
				zap.String("strategy", strat.Name()),
				zap.Time("date", history.Last().Date),
				zap.Any("panic", r),
			)
			action = model.ActionHold
		}
	}()

	action, err := strat.Signal(history)
	if err != nil {
		b.logger.Warn("signal failed, holding",
			zap.String("strategy", strat.Name()),
			zap.Time("date", history.Last().Date),
			zap.Error(err),
		)
		return model.ActionHold
	}
	return action
}

func (b *Backtester) buy(l *ledger, bar model.PricePoint) {
	price := decimal.NewFromFloat(bar.Close)
	qty := l.cash.Mul(b.cashUsage).Div(price).Floor().IntPart()
	if qty <= 0 {
		return
	}

	l.cash = l.cash.Sub(price.Mul(decimal.NewFromInt(qty)))
	l.shares = qty
	l.trades = append(l.trades, model.Trade{
		Date:   bar.Date,
		Action: model.ActionBuy,
		Shares: qty,
		Price:  bar.Close,
	})
}

func (b *Backtester) sell(l *ledger, bar model.PricePoint) {
	price := decimal.NewFromFloat(bar.Close)
	l.cash = l.cash.Add(price.Mul(decimal.NewFromInt(l.shares)))
	l.trades = append(l.trades, model.Trade{
		Date:   bar.Date,
		Action: model.ActionSell,
		Shares: l.shares,
		Price:  bar.Close,
	})
	l.shares = 0
}

func (b *Backtester) summarize(l *ledger) model.BacktestMetrics {
	initial := b.initialCapital.InexactFloat64()
	final := initial
	if len(l.equityCurve) > 0 {
		final = l.equityCurve[len(l.equityCurve)-1].Equity
	}

	return model.BacktestMetrics{
		TotalReturnPct: (final - initial) / initial * 100,
		SharpeRatio:    sharpeRatio(l.equityCurve),
		MaxDrawdownPct: maxDrawdownPct(initial, l.equityCurve),
		WinRatePct:     winRatePct(l.trades),
		Trades:         l.trades,
		EquityCurve:    l.equityCurve,
	}
}

// winRatePct pairs each BUY with the SELL that follows it.
func winRatePct(trades []model.Trade) float64 {
	var pairs, wins int
	for i := 1; i < len(trades); i++ {
		if trades[i].Action != model.ActionSell || trades[i-1].Action != model.ActionBuy {
			continue
		}
		pairs++
		if trades[i].Price > trades[i-1].Price {
			wins++
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(wins) / float64(pairs) * 100
}

func maxDrawdownPct(initial float64, curve []model.EquityPoint) float64 {
	values := make([]float64, 0, len(curve)+1)
	values = append(values, initial)
	for _, p := range curve {
		values = append(values, p.Equity)
	}
	return stats.MaxDrawdown(values) * 100
}

func sharpeRatio(curve []model.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	equity := make([]float64, len(curve))
	for i, p := range curve {
		equity[i] = p.Equity
	}
	returns := stats.SimpleReturns(equity)
	stdDev := stats.PopulationStandardDeviation(returns)
	if stdDev == 0 {
		return 0
	}
	return stats.Mean(returns) / stdDev * math.Sqrt(stats.TradingDaysPerYear)
}
