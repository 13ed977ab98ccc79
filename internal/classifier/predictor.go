package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quant-lab/internal/model"

	"go.uber.org/zap"
)

const (
	// MinTrainingRows is the fewest feature rows a model is trained on
	MinTrainingRows = 60
	// RecentRows is the training window of the short-memory model
	RecentRows = 126

	recentWeight     = 0.6
	historicalWeight = 0.4
)

type Unit string

const (
	UnitDays   Unit = "DAYS"
	UnitWeeks  Unit = "WEEKS"
	UnitMonths Unit = "MONTHS"
)

// ParseUnit accepts a unit name in any case.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToUpper(strings.TrimSpace(s))); u {
	case UnitDays, UnitWeeks, UnitMonths:
		return u, nil
	}
	return "", fmt.Errorf("%w: invalid timeframe unit %q", model.ErrInvalidArgument, s)
}

// bars converts a horizon to trading days
func (u Unit) bars(horizon int) int {
	switch u {
	case UnitWeeks:
		return horizon * 5
	case UnitMonths:
		return horizon * 21
	}
	return horizon
}

func (u Unit) add(t time.Time, horizon int) time.Time {
	switch u {
	case UnitWeeks:
		return t.AddDate(0, 0, 7*horizon)
	case UnitMonths:
		return t.AddDate(0, horizon, 0)
	}
	return t.AddDate(0, 0, horizon)
}

// Predictor trains a fresh recent/historical forest pair per request.
type Predictor struct {
	seed    int64
	workers int
	logger  *zap.Logger
}

// NewPredictor seeds every forest it trains from seed; zero leaves training
// non-deterministic.
func NewPredictor(seed int64, workers int, logger *zap.Logger) *Predictor {
	return &Predictor{seed: seed, workers: workers, logger: logger}
}

// Predict forecasts whether the close horizon units after the last bar will be
// higher than the last close. One forest learns the last RecentRows rows, another
// the full history; their probabilities are blended 0.6/0.4.
func (p *Predictor) Predict(ctx context.Context, symbol string, series model.Series, horizon int, unit Unit) (model.PredictionResponse, error) {
	if strings.TrimSpace(symbol) == "" {
		return model.PredictionResponse{}, fmt.Errorf("%w: symbol cannot be empty", model.ErrInvalidArgument)
	}
	if _, err := ParseUnit(string(unit)); err != nil {
		return model.PredictionResponse{}, err
	}
	if horizon < 1 {
		return model.PredictionResponse{}, fmt.Errorf("%w: horizon must be at least 1, got %d", model.ErrInvalidArgument, horizon)
	}
	if rows := len(series) - WarmupBars; rows < MinTrainingRows {
		return model.PredictionResponse{}, fmt.Errorf("%w: need %d bars to train (%d warm-up + %d rows), have %d",
			model.ErrInsufficientData, WarmupBars+MinTrainingRows, WarmupBars, MinTrainingRows, len(series))
	}

	raw, err := ExtractFeatures(series)
	if err != nil {
		return model.PredictionResponse{}, err
	}
	labels, err := MakeLabels(series, unit.bars(horizon))
	if err != nil {
		return model.PredictionResponse{}, err
	}
	features := Normalize(raw)

	recentFrom := len(features) - RecentRows
	if recentFrom < 0 {
		recentFrom = 0
	}
	recent, err := p.train(ctx, features[recentFrom:], labels[recentFrom:], p.seed)
	if err != nil {
		return model.PredictionResponse{}, fmt.Errorf("train recent model: %w", err)
	}
	historical, err := p.train(ctx, features, labels, p.derivedSeed())
	if err != nil {
		return model.PredictionResponse{}, fmt.Errorf("train historical model: %w", err)
	}

	latest := features[len(features)-1]
	recentProb, err := recent.PredictProba(latest)
	if err != nil {
		return model.PredictionResponse{}, err
	}
	historicalProb, err := historical.PredictProba(latest)
	if err != nil {
		return model.PredictionResponse{}, err
	}
	confidence := recentProb*recentWeight + historicalProb*historicalWeight
	up := confidence > 0.5

	asOf := series.Last().Date
	resp := model.PredictionResponse{
		Symbol:       symbol,
		AsOfDate:     asOf,
		TargetDate:   unit.add(asOf, horizon),
		PriceGoingUp: up,
		Direction:    direction(up),
		Confidence:   confidence,
		Indicators:   latestIndicators(raw[len(raw)-1]),
	}

	p.logger.Info("prediction generated",
		zap.String("symbol", symbol),
		zap.String("direction", resp.Direction),
		zap.Float64("confidence", confidence),
		zap.Int("rows", len(features)),
	)
	return resp, nil
}

func (p *Predictor) train(ctx context.Context, x [][]float64, y []int, seed int64) (*Forest, error) {
	if len(x) < MinTrainingRows {
		return nil, fmt.Errorf("%w: need %d training rows, have %d", model.ErrInsufficientData, MinTrainingRows, len(x))
	}
	cfg := ConfigFor(len(x), len(x[0]))
	cfg.Workers = p.workers
	forest := NewForest(cfg, p.logger)
	if err := forest.Train(ctx, x, y, seed); err != nil {
		return nil, err
	}
	return forest, nil
}

func (p *Predictor) derivedSeed() int64 {
	if p.seed == 0 {
		return 0
	}
	return p.seed + 1
}

func direction(up bool) string {
	if up {
		return "Bullish"
	}
	return "Bearish"
}

// latestIndicators reports the raw, unscaled feature values of the newest bar.
func latestIndicators(row []float64) map[string]float64 {
	byName := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		byName[name] = row[i]
	}
	return map[string]float64{
		"RSI":               byName["rsi"],
		"MACD":              byName["macd"],
		"BollingerPosition": byName["bollingerPosition"],
		"ATR":               byName["atr"],
		"5DayMomentum":      byName["momentum5"],
		"10DayMomentum":     byName["momentum10"],
		"20DayMomentum":     byName["momentum20"],
		"30DayMomentum":     byName["momentum30"],
		"RelativeVolume":    byName["relativeVolume"],
		"VWAP":              byName["vwap"],
		"OBV":               byName["obv"],
		"trendStrength":     byName["trendStrength"],
		"volatilityRegime":  byName["volatilityRatio"],
		"volumeProfile":     byName["relativeVolume"],
	}
}
