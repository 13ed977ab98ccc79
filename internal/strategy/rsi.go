package strategy

import (
	"fmt"
	"math"

	"quant-lab/internal/indicator"
	"quant-lab/internal/model"
)

const (
	ParamPeriod     = "period"
	ParamOversold   = "oversold"
	ParamOverbought = "overbought"
)

// RSI buys below the oversold line and sells above the overbought line
type RSI struct {
	name       string
	period     int
	oversold   float64
	overbought float64
}

func NewRSI(period int, oversold, overbought float64) (*RSI, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: rsi period must be positive, got %d", model.ErrInvalidArgument, period)
	}
	if oversold < 0 || overbought > 100 || oversold >= overbought {
		return nil, fmt.Errorf("%w: rsi thresholds must satisfy 0 <= oversold < overbought <= 100, got %v/%v", model.ErrInvalidArgument, oversold, overbought)
	}
	return &RSI{
		name:       fmt.Sprintf("RSI(%d,%g,%g)", period, oversold, overbought),
		period:     period,
		oversold:   oversold,
		overbought: overbought,
	}, nil
}

func (s *RSI) Kind() Kind   { return KindRSI }
func (s *RSI) Name() string { return s.name }
func (s *RSI) Warmup() int  { return s.period }

func (s *RSI) Params() model.ParameterSet {
	return model.NewParameterSet(ParamPeriod, s.period, ParamOversold, s.oversold, ParamOverbought, s.overbought)
}

func (s *RSI) Signal(history model.Series) (model.Action, error) {
	rsi := indicator.RSI(history.Closes(), s.period)
	if len(rsi) == 0 || math.IsNaN(rsi[len(rsi)-1]) {
		return model.ActionHold, fmt.Errorf("%w: rsi(%d) needs %d bars, have %d", model.ErrInsufficientData, s.period, s.period+1, len(history))
	}
	return s.classify(rsi[len(rsi)-1]), nil
}

// Signals computes the Wilder recursion once for the whole series.
func (s *RSI) Signals(series model.Series) []model.Action {
	rsi := indicator.RSI(series.Closes(), s.period)
	out := make([]model.Action, len(rsi))
	for i, v := range rsi {
		if math.IsNaN(v) {
			out[i] = model.ActionHold
			continue
		}
		out[i] = s.classify(v)
	}
	return out
}

func (s *RSI) classify(rsi float64) model.Action {
	switch {
	case rsi < s.oversold:
		return model.ActionBuy
	case rsi > s.overbought:
		return model.ActionSell
	}
	return model.ActionHold
}

