package strategy

import (
	"fmt"

	"quant-lab/internal/indicator"
	"quant-lab/internal/model"
)

const ParamStdDevMultiplier = "stdDevMultiplier"

// VolatilityBreakout trades closes escaping Bollinger bands built from the
// preceding period closes.
type VolatilityBreakout struct {
	name       string
	period     int
	multiplier float64
}

func NewVolatilityBreakout(period int, multiplier float64) (*VolatilityBreakout, error) {
	if period < 2 {
		return nil, fmt.Errorf("%w: breakout period must be at least 2, got %d", model.ErrInvalidArgument, period)
	}
	if multiplier <= 0 {
		return nil, fmt.Errorf("%w: std dev multiplier must be positive, got %v", model.ErrInvalidArgument, multiplier)
	}
	return &VolatilityBreakout{
		name:       fmt.Sprintf("VolatilityBreakout(%d,%g)", period, multiplier),
		period:     period,
		multiplier: multiplier,
	}, nil
}

func (s *VolatilityBreakout) Kind() Kind   { return KindVolatilityBreakout }
func (s *VolatilityBreakout) Name() string { return s.name }
func (s *VolatilityBreakout) Warmup() int  { return s.period }

func (s *VolatilityBreakout) Params() model.ParameterSet {
	return model.NewParameterSet(ParamPeriod, s.period, ParamStdDevMultiplier, s.multiplier)
}

func (s *VolatilityBreakout) Signal(history model.Series) (model.Action, error) {
	if len(history) <= s.period {
		return model.ActionHold, fmt.Errorf("%w: need %d bars, have %d", model.ErrInsufficientData, s.period+1, len(history))
	}
	closes := tailCloses(history, s.period+1)
	i := len(closes) - 1
	bands, _ := indicator.Bollinger(closes, i-1, s.period, s.multiplier)

	switch {
	case closes[i] > bands.Upper:
		return model.ActionBuy, nil
	case closes[i] < bands.Lower:
		return model.ActionSell, nil
	}
	return model.ActionHold, nil
}
