package strategy

import (
	"fmt"

	"quant-lab/internal/indicator"
	"quant-lab/internal/model"
)

const (
	ParamShortPeriod = "shortPeriod"
	ParamLongPeriod  = "longPeriod"
)

// SMACrossover 双均线策略: 金叉买入, 死叉卖出
type SMACrossover struct {
	name        string
	shortPeriod int
	longPeriod  int
}

func NewSMACrossover(shortPeriod, longPeriod int) (*SMACrossover, error) {
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, fmt.Errorf("%w: moving average periods must be positive, got %d/%d", model.ErrInvalidArgument, shortPeriod, longPeriod)
	}
	if shortPeriod >= longPeriod {
		return nil, fmt.Errorf("%w: short period %d must be less than long period %d", model.ErrInvalidArgument, shortPeriod, longPeriod)
	}
	return &SMACrossover{
		name:        fmt.Sprintf("SMA(%d,%d)", shortPeriod, longPeriod),
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
	}, nil
}

func (s *SMACrossover) Kind() Kind   { return KindSMACrossover }
func (s *SMACrossover) Name() string { return s.name }
func (s *SMACrossover) Warmup() int  { return s.longPeriod - 1 }

func (s *SMACrossover) Params() model.ParameterSet {
	return model.NewParameterSet(ParamShortPeriod, s.shortPeriod, ParamLongPeriod, s.longPeriod)
}

// Signal compares today's averages with yesterday's. When yesterday had too little
// history its relation counts as neither above nor below.
func (s *SMACrossover) Signal(history model.Series) (model.Action, error) {
	if len(history) < s.longPeriod {
		return model.ActionHold, fmt.Errorf("%w: need %d bars, have %d", model.ErrInsufficientData, s.longPeriod, len(history))
	}
	// today's and yesterday's long window
	closes := tailCloses(history, s.longPeriod+1)
	i := len(closes) - 1

	shortMA, _ := indicator.SMA(closes, i, s.shortPeriod)
	longMA, _ := indicator.SMA(closes, i, s.longPeriod)

	var prevAbove, prevBelow bool
	if prevLong, ok := indicator.SMA(closes, i-1, s.longPeriod); ok {
		prevShort, _ := indicator.SMA(closes, i-1, s.shortPeriod)
		prevAbove = prevShort > prevLong
		prevBelow = prevShort < prevLong
	}

	// Golden Cross
	if !prevAbove && shortMA > longMA {
		return model.ActionBuy, nil
	}
	// Death Cross
	if !prevBelow && shortMA < longMA {
		return model.ActionSell, nil
	}
	return model.ActionHold, nil
}
