package strategy

import (
	"fmt"
	"sort"
	"strings"

	"quant-lab/internal/model"
)

// New builds a strategy of the given kind. Missing parameters fall back to the
// kind's defaults.
func New(kind Kind, params model.ParameterSet) (Strategy, error) {
	switch kind {
	case KindSMACrossover:
		return NewSMACrossover(params.Int(ParamShortPeriod, 20), params.Int(ParamLongPeriod, 50))
	case KindRSI:
		return NewRSI(params.Int(ParamPeriod, 14), params.Float(ParamOversold, 30), params.Float(ParamOverbought, 70))
	case KindVolatilityBreakout:
		return NewVolatilityBreakout(params.Int(ParamPeriod, 20), params.Float(ParamStdDevMultiplier, 2))
	default:
		return nil, fmt.Errorf("%w: unknown strategy type %q", model.ErrInvalidArgument, kind)
	}
}

// ParseKind accepts the common spellings of each kind, e.g. "sma", "SMA_CROSSOVER", "volatility-breakout".
func ParseKind(s string) (Kind, error) {
	switch normalize(s) {
	case "SMA", "SMACROSSOVER", "MOVINGAVERAGE", "MACROSS":
		return KindSMACrossover, nil
	case "RSI":
		return KindRSI, nil
	case "VOLATILITYBREAKOUT", "BREAKOUT", "BOLLINGER":
		return KindVolatilityBreakout, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy type %q", model.ErrInvalidArgument, s)
	}
}

type preset struct {
	kind   Kind
	params model.ParameterSet
}

var presets = map[string]preset{
	"SMAConservative":    {KindSMACrossover, model.NewParameterSet(ParamShortPeriod, 20, ParamLongPeriod, 50)},
	"SMAModerate":        {KindSMACrossover, model.NewParameterSet(ParamShortPeriod, 10, ParamLongPeriod, 30)},
	"SMAAggressive":      {KindSMACrossover, model.NewParameterSet(ParamShortPeriod, 5, ParamLongPeriod, 20)},
	"SMA":                {KindSMACrossover, model.NewParameterSet(ParamShortPeriod, 20, ParamLongPeriod, 50)},
	"MovingAverage":      {KindSMACrossover, model.NewParameterSet(ParamShortPeriod, 20, ParamLongPeriod, 50)},
	"RSI":                {KindRSI, model.NewParameterSet(ParamPeriod, 14, ParamOversold, 30, ParamOverbought, 70)},
	"VolatilityBreakout": {KindVolatilityBreakout, model.NewParameterSet(ParamPeriod, 20, ParamStdDevMultiplier, 2)},
}

// Lookup returns the named preset. Names match case-insensitively.
func Lookup(name string) (Strategy, error) {
	p, key, ok := findPreset(name)
	if !ok {
		return nil, fmt.Errorf("%w: invalid strategy name %q", model.ErrInvalidArgument, name)
	}
	s, err := New(p.kind, p.params)
	if err != nil {
		return nil, err
	}
	return rename(s, key), nil
}

// Names lists the available presets in sorted order.
func Names() []string {
	out := make([]string, 0, len(presets))
	for n := range presets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func findPreset(name string) (preset, string, bool) {
	if p, ok := presets[name]; ok {
		return p, name, true
	}
	for k, p := range presets {
		if strings.EqualFold(k, name) {
			return p, k, true
		}
	}
	return preset{}, "", false
}

func rename(s Strategy, name string) Strategy {
	switch v := s.(type) {
	case *SMACrossover:
		v.name = name
	case *RSI:
		v.name = name
	case *VolatilityBreakout:
		v.name = name
	}
	return s
}

func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
