package strategy

import (
	"quant-lab/internal/model"
)

// Kind identifies one of the fixed strategy variants
type Kind string

const (
	KindSMACrossover       Kind = "SMA"
	KindRSI                Kind = "RSI"
	KindVolatilityBreakout Kind = "VolatilityBreakout"
)

// Strategy turns the bars seen so far into a signal. Implementations are stateless
// and safe for concurrent use.
type Strategy interface {
	Kind() Kind
	Name() string
	Params() model.ParameterSet
	// Warmup is the first index of a series with enough lookback to evaluate.
	Warmup() int
	// Signal evaluates the last bar of history. history never extends past the current day.
	Signal(history model.Series) (model.Action, error)
}

// Batch is implemented by strategies whose indicator is a recursion over the whole
// history. Signals returns one action per bar, HOLD where the indicator is not yet
// defined; entry i reads only series[:i+1] and equals Signal(series[:i+1]).
type Batch interface {
	Signals(series model.Series) []model.Action
}

// tailCloses returns the closes of the last n bars (all bars when fewer).
func tailCloses(history model.Series, n int) []float64 {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return history.Closes()
}
