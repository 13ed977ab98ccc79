// Package marketdata loads daily OHLCV bars for the engine.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quant-lab/internal/model"
)

// Provider returns the ascending daily series of symbol within [start, end].
type Provider interface {
	Load(ctx context.Context, symbol string, start, end time.Time) (model.Series, error)
}

// NormalizeSymbol unifies ticker spellings into one form (e.g. BRK.B, brk-b -> BRKB)
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, sep := range []string{"-", "/", "_", "."} {
		s = strings.ReplaceAll(s, sep, "")
	}
	return s
}

func validateRange(symbol string, start, end time.Time) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol cannot be empty", model.ErrInvalidArgument)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			model.ErrInvalidArgument, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
