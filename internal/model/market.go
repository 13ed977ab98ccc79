package model

import (
	"fmt"
	"sort"
	"time"
)

// PricePoint 代表一根日线 (OHLCV)
type PricePoint struct {
	Date   time.Time `json:"date" db:"day"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
}

// Series 按日期严格递增的价格序列, 不允许重复日期
type Series []PricePoint

// NewSeries sorts a copy of points by date and validates it.
func NewSeries(points []PricePoint) (Series, error) {
	s := make(Series, len(points))
	copy(s, points)
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Date.Before(s[j].Date)
	})
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ordering, duplicate dates and price sanity.
func (s Series) Validate() error {
	for i, p := range s {
		if p.Close <= 0 {
			return fmt.Errorf("%w: non-positive close %v on %s", ErrInvalidArgument, p.Close, p.Date.Format(time.DateOnly))
		}
		if p.Volume < 0 {
			return fmt.Errorf("%w: negative volume on %s", ErrInvalidArgument, p.Date.Format(time.DateOnly))
		}
		if i == 0 {
			continue
		}
		if !s[i-1].Date.Before(p.Date) {
			if s[i-1].Date.Equal(p.Date) {
				return fmt.Errorf("%w: duplicate date %s", ErrInvalidArgument, p.Date.Format(time.DateOnly))
			}
			return fmt.Errorf("%w: series not ascending at %s", ErrInvalidArgument, p.Date.Format(time.DateOnly))
		}
	}
	return nil
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

func (s Series) Opens() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Open
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Volume
	}
	return out
}

func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Last returns the most recent bar. The series must not be empty.
func (s Series) Last() PricePoint {
	return s[len(s)-1]
}

// Clone returns an independent copy, used by scenario builders that rewrite prices.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}
