package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(i int) time.Time {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestNewSeries_SortsAndValidates(t *testing.T) {
	points := []PricePoint{
		{Date: day(2), Close: 12, Volume: 1},
		{Date: day(0), Close: 10, Volume: 1},
		{Date: day(1), Close: 11, Volume: 1},
	}
	s, err := NewSeries(points)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, s.Closes())
	// input untouched
	assert.Equal(t, 12.0, points[0].Close)
}

func TestSeries_Validate(t *testing.T) {
	tests := []struct {
		name   string
		series Series
	}{
		{"duplicate", Series{{Date: day(0), Close: 1}, {Date: day(0), Close: 2}}},
		{"descending", Series{{Date: day(1), Close: 1}, {Date: day(0), Close: 2}}},
		{"zero close", Series{{Date: day(0), Close: 0}}},
		{"negative volume", Series{{Date: day(0), Close: 1, Volume: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
		})
	}

	assert.NoError(t, Series{}.Validate())
}

func TestParameterSet_OrderAndJSON(t *testing.T) {
	p := NewParameterSet("shortPeriod", 5, "longPeriod", 20.0)
	p.Set("shortPeriod", 7)

	assert.Equal(t, []string{"shortPeriod", "longPeriod"}, p.Names())
	assert.Equal(t, 7, p.Int("shortPeriod", 0))
	assert.Equal(t, 3.5, p.Float("missing", 3.5))

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"shortPeriod":7,"longPeriod":20}`, string(data))

	var back ParameterSet
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":2}`), &back))
	assert.Equal(t, []string{"z", "a"}, back.Names())

	err = json.Unmarshal([]byte(`[1,2]`), &back)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
