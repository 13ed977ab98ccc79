package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	v, ok := SMA(values, 4, 3)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = SMA(values, 1, 3)
	assert.False(t, ok)
}

func TestRSI_FlatIsHundred(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10, 10}
	rsi := RSI(values, 3)
	assert.True(t, math.IsNaN(rsi[2]))
	for i := 3; i < len(values); i++ {
		assert.Equal(t, 100.0, rsi[i])
	}
}

func TestRSI_Wilder(t *testing.T) {
	// three gains of 1: avgGain=1 avgLoss=0 -> 100
	values := []float64{10, 11, 12, 13, 11}
	rsi := RSI(values, 3)
	assert.Equal(t, 100.0, rsi[3])
	// avgGain=(1*2+0)/3=2/3, avgLoss=(0*2+2)/3=2/3 -> 50
	assert.InDelta(t, 50.0, rsi[4], 1e-9)
}

func TestBollinger(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	b, ok := Bollinger(values, 7, 8, 2)
	assert.True(t, ok)
	assert.Equal(t, 5.0, b.Middle)
	assert.Equal(t, 9.0, b.Upper)
	assert.Equal(t, 1.0, b.Lower)
}
