package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMABasic(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := SMA(values, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestEMASeedsWithSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	out := EMA(values, 3)
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.False(t, math.IsNaN(out[5]))
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	values := make([]float64, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		price += 1
		values = append(values, price)
	}
	out := RSI(values, 14)
	assert.InDelta(t, 100.0, out[len(out)-1], 1e-6)
}

func TestATRNonNegative(t *testing.T) {
	high := []float64{10, 11, 12, 11, 13, 14, 13, 15, 16, 15}
	low := []float64{9, 10, 11, 10, 12, 13, 12, 14, 15, 14}
	close := []float64{9.5, 10.5, 11.5, 10.5, 12.5, 13.5, 12.5, 14.5, 15.5, 14.5}
	out := ATR(high, low, close, 5)
	for _, v := range out {
		if !math.IsNaN(v) {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestCHOPBoundedRange(t *testing.T) {
	high := make([]float64, 40)
	low := make([]float64, 40)
	close := make([]float64, 40)
	for i := range high {
		base := 100.0 + float64(i%5)
		high[i] = base + 1
		low[i] = base - 1
		close[i] = base
	}
	out := CHOP(high, low, close, 14)
	for _, v := range out {
		if !math.IsNaN(v) {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}
}

func TestVolumeRatio(t *testing.T) {
	vols := []float64{10, 10, 10, 10, 30}
	out := VolumeRatio(vols, 4)
	assert.InDelta(t, 2.0, out[4], 1e-9) // 30 / mean(10,10,10,30)
}
