// Package indicators implements the technical indicators consumed by the
// regime classifier and signal generator: moving averages, oscillators and
// trend-strength measures, each computed over a []float64 price/volume
// series. Every function returns the full series aligned to its input,
// using NaN for indices where the window hasn't filled yet — callers index
// from the end of the series rather than trimming warmup themselves.
package indicators

import "math"

// EMA computes the exponential moving average with smoothing period.
// The seed value is a simple average of the first `period` values.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return out
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed
	prev := seed
	for i := period; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// SMA computes the simple moving average with window period.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// TrueRange computes the per-bar true range from high/low/close series.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		if i == 0 {
			out[i] = high[i] - low[i]
			continue
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR computes the Average True Range as a simple moving average of the
// true range series (a simple moving average, not Wilder's smoothing).
func ATR(high, low, close []float64, period int) []float64 {
	tr := TrueRange(high, low, close)
	return SMA(tr, period)
}

// RSI computes the Relative Strength Index using Wilder's smoothing.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) <= period {
		return out
	}

	gainSum, lossSum := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ADX computes the Average Directional Index (Wilder's DMI) with period.
func ADX(high, low, close []float64, period int) []float64 {
	n := len(high)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= period*2 || period <= 0 {
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := TrueRange(high, low, close)
	for i := 1; i < n; i++ {
		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := wilderSmooth(tr, period)
	smoothPlusDM := wilderSmooth(plusDM, period)
	smoothMinusDM := wilderSmooth(minusDM, period)

	dx := make([]float64, n)
	for i := range dx {
		dx[i] = math.NaN()
	}
	for i := period; i < n; i++ {
		if smoothTR[i] == 0 {
			continue
		}
		plusDI := 100 * smoothPlusDM[i] / smoothTR[i]
		minusDI := 100 * smoothMinusDM[i] / smoothTR[i]
		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}

	adxSeed := 0.0
	seedStart := period
	seedEnd := period * 2
	if seedEnd > n {
		return out
	}
	for i := seedStart; i < seedEnd; i++ {
		adxSeed += dx[i]
	}
	adxSeed /= float64(period)
	out[seedEnd-1] = adxSeed
	prev := adxSeed
	for i := seedEnd; i < n; i++ {
		prev = (prev*float64(period-1) + dx[i]) / float64(period)
		out[i] = prev
	}
	return out
}

func wilderSmooth(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i := 1; i <= period && i < len(values); i++ {
		sum += values[i]
	}
	if period < len(values) {
		out[period] = sum
	}
	for i := period + 1; i < len(values); i++ {
		out[i] = out[i-1] - out[i-1]/float64(period) + values[i]
	}
	return out
}

// CHOP computes the Choppiness Index over window period: high choppiness
// (near 100) indicates a ranging market, low (near 0) a trending one.
func CHOP(high, low, close []float64, period int) []float64 {
	n := len(high)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= period || period <= 0 {
		return out
	}
	tr := TrueRange(high, low, close)
	logN := math.Log10(float64(period))

	trSum := 0.0
	for i := 0; i < period; i++ {
		trSum += tr[i]
	}
	for i := period; i < n; i++ {
		trSum += tr[i] - tr[i-period]

		hi := high[i-period+1]
		lo := low[i-period+1]
		for j := i - period + 1; j <= i; j++ {
			if high[j] > hi {
				hi = high[j]
			}
			if low[j] < lo {
				lo = low[j]
			}
		}
		rng := hi - lo
		if rng <= 0 || trSum <= 0 {
			out[i] = 0
			continue
		}
		out[i] = 100 * math.Log10(trSum/rng) / logN
	}
	return out
}

// VolumeSMA is an alias of SMA applied to a volume series, named for
// readability at call sites.
func VolumeSMA(volume []float64, period int) []float64 {
	return SMA(volume, period)
}

// VolumeRatio divides the latest volume by its moving average baseline,
// returning NaN where the baseline hasn't formed yet.
func VolumeRatio(volume []float64, period int) []float64 {
	avg := VolumeSMA(volume, period)
	out := make([]float64, len(volume))
	for i := range out {
		if math.IsNaN(avg[i]) || avg[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = volume[i] / avg[i]
	}
	return out
}

// Last returns the final element of a series, or NaN for an empty series.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}
