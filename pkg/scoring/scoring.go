// Package scoring computes the composite entry-quality score consumed by
// the portfolio selector: a weighted blend of trend strength, volatility
// fitness, entry quality, funding cost and news risk, each clipped to
// [0, 1] before blending.
package scoring

import (
	"math"

	"github.com/kasyap1234/trendback/pkg/model"
)

// Weights controls how the five factor scores blend into the composite.
type Weights struct {
	Trend        float64
	Volatility   float64
	EntryQuality float64
	Funding      float64
	News         float64
}

// DefaultWeights matches the reference blend.
func DefaultWeights() Weights {
	return Weights{Trend: 0.35, Volatility: 0.15, EntryQuality: 0.25, Funding: 0.10, News: 0.15}
}

// Score is the full factor breakdown plus the blended composite.
type Score struct {
	Composite       float64
	TrendScore      float64
	VolatilityScore float64
	EntryQuality    float64
	FundingPenalty  float64
	NewsModifier    float64
}

// Engine computes Score values from a fixed Weights configuration.
type Engine struct {
	weights Weights
}

// New builds an Engine with the given weights.
func New(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Inputs bundles the raw readings the composite score is derived from. The
// EMA fields are daily-timeframe (the trend factor's alignment/slope/price-
// position reading); ATR and EntryDistanceATR are intraday-timeframe (the
// volatility and entry-quality factors).
type Inputs struct {
	Side             model.Side
	Price            float64
	EMAFast          float64
	EMASlow          float64
	EMAFastPrior     float64 // ema_fast three daily bars ago, for the slope factor
	ATR              float64
	EntryDistanceATR float64 // |entry - reference| / ATR
	FundingRate      float64
	NewsRisk         model.NewsRisk
}

// Compute blends the five factor scores into a single composite in [0, 1].
func (e *Engine) Compute(in Inputs) Score {
	trend := trendScore(in.Side, in.Price, in.EMAFast, in.EMASlow, in.EMAFastPrior, in.ATR)
	vol := volatilityScore(in.Price, in.ATR)
	entry := entryQuality(in.EntryDistanceATR)
	funding := fundingPenalty(in.Side, in.FundingRate)
	news := newsModifier(in.NewsRisk)

	composite := e.weights.Trend*trend +
		e.weights.Volatility*vol +
		e.weights.EntryQuality*entry +
		e.weights.Funding*funding +
		e.weights.News*news

	return Score{
		Composite:       clamp(composite, 0, 1),
		TrendScore:      trend,
		VolatilityScore: vol,
		EntryQuality:    entry,
		FundingPenalty:  funding,
		NewsModifier:    news,
	}
}

// trendScore blends EMA alignment (fast vs slow on the candidate's side),
// EMA slope strength relative to ATR, and price position relative to the
// slow EMA.
func trendScore(side model.Side, price, emaFast, emaSlow, emaFastPrior, atr float64) float64 {
	var trendAlignment, pricePosition float64
	if side == model.Long {
		if emaFast > emaSlow {
			trendAlignment = 1.0
		}
		if price > emaSlow {
			pricePosition = 1.0
		} else {
			pricePosition = 0.5
		}
	} else {
		if emaFast < emaSlow {
			trendAlignment = 1.0
		}
		if price < emaSlow {
			pricePosition = 1.0
		} else {
			pricePosition = 0.5
		}
	}

	slopeStrength := 0.0
	if atr > 0 {
		slopeStrength = normalize(math.Abs(emaFast-emaFastPrior)/atr, 0, 0.5)
	}

	return trendAlignment*0.5 + slopeStrength*0.3 + pricePosition*0.2
}

// volatilityScore rewards ATR% sitting in the 2-5% band, scaling down
// toward the extremes on either side.
func volatilityScore(price, atr float64) float64 {
	if price <= 0 || atr <= 0 {
		return 0
	}
	atrPct := (atr / price) * 100
	switch {
	case atrPct >= 2.0 && atrPct <= 5.0:
		return 1.0
	case atrPct < 2.0:
		return clamp(atrPct/2.0, 0, 1)
	default:
		return clamp(1.0-(atrPct-5.0)/5.0, 0, 1)
	}
}

// entryQuality rewards entries 0.5-1.0 ATR from the reference level,
// penalizing entries that are too tight or too extended.
func entryQuality(entryDistanceATR float64) float64 {
	switch {
	case entryDistanceATR < 0:
		return 0
	case entryDistanceATR >= 0.5 && entryDistanceATR <= 1.0:
		return 1.0
	case entryDistanceATR < 0.5:
		return clamp(entryDistanceATR/0.5, 0, 1)
	default:
		return clamp(1.0-(entryDistanceATR-1.0)/1.0, 0, 1)
	}
}

// fundingPenalty only penalizes funding that is adverse to the candidate's
// side and beyond a small deadband; otherwise funding cost is neutral.
func fundingPenalty(side model.Side, rate float64) float64 {
	pct := fundingPercent(rate)
	if side == model.Long && pct > 0.03 {
		return clamp(1.0-math.Min(math.Abs(pct)/0.1, 1.0), 0, 1)
	}
	if side == model.Short && pct < -0.03 {
		return clamp(1.0-math.Min(math.Abs(pct)/0.1, 1.0), 0, 1)
	}
	return 1.0
}

// newsModifier scores news risk directly: LOW is fully favorable, HIGH is
// fully unfavorable, MEDIUM sits at the midpoint.
func newsModifier(risk model.NewsRisk) float64 {
	switch risk {
	case model.NewsHigh:
		return 0.0
	case model.NewsMedium:
		return 0.5
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalize maps v linearly from [lo, hi] onto [0, 1], clamping outside it.
func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

func fundingPercent(rate float64) float64 {
	if math.Abs(rate) <= 1 {
		return rate * 100
	}
	return rate
}
