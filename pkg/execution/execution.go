// Package execution implements the fill-simulation models a backtest can
// select between: an always-fills Ideal model for upper-bound performance
// estimates, and a probabilistic Realistic model (with an optional
// spread-aware wrapper) that mirrors venue microstructure — slippage,
// partial fills, and outright rejections.
package execution

import (
	"math"
	"math/rand"

	"github.com/kasyap1234/trendback/pkg/model"
)

// VolatilityRegime buckets ATR% into coarse slippage multipliers.
type VolatilityRegime int

const (
	VolLow VolatilityRegime = iota
	VolNormal
	VolHigh
)

func classifyVolatility(atrPct float64) VolatilityRegime {
	switch {
	case atrPct < 0.5:
		return VolLow
	case atrPct < 1.5:
		return VolNormal
	default:
		return VolHigh
	}
}

// FillResult is the outcome of attempting to fill a proposal.
type FillResult struct {
	Filled           bool
	FillPrice        float64
	FillQuantity     float64
	IsPartial        bool
	SlippageBps      float64
	RejectionReason  string
	HasRejection     bool
}

// Request bundles everything a fill attempt needs.
type Request struct {
	Side           model.Side
	EntryPrice     float64
	Quantity       float64
	ATRPct         float64
	SpreadBps      float64
	DistanceTicks  float64 // distance of a resting order from touch, in ticks; 0 for market
	WaitBars       int     // bars the order has been resting
	IsMarket       bool
}

// Model is the interface every execution model satisfies.
type Model interface {
	SimulateFill(req Request) FillResult
}

// Ideal always fills at a fixed-percentage slippage from the requested price.
type Ideal struct {
	SlippagePct float64
}

// SimulateFill always fills; LONGs pay the spread (fill above entry),
// SHORTs receive it (fill below entry).
func (m Ideal) SimulateFill(req Request) FillResult {
	sign := 1.0
	if req.Side == model.Short {
		sign = -1.0
	}
	fillPrice := req.EntryPrice * (1 + sign*m.SlippagePct)
	return FillResult{
		Filled:       true,
		FillPrice:    fillPrice,
		FillQuantity: req.Quantity,
		SlippageBps:  m.SlippagePct * 10000,
	}
}

// Realistic probabilistically fills, applying regime-scaled slippage and a
// tiered fill probability, using a seeded PRNG for reproducibility.
type Realistic struct {
	BaseSlippageBps float64
	ATRScale        float64
	MarketOrderBps  float64
	PartialFillRate float64
	rng             *rand.Rand
}

// NewRealistic builds a Realistic model seeded for reproducible replays.
func NewRealistic(seed int64, baseSlippageBps, atrScale, marketOrderBps, partialFillRate float64) *Realistic {
	return &Realistic{
		BaseSlippageBps: baseSlippageBps,
		ATRScale:        atrScale,
		MarketOrderBps:  marketOrderBps,
		PartialFillRate: partialFillRate,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

func (m *Realistic) slippage(req Request) float64 {
	halfSpread := req.SpreadBps / 2 / 10000
	base := m.BaseSlippageBps/10000 + req.ATRPct/100*m.ATRScale + halfSpread

	regimeMult := 1.0
	switch classifyVolatility(req.ATRPct) {
	case VolHigh:
		regimeMult = 2.0
	case VolLow:
		regimeMult = 0.5
	}
	slip := base * regimeMult
	if req.IsMarket {
		slip += m.MarketOrderBps / 10000
	}
	return slip
}

func fillProbability(req Request) float64 {
	p := 0.7
	p -= req.DistanceTicks * 0.03
	p += float64(req.WaitBars) * 0.02
	switch classifyVolatility(req.ATRPct) {
	case VolHigh:
		p += 0.1
	case VolLow:
		p -= 0.05
	}
	if req.SpreadBps > 10 {
		p -= 0.1
	}
	if req.IsMarket {
		p = 0.98
	}
	return clamp(p, 0.05, 0.95)
}

// SimulateFill draws from the tiered fill probability, then (if filled)
// applies regime-scaled slippage and an independent partial-fill draw.
func (m *Realistic) SimulateFill(req Request) FillResult {
	prob := fillProbability(req)
	if m.rng.Float64() > prob {
		return FillResult{Filled: false, HasRejection: true, RejectionReason: "LIMIT_NOT_FILLED"}
	}

	slip := m.slippage(req)
	sign := 1.0
	if req.Side == model.Short {
		sign = -1.0
	}
	fillPrice := req.EntryPrice * (1 + sign*slip)
	slippageBps := math.Abs(fillPrice-req.EntryPrice) / req.EntryPrice * 10000

	quantity := req.Quantity
	isPartial := false
	if m.rng.Float64() < m.PartialFillRate {
		quantity *= 0.5
		isPartial = true
	}

	return FillResult{
		Filled:       true,
		FillPrice:    fillPrice,
		FillQuantity: quantity,
		IsPartial:    isPartial,
		SlippageBps:  slippageBps,
	}
}

// SpreadAware wraps another Model and rejects outright when the current
// spread exceeds MaxSpreadBps, before delegating to the wrapped model.
type SpreadAware struct {
	Inner        Model
	MaxSpreadBps float64
}

func (m SpreadAware) SimulateFill(req Request) FillResult {
	if req.SpreadBps > m.MaxSpreadBps {
		return FillResult{
			Filled:          false,
			HasRejection:    true,
			RejectionReason: "spread_too_wide",
		}
	}
	return m.Inner.SimulateFill(req)
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
