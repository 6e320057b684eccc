// Package sizing implements risk-based position sizing: converting an
// equity, entry/stop prices and a symbol's trading filters into a
// step-quantized quantity, or a definitive "unsizable" result.
package sizing

import (
	"math"

	"github.com/kasyap1234/trendback/pkg/model"
	"github.com/kasyap1234/trendback/pkg/quant"
)

// Result is the sized position, or absent (ok=false) when no size clears
// the symbol's filters.
type Result struct {
	Quantity float64
	Notional float64
}

// Sizer computes risk-based position size from a capped risk-per-trade
// percentage and a capped max leverage.
type Sizer struct {
	RiskPerTradePct float64
	MaxLeverage     int
}

// New builds a Sizer, clamping inputs to the engine-wide hard caps.
func New(riskPerTradePct float64, maxLeverage int) *Sizer {
	return &Sizer{
		RiskPerTradePct: math.Min(riskPerTradePct, 1.0),
		MaxLeverage:     minInt(maxLeverage, 5),
	}
}

// Calculate runs the five-step risk-based sizing algorithm:
//  1. stop_distance_pct = |entry-stop| / entry; fail if <= 0.
//  2. risk_amount = equity * risk_per_trade_pct/100.
//  3. position_value = min(risk_amount/stop_distance_pct, equity*min(leverage,max_leverage)).
//  4. fail if position_value < rule.min_notional.
//  5. quantity = floor(position_value/entry_price, rule.step_size); fail if < rule.min_qty.
func (s *Sizer) Calculate(equity, entryPrice, stopPrice float64, rule model.SymbolRule, leverage int) (Result, bool) {
	if equity <= 0 || entryPrice <= 0 {
		return Result{}, false
	}
	stopDistancePct := math.Abs(entryPrice-stopPrice) / entryPrice
	if stopDistancePct <= 0 {
		return Result{}, false
	}

	riskAmount := equity * (s.RiskPerTradePct / 100)
	positionValue := riskAmount / stopDistancePct

	maxPositionValue := equity * float64(minInt(leverage, s.MaxLeverage))
	if positionValue > maxPositionValue {
		positionValue = maxPositionValue
	}

	if positionValue < rule.MinNotional {
		return Result{}, false
	}

	quantity := quant.FloorToStep(positionValue/entryPrice, rule.StepSize)
	if quantity < rule.MinQty || quantity <= 0 {
		return Result{}, false
	}

	return Result{Quantity: quantity, Notional: quantity * entryPrice}, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
