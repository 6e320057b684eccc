// Package quant implements tick/step grid rounding using shopspring/decimal
// so that quantity and price quantization is bit-exact and reproducible
// across runs, matching the Decimal-based rounding of the original
// implementation rather than approximating it with float arithmetic.
package quant

import (
	"github.com/shopspring/decimal"
)

// FloorToStep rounds value down (toward zero for positive values) to the
// nearest multiple of step. A non-positive step disables rounding.
func FloorToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	dStep := decimal.NewFromFloat(step)
	dValue := decimal.NewFromFloat(value)

	quotient := dValue.DivRound(dStep, 16).Floor()
	rounded := quotient.Mul(dStep)

	precision := decimalPlaces(dStep)
	result, _ := rounded.Round(int32(precision)).Float64()
	return result
}

// RoundToTick rounds value to a multiple of tick: down when roundUp is false
// (a buy price never rises above the requested one) and up when roundUp is
// true (a sell price never falls below it) — mirroring the original's
// ROUND_DOWN/ROUND_UP convention for entries vs. exits.
func RoundToTick(value, tick float64, roundUp bool) float64 {
	if tick <= 0 {
		return value
	}
	dTick := decimal.NewFromFloat(tick)
	dValue := decimal.NewFromFloat(value)

	quotient := dValue.Div(dTick)
	var steps decimal.Decimal
	if roundUp {
		steps = quotient.Ceil()
	} else {
		steps = quotient.Floor()
	}
	rounded := steps.Mul(dTick)

	precision := decimalPlaces(dTick)
	result, _ := rounded.Round(int32(precision)).Float64()
	return result
}

// decimalPlaces returns the number of fractional digits implied by d's
// exponent, e.g. 0.001 -> 3. Used so the final rounding doesn't reintroduce
// binary-float noise past the grid's own precision.
func decimalPlaces(d decimal.Decimal) int {
	exp := d.Exponent()
	if exp >= 0 {
		return 0
	}
	return int(-exp)
}
