package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasyap1234/trendback/pkg/model"
)

func TestIdealAlwaysFillsWithExpectedSlippage(t *testing.T) {
	m := Ideal{SlippagePct: 0.001}
	result := m.SimulateFill(Request{Side: model.Long, EntryPrice: 100, Quantity: 1})
	assert.True(t, result.Filled)
	assert.InDelta(t, 100.1, result.FillPrice, 1e-9)
	assert.InDelta(t, 10.0, result.SlippageBps, 1e-9)
}

func TestIdealShortFillsBelowEntry(t *testing.T) {
	m := Ideal{SlippagePct: 0.001}
	result := m.SimulateFill(Request{Side: model.Short, EntryPrice: 100, Quantity: 1})
	assert.Less(t, result.FillPrice, 100.0)
}

func TestRealisticIsDeterministicForSameSeed(t *testing.T) {
	req := Request{Side: model.Long, EntryPrice: 100, Quantity: 1, ATRPct: 1, SpreadBps: 2}
	a := NewRealistic(42, 5, 0.1, 3, 0.3)
	b := NewRealistic(42, 5, 0.1, 3, 0.3)
	assert.Equal(t, a.SimulateFill(req), b.SimulateFill(req))
}

func TestSpreadAwareRejectsWideSpread(t *testing.T) {
	wrapped := SpreadAware{Inner: Ideal{SlippagePct: 0.001}, MaxSpreadBps: 5}
	result := wrapped.SimulateFill(Request{Side: model.Long, EntryPrice: 100, Quantity: 1, SpreadBps: 10})
	assert.False(t, result.Filled)
	assert.Equal(t, "spread_too_wide", result.RejectionReason)
}

func TestSpreadAwarePassesThroughWhenTight(t *testing.T) {
	wrapped := SpreadAware{Inner: Ideal{SlippagePct: 0.001}, MaxSpreadBps: 5}
	result := wrapped.SimulateFill(Request{Side: model.Long, EntryPrice: 100, Quantity: 1, SpreadBps: 1})
	assert.True(t, result.Filled)
}

func TestFillProbabilityClampedToBounds(t *testing.T) {
	p := fillProbability(Request{DistanceTicks: 1000, ATRPct: 0.1})
	assert.Equal(t, 0.05, p)

	p2 := fillProbability(Request{IsMarket: true})
	assert.Equal(t, 0.95, p2)
}
