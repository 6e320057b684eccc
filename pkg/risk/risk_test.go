package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kasyap1234/trendback/pkg/model"
)

func baseProposal() model.TradeProposal {
	return model.TradeProposal{
		Symbol:      "BTCUSDT",
		Side:        model.Long,
		EntryPrice:  100,
		StopPrice:   98,
		HasStop:     true,
		ATR:         1,
		Leverage:    3,
		FundingRate: 0.0001,
		NewsRisk:    model.NewsLow,
		IsEntry:     true,
	}
}

func TestEvaluateApprovesCleanProposal(t *testing.T) {
	e := New(Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxDailyLossPct: 3, MaxDrawdownPct: 10, MaxPositions: 1, MaxConsecutiveLosses: 3})
	state := model.NewTradingState(10000)
	result := e.Evaluate(state, baseProposal(), model.FallbackRule, time.Now())
	assert.True(t, result.Approved)
	assert.Empty(t, result.Reasons)
}

func TestEvaluateCircuitBreakerShortCircuits(t *testing.T) {
	e := New(Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxPositions: 1})
	state := model.NewTradingState(10000)
	state.CircuitBreakerActive = true
	result := e.Evaluate(state, baseProposal(), model.FallbackRule, time.Now())
	assert.False(t, result.Approved)
	assert.Equal(t, []string{"CIRCUIT_BREAKER_ACTIVE"}, result.Reasons)
}

func TestEvaluateMaxDrawdownSetsCircuitBreaker(t *testing.T) {
	e := New(Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxDrawdownPct: 10, MaxPositions: 1})
	state := model.NewTradingState(10000)
	state.PeakEquity = 10000
	state.Equity = 8900
	result := e.Evaluate(state, baseProposal(), model.FallbackRule, time.Now())
	assert.False(t, result.Approved)
	assert.True(t, result.CircuitBreaker)
	assert.Equal(t, []string{"MAX_DRAWDOWN"}, result.Reasons)
}

func TestEvaluateStopMissingAndTooWide(t *testing.T) {
	e := New(Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxPositions: 1})
	state := model.NewTradingState(10000)

	p := baseProposal()
	p.HasStop = false
	result := e.Evaluate(state, p, model.FallbackRule, time.Now())
	assert.Contains(t, result.Reasons, "STOP_LOSS_MISSING")

	p2 := baseProposal()
	p2.StopPrice = 50
	p2.ATR = 1
	result2 := e.Evaluate(state, p2, model.FallbackRule, time.Now())
	assert.Contains(t, result2.Reasons, "STOP_TOO_WIDE")
}

func TestEvaluateFundingTiers(t *testing.T) {
	e := New(Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxPositions: 1})
	state := model.NewTradingState(10000)

	soft := baseProposal()
	soft.FundingRate = 0.0015 // 0.15% -> soft penalty
	result := e.Evaluate(state, soft, model.FallbackRule, time.Now())
	assert.NotContains(t, result.Reasons, "FUNDING_TOO_HIGH")
	assert.Equal(t, 0.75, result.SizeMultiplier)

	fatal := baseProposal()
	fatal.FundingRate = 0.003 // 0.3% -> fatal
	result2 := e.Evaluate(state, fatal, model.FallbackRule, time.Now())
	assert.Contains(t, result2.Reasons, "FUNDING_TOO_HIGH")
}

func TestEvaluateNewsMediumAdjustsThresholds(t *testing.T) {
	e := New(Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxPositions: 1})
	state := model.NewTradingState(10000)
	p := baseProposal()
	p.NewsRisk = model.NewsMedium
	result := e.Evaluate(state, p, model.FallbackRule, time.Now())
	assert.Equal(t, 0.5, result.SizeMultiplier)
	assert.True(t, result.HasAdjustedEntryThresh)
	assert.Equal(t, 0.75, result.AdjustedEntryThreshold)
	assert.True(t, result.HasAdjustedStopMult)
	assert.Equal(t, 1.5, result.AdjustedStopMultiplier)
}

func TestEvaluateSymbolAlreadyOpenAndMaxPositions(t *testing.T) {
	e := New(Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxPositions: 1})
	state := model.NewTradingState(10000)
	state.Positions["BTCUSDT"] = &model.Position{Symbol: "BTCUSDT"}
	result := e.Evaluate(state, baseProposal(), model.FallbackRule, time.Now())
	assert.Contains(t, result.Reasons, "SYMBOL_ALREADY_OPEN")
	assert.Contains(t, result.Reasons, "MAX_POSITIONS_REACHED")
}

func TestEvaluateHardCapsClampConfig(t *testing.T) {
	e := New(Config{RiskPerTradePct: 50, MaxLeverage: 50, MaxPositions: 10})
	assert.Equal(t, HardMaxRiskPct, e.Sizer.RiskPerTradePct)
	assert.Equal(t, HardMaxLeverage, e.Sizer.MaxLeverage)
}
