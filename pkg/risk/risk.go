// Package risk implements the hard-limit gate over trade proposals: a
// deterministic, multi-reason evaluator plus the position sizer it wraps.
// The reason list and evaluation order are fixed and exhaustive. The engine
// only reads the circuit-breaker, cooldown and loss fields of TradingState;
// it does not update them and holds no lock.
package risk

import (
	"math"
	"time"

	"github.com/kasyap1234/trendback/pkg/model"
	"github.com/kasyap1234/trendback/pkg/sizing"
)

// Hard caps the engine will never exceed, regardless of configured values.
const (
	HardMaxRiskPct           = 1.0
	HardMaxLeverage          = 5
	HardMaxDailyLossPct      = 3.0
	HardMaxDrawdownPct       = 10.0
	HardMaxPositions         = 1
	HardMaxConsecutiveLosses = 3
)

// Config carries the tunable risk parameters; values above the hard caps
// are clamped down, never up, by New.
type Config struct {
	RiskPerTradePct        float64 `json:"risk_per_trade_pct"`
	MaxLeverage            int     `json:"max_leverage"`
	MaxDailyLossPct        float64 `json:"max_daily_loss_pct"`
	MaxDrawdownPct         float64 `json:"max_drawdown_pct"`
	MaxPositions           int     `json:"max_positions"`
	MaxConsecutiveLosses   int     `json:"max_consecutive_losses"`
	CooldownAfterLossHours float64 `json:"cooldown_after_loss_hours"`
}

// CheckResult is the outcome of evaluating a single proposal.
type CheckResult struct {
	Approved                bool
	Reasons                 []string
	SizeMultiplier          float64
	AdjustedEntryThreshold  float64
	HasAdjustedEntryThresh  bool
	AdjustedStopMultiplier  float64
	HasAdjustedStopMult     bool
	CircuitBreaker          bool
}

// Engine evaluates proposals against the hard caps and the current
// TradingState, and owns the Sizer used once a proposal is approved.
type Engine struct {
	cfg   Config
	Sizer *sizing.Sizer
}

// New builds an Engine, clamping configured values to the hard caps.
func New(cfg Config) *Engine {
	clamped := Config{
		RiskPerTradePct:        math.Min(cfg.RiskPerTradePct, HardMaxRiskPct),
		MaxLeverage:            minInt(cfg.MaxLeverage, HardMaxLeverage),
		MaxDailyLossPct:        math.Min(cfg.MaxDailyLossPct, HardMaxDailyLossPct),
		MaxDrawdownPct:         math.Min(cfg.MaxDrawdownPct, HardMaxDrawdownPct),
		MaxPositions:           minInt(cfg.MaxPositions, HardMaxPositions),
		MaxConsecutiveLosses:   minInt(cfg.MaxConsecutiveLosses, HardMaxConsecutiveLosses),
		CooldownAfterLossHours: cfg.CooldownAfterLossHours,
	}
	return &Engine{
		cfg:   clamped,
		Sizer: sizing.New(clamped.RiskPerTradePct, clamped.MaxLeverage),
	}
}

// Evaluate runs the full rejection-reason pipeline. All applicable reasons
// are collected (no early exit) except for the circuit-breaker-active and
// max-drawdown checks, which return immediately once triggered.
func (e *Engine) Evaluate(state *model.TradingState, proposal model.TradeProposal, rule model.SymbolRule, now time.Time) CheckResult {
	if proposal.IsEntry && state.CircuitBreakerActive {
		return CheckResult{Approved: false, Reasons: []string{"CIRCUIT_BREAKER_ACTIVE"}}
	}

	var reasons []string
	sizeMultiplier := 1.0
	var adjustedEntryThreshold float64
	hasAdjustedEntry := false
	var adjustedStopMultiplier float64
	hasAdjustedStop := false

	if state.Equity < 10 {
		reasons = append(reasons, "EQUITY_BELOW_MINIMUM")
	}

	dailyLossLimit := -state.Equity * (e.cfg.MaxDailyLossPct / 100)
	if state.RealizedPnLToday <= dailyLossLimit {
		reasons = append(reasons, "DAILY_LOSS_LIMIT")
	}

	if state.PeakEquity > 0 {
		drawdown := state.PeakEquity - state.Equity
		drawdownPct := (drawdown / state.PeakEquity) * 100
		if drawdownPct >= e.cfg.MaxDrawdownPct {
			return CheckResult{Approved: false, Reasons: []string{"MAX_DRAWDOWN"}, CircuitBreaker: true}
		}
	}

	if proposal.IsEntry && len(state.Positions) >= e.cfg.MaxPositions {
		reasons = append(reasons, "MAX_POSITIONS_REACHED")
	}

	if proposal.Leverage > e.cfg.MaxLeverage {
		reasons = append(reasons, "LEVERAGE_EXCEEDS_LIMIT")
	}

	if proposal.IsEntry {
		if _, open := state.Positions[proposal.Symbol]; open {
			reasons = append(reasons, "SYMBOL_ALREADY_OPEN")
		}
		if state.OpenOrderSymbols[proposal.Symbol] {
			reasons = append(reasons, "OPEN_ORDER_EXISTS")
		}
	}

	if !proposal.HasStop || proposal.ATR <= 0 {
		reasons = append(reasons, "STOP_LOSS_MISSING")
	} else {
		stopDistanceATR := math.Abs(proposal.EntryPrice-proposal.StopPrice) / proposal.ATR
		if stopDistanceATR > 3.0 {
			reasons = append(reasons, "STOP_TOO_WIDE")
		}
	}

	fundingPct := fundingPercent(proposal.FundingRate)
	switch {
	case math.Abs(fundingPct) > 0.2:
		reasons = append(reasons, "FUNDING_TOO_HIGH")
	case math.Abs(fundingPct) > 0.1:
		sizeMultiplier *= 0.75
	}

	switch proposal.NewsRisk {
	case model.NewsHigh:
		reasons = append(reasons, "NEWS_HIGH_RISK")
	case model.NewsMedium:
		sizeMultiplier *= 0.5
		adjustedEntryThreshold = 0.75
		hasAdjustedEntry = true
		adjustedStopMultiplier = 1.5
		hasAdjustedStop = true
	}

	if state.HasLastLoss && state.ConsecutiveLosses >= e.cfg.MaxConsecutiveLosses {
		cooldown := time.Duration(e.cfg.CooldownAfterLossHours * float64(time.Hour))
		if now.Sub(state.LastLossAt) < cooldown {
			reasons = append(reasons, "COOLDOWN_AFTER_LOSS")
		}
	}

	loss24h := 0
	for _, t := range state.LossTimestamps {
		if now.Sub(t) < 24*time.Hour {
			loss24h++
		}
	}
	if loss24h >= 5 {
		reasons = append(reasons, "COOLDOWN_AFTER_LOSS_STREAK")
	}

	if state.HasCooldown && now.Before(state.CooldownUntil) {
		reasons = append(reasons, "COOLDOWN_ACTIVE")
	}

	if proposal.IsEntry {
		stop := proposal.StopPrice
		if !proposal.HasStop {
			stop = proposal.EntryPrice
		}
		result, ok := e.Sizer.Calculate(state.Equity, proposal.EntryPrice, stop, rule, proposal.Leverage)
		if !ok {
			reasons = append(reasons, "SIZE_BELOW_MIN_NOTIONAL")
		} else if state.Equity > 0 {
			projectedLeverage := result.Notional / state.Equity
			if projectedLeverage > float64(e.cfg.MaxLeverage)*0.8 {
				reasons = append(reasons, "MARGIN_RATIO_HIGH")
			}
		}
	}

	return CheckResult{
		Approved:               len(reasons) == 0,
		Reasons:                reasons,
		SizeMultiplier:         sizeMultiplier,
		AdjustedEntryThreshold: adjustedEntryThreshold,
		HasAdjustedEntryThresh: hasAdjustedEntry,
		AdjustedStopMultiplier: adjustedStopMultiplier,
		HasAdjustedStopMult:    hasAdjustedStop,
	}
}

// fundingPercent normalizes a funding rate into percent units, matching the
// original's heuristic: values already expressed as fractions (|rate|<=1)
// are scaled by 100; larger values are assumed already in percent.
func fundingPercent(rate float64) float64 {
	if math.Abs(rate) <= 1 {
		return rate * 100
	}
	return rate
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
