// Package model holds the value types shared across the backtesting core:
// symbol rules, bars, funding events, positions, trades and trading state.
// None of these types carry behavior beyond simple accessors; the packages
// that operate on them (risk, sizing, replay, ...) own the algorithms.
package model

import "time"

// Side is the direction of a position or proposal.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// NewsRisk classifies the news-risk level attached to a trade proposal.
type NewsRisk string

const (
	NewsHigh   NewsRisk = "HIGH"
	NewsMedium NewsRisk = "MEDIUM"
	NewsLow    NewsRisk = "LOW"
)

// SymbolRule carries the per-symbol trading filters used to quantize
// quantity and price to the venue's grid and to reject undersized orders.
type SymbolRule struct {
	Symbol            string
	TickSize          float64
	StepSize          float64
	MinQty            float64
	MinNotional       float64
	PricePrecision    int
	QuantityPrecision int
	ContractType      string
	DefaultsApplied   []string
}

// FallbackRule is returned by the rule book when a symbol has no snapshot entry.
var FallbackRule = SymbolRule{
	Symbol:            "",
	TickSize:          0.01,
	StepSize:          0.001,
	MinQty:            0.001,
	MinNotional:       5.0,
	PricePrecision:    2,
	QuantityPrecision: 3,
	ContractType:      "PERPETUAL",
}

// Bar is a completed OHLCV interval, indexed by CloseTime.
type Bar struct {
	Symbol    string
	Interval  string
	CloseTime time.Time
	OpenTime  time.Time // zero value means "not provided"
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Sequence  int64
}

// FundingEvent is a discrete funding-rate settlement for one symbol.
type FundingEvent struct {
	Symbol     string
	FundingAt  time.Time
	Rate       float64
	MarkPrice  float64 // used only when HasMark is set; otherwise the position entry price applies
	HasMark    bool
	Sequence   int64
}

// Position is the single open position (if any) a symbol may carry.
type Position struct {
	Symbol              string
	Side                Side
	Quantity            float64
	EntryPrice          float64
	Leverage            int
	OpenedAt            time.Time
	StopPrice           float64
	HasStop             bool
	TakeProfit          float64
	HasTakeProfit       bool
	TradeID             string
	FundingAccumulated  float64
	LastFundingAt       time.Time
	HasLastFunding      bool
}

// TradeProposal is the immutable output of the signal generator, consumed
// by the risk engine and (if approved) the execution simulator.
type TradeProposal struct {
	Symbol        string
	Side          Side
	EntryPrice    float64
	StopPrice     float64
	HasStop       bool
	TakeProfit    float64
	HasTakeProfit bool
	ATR           float64
	Leverage      int
	Score         float64
	HasScore      bool
	FundingRate   float64
	NewsRisk      NewsRisk
	TradeID       string
	CreatedAt     time.Time
	IsEntry       bool
}

// TradingState is the single mutable ledger of account-level facts the risk
// engine consults. The replay loop is the sole owner and mutator.
type TradingState struct {
	Equity              float64
	PeakEquity           float64
	Positions            map[string]*Position
	OpenOrderSymbols     map[string]bool // symbols with a non-reduce-only open order
	RealizedPnLToday     float64
	ConsecutiveLosses    int
	LossTimestamps       []time.Time
	LastLossAt           time.Time
	HasLastLoss          bool
	CooldownUntil        time.Time
	HasCooldown          bool
	CircuitBreakerActive bool
	LastEventSequence    int64
}

// NewTradingState builds a TradingState seeded with the given starting equity.
func NewTradingState(initialEquity float64) *TradingState {
	return &TradingState{
		Equity:           initialEquity,
		PeakEquity:       initialEquity,
		Positions:        make(map[string]*Position),
		OpenOrderSymbols: make(map[string]bool),
	}
}

// Trade is a closed round-trip recorded for reporting.
type Trade struct {
	TradeID      string
	Symbol       string
	Side         Side
	EntryPrice   float64
	ExitPrice    float64
	Quantity     float64
	EntryTime    time.Time
	ExitTime     time.Time
	GrossPnL     float64
	NetPnL       float64
	FundingCost  float64
	HoldingHours float64
}

// EquityPoint is a timestamped equity/drawdown sample.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	Drawdown  float64
}
