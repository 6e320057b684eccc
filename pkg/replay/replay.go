// Package replay implements the event-driven replay loop: the single
// cooperative scheduler that drains the event multiplexer one timestamp
// group at a time, applying funding settlement, exit triggers, signal
// generation, risk evaluation, portfolio selection and execution in a
// fixed order so that a run is fully deterministic given its inputs.
package replay

import (
	"fmt"
	"time"

	"github.com/kasyap1234/trendback/pkg/events"
	"github.com/kasyap1234/trendback/pkg/execution"
	"github.com/kasyap1234/trendback/pkg/funding"
	"github.com/kasyap1234/trendback/pkg/ledger"
	"github.com/kasyap1234/trendback/pkg/model"
	"github.com/kasyap1234/trendback/pkg/portfolio"
	"github.com/kasyap1234/trendback/pkg/risk"
	"github.com/kasyap1234/trendback/pkg/rules"
	"github.com/kasyap1234/trendback/pkg/signal"
)

// symbolState is the per-symbol mutable history the loop carries forward.
type symbolState struct {
	bars4h            []model.Bar
	position          *model.Position
	fundingAccumulated float64
}

// NewsProvider supplies a point-in-time news-risk classification for a
// symbol; a nil provider is treated as always model.NewsLow.
type NewsProvider func(symbol string, at time.Time) model.NewsRisk

// FundingRateProvider supplies a point-in-time funding-rate reading used
// for signal scoring and risk checks (independent of settlement events).
type FundingRateProvider func(symbol string, at time.Time) float64

// Config wires every collaborator the loop needs.
type Config struct {
	Symbols         []string
	ExecModel       execution.Model
	RiskEngine      *risk.Engine
	Selector        *portfolio.Selector
	SignalGenerator *signal.Generator
	RuleBook        *rules.Book
	Ledger          ledger.Ledger
	FeePct          float64
	InitialEquity   float64
	Leverage        int
	NewsRisk        NewsProvider
	FundingRate     FundingRateProvider
}

// Engine runs the replay loop against a populated event multiplexer.
type Engine struct {
	cfg    Config
	states map[string]*symbolState
	state  *model.TradingState
}

// New builds an Engine ready to Run.
func New(cfg Config) *Engine {
	states := make(map[string]*symbolState, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		states[s] = &symbolState{}
	}
	return &Engine{cfg: cfg, states: states, state: model.NewTradingState(cfg.InitialEquity)}
}

// Result is the summary a backtest run reports.
type Result struct {
	InitialEquity          float64
	FinalEquity            float64
	TotalReturn            float64
	Trades                 []model.Trade
	EquityCurve            []model.EquityPoint
	BarsProcessed          int
	FundingEventsProcessed int
	FillCount              int
	RejectionCount         int
	PartialFillCount       int
	MissedEntries          int
	TotalFundingPaid       float64
	TotalSlippageBps       float64
	AvgSlippageBps         float64
	FillRate               float64
	TradesBySymbol         map[string]int
}

// Run drains mux to completion, mutating the engine's TradingState and
// returning the accumulated Result.
func (e *Engine) Run(mux *events.Mux) (Result, error) {
	var result Result
	result.InitialEquity = e.cfg.InitialEquity

	for mux.Len() > 0 {
		group := mux.PopTimestampGroup()
		fundingEvents, barEvents := events.SeparateByKind(group)
		now := group[0].Timestamp

		for _, fe := range fundingEvents {
			e.applyFunding(fe.Funding, &result)
		}

		for _, be := range barEvents {
			e.ingestBar(be.Bar)
			result.BarsProcessed++
			e.checkExitTriggers(be.Bar, now, &result)
		}

		e.generateAndRoute(now, &result)

		e.state.PeakEquity = maxFloat(e.state.PeakEquity, e.state.Equity)
		result.EquityCurve = append(result.EquityCurve, model.EquityPoint{
			Timestamp: now, Equity: e.state.Equity,
			Drawdown: drawdownPct(e.state.PeakEquity, e.state.Equity),
		})
	}

	result.FinalEquity = e.state.Equity
	if result.InitialEquity > 0 {
		result.TotalReturn = (result.FinalEquity - result.InitialEquity) / result.InitialEquity
	}
	if attempts := result.FillCount + result.RejectionCount; attempts > 0 {
		result.FillRate = float64(result.FillCount) / float64(attempts)
	}
	if result.FillCount > 0 {
		result.AvgSlippageBps = result.TotalSlippageBps / float64(result.FillCount)
	}
	result.TradesBySymbol = make(map[string]int, len(e.cfg.Symbols))
	for _, t := range result.Trades {
		result.TradesBySymbol[t.Symbol]++
	}
	return result, nil
}

func (e *Engine) applyFunding(fe model.FundingEvent, result *Result) {
	st, ok := e.states[fe.Symbol]
	if !ok || st.position == nil {
		return
	}
	newEquity, cashflow := funding.Apply(e.state.Equity, st.position, fe)
	e.state.Equity = newEquity
	st.fundingAccumulated += cashflow
	st.position.FundingAccumulated = st.fundingAccumulated
	result.FundingEventsProcessed++
	result.TotalFundingPaid += cashflow
	e.appendLedger("funding_settled", fe.FundingAt, map[string]any{"symbol": fe.Symbol, "cashflow": cashflow})
}

func (e *Engine) ingestBar(bar model.Bar) {
	st := e.states[bar.Symbol]
	if st == nil {
		st = &symbolState{}
		e.states[bar.Symbol] = st
	}
	st.bars4h = append(st.bars4h, bar)
}

// checkExitTriggers closes a position if the bar's high/low crossed its
// stop or take-profit before any signal-driven exit is even evaluated.
func (e *Engine) checkExitTriggers(bar model.Bar, now time.Time, result *Result) {
	st := e.states[bar.Symbol]
	if st == nil || st.position == nil {
		return
	}
	pos := st.position

	var exitPrice float64
	var reason string
	triggered := false

	if pos.Side == model.Long {
		if pos.HasStop && bar.Low <= pos.StopPrice {
			exitPrice, reason, triggered = pos.StopPrice, "stop_loss", true
		} else if pos.HasTakeProfit && bar.High >= pos.TakeProfit {
			exitPrice, reason, triggered = pos.TakeProfit, "take_profit", true
		}
	} else {
		if pos.HasStop && bar.High >= pos.StopPrice {
			exitPrice, reason, triggered = pos.StopPrice, "stop_loss", true
		} else if pos.HasTakeProfit && bar.Low <= pos.TakeProfit {
			exitPrice, reason, triggered = pos.TakeProfit, "take_profit", true
		}
	}
	if triggered {
		e.closePosition(bar.Symbol, exitPrice, now, reason, result)
	}
}

// closePosition applies the close-accounting formulas exactly:
// net_pnl subtracts funding a second time for reporting purposes, but
// equity itself is only ever adjusted by gross pnl minus fees, since
// funding was already deducted from equity at settlement time.
func (e *Engine) closePosition(symbol string, exitPrice float64, now time.Time, reason string, result *Result) {
	st := e.states[symbol]
	pos := st.position
	if pos == nil {
		return
	}

	grossPnL := (exitPrice - pos.EntryPrice) * pos.Quantity
	if pos.Side == model.Short {
		grossPnL = -grossPnL
	}
	fees := e.cfg.FeePct * (absFloat(pos.EntryPrice*pos.Quantity) + absFloat(exitPrice*pos.Quantity))
	netPnL := grossPnL - fees - pos.FundingAccumulated

	e.state.Equity += grossPnL - fees
	e.state.RealizedPnLToday += netPnL
	delete(e.state.Positions, symbol)

	if netPnL < 0 {
		e.state.ConsecutiveLosses++
		e.state.LastLossAt = now
		e.state.HasLastLoss = true
		e.state.LossTimestamps = append(e.state.LossTimestamps, now)
	} else {
		e.state.ConsecutiveLosses = 0
	}

	result.Trades = append(result.Trades, model.Trade{
		TradeID: pos.TradeID, Symbol: symbol, Side: pos.Side,
		EntryPrice: pos.EntryPrice, ExitPrice: exitPrice, Quantity: pos.Quantity,
		EntryTime: pos.OpenedAt, ExitTime: now, GrossPnL: grossPnL, NetPnL: netPnL,
		FundingCost: pos.FundingAccumulated, HoldingHours: now.Sub(pos.OpenedAt).Hours(),
	})
	e.appendLedger("position_closed", now, map[string]any{"symbol": symbol, "reason": reason, "net_pnl": netPnL})

	st.position = nil
	st.fundingAccumulated = 0
}

// generateAndRoute runs the signal generator for every symbol, closes any
// exit signals immediately, then routes entry signals through the risk
// engine and portfolio selector before executing the selected few.
func (e *Engine) generateAndRoute(now time.Time, result *Result) {
	var candidates []portfolio.Candidate
	proposalsBySymbol := make(map[string]model.TradeProposal)

	for _, symbol := range e.cfg.Symbols {
		st := e.states[symbol]
		if st == nil || len(st.bars4h) == 0 {
			continue
		}

		newsRisk := model.NewsLow
		if e.cfg.NewsRisk != nil {
			newsRisk = e.cfg.NewsRisk(symbol, now)
		}
		fundingRate := 0.0
		if e.cfg.FundingRate != nil {
			fundingRate = e.cfg.FundingRate(symbol, now)
		}

		daily := resampleDaily(st.bars4h)
		sig, ok := e.cfg.SignalGenerator.Generate(signal.Context{
			Symbol: symbol, Daily: daily, Intraday: st.bars4h,
			FundingRate: fundingRate, NewsRisk: newsRisk, Position: st.position, Now: now,
		})
		if !ok {
			continue
		}

		if sig.Kind != signal.EntrySignal {
			e.closePosition(symbol, sig.Price, now, string(sig.Kind), result)
			continue
		}
		if st.position != nil {
			continue
		}

		rule := model.FallbackRule
		if e.cfg.RuleBook != nil {
			if snap := e.cfg.RuleBook.ForDate(now); snap != nil {
				rule = snap.Get(symbol)
			}
		}

		proposal := model.TradeProposal{
			Symbol: symbol, Side: sig.Side, EntryPrice: sig.EntryPrice,
			StopPrice: sig.StopPrice, HasStop: sig.HasStop, ATR: sig.ATR,
			Leverage: e.cfg.Leverage, Score: sig.Score, HasScore: sig.HasScore,
			FundingRate: fundingRate, NewsRisk: newsRisk, IsEntry: true, CreatedAt: now,
		}
		riskResult := e.cfg.RiskEngine.Evaluate(e.state, proposal, rule, now)
		proposalsBySymbol[symbol] = proposal

		candidates = append(candidates, portfolio.Candidate{
			Symbol: symbol, Proposal: proposal, RiskResult: riskResult,
			Composite: sig.Score, FundingPenalty: absFloat(fundingRate),
			LiquidityScore: 1.0, NewsBlocked: newsRisk == model.NewsHigh,
		})
	}

	if len(candidates) == 0 {
		return
	}
	selected := e.cfg.Selector.Select(candidates, len(e.state.Positions))
	for _, c := range selected {
		if !c.Selected {
			continue
		}
		e.executeEntry(c.Symbol, proposalsBySymbol[c.Symbol], c.RiskResult, now, result)
	}
}

func (e *Engine) executeEntry(symbol string, proposal model.TradeProposal, riskResult risk.CheckResult, now time.Time, result *Result) {
	st := e.states[symbol]
	rule := model.FallbackRule
	if e.cfg.RuleBook != nil {
		if snap := e.cfg.RuleBook.ForDate(now); snap != nil {
			rule = snap.Get(symbol)
		}
	}
	sized, ok := e.cfg.RiskEngine.Sizer.Calculate(e.state.Equity, proposal.EntryPrice, proposal.StopPrice, rule, proposal.Leverage)
	if !ok {
		result.MissedEntries++
		return
	}
	quantity := sized.Quantity * riskResult.SizeMultiplier

	atrPct := 0.0
	if proposal.EntryPrice > 0 {
		atrPct = proposal.ATR / proposal.EntryPrice * 100
	}
	fill := e.cfg.ExecModel.SimulateFill(execution.Request{
		Side: proposal.Side, EntryPrice: proposal.EntryPrice, Quantity: quantity,
		ATRPct: atrPct, IsMarket: true,
	})
	if !fill.Filled {
		result.RejectionCount++
		result.MissedEntries++
		e.appendLedger("order_rejected", now, map[string]any{"symbol": symbol, "reason": fill.RejectionReason})
		return
	}
	result.FillCount++
	result.TotalSlippageBps += fill.SlippageBps
	if fill.IsPartial {
		result.PartialFillCount++
	}

	pos := &model.Position{
		Symbol: symbol, Side: proposal.Side, Quantity: fill.FillQuantity,
		EntryPrice: fill.FillPrice, Leverage: proposal.Leverage, OpenedAt: now,
		StopPrice: proposal.StopPrice, HasStop: proposal.HasStop,
		TakeProfit: proposal.TakeProfit, HasTakeProfit: proposal.HasTakeProfit,
		TradeID: fmt.Sprintf("%s-%d", symbol, now.UnixNano()),
	}
	st.position = pos
	st.fundingAccumulated = 0
	e.state.Positions[symbol] = pos
	e.appendLedger("position_opened", now, map[string]any{"symbol": symbol, "fill_price": fill.FillPrice, "quantity": fill.FillQuantity})
}

func (e *Engine) appendLedger(eventType string, at time.Time, payload any) {
	if e.cfg.Ledger == nil {
		return
	}
	_ = e.cfg.Ledger.Append(eventType, at, payload)
}

// resampleDaily aggregates 4h bars into daily closes, avoiding lookahead by
// shifting timestamps back one millisecond before grouping by calendar day, then
// shifting the resulting daily index forward by one day so each daily bar
// is only visible once its full day has actually elapsed.
func resampleDaily(bars4h []model.Bar) []model.Bar {
	if len(bars4h) == 0 {
		return nil
	}
	type dayAgg struct {
		open, high, low, close, volume float64
		first                          bool
		closeTime                      time.Time
	}
	byDay := make(map[string]*dayAgg)
	order := make([]string, 0)

	for _, b := range bars4h {
		shifted := b.CloseTime.Add(-time.Millisecond)
		day := shifted.Format("2006-01-02")
		agg, ok := byDay[day]
		if !ok {
			agg = &dayAgg{open: b.Open, high: b.High, low: b.Low, first: true}
			byDay[day] = agg
			order = append(order, day)
		}
		if agg.first {
			agg.open = b.Open
			agg.first = false
		}
		if b.High > agg.high {
			agg.high = b.High
		}
		if agg.low == 0 || b.Low < agg.low {
			agg.low = b.Low
		}
		agg.close = b.Close
		agg.volume += b.Volume
		agg.closeTime = shifted
	}

	asOf := bars4h[len(bars4h)-1].CloseTime
	out := make([]model.Bar, 0, len(order))
	for _, day := range order {
		agg := byDay[day]
		ct := agg.closeTime
		realizedAt := time.Date(ct.Year(), ct.Month(), ct.Day(), 0, 0, 0, 0, ct.Location()).AddDate(0, 0, 1)
		if realizedAt.After(asOf) {
			continue
		}
		out = append(out, model.Bar{
			Interval: "1d", CloseTime: realizedAt,
			Open: agg.open, High: agg.high, Low: agg.low, Close: agg.close, Volume: agg.volume,
		})
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func drawdownPct(peak, equity float64) float64 {
	if peak <= 0 {
		return 0
	}
	dd := (peak - equity) / peak * 100
	if dd < 0 {
		return 0
	}
	return dd
}
