// Package signal turns bar history into entry/exit signals: a daily trend
// filter gates intraday pullback and breakout setups, each scored by the
// scoring engine and thresholded before becoming a TradeProposal candidate.
package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/kasyap1234/trendback/pkg/indicators"
	"github.com/kasyap1234/trendback/pkg/model"
	"github.com/kasyap1234/trendback/pkg/regime"
	"github.com/kasyap1234/trendback/pkg/scoring"
)

// Trend is the daily-timeframe trend direction.
type Trend string

const (
	Uptrend   Trend = "UPTREND"
	Downtrend Trend = "DOWNTREND"
	NoTrend   Trend = "NO_TREND"
)

// Type distinguishes an entry signal from an exit signal.
type Type string

const (
	EntrySignal           Type = "ENTRY"
	ExitTrendInvalidation Type = "TREND_INVALIDATION"
	ExitTimeStop          Type = "TIME_STOP"
)

// Signal is the generator's output, consumed by the risk engine (entries)
// or the replay loop directly (exits).
type Signal struct {
	Symbol            string
	Kind              Type
	Side              model.Side
	Score             float64
	HasScore          bool
	Price             float64
	ATR               float64
	EntryPrice        float64
	StopPrice         float64
	HasStop           bool
	Reason            string
	Timestamp         time.Time
	Regime            regime.Type
	EntryExtensionATR float64
	VolumeRatio       float64
	HasVolumeRatio    bool
}

// Config carries the generator's tunable thresholds.
type Config struct {
	EMAFastPeriod        int
	EMASlowPeriod        int
	RSIPeriod            int
	ADXPeriod            int
	CHOPPeriod           int
	VolumePeriod         int
	BreakoutLookback     int
	RSIPullbackMax       float64 // LONG pullback needs rsi above this; SHORT needs rsi below 100 minus this
	RequireVolumeConfirm bool
	VolumeConfirmRatio   float64
	ScoreThreshold       float64
	TimeStopDays         float64
	TimeStopMinProfitATR float64
	ExtensionRejectATR   float64
	ATRStopMultiplier    float64
}

// DefaultConfig matches the reference strategy's tuning.
func DefaultConfig() Config {
	return Config{
		EMAFastPeriod:        21,
		EMASlowPeriod:        55,
		RSIPeriod:            14,
		ADXPeriod:            14,
		CHOPPeriod:           14,
		VolumePeriod:         20,
		BreakoutLookback:     20,
		RSIPullbackMax:       40,
		RequireVolumeConfirm: false,
		VolumeConfirmRatio:   1.2,
		ScoreThreshold:       0.6,
		TimeStopDays:         10,
		TimeStopMinProfitATR: 1.0,
		ExtensionRejectATR:   2.5,
		ATRStopMultiplier:    2.0,
	}
}

// Generator produces entry/exit signals from daily and intraday bar series.
type Generator struct {
	cfg     Config
	regime  *regime.Classifier
	scoring *scoring.Engine
}

// New builds a Generator.
func New(cfg Config, reg *regime.Classifier, sc *scoring.Engine) *Generator {
	return &Generator{cfg: cfg, regime: reg, scoring: sc}
}

// Context bundles the per-symbol history a single Generate call needs.
type Context struct {
	Symbol      string
	Daily       []model.Bar // closes only need be populated beyond OHLC, ascending
	Intraday    []model.Bar // ascending, most recent last
	FundingRate float64
	NewsRisk    model.NewsRisk
	Position    *model.Position // nil if flat
	Now         time.Time
}

// trendState is the daily-timeframe trend direction plus the EMA readings
// the scoring engine's trend factor is computed from.
type trendState struct {
	Trend        Trend
	EMAFast      float64
	EMASlow      float64
	EMAFastPrior float64 // ema_fast three daily bars ago
}

// intradayReadings bundles the intraday-timeframe series and indicator
// snapshots a single Generate call needs for entry evaluation.
type intradayReadings struct {
	closes   []float64
	highs    []float64
	lows     []float64
	rsi      float64
	adx      float64
	chop     float64
	atr      float64
	volRatio float64
	emaFast  []float64
	emaSlow  []float64
}

// Generate returns at most one signal: an exit signal if a position is open
// and an exit condition fires, otherwise an entry signal if one clears its
// gates, otherwise nothing (ok=false).
func (g *Generator) Generate(ctx Context) (Signal, bool) {
	if len(ctx.Intraday) < g.cfg.BreakoutLookback+1 {
		return Signal{}, false
	}

	ts := g.computeTrend(ctx.Daily)

	if ctx.Position != nil {
		if sig, ok := g.checkExit(ctx, ts.Trend); ok {
			return sig, true
		}
		return Signal{}, false
	}

	closes := closesOf(ctx.Intraday)
	highs := highsOf(ctx.Intraday)
	lows := lowsOf(ctx.Intraday)
	volumes := volumesOf(ctx.Intraday)

	ir := intradayReadings{
		closes:   closes,
		highs:    highs,
		lows:     lows,
		rsi:      indicators.Last(indicators.RSI(closes, g.cfg.RSIPeriod)),
		adx:      indicators.Last(indicators.ADX(highs, lows, closes, g.cfg.ADXPeriod)),
		chop:     indicators.Last(indicators.CHOP(highs, lows, closes, g.cfg.CHOPPeriod)),
		atr:      indicators.Last(indicators.ATR(highs, lows, closes, g.cfg.ADXPeriod)),
		volRatio: indicators.Last(indicators.VolumeRatio(volumes, g.cfg.VolumePeriod)),
		emaFast:  indicators.EMA(closes, g.cfg.EMAFastPeriod),
		emaSlow:  indicators.EMA(closes, g.cfg.EMASlowPeriod),
	}

	classification := g.regime.Classify(ir.adx, ir.chop, 0, 0, false)
	if classification.Regime == regime.Choppy {
		return Signal{}, false
	}

	if sig, ok := g.pullbackEntry(ctx, ts, ir, classification); ok {
		return sig, true
	}
	if sig, ok := g.breakoutEntry(ctx, ts, ir, classification); ok {
		return sig, true
	}
	return Signal{}, false
}

// computeTrend classifies the daily trend and captures the EMA readings the
// scoring engine's trend factor needs: the fast/slow EMA at the last bar and
// the fast EMA three bars prior (the slope reference).
func (g *Generator) computeTrend(daily []model.Bar) trendState {
	if len(daily) < g.cfg.EMASlowPeriod+4 {
		return trendState{Trend: NoTrend}
	}
	closes := closesOf(daily)
	emaFast := indicators.EMA(closes, g.cfg.EMAFastPeriod)
	emaSlow := indicators.EMA(closes, g.cfg.EMASlowPeriod)

	n := len(closes)
	fast := emaFast[n-1]
	slow := emaSlow[n-1]
	price := closes[n-1]
	if math.IsNaN(fast) || math.IsNaN(slow) {
		return trendState{Trend: NoTrend}
	}

	fastPrior := fast
	if n-4 >= 0 && !math.IsNaN(emaFast[n-4]) {
		fastPrior = emaFast[n-4]
	}

	trend := NoTrend
	switch {
	case fast > slow && price > slow && fast > fastPrior:
		trend = Uptrend
	case fast < slow && price < slow && fast < fastPrior:
		trend = Downtrend
	}
	return trendState{Trend: trend, EMAFast: fast, EMASlow: slow, EMAFastPrior: fastPrior}
}

// checkExit fires TREND_INVALIDATION whenever the daily trend no longer
// matches the position's required direction (including NO_TREND), and
// TIME_STOP once a position has stagnated past its holding window.
func (g *Generator) checkExit(ctx Context, trend Trend) (Signal, bool) {
	pos := ctx.Position
	last := ctx.Intraday[len(ctx.Intraday)-1]

	invalidated := (pos.Side == model.Long && trend != Uptrend) ||
		(pos.Side == model.Short && trend != Downtrend)
	if invalidated {
		return Signal{Symbol: ctx.Symbol, Kind: ExitTrendInvalidation, Side: pos.Side, Price: last.Close,
			Timestamp: ctx.Now, Reason: "trend_invalidation"}, true
	}

	holdingDays := ctx.Now.Sub(pos.OpenedAt).Hours() / 24
	if holdingDays >= g.cfg.TimeStopDays {
		closes := closesOf(ctx.Intraday)
		highs := highsOf(ctx.Intraday)
		lows := lowsOf(ctx.Intraday)
		atr := indicators.Last(indicators.ATR(highs, lows, closes, g.cfg.ADXPeriod))
		if atr > 0 {
			profitATR := math.Abs(last.Close-pos.EntryPrice) / atr
			if profitATR < g.cfg.TimeStopMinProfitATR {
				return Signal{Symbol: ctx.Symbol, Kind: ExitTimeStop, Side: pos.Side, Price: last.Close,
					Timestamp: ctx.Now, Reason: "time_stop"}, true
			}
		}
	}
	return Signal{}, false
}

// pullbackEntry requires the prior intraday bar to have closed on the wrong
// side of the slow EMA (a pullback), the current close to have recovered
// back across the fast EMA, and RSI confirming the recovery's direction.
func (g *Generator) pullbackEntry(ctx Context, ts trendState, ir intradayReadings, cls regime.Classification) (Signal, bool) {
	if ts.Trend != Uptrend && ts.Trend != Downtrend {
		return Signal{}, false
	}
	n := len(ir.closes)
	if n < 2 || math.IsNaN(ir.rsi) || ir.atr <= 0 {
		return Signal{}, false
	}

	emaFast := ir.emaFast[n-1]
	emaSlow := ir.emaSlow[n-1]
	prevEMASlow := ir.emaSlow[n-2]
	if math.IsNaN(emaFast) || math.IsNaN(emaSlow) || math.IsNaN(prevEMASlow) {
		return Signal{}, false
	}

	price := ir.closes[n-1]
	prevClose := ir.closes[n-2]

	var side model.Side
	var pulledBack, recovered, rsiOK bool
	if ts.Trend == Uptrend {
		side = model.Long
		pulledBack = prevClose <= prevEMASlow
		recovered = price > emaFast
		rsiOK = ir.rsi > g.cfg.RSIPullbackMax
	} else {
		side = model.Short
		pulledBack = prevClose >= prevEMASlow
		recovered = price < emaFast
		rsiOK = ir.rsi < (100 - g.cfg.RSIPullbackMax)
	}
	if !pulledBack || !recovered || !rsiOK {
		return Signal{}, false
	}
	if g.cfg.RequireVolumeConfirm && (math.IsNaN(ir.volRatio) || ir.volRatio < g.cfg.VolumeConfirmRatio) {
		return Signal{}, false
	}

	entryPrice := price
	stop := stopPrice(side, entryPrice, ir.atr, g.cfg.ATRStopMultiplier)
	entryDistance := math.Abs(price-emaSlow) / ir.atr

	return g.buildEntrySignal(ctx, side, entryPrice, stop, ir.atr, entryDistance, ir.volRatio, ts, cls,
		fmt.Sprintf("pullback_%s", ts.Trend))
}

func (g *Generator) breakoutEntry(ctx Context, ts trendState, ir intradayReadings, cls regime.Classification) (Signal, bool) {
	if ts.Trend != Uptrend && ts.Trend != Downtrend {
		return Signal{}, false
	}
	if ir.atr <= 0 {
		return Signal{}, false
	}
	n := len(ir.highs)
	lookback := g.cfg.BreakoutLookback
	if n < lookback+1 {
		return Signal{}, false
	}
	priorHigh := maxOf(ir.highs[n-lookback-1 : n-1])
	priorLow := minOf(ir.lows[n-lookback-1 : n-1])

	price := ir.closes[n-1]

	var side model.Side
	var broke bool
	var extension float64
	if ts.Trend == Uptrend {
		side = model.Long
		broke = price > priorHigh
		extension = (price - priorHigh) / ir.atr
	} else {
		side = model.Short
		broke = price < priorLow
		extension = (priorLow - price) / ir.atr
	}
	if !broke {
		return Signal{}, false
	}
	extension = math.Max(extension, 0)
	if extension > g.cfg.ExtensionRejectATR {
		return Signal{}, false
	}
	if g.cfg.RequireVolumeConfirm && (math.IsNaN(ir.volRatio) || ir.volRatio < g.cfg.VolumeConfirmRatio) {
		return Signal{}, false
	}

	entryPrice := price
	stop := stopPrice(side, entryPrice, ir.atr, g.cfg.ATRStopMultiplier)

	return g.buildEntrySignal(ctx, side, entryPrice, stop, ir.atr, extension, ir.volRatio, ts, cls,
		fmt.Sprintf("breakout_%s", ts.Trend))
}

// buildEntrySignal scores the candidate using the daily-timeframe EMA
// readings for the trend factor and the intraday ATR/entry-distance for the
// volatility and entry-quality factors, rejecting anything under threshold.
func (g *Generator) buildEntrySignal(ctx Context, side model.Side, entryPrice, stop, atr, entryDistanceATR, volRatio float64, ts trendState, cls regime.Classification, reason string) (Signal, bool) {
	score := g.scoring.Compute(scoring.Inputs{
		Side:             side,
		Price:            entryPrice,
		EMAFast:          ts.EMAFast,
		EMASlow:          ts.EMASlow,
		EMAFastPrior:     ts.EMAFastPrior,
		ATR:              atr,
		EntryDistanceATR: entryDistanceATR,
		FundingRate:      ctx.FundingRate,
		NewsRisk:         ctx.NewsRisk,
	})

	if score.Composite < g.cfg.ScoreThreshold {
		return Signal{}, false
	}

	hasVolRatio := !math.IsNaN(volRatio)
	return Signal{
		Symbol:            ctx.Symbol,
		Kind:              EntrySignal,
		Side:              side,
		Score:             score.Composite,
		HasScore:          true,
		Price:             entryPrice,
		ATR:               atr,
		EntryPrice:        entryPrice,
		StopPrice:         stop,
		HasStop:           true,
		Reason:            reason,
		Timestamp:         ctx.Now,
		Regime:            cls.Regime,
		EntryExtensionATR: entryDistanceATR,
		VolumeRatio:       volRatio,
		HasVolumeRatio:    hasVolRatio,
	}, true
}

func stopPrice(side model.Side, entryPrice, atr, multiplier float64) float64 {
	if side == model.Long {
		return entryPrice - multiplier*atr
	}
	return entryPrice + multiplier*atr
}

func closesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highsOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lowsOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func volumesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
