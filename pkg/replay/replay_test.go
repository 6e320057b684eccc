package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasyap1234/trendback/pkg/events"
	"github.com/kasyap1234/trendback/pkg/execution"
	"github.com/kasyap1234/trendback/pkg/model"
	"github.com/kasyap1234/trendback/pkg/portfolio"
	"github.com/kasyap1234/trendback/pkg/regime"
	"github.com/kasyap1234/trendback/pkg/risk"
	"github.com/kasyap1234/trendback/pkg/scoring"
	"github.com/kasyap1234/trendback/pkg/signal"
)

func buildEngine() *Engine {
	return New(Config{
		Symbols:         []string{"BTCUSDT"},
		ExecModel:       execution.Ideal{SlippagePct: 0},
		RiskEngine:      risk.New(risk.Config{RiskPerTradePct: 1, MaxLeverage: 5, MaxDailyLossPct: 3, MaxDrawdownPct: 10, MaxPositions: 1, MaxConsecutiveLosses: 3}),
		Selector:        portfolio.New(1),
		SignalGenerator: signal.New(signal.DefaultConfig(), regime.New(regime.DefaultConfig()), scoring.New(scoring.DefaultWeights())),
		FeePct:          0.0004,
		InitialEquity:   10000,
	})
}

func TestRunProcessesBarsAndTracksEquityCurve(t *testing.T) {
	e := buildEngine()
	mux := events.NewMux()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < 10; i++ {
		price += 1
		mux.PushBar(model.Bar{
			Symbol: "BTCUSDT", Interval: "4h", CloseTime: base.Add(time.Duration(i) * 4 * time.Hour),
			Open: price - 1, High: price + 1, Low: price - 1.5, Close: price, Volume: 100, Sequence: int64(i),
		})
	}

	result, err := e.Run(mux)
	require.NoError(t, err)
	assert.Equal(t, 10, result.BarsProcessed)
	assert.Len(t, result.EquityCurve, 10)
	assert.Equal(t, 10000.0, result.FinalEquity) // no entries without daily warmup history
}

func TestClosePositionAppliesDoubleFundingReportingQuirk(t *testing.T) {
	e := buildEngine()
	now := time.Now()
	e.states["BTCUSDT"].position = &model.Position{
		Symbol: "BTCUSDT", Side: model.Long, Quantity: 1, EntryPrice: 100,
		OpenedAt: now, FundingAccumulated: 2,
	}
	e.state.Positions["BTCUSDT"] = e.states["BTCUSDT"].position
	e.state.Equity = 10000

	var result Result
	e.closePosition("BTCUSDT", 110, now, "manual", &result)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	// gross = (110-100)*1 = 10; fees = 0.0004*(100+110) = 0.084
	assert.InDelta(t, 10.0, trade.GrossPnL, 1e-9)
	assert.InDelta(t, 10.0-0.084-2, trade.NetPnL, 1e-6)
	// equity only moves by gross - fees, NOT net_pnl (funding already settled separately)
	assert.InDelta(t, 10000+10.0-0.084, e.state.Equity, 1e-6)
}
