package funding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kasyap1234/trendback/pkg/model"
)

func TestSynthesizeProducesThreeSlotsPerDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	events := Synthesize("BTCUSDT", start, end, 0.0001)
	assert.Len(t, events, 3) // (start, end]: day1 08/16 (00:00 is the excluded start), day2 00:00 boundary only
}

func TestApplyLongPaysPositiveRate(t *testing.T) {
	pos := &model.Position{Side: model.Long, Quantity: 1, EntryPrice: 100}
	newEquity, cashflow := Apply(1000, pos, model.FundingEvent{Rate: 0.001})
	assert.InDelta(t, 0.1, cashflow, 1e-9)
	assert.InDelta(t, 999.9, newEquity, 1e-9)
}

func TestApplyShortMirrorsSign(t *testing.T) {
	pos := &model.Position{Side: model.Short, Quantity: 1, EntryPrice: 100}
	newEquity, cashflow := Apply(1000, pos, model.FundingEvent{Rate: 0.001})
	assert.InDelta(t, -0.1, cashflow, 1e-9)
	assert.InDelta(t, 1000.1, newEquity, 1e-9)
}

func TestApplyUsesMarkPriceWhenPresent(t *testing.T) {
	pos := &model.Position{Side: model.Long, Quantity: 2, EntryPrice: 100}
	_, cashflow := Apply(1000, pos, model.FundingEvent{Rate: 0.001, MarkPrice: 110, HasMark: true})
	assert.InDelta(t, 0.22, cashflow, 1e-9)
}
