package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kasyap1234/trendback/pkg/model"
)

func ts(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func TestMuxOrdersByTimestampThenPriority(t *testing.T) {
	m := NewMux()
	m.PushBar(model.Bar{Symbol: "ETHUSDT", CloseTime: ts("2024-01-01T00:00:00Z")})
	m.PushFunding(model.FundingEvent{Symbol: "ETHUSDT", FundingAt: ts("2024-01-01T00:00:00Z")})
	m.PushBar(model.Bar{Symbol: "BTCUSDT", CloseTime: ts("2024-01-01T00:00:00Z")})

	group := m.PopTimestampGroup()
	assert.Len(t, group, 3)
	assert.Equal(t, KindFunding, group[0].Kind)
	assert.Equal(t, KindBar, group[1].Kind)
	assert.Equal(t, "BTCUSDT", group[1].Symbol)
	assert.Equal(t, "ETHUSDT", group[2].Symbol)
}

func TestMuxSeparatesTimestampGroups(t *testing.T) {
	m := NewMux()
	m.PushBar(model.Bar{Symbol: "BTCUSDT", CloseTime: ts("2024-01-01T00:00:00Z")})
	m.PushBar(model.Bar{Symbol: "BTCUSDT", CloseTime: ts("2024-01-01T04:00:00Z")})

	first := m.PopTimestampGroup()
	assert.Len(t, first, 1)
	second := m.PopTimestampGroup()
	assert.Len(t, second, 1)
	assert.True(t, second[0].Timestamp.After(first[0].Timestamp))
}

func TestMuxTieBreakerAdvancesOnlyOnInsert(t *testing.T) {
	m := NewMux()
	same := ts("2024-01-01T00:00:00Z")
	m.PushBar(model.Bar{Symbol: "AAA", Interval: "4h", CloseTime: same, Sequence: 1})
	firstCounter := m.counter
	m.PushBar(model.Bar{Symbol: "AAA", Interval: "4h", CloseTime: same, Sequence: 1})
	secondCounter := m.counter
	assert.Equal(t, firstCounter+1, secondCounter)

	group := m.PopTimestampGroup()
	assert.Len(t, group, 2)
}

func TestSeparateByKind(t *testing.T) {
	m := NewMux()
	m.PushBar(model.Bar{Symbol: "AAA", CloseTime: ts("2024-01-01T00:00:00Z")})
	m.PushFunding(model.FundingEvent{Symbol: "AAA", FundingAt: ts("2024-01-01T00:00:00Z")})
	group := m.PopTimestampGroup()
	funding, bars := SeparateByKind(group)
	assert.Len(t, funding, 1)
	assert.Len(t, bars, 1)
}
