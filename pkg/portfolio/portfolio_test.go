package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasyap1234/trendback/pkg/risk"
)

func approved() risk.CheckResult { return risk.CheckResult{Approved: true} }

func TestSelectRanksByCompositeThenFundingThenLiquidity(t *testing.T) {
	s := New(2)
	candidates := []Candidate{
		{Symbol: "AAA", Composite: 0.5, RiskResult: approved()},
		{Symbol: "BBB", Composite: 0.9, RiskResult: approved()},
		{Symbol: "CCC", Composite: 0.9, FundingPenalty: 0.1, RiskResult: approved()},
	}
	out := s.Select(candidates, 0)
	byRank := make(map[int]string)
	for _, c := range out {
		if c.HasRank {
			byRank[c.Rank] = c.Symbol
		}
	}
	assert.Equal(t, "BBB", byRank[1])
	assert.Equal(t, "CCC", byRank[2])
}

func TestSelectMarksTopSlotsSelected(t *testing.T) {
	s := New(1)
	candidates := []Candidate{
		{Symbol: "AAA", Composite: 0.9, RiskResult: approved()},
		{Symbol: "BBB", Composite: 0.8, RiskResult: approved()},
	}
	out := s.Select(candidates, 0)
	selectedCount := 0
	for _, c := range out {
		if c.Selected {
			selectedCount++
		}
	}
	assert.Equal(t, 1, selectedCount)
}

func TestSelectExcludesAlreadyOpenAndNewsBlocked(t *testing.T) {
	s := New(5)
	candidates := []Candidate{
		{Symbol: "AAA", Composite: 0.9, AlreadyHasPosition: true, RiskResult: approved()},
		{Symbol: "BBB", Composite: 0.9, NewsBlocked: true, RiskResult: approved()},
	}
	out := s.Select(candidates, 0)
	for _, c := range out {
		assert.False(t, c.Selected)
		assert.True(t, c.HasIneligibleReason)
	}
}

func TestSelectMaxPositionsReachedBlocksAll(t *testing.T) {
	s := New(1)
	candidates := []Candidate{{Symbol: "AAA", Composite: 0.9, RiskResult: approved()}}
	out := s.Select(candidates, 1)
	assert.False(t, out[0].Selected)
	assert.Contains(t, out[0].IneligibleReason, "max_positions_reached")
}
