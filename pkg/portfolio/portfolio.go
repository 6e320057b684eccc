// Package portfolio selects which approved trade candidates actually open,
// when more symbols qualify in a single timestamp group than the account's
// max-positions budget allows.
package portfolio

import (
	"fmt"
	"sort"

	"github.com/kasyap1234/trendback/pkg/model"
	"github.com/kasyap1234/trendback/pkg/risk"
)

// Candidate is one symbol's proposal plus its risk/score context, gathered
// before the selector decides which subset actually opens.
type Candidate struct {
	Symbol           string
	Proposal         model.TradeProposal
	RiskResult       risk.CheckResult
	Composite        float64
	FundingPenalty   float64
	LiquidityScore   float64
	AlreadyHasPosition bool
	NewsBlocked      bool
	Rank             int
	HasRank          bool
	Selected         bool
	IneligibleReason string
	HasIneligibleReason bool
}

// Selector picks the top `maxPositions - currentOpenCount` eligible
// candidates, ranked by the sort key (-composite_score, -funding_penalty,
// -liquidity_score): composite score descending, with ties broken in the
// same descending sense on funding penalty and liquidity score.
type Selector struct {
	MaxPositions int
}

// New builds a Selector.
func New(maxPositions int) *Selector {
	return &Selector{MaxPositions: maxPositions}
}

// Select filters out ineligible candidates, ranks the remainder, and marks
// the top slice Selected, returning the full (annotated) candidate list in
// its original order.
func (s *Selector) Select(candidates []Candidate, currentOpenCount int) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	maxReached := currentOpenCount >= s.MaxPositions

	eligible := make([]int, 0, len(out))
	for i := range out {
		reason, ineligible := checkEligibility(out[i], maxReached, currentOpenCount, s.MaxPositions)
		if ineligible {
			out[i].IneligibleReason = reason
			out[i].HasIneligibleReason = true
			continue
		}
		eligible = append(eligible, i)
	}

	sort.SliceStable(eligible, func(a, b int) bool {
		ia, ib := out[eligible[a]], out[eligible[b]]
		if ia.Composite != ib.Composite {
			return ia.Composite > ib.Composite
		}
		if ia.FundingPenalty != ib.FundingPenalty {
			return ia.FundingPenalty > ib.FundingPenalty
		}
		return ia.LiquidityScore > ib.LiquidityScore
	})

	slots := s.MaxPositions - currentOpenCount
	if slots < 0 {
		slots = 0
	}

	for rank, idx := range eligible {
		out[idx].Rank = rank + 1
		out[idx].HasRank = true
		out[idx].Selected = rank < slots
	}

	return out
}

func checkEligibility(c Candidate, maxReached bool, currentOpenCount, maxPositions int) (reason string, ineligible bool) {
	if c.AlreadyHasPosition {
		return "already_have_position", true
	}
	if c.NewsBlocked {
		return fmt.Sprintf("news_blocked (%s)", c.Symbol), true
	}
	if maxReached {
		return fmt.Sprintf("max_positions_reached (%d/%d)", currentOpenCount, maxPositions), true
	}
	if !c.RiskResult.Approved {
		return "risk_rejected", true
	}
	return "", false
}
