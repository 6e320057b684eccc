// Package metrics aggregates a completed run's trades and equity curve
// into the summary statistics reported at the end of a backtest: returns,
// risk-adjusted ratios, drawdown and trade-level hit rates.
package metrics

import (
	"math"
	"strconv"

	"github.com/kasyap1234/trendback/pkg/model"
)

// Summary is the full set of reported statistics.
type Summary struct {
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	ProfitFactor     float64
	TotalNetPnL      float64
	TotalFundingPaid float64
	MaxDrawdownPct   float64
	SharpeRatio      float64
	SortinoRatio     float64
	CalmarRatio      float64
	AvgHoldingHours  float64
	SymbolsTraded    []string
}

// Compute derives a Summary from the closed trades and equity curve of a
// run. annualizationFactor scales the per-bar return statistics up to an
// annualized ratio (e.g. sqrt(365*6) for 4h bars).
func Compute(trades []model.Trade, equityCurve []model.EquityPoint, annualizationFactor float64) Summary {
	s := Summary{TotalTrades: len(trades)}

	symbolSeen := make(map[string]bool)
	var grossProfit, grossLoss, holdingHoursSum float64

	for _, t := range trades {
		s.TotalNetPnL += t.NetPnL
		s.TotalFundingPaid += t.FundingCost
		holdingHoursSum += t.HoldingHours
		if !symbolSeen[t.Symbol] {
			symbolSeen[t.Symbol] = true
			s.SymbolsTraded = append(s.SymbolsTraded, t.Symbol)
		}
		if t.NetPnL > 0 {
			s.WinningTrades++
			grossProfit += t.NetPnL
		} else if t.NetPnL < 0 {
			s.LosingTrades++
			grossLoss += -t.NetPnL
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
		s.AvgHoldingHours = holdingHoursSum / float64(s.TotalTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	s.MaxDrawdownPct = maxDrawdown(equityCurve)

	returns := periodReturns(equityCurve)
	s.SharpeRatio = sharpe(returns, annualizationFactor)
	s.SortinoRatio = sortino(returns, annualizationFactor)
	s.CalmarRatio = calmar(equityCurve, s.MaxDrawdownPct, annualizationFactor)

	return s
}

func periodReturns(curve []model.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func sharpe(returns []float64, annualizationFactor float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := stddev(returns, m)
	if sd == 0 {
		return 0
	}
	return (m / sd) * annualizationFactor
}

func sortino(returns []float64, annualizationFactor float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	var sumSq float64
	var downCount int
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			downCount++
		}
	}
	if downCount == 0 {
		return 0
	}
	downsideDev := math.Sqrt(sumSq / float64(downCount))
	if downsideDev == 0 {
		return 0
	}
	return (m / downsideDev) * annualizationFactor
}

func calmar(curve []model.EquityPoint, maxDrawdownPct, annualizationFactor float64) float64 {
	if len(curve) < 2 || maxDrawdownPct == 0 {
		return 0
	}
	first := curve[0].Equity
	last := curve[len(curve)-1].Equity
	if first == 0 {
		return 0
	}
	totalReturn := (last - first) / first
	periods := float64(len(curve) - 1)
	annualized := totalReturn * (annualizationFactor * annualizationFactor / periods)
	return annualized / (maxDrawdownPct / 100)
}

func maxDrawdown(curve []model.EquityPoint) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Equity) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// FormatPct renders a ratio as a fixed-precision percentage string without
// pulling in fmt's verb machinery for a single-purpose formatting need.
func FormatPct(ratio float64, decimals int) string {
	return strconv.FormatFloat(ratio*100, 'f', decimals, 64) + "%"
}

// FormatRatio renders a bare float with fixed precision.
func FormatRatio(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
