// Package rules implements the symbol rule book: a versioned snapshot of
// per-symbol trading filters (tick/step/min-qty/min-notional), loaded once
// and consulted read-only for the life of a backtest run.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/kasyap1234/trendback/pkg/model"
)

// rawRule mirrors the on-disk symbol rule snapshot document:
// {effective_date, rules: {symbol: {...}}}.
type rawRule struct {
	Symbol            string   `json:"symbol"`
	TickSize          float64  `json:"tick_size"`
	StepSize          float64  `json:"step_size"`
	MinQty            float64  `json:"min_qty"`
	MinNotional       float64  `json:"min_notional"`
	ContractType      string   `json:"contract_type"`
	PricePrecision    int      `json:"price_precision"`
	QuantityPrecision int      `json:"quantity_precision"`
	DefaultsApplied   []string `json:"defaults_applied"`
}

type rawSnapshot struct {
	EffectiveDate time.Time          `json:"effective_date"`
	SourceFile    string             `json:"source_file"`
	Rules         map[string]rawRule `json:"rules"`
}

// Snapshot is a single versioned set of symbol rules.
type Snapshot struct {
	EffectiveDate time.Time
	SourceFile    string
	rules         map[string]model.SymbolRule
}

// Load parses a symbol-rule snapshot from a JSON file at path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}

	rules := make(map[string]model.SymbolRule, len(raw.Rules))
	for symbol, r := range raw.Rules {
		rule := model.SymbolRule{
			Symbol:            r.Symbol,
			TickSize:          orDefault(r.TickSize, 0.01),
			StepSize:          orDefault(r.StepSize, 0.001),
			MinQty:            orDefault(r.MinQty, 0.001),
			MinNotional:       orDefault(r.MinNotional, 5.0),
			PricePrecision:    r.PricePrecision,
			QuantityPrecision: r.QuantityPrecision,
			ContractType:      defaultString(r.ContractType, "PERPETUAL"),
			DefaultsApplied:   r.DefaultsApplied,
		}
		if rule.Symbol == "" {
			rule.Symbol = symbol
		}
		rules[symbol] = rule
	}

	return &Snapshot{
		EffectiveDate: raw.EffectiveDate,
		SourceFile:    defaultString(raw.SourceFile, path),
		rules:         rules,
	}, nil
}

// Get returns the rule for symbol, or the package-level fallback when absent.
// This operation never fails.
func (s *Snapshot) Get(symbol string) model.SymbolRule {
	if s == nil {
		return fallbackFor(symbol)
	}
	if r, ok := s.rules[symbol]; ok {
		return r
	}
	return fallbackFor(symbol)
}

// Has reports whether symbol has an explicit entry in the snapshot.
func (s *Snapshot) Has(symbol string) bool {
	if s == nil {
		return false
	}
	_, ok := s.rules[symbol]
	return ok
}

func fallbackFor(symbol string) model.SymbolRule {
	r := model.FallbackRule
	r.Symbol = symbol
	return r
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Book is a date-versioned collection of snapshots, allowing a backtest to
// pin the rule set that was effective at a given historical date.
type Book struct {
	snapshots []*Snapshot // sorted ascending by EffectiveDate
}

// NewBook builds a Book from already-loaded snapshots.
func NewBook(snapshots []*Snapshot) *Book {
	sorted := make([]*Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})
	return &Book{snapshots: sorted}
}

// ForDate returns the snapshot with the greatest EffectiveDate <= target.
// If every snapshot is after target, the oldest is returned. An empty book
// returns nil; callers fall back to the package-level fallback rule.
func (b *Book) ForDate(target time.Time) *Snapshot {
	if b == nil || len(b.snapshots) == 0 {
		return nil
	}
	var best *Snapshot
	for _, snap := range b.snapshots {
		if !snap.EffectiveDate.After(target) {
			best = snap
		}
	}
	if best == nil {
		return b.snapshots[0]
	}
	return best
}
