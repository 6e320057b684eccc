// Package funding supplies the FundingEvent stream each symbol contributes
// to the event multiplexer: either replayed from historical records, or
// synthesized on the standard perpetual-futures 00:00/08:00/16:00 UTC
// settlement schedule when no historical rate series is available.
package funding

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kasyap1234/trendback/pkg/model"
)

// standard perpetual-futures funding settlement times, UTC.
var scheduleHours = []int{0, 8, 16}

// LoadHistorical parses a CSV of `timestamp,rate[,mark_price]` rows for a
// single symbol into a sorted slice of FundingEvents.
func LoadHistorical(symbol, path string) ([]model.FundingEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("funding: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var events []model.FundingEvent
	var seq int64
	header := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("funding: parse %s: %w", path, err)
		}
		if header {
			header = false
			if _, perr := strconv.ParseFloat(record[1], 64); perr != nil {
				continue // header row
			}
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("funding: bad timestamp %q: %w", record[0], err)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("funding: bad rate %q: %w", record[1], err)
		}
		seq++
		fe := model.FundingEvent{Symbol: symbol, FundingAt: ts, Rate: rate, Sequence: seq}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			if mark, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64); err == nil {
				fe.MarkPrice = mark
				fe.HasMark = true
			}
		}
		events = append(events, fe)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].FundingAt.Before(events[j].FundingAt) })
	return events, nil
}

// Synthesize generates a funding event at every 00:00/08:00/16:00 UTC slot
// in (start, end] using a constant rate — used when a symbol has no
// historical funding-rate file but the backtest still needs to exercise the
// settlement path.
func Synthesize(symbol string, start, end time.Time, rate float64) []model.FundingEvent {
	var events []model.FundingEvent
	var seq int64

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for ; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, h := range scheduleHours {
			slot := day.Add(time.Duration(h) * time.Hour)
			if !slot.After(start) || slot.After(end) {
				continue
			}
			seq++
			events = append(events, model.FundingEvent{Symbol: symbol, FundingAt: slot, Rate: rate, Sequence: seq})
		}
	}
	return events
}

// Apply computes the funding cashflow for a position at a single
// settlement and returns the updated equity and the signed cashflow
// applied (positive = equity decrease). Mark price falls back to the
// position's entry price when the event carries none.
func Apply(equity float64, pos *model.Position, fe model.FundingEvent) (newEquity float64, cashflow float64) {
	mark := pos.EntryPrice
	if fe.HasMark {
		mark = fe.MarkPrice
	}
	notional := pos.Quantity * mark
	cashflow = notional * fe.Rate
	if pos.Side == model.Short {
		cashflow = -cashflow
	}
	return equity - cashflow, cashflow
}
