// Package events implements the deterministic multi-symbol event
// multiplexer: every bar close and funding settlement across every symbol
// is merged into a single total order via container/heap, the idiomatic
// Go analog of a heapq-based priority queue, so that the replay loop can
// consume one sorted stream regardless of how many symbols feed it.
package events

import (
	"container/heap"
	"time"

	"github.com/kasyap1234/trendback/pkg/model"
)

// Priority orders same-timestamp events; lower values are processed first.
type Priority int

const (
	PriorityFunding   Priority = 1
	PriorityBarClose  Priority = 2
	PrioritySpread    Priority = 3
	PriorityStrategy  Priority = 4
	PriorityRisk      Priority = 5
	PriorityExecution Priority = 6
)

// Kind distinguishes the payload carried by an Event.
type Kind int

const (
	KindBar Kind = iota
	KindFunding
)

// Event is one entry in the multiplexed stream. Exactly one of Bar/Funding
// is populated, selected by Kind.
type Event struct {
	Kind      Kind
	Bar       model.Bar
	Funding   model.FundingEvent
	Timestamp time.Time
	Priority  Priority
	Symbol    string
	Interval  string
	Sequence  int64 // per-source sequence, used to break ties deterministically
	counter   int64 // global insertion counter, advances only on Push
}

// sortKey is the tuple events.go orders by: timestamp, then priority, then
// symbol, interval and per-source sequence, then a global insertion
// counter as the final tie-breaker. The counter intentionally advances
// only when an event is pushed onto the heap, not when it is popped or
// peeked, so that two events pushed in the same batch in a specific order
// always resolve ties in that same order, regardless of heap internals.
type sortKey struct {
	timestamp time.Time
	priority  Priority
	symbol    string
	interval  string
	sequence  int64
	counter   int64
}

func (e Event) key() sortKey {
	return sortKey{
		timestamp: e.Timestamp,
		priority:  e.Priority,
		symbol:    e.Symbol,
		interval:  e.Interval,
		sequence:  e.Sequence,
		counter:   e.counter,
	}
}

func less(a, b sortKey) bool {
	if !a.timestamp.Equal(b.timestamp) {
		return a.timestamp.Before(b.timestamp)
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.symbol != b.symbol {
		return a.symbol < b.symbol
	}
	if a.interval != b.interval {
		return a.interval < b.interval
	}
	if a.sequence != b.sequence {
		return a.sequence < b.sequence
	}
	return a.counter < b.counter
}

// eventHeap is the container/heap.Interface implementation backing Mux.
type eventHeap []Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return less(h[i].key(), h[j].key()) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Mux merges multiple symbols' bar/funding streams into one sorted stream.
type Mux struct {
	h       eventHeap
	counter int64
}

// NewMux builds an empty multiplexer.
func NewMux() *Mux {
	m := &Mux{h: make(eventHeap, 0)}
	heap.Init(&m.h)
	return m
}

// PushBar enqueues a bar-close event.
func (m *Mux) PushBar(bar model.Bar) {
	m.counter++
	heap.Push(&m.h, Event{
		Kind: KindBar, Bar: bar, Timestamp: bar.CloseTime, Priority: PriorityBarClose,
		Symbol: bar.Symbol, Interval: bar.Interval, Sequence: bar.Sequence, counter: m.counter,
	})
}

// PushFunding enqueues a funding-settlement event.
func (m *Mux) PushFunding(fe model.FundingEvent) {
	m.counter++
	heap.Push(&m.h, Event{
		Kind: KindFunding, Funding: fe, Timestamp: fe.FundingAt, Priority: PriorityFunding,
		Symbol: fe.Symbol, Sequence: fe.Sequence, counter: m.counter,
	})
}

// Len reports how many events remain queued.
func (m *Mux) Len() int { return m.h.Len() }

// Pop removes and returns the next event in sorted order. ok is false when
// the multiplexer is empty.
func (m *Mux) Pop() (Event, bool) {
	if m.h.Len() == 0 {
		return Event{}, false
	}
	return heap.Pop(&m.h).(Event), true
}

// PopTimestampGroup pops and returns every event sharing the earliest
// remaining timestamp, already sorted by priority/symbol/interval/sequence,
// matching the replay loop's "process one timestamp group at a time" step.
func (m *Mux) PopTimestampGroup() []Event {
	first, ok := m.Pop()
	if !ok {
		return nil
	}
	group := []Event{first}
	for m.h.Len() > 0 {
		next := m.h[0]
		if !next.Timestamp.Equal(first.Timestamp) {
			break
		}
		popped, _ := m.Pop()
		group = append(group, popped)
	}
	return group
}

// SeparateByKind splits a timestamp group into its funding and bar events,
// preserving relative order within each.
func SeparateByKind(group []Event) (funding []Event, bars []Event) {
	for _, e := range group {
		switch e.Kind {
		case KindFunding:
			funding = append(funding, e)
		case KindBar:
			bars = append(bars, e)
		}
	}
	return funding, bars
}
