// Package ledger implements the append-only JSONL event log a backtest run
// writes alongside its summary metrics: every funding settlement, fill,
// rejection and position close is recorded with a monotonic sequence
// number so a run can be replayed byte-for-byte from its own log.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Ledger is the interface the replay loop writes events through; NullLedger
// satisfies it as a no-op for dry runs and unit tests.
type Ledger interface {
	Append(eventType string, timestamp time.Time, payload any) error
	Close() error
	EventCount() int64
}

// Backtest is the durable, buffered JSONL implementation.
type Backtest struct {
	outDir     string
	file       *os.File
	writer     *bufio.Writer
	bufferSize int
	written    int
	sequence   int64
}

// New opens (creating if necessary) <outDir>/events.jsonl for buffered
// append, with flushes every bufferSize records.
func New(outDir string, bufferSize int) (*Backtest, error) {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: mkdir %s: %w", outDir, err)
	}
	path := filepath.Join(outDir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	return &Backtest{
		outDir:     outDir,
		file:       f,
		writer:     bufio.NewWriter(f),
		bufferSize: bufferSize,
		sequence:   1,
	}, nil
}

type record struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
	Payload   any       `json:"payload"`
}

// Append writes one record, flushing to disk every bufferSize writes.
func (l *Backtest) Append(eventType string, timestamp time.Time, payload any) error {
	rec := record{
		EventID:   fmt.Sprintf("EVT-%06d", l.sequence),
		EventType: eventType,
		Timestamp: timestamp,
		Sequence:  l.sequence,
		Payload:   payload,
	}
	l.sequence++

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ledger: marshal event: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("ledger: write event: %w", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return err
	}

	l.written++
	if l.written >= l.bufferSize {
		if err := l.flush(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Backtest) flush() error {
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("ledger: flush: %w", err)
	}
	l.written = 0
	return nil
}

// Close flushes remaining buffered records and writes the final sequence
// number to <outDir>/sequence.txt, so a resumed or audited run can confirm
// nothing was silently dropped.
func (l *Backtest) Close() error {
	if err := l.flush(); err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	seqPath := filepath.Join(l.outDir, "sequence.txt")
	return os.WriteFile(seqPath, []byte(fmt.Sprintf("%d\n", l.sequence-1)), 0o644)
}

// EventCount returns how many records have been appended so far.
func (l *Backtest) EventCount() int64 { return l.sequence - 1 }

// Null discards every event; used when a caller doesn't want a JSONL trail.
type Null struct{}

func (Null) Append(string, time.Time, any) error { return nil }
func (Null) Close() error                        { return nil }
func (Null) EventCount() int64                   { return 0 }
