package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/fablesim/fablesim/internal/event"
)

// EventLog appends events to zstd-compressed JSONL files, rotating to a
// fresh file every hour.
type EventLog struct {
	mu      sync.Mutex
	dir     string
	file    *os.File
	encoder *zstd.Encoder
	writer  *bufio.Writer
	hour    time.Time
	now     func() time.Time
	closed  bool
}

// NewEventLog opens a log under dir, creating the directory if needed.
func NewEventLog(dir string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating event log dir: %w", err)
	}
	l := &EventLog{dir: dir, now: time.Now}
	if err := l.openSegment(l.now()); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *EventLog) openSegment(now time.Time) error {
	now = now.UTC()
	name := fmt.Sprintf("events-%s.jsonl.zst", now.Format("20060102-150405"))
	file, err := os.Create(filepath.Join(l.dir, name))
	if err != nil {
		return fmt.Errorf("creating event log file: %w", err)
	}
	encoder, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	l.file = file
	l.encoder = encoder
	l.writer = bufio.NewWriter(encoder)
	l.hour = now.Truncate(time.Hour)
	return nil
}

func (l *EventLog) closeSegment() error {
	if err := l.writer.Flush(); err != nil {
		return err
	}
	if err := l.encoder.Close(); err != nil {
		return err
	}
	return l.file.Close()
}

// Write appends one event as a JSON line, rotating first when the hour has
// rolled over.
func (l *EventLog) Write(e event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("event log is closed")
	}

	if now := l.now().UTC(); now.Truncate(time.Hour).After(l.hour) {
		if err := l.closeSegment(); err != nil {
			return fmt.Errorf("rotating event log: %w", err)
		}
		if err := l.openSegment(now); err != nil {
			l.closed = true
			return fmt.Errorf("rotating event log: %w", err)
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return err
	}
	return l.writer.WriteByte('\n')
}

// Pump subscribes to the bus and writes every event until the context is
// cancelled. It is meant to run in its own goroutine.
func (l *EventLog) Pump(ctx context.Context, bus *event.Bus) {
	sub := bus.Subscribe(64)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-sub.C:
			if !open {
				return
			}
			if err := l.Write(e); err != nil {
				return
			}
		}
	}
}

// Close flushes and closes the current log file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.closeSegment()
}

// ReadEventLog decodes a log file back into events, for replay tooling.
func ReadEventLog(path string) ([]event.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer decoder.Close()

	var events []event.Event
	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		e, err := event.Unmarshal(line)
		if err != nil {
			return events, fmt.Errorf("decoding event line: %w", err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}
