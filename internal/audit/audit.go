// Package audit writes the durable, append-only record of a retention run.
// Every entry is flushed to stable storage before Append returns.
package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Verb identifies what an entry records
type Verb string

const (
	VerbScanned  Verb = "SCANNED"
	VerbArchived Verb = "ARCHIVED"
	VerbDeleted  Verb = "DELETED"
	VerbError    Verb = "ERROR"

	// Run bookkeeping
	VerbRunStart  Verb = "RUN_START"
	VerbConfirmed Verb = "CONFIRMED"
	VerbDeclined  Verb = "DECLINED"
	VerbRunEnd    Verb = "RUN_END"
)

// Entry is a single audit record. Time and RunID are stamped by Log.
type Entry struct {
	Time   time.Time `json:"time"`
	RunID  string    `json:"run_id"`
	Verb   Verb      `json:"verb"`
	Path   string    `json:"path,omitempty"`
	Dest   string    `json:"dest,omitempty"`
	Error  string    `json:"error,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Sink persists entries. Write must not return until the entry is durable.
type Sink interface {
	Write(Entry) error
	Close() error
}

// Log serializes appends to a Sink
type Log struct {
	mu     sync.Mutex
	sink   Sink
	runID  string
	path   string
	now    func() time.Time
	counts map[Verb]int
	closed bool
}

// Option configures a Log
type Option func(*Log)

// WithRunID overrides the generated run ID
func WithRunID(id string) Option {
	return func(l *Log) {
		l.runID = id
	}
}

// WithClock overrides the entry timestamp source
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New wraps sink in a Log with a fresh run ID
func New(sink Sink, opts ...Option) *Log {
	l := &Log{
		sink:   sink,
		runID:  uuid.New().String(),
		now:    time.Now,
		counts: make(map[Verb]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ErrClosed is returned by Append after Close
var ErrClosed = errors.New("audit log closed")

// Append stamps and writes e
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	if e.Time.IsZero() {
		e.Time = l.now()
	}
	e.RunID = l.runID

	if err := l.sink.Write(e); err != nil {
		return fmt.Errorf("audit %s %s: %w", e.Verb, e.Path, err)
	}
	l.counts[e.Verb]++
	return nil
}

// RunID returns the identifier stamped on every entry
func (l *Log) RunID() string {
	return l.runID
}

// Path returns the backing file, or "" for in-memory sinks
func (l *Log) Path() string {
	return l.path
}

// Count returns how many entries with the given verb were written
func (l *Log) Count(v Verb) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[v]
}

// Total returns how many entries were written
func (l *Log) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.counts {
		n += c
	}
	return n
}

// Close closes the sink. Further appends fail with ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.sink.Close()
}

// Format selects the on-disk encoding
type Format string

const (
	FormatText   Format = "text"
	FormatJSONL  Format = "jsonl"
	FormatSQLite Format = "sqlite"
)

// ParseFormat parses a format name; empty means FormatText
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSONL, "json":
		return FormatJSONL, nil
	case FormatSQLite, "sqlite3", "db":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unknown audit format %q (want text, jsonl or sqlite)", s)
	}
}

// Ext returns the file extension used for the format
func (f Format) Ext() string {
	switch f {
	case FormatJSONL:
		return "jsonl"
	case FormatSQLite:
		return "db"
	default:
		return "log"
	}
}

// FileName returns the audit file name for a run started at startedAt
func FileName(startedAt time.Time, f Format) string {
	return fmt.Sprintf("agesweep-%s.%s", startedAt.Format("20060102-150405"), f.Ext())
}

// Open creates dir if needed and opens a file-backed Log named after startedAt
func Open(dir string, format Format, startedAt time.Time, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare audit directory: %w", err)
	}

	path := filepath.Join(dir, FileName(startedAt, format))

	var (
		sink Sink
		err  error
	)
	switch format {
	case FormatJSONL:
		sink, err = NewJSONLSink(path)
	case FormatSQLite:
		sink, err = NewSQLiteSink(path)
	default:
		sink, err = NewTextSink(path)
	}
	if err != nil {
		return nil, err
	}

	l := New(sink, opts...)
	l.path = path
	return l, nil
}
