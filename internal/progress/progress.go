// Package progress carries phase updates from the scanner and executor to
// whatever is displaying them. Listeners run synchronously on the caller's
// goroutine, in subscription order.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseScanning  Phase = "scanning"
	PhaseExecuting Phase = "executing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// ScanProgress represents progress during scanning
type ScanProgress struct {
	Phase       Phase
	CurrentPath string
	FilesSeen   int
	Eligible    int
	StartTime   time.Time
	Error       error
}

// ActionProgress represents progress while archiving or deleting
type ActionProgress struct {
	Phase       Phase
	Verb        string // "archive" or "delete"
	CurrentFile string
	Dest        string
	Done        int
	Total       int
	Succeeded   int
	Failed      int
	BytesDone   int64
	BytesTotal  int64
	StartTime   time.Time
	Error       error // failure of CurrentFile, if any
}

// Listener receives *ScanProgress and *ActionProgress updates
type Listener func(update any)

// Reporter fans progress updates out to listeners
type Reporter struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewReporter creates a new progress reporter
func NewReporter() *Reporter {
	return &Reporter{}
}

// Subscribe registers a listener
func (r *Reporter) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// UpdateScanProgress notifies listeners of a scan update
func (r *Reporter) UpdateScanProgress(update *ScanProgress) {
	r.notify(update)
}

// UpdateActionProgress notifies listeners of an action update
func (r *Reporter) UpdateActionProgress(update *ActionProgress) {
	r.notify(update)
}

func (r *Reporter) notify(update any) {
	r.mu.RLock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, l := range listeners {
		l(update)
	}
}

// FormatScanProgress returns a human-readable scan progress string
func FormatScanProgress(p *ScanProgress) string {
	if p == nil {
		return "Initializing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseScanning:
		return fmt.Sprintf("Scanning... %d files, %d eligible [%s]",
			p.FilesSeen, p.Eligible, FormatDuration(elapsed))
	case PhaseComplete:
		return fmt.Sprintf("Scan complete: %d files, %d eligible in %s",
			p.FilesSeen, p.Eligible, FormatDuration(elapsed))
	case PhaseError:
		return fmt.Sprintf("Scan error: %v", p.Error)
	default:
		return "Scanning..."
	}
}

// FormatActionProgress returns a human-readable action progress string
func FormatActionProgress(p *ActionProgress) string {
	if p == nil {
		return "Preparing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseExecuting:
		percentage := 0
		if p.Total > 0 {
			percentage = (p.Done * 100) / p.Total
		}

		eta := ""
		if p.Done > 0 && p.Total > p.Done {
			avgTime := elapsed / time.Duration(p.Done)
			remaining := time.Duration(p.Total-p.Done) * avgTime
			eta = fmt.Sprintf(" ETA: %s", FormatDuration(remaining))
		}

		return fmt.Sprintf("%s %d/%d files (%d%%) - %s%s",
			capitalize(p.Verb), p.Done, p.Total, percentage,
			humanize.Bytes(uint64(p.BytesDone)), eta)
	case PhaseComplete:
		return fmt.Sprintf("Done: %d succeeded, %d failed (%s) in %s",
			p.Succeeded, p.Failed, humanize.Bytes(uint64(p.BytesDone)), FormatDuration(elapsed))
	case PhaseError:
		return fmt.Sprintf("Error: %v", p.Error)
	default:
		return "Preparing..."
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func capitalize(s string) string {
	switch s {
	case "archive":
		return "Archiving"
	case "delete":
		return "Deleting"
	default:
		return s
	}
}
