// Package planner turns a scan result into an action plan and gates its
// execution behind an explicit confirmation.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/agesweep/internal/scanner"
)

// Mode is the terminal action of a run. It is fixed for the whole run.
type Mode int

const (
	ModeDelete Mode = iota
	ModeArchive
)

// ModeFor returns ModeArchive when an archive directory is configured
func ModeFor(archiving bool) Mode {
	if archiving {
		return ModeArchive
	}
	return ModeDelete
}

// Verb returns the action verb shown to the user
func (m Mode) Verb() string {
	if m == ModeArchive {
		return "archive"
	}
	return "delete"
}

func (m Mode) String() string {
	return m.Verb()
}

// MarshalText lets reports encode the mode by name
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.Verb()), nil
}

// Plan is what a run is about to do
type Plan struct {
	Mode       Mode                 `json:"mode" yaml:"mode"`
	Verb       string               `json:"verb" yaml:"verb"`
	Root       string               `json:"root" yaml:"root"`
	ArchiveDir string               `json:"archive_dir,omitempty" yaml:"archive_dir,omitempty"`
	Cutoff     time.Time            `json:"cutoff" yaml:"cutoff"`
	Count      int                  `json:"count" yaml:"count"`
	TotalSize  int64                `json:"total_size" yaml:"total_size"`
	Files      []scanner.FileRecord `json:"files" yaml:"files"`
	ScanErrors int                  `json:"scan_errors" yaml:"scan_errors"`
}

// New builds a plan covering every eligible file of result, in scan order
func New(result *scanner.ScanResult, mode Mode) *Plan {
	files := make([]scanner.FileRecord, len(result.Eligible))
	copy(files, result.Eligible)

	return &Plan{
		Mode:       mode,
		Verb:       mode.Verb(),
		Root:       result.Root,
		Cutoff:     result.Cutoff,
		Count:      len(files),
		TotalSize:  result.TotalSize,
		Files:      files,
		ScanErrors: len(result.Errors),
	}
}

// WithArchiveDir records the archive destination shown in the plan
func (p *Plan) WithArchiveDir(dir string) *Plan {
	p.ArchiveDir = dir
	return p
}

// Empty reports whether there is nothing to do
func (p *Plan) Empty() bool {
	return p.Count == 0
}

// Paths returns the planned paths in order
func (p *Plan) Paths() []string {
	paths := make([]string, len(p.Files))
	for i, f := range p.Files {
		paths[i] = f.Path
	}
	return paths
}

// Headline is the one-line description used in prompts,
// e.g. "Found 3 file(s) to archive (12 kB)"
func (p *Plan) Headline() string {
	return fmt.Sprintf("Found %d file(s) to %s (%s)", p.Count, p.Verb, humanize.Bytes(uint64(p.TotalSize)))
}

// Question is the confirmation prompt for the plan
func (p *Plan) Question() string {
	return fmt.Sprintf("Proceed to %s %d file(s)?", p.Verb, p.Count)
}

// Confirmer asks whether a plan may be executed
type Confirmer interface {
	Confirm(ctx context.Context, plan *Plan) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer
type ConfirmerFunc func(ctx context.Context, plan *Plan) (bool, error)

// Confirm calls f
func (f ConfirmerFunc) Confirm(ctx context.Context, plan *Plan) (bool, error) {
	return f(ctx, plan)
}

// AutoConfirm approves every plan (--yes)
var AutoConfirm Confirmer = ConfirmerFunc(func(context.Context, *Plan) (bool, error) {
	return true, nil
})

// Decline rejects every plan (--dry-run)
var Decline Confirmer = ConfirmerFunc(func(context.Context, *Plan) (bool, error) {
	return false, nil
})

// Decision is the outcome of the confirmation gate
type Decision int

const (
	DecisionEmpty Decision = iota
	DecisionConfirmed
	DecisionDeclined
)

func (d Decision) String() string {
	switch d {
	case DecisionEmpty:
		return "empty"
	case DecisionConfirmed:
		return "confirmed"
	case DecisionDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// Gate decides whether plan may run. An empty plan short-circuits to
// DecisionEmpty without asking. A confirmer error counts as a decline and is
// returned alongside it.
func Gate(ctx context.Context, plan *Plan, confirmer Confirmer) (Decision, error) {
	if plan.Empty() {
		return DecisionEmpty, nil
	}

	if err := ctx.Err(); err != nil {
		return DecisionDeclined, err
	}

	ok, err := confirmer.Confirm(ctx, plan)
	if err != nil {
		return DecisionDeclined, fmt.Errorf("confirmation: %w", err)
	}
	if !ok {
		return DecisionDeclined, nil
	}
	return DecisionConfirmed, nil
}

// IsAffirmative reports whether a typed answer approves the plan. Only "y" or
// "yes" (any case, surrounding space ignored) count.
func IsAffirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
