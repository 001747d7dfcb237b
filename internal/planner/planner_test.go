package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fenilsonani/agesweep/internal/scanner"
)

func sampleResult() *scanner.ScanResult {
	now := time.Now()
	return &scanner.ScanResult{
		Root:   "/data",
		Cutoff: now.Add(-30 * scanner.Day),
		Eligible: []scanner.FileRecord{
			{Path: "/data/b.txt", Size: 100, ModTime: now.Add(-40 * scanner.Day)},
			{Path: "/data/a.txt", Size: 50, ModTime: now.Add(-100 * scanner.Day)},
		},
		Ineligible: []scanner.FileRecord{
			{Path: "/data/c.txt", Size: 10, ModTime: now},
		},
		Errors:    []*scanner.ScanError{{Path: "/data/x", Err: errors.New("denied")}},
		TotalSize: 150,
	}
}

// countingConfirmer records how often it was asked
type countingConfirmer struct {
	answer bool
	err    error
	calls  int
}

func (c *countingConfirmer) Confirm(context.Context, *Plan) (bool, error) {
	c.calls++
	return c.answer, c.err
}

func TestNewPlan(t *testing.T) {
	result := sampleResult()
	plan := New(result, ModeArchive)

	if plan.Count != 2 {
		t.Errorf("Count = %d, want 2", plan.Count)
	}
	if plan.Verb != "archive" {
		t.Errorf("Verb = %q, want archive", plan.Verb)
	}
	if plan.TotalSize != 150 {
		t.Errorf("TotalSize = %d, want 150", plan.TotalSize)
	}
	if plan.ScanErrors != 1 {
		t.Errorf("ScanErrors = %d, want 1", plan.ScanErrors)
	}

	// Scan order is kept
	paths := plan.Paths()
	if len(paths) != 2 || paths[0] != "/data/b.txt" || paths[1] != "/data/a.txt" {
		t.Errorf("Paths() = %v", paths)
	}

	// The plan owns its file list
	result.Eligible[0].Path = "/changed"
	if plan.Files[0].Path != "/data/b.txt" {
		t.Error("plan shares the scan result's slice")
	}
}

func TestModeVerb(t *testing.T) {
	tests := []struct {
		archiving bool
		wantMode  Mode
		wantVerb  string
	}{
		{true, ModeArchive, "archive"},
		{false, ModeDelete, "delete"},
	}

	for _, tt := range tests {
		t.Run(tt.wantVerb, func(t *testing.T) {
			m := ModeFor(tt.archiving)
			if m != tt.wantMode || m.Verb() != tt.wantVerb || m.String() != tt.wantVerb {
				t.Errorf("ModeFor(%v) = %v (%s)", tt.archiving, m, m.Verb())
			}
		})
	}
}

func TestHeadlineAndQuestion(t *testing.T) {
	plan := New(sampleResult(), ModeDelete)

	if got, want := plan.Headline(), "Found 2 file(s) to delete (150 B)"; got != want {
		t.Errorf("Headline() = %q, want %q", got, want)
	}
	if got, want := plan.Question(), "Proceed to delete 2 file(s)?"; got != want {
		t.Errorf("Question() = %q, want %q", got, want)
	}
}

func TestGateEmptyPlanSkipsConfirmation(t *testing.T) {
	plan := New(&scanner.ScanResult{Root: "/data"}, ModeDelete)
	c := &countingConfirmer{answer: true}

	decision, err := Gate(context.Background(), plan, c)
	if err != nil {
		t.Fatalf("Gate() error = %v", err)
	}
	if decision != DecisionEmpty {
		t.Errorf("decision = %s, want empty", decision)
	}
	if c.calls != 0 {
		t.Errorf("confirmer called %d times, want 0", c.calls)
	}
}

func TestGateDecisions(t *testing.T) {
	tests := []struct {
		name      string
		confirmer *countingConfirmer
		want      Decision
		wantErr   bool
	}{
		{"approved", &countingConfirmer{answer: true}, DecisionConfirmed, false},
		{"declined", &countingConfirmer{answer: false}, DecisionDeclined, false},
		{"error counts as decline", &countingConfirmer{answer: true, err: errors.New("tty closed")}, DecisionDeclined, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := Gate(context.Background(), New(sampleResult(), ModeDelete), tt.confirmer)
			if (err != nil) != tt.wantErr {
				t.Errorf("Gate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if decision != tt.want {
				t.Errorf("decision = %s, want %s", decision, tt.want)
			}
			if tt.confirmer.calls != 1 {
				t.Errorf("confirmer called %d times, want 1", tt.confirmer.calls)
			}
		})
	}
}

func TestGateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &countingConfirmer{answer: true}
	decision, err := Gate(ctx, New(sampleResult(), ModeDelete), c)
	if decision != DecisionDeclined || !errors.Is(err, context.Canceled) {
		t.Errorf("Gate() = %s, %v; want declined, context.Canceled", decision, err)
	}
	if c.calls != 0 {
		t.Error("confirmer should not be asked after cancellation")
	}
}

func TestBuiltinConfirmers(t *testing.T) {
	plan := New(sampleResult(), ModeDelete)

	if d, _ := Gate(context.Background(), plan, AutoConfirm); d != DecisionConfirmed {
		t.Errorf("AutoConfirm decision = %s", d)
	}
	if d, _ := Gate(context.Background(), plan, Decline); d != DecisionDeclined {
		t.Errorf("Decline decision = %s", d)
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y", true},
		{"Y", true},
		{"yes", true},
		{" YES \n", true},
		{"", false},
		{"n", false},
		{"no", false},
		{"yy", false},
		{"yes please", false},
		{"ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			if got := IsAffirmative(tt.answer); got != tt.want {
				t.Errorf("IsAffirmative(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}
