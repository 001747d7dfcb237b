package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fenilsonani/agesweep/internal/config"
	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/progress"
	"github.com/fenilsonani/agesweep/internal/run"
	"github.com/fenilsonani/agesweep/internal/scanner"
	"github.com/fenilsonani/agesweep/internal/testutil"
)

func samplePlan() *planner.Plan {
	return planner.New(&scanner.ScanResult{
		Root: "/data/tree",
		Eligible: []scanner.FileRecord{
			{Path: "/data/tree/b.txt", Size: 10},
			{Path: "/data/tree/c.txt", Size: 20},
		},
		TotalSize: 30,
	}, planner.ModeDelete)
}

// =============================================================================
// Prompter
// =============================================================================

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"y", "y\n", true},
		{"yes uppercase", "YES\n", true},
		{"padded", "  y  \n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"other", "sure\n", false},
		{"no newline", "y", true},
		{"end of input", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			got, err := p.Confirm(context.Background(), samplePlan())
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}

			text := out.String()
			for _, want := range []string{"Found 2 file(s) to delete", "  - /data/tree/b.txt", "Proceed to delete 2 file(s)? [y/N]: "} {
				if !strings.Contains(text, want) {
					t.Errorf("prompt missing %q:\n%s", want, text)
				}
			}
		})
	}
}

func TestPrompter_ConfirmCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nothing is ever written, so only the context can end the prompt
	r, w := io.Pipe()
	defer w.Close()

	p := NewPrompter(r, &bytes.Buffer{})
	if _, err := p.Confirm(ctx, samplePlan()); !errors.Is(err, context.Canceled) {
		t.Errorf("Confirm() error = %v, want context.Canceled", err)
	}
}

func TestPrompter_ReusableAfterCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPrompter(r, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.AskArchive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("AskArchive() error = %v, want context.Canceled", err)
	}

	// The line typed after the cancel goes to the next question
	go func() { _, _ = io.WriteString(w, "/data/archive\n") }()

	got, err := p.AskArchive(context.Background())
	if err != nil {
		t.Fatalf("AskArchive() error = %v", err)
	}
	if got != "/data/archive" {
		t.Errorf("AskArchive() = %q, want /data/archive", got)
	}
}

func TestPrompter_AskRoot(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateFile("tree/plain.txt", []byte("x"))

	input := strings.Join([]string{"", f.Path("missing"), file, f.TreeDir}, "\n") + "\n"
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader(input), &out)

	got, err := p.AskRoot(context.Background())
	if err != nil {
		t.Fatalf("AskRoot() error = %v", err)
	}
	if got != f.TreeDir {
		t.Errorf("AskRoot() = %q, want %q", got, f.TreeDir)
	}
	if n := strings.Count(out.String(), "Invalid path. Please try again."); n != 3 {
		t.Errorf("re-prompted %d times, want 3:\n%s", n, out.String())
	}
}

func TestPrompter_AskRootEndOfInput(t *testing.T) {
	p := NewPrompter(strings.NewReader("/definitely/not/here\n"), &bytes.Buffer{})
	if _, err := p.AskRoot(context.Background()); !errors.Is(err, ErrNoInput) {
		t.Errorf("AskRoot() error = %v, want ErrNoInput", err)
	}
}

func TestPrompter_AskArchive(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"\n", ""},
		{"  /data/archive  \n", "/data/archive"},
	}
	for _, tt := range tests {
		p := NewPrompter(strings.NewReader(tt.input), &bytes.Buffer{})
		got, err := p.AskArchive(context.Background())
		if err != nil {
			t.Fatalf("AskArchive(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("AskArchive(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPrompter_AskDays(t *testing.T) {
	tests := []struct {
		input      string
		want       int
		wantNotice bool
	}{
		{"45\n", 45, false},
		{"abc\n", config.DefaultAgeDays, true},
		{"-3\n", config.DefaultAgeDays, true},
		{"0\n", config.DefaultAgeDays, true},
		{"\n", config.DefaultAgeDays, true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader(tt.input), &out)

		got, err := p.AskDays(context.Background())
		if err != nil {
			t.Fatalf("AskDays(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("AskDays(%q) = %d, want %d", tt.input, got, tt.want)
		}
		notice := strings.Contains(out.String(), "Invalid number. Defaulting to 30 days.")
		if notice != tt.wantNotice {
			t.Errorf("AskDays(%q) notice = %v, want %v", tt.input, notice, tt.wantNotice)
		}
	}
}

// =============================================================================
// Printer
// =============================================================================

func TestPrinter_ProgressLines(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)

	p.Progress(&progress.ScanProgress{Phase: progress.PhaseScanning, CurrentPath: "/t/a"})
	p.Progress(&progress.ScanProgress{Phase: progress.PhaseError, CurrentPath: "/t/closed", Error: errors.New("permission denied")})
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseExecuting, Verb: "archive"})
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseExecuting, Verb: "archive", CurrentFile: "/t/b", Dest: "/a/b"})
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseExecuting, Verb: "delete", CurrentFile: "/t/c"})
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseExecuting, Verb: "delete", CurrentFile: "/t/d", Error: errors.New("busy")})

	want := strings.Join([]string{
		"[ERROR] Failed to check /t/closed: permission denied",
		"[ARCHIVED] /t/b -> /a/b",
		"[DELETED] /t/c",
		"[ERROR] Could not process /t/d: busy",
	}, "\n") + "\n"
	if out.String() != want {
		t.Errorf("output =\n%q\nwant\n%q", out.String(), want)
	}
}

func TestPrinter_LiveActionStatus(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)
	p.live = true

	started := time.Now()
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseExecuting, Verb: "delete", Total: 2, StartTime: started})
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseExecuting, Verb: "delete", CurrentFile: "/t/a", Done: 1, Total: 2, StartTime: started})
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseExecuting, Verb: "delete", CurrentFile: "/t/b", Done: 2, Total: 2, StartTime: started})
	p.Progress(&progress.ActionProgress{Phase: progress.PhaseComplete, Verb: "delete", Done: 2, Total: 2, StartTime: started})

	text := out.String()
	for _, want := range []string{
		"\r\033[KDeleting 0/2 files (0%)",
		"\r\033[K[DELETED] /t/a\n",
		"\r\033[KDeleting 1/2 files (50%)",
		"\r\033[K[DELETED] /t/b\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%q", want, text)
		}
	}
	if strings.Contains(text, "2/2 files") {
		t.Errorf("status line drawn after the last file:\n%q", text)
	}
	if !strings.HasSuffix(text, "[DELETED] /t/b\n") {
		t.Errorf("output does not end with the last file line:\n%q", text)
	}
}

func TestPrinter_Transition(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)

	observe := p.Transition(config.RunConfig{Root: "/data/tree", AgeDays: 45})
	observe(run.StateConfiguring, run.StateScanning)

	if !strings.Contains(out.String(), "[SCAN] Checking for files older than 45 days in:\n/data/tree\n") {
		t.Errorf("scan banner = %q", out.String())
	}
}

func TestPrinter_Finish(t *testing.T) {
	finished := time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local)

	tests := []struct {
		name string
		sum  *run.Summary
		want string
	}{
		{"empty", &run.Summary{State: run.StateFinishedEmpty}, "[INFO] No files found matching criteria."},
		{"declined", &run.Summary{State: run.StateFinishedDeclined}, "[CANCELLED] No files were modified."},
		{"dry run", &run.Summary{State: run.StateFinishedDeclined, DryRun: true, Eligible: 3}, "[DRY RUN] 3 file(s) would be deleted."},
		{"complete", &run.Summary{State: run.StateFinishedSummary, FinishedAt: finished}, "[COMPLETE] Cleanup finished at 2026-10-16 09:30:00"},
		{"interrupted", &run.Summary{State: run.StateFinishedSummary, Cancelled: true, NotAttempted: 2, FinishedAt: finished}, "[CANCELLED] Interrupted, 2 file(s) not attempted."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			NewPrinter(&out).Finish(tt.sum)
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("Finish() = %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}
}
