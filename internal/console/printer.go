package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/fenilsonani/agesweep/internal/config"
	"github.com/fenilsonani/agesweep/internal/progress"
	"github.com/fenilsonani/agesweep/internal/run"
)

// Printer writes the progress lines of a run. On a terminal the scan and the
// execution also get a transient status line that is redrawn in place.
type Printer struct {
	mu         sync.Mutex
	out        io.Writer
	live       bool
	width      int
	lastUpdate time.Time
	liveShown  bool
	now        func() time.Time
}

// NewPrinter creates a Printer on out. Live redraws are only enabled when out
// is a terminal.
func NewPrinter(out io.Writer) *Printer {
	p := &Printer{
		out:   out,
		width: 80,
		now:   time.Now,
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.live = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			p.width = w
		}
	}
	return p
}

// Banner prints the program header
func (p *Printer) Banner() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "\n=== agesweep: old file cleaner ===")
}

// Transition returns an observer announcing run phases for cfg
func (p *Printer) Transition(cfg config.RunConfig) run.Observer {
	return func(_, to run.State) {
		p.mu.Lock()
		defer p.mu.Unlock()

		switch to {
		case run.StateScanning:
			fmt.Fprintf(p.out, "\n[SCAN] Checking for files older than %d days in:\n%s\n", cfg.AgeDays, cfg.Root)
		case run.StateExecuting:
			fmt.Fprintln(p.out)
		}
	}
}

// Progress is a progress.Listener printing one line per finished file
func (p *Printer) Progress(update any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch u := update.(type) {
	case *progress.ScanProgress:
		p.scanUpdate(u)
	case *progress.ActionProgress:
		p.actionUpdate(u)
	}
}

func (p *Printer) scanUpdate(u *progress.ScanProgress) {
	switch u.Phase {
	case progress.PhaseScanning:
		if !p.live {
			return
		}
		// Throttle redraws to avoid flickering (max 10 per second)
		now := p.now()
		if now.Sub(p.lastUpdate) < 100*time.Millisecond {
			return
		}
		p.lastUpdate = now
		p.liveShown = true
		status := fmt.Sprintf("%s %s", progress.FormatScanProgress(u), u.CurrentPath)
		fmt.Fprintf(p.out, "\r\033[K%s", truncate(status, p.width-1))
	case progress.PhaseError:
		p.clearLive()
		fmt.Fprintf(p.out, "[ERROR] Failed to check %s: %v\n", u.CurrentPath, u.Error)
	case progress.PhaseComplete:
		p.clearLive()
	}
}

func (p *Printer) actionUpdate(u *progress.ActionProgress) {
	switch u.Phase {
	case progress.PhaseExecuting:
	case progress.PhaseComplete:
		p.clearLive()
		return
	default:
		return
	}

	if u.CurrentFile != "" {
		p.clearLive()
		switch {
		case u.Error != nil:
			fmt.Fprintf(p.out, "[ERROR] Could not process %s: %v\n", u.CurrentFile, u.Error)
		case u.Verb == "archive":
			fmt.Fprintf(p.out, "[ARCHIVED] %s -> %s\n", u.CurrentFile, u.Dest)
		default:
			fmt.Fprintf(p.out, "[DELETED] %s\n", u.CurrentFile)
		}
	}

	// Status line below the per-file lines while files remain
	if p.live && u.Done < u.Total {
		p.liveShown = true
		fmt.Fprintf(p.out, "\r\033[K%s", truncate(progress.FormatActionProgress(u), p.width-1))
	}
}

// Finish prints the closing line for a run
func (p *Printer) Finish(sum *run.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLive()

	switch sum.State {
	case run.StateFinishedEmpty:
		fmt.Fprintln(p.out, "[INFO] No files found matching criteria.")
	case run.StateFinishedDeclined:
		if sum.DryRun {
			fmt.Fprintf(p.out, "[DRY RUN] %d file(s) would be %s. No files were modified.\n", sum.Eligible, pastTense(sum))
		} else {
			fmt.Fprintln(p.out, "[CANCELLED] No files were modified.")
		}
	case run.StateFinishedSummary:
		if sum.Cancelled {
			fmt.Fprintf(p.out, "[CANCELLED] Interrupted, %d file(s) not attempted.\n", sum.NotAttempted)
		}
		fmt.Fprintf(p.out, "\n[COMPLETE] Cleanup finished at %s\n", sum.FinishedAt.Format("2006-01-02 15:04:05"))
	}
}

// Interrupted reports a run that stopped before reaching a terminal state
func (p *Printer) Interrupted(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLive()
	fmt.Fprintf(p.out, "[CANCELLED] %v. No files were modified.\n", err)
}

func (p *Printer) clearLive() {
	if p.liveShown {
		fmt.Fprint(p.out, "\r\033[K")
		p.liveShown = false
	}
}

func pastTense(sum *run.Summary) string {
	if sum.ArchiveDir != "" {
		return "archived"
	}
	return "deleted"
}

// truncate truncates a string to fit width
func truncate(s string, width int) string {
	if width < 4 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}
