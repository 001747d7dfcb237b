// Package run drives one retention run: scan, plan, confirm, execute.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fenilsonani/agesweep/internal/audit"
	"github.com/fenilsonani/agesweep/internal/cleaner"
	"github.com/fenilsonani/agesweep/internal/config"
	"github.com/fenilsonani/agesweep/internal/lock"
	"github.com/fenilsonani/agesweep/internal/logging"
	"github.com/fenilsonani/agesweep/internal/metrics"
	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/progress"
	"github.com/fenilsonani/agesweep/internal/scanner"
)

// Deps are the collaborators of a Controller. Only Confirmer matters for a
// real run; everything else has a usable default.
type Deps struct {
	// Confirmer answers the confirmation gate. Nil declines.
	Confirmer planner.Confirmer
	// Audit is used as is when set. Otherwise the controller locks the
	// configured audit directory and opens a new file there.
	Audit    *audit.Log
	Logger   *slog.Logger
	Progress *progress.Reporter
	Metrics  *metrics.Recorder
}

// Observer is called on every state transition
type Observer func(from, to State)

// Controller owns a RunConfig and moves through the run states once
type Controller struct {
	cfg  config.RunConfig
	deps Deps

	mu        sync.Mutex
	state     State
	observers []Observer
	plan      *planner.Plan
}

// New creates a Controller in StateConfiguring. cfg must come from
// config.NewRunConfig.
func New(cfg config.RunConfig, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Progress == nil {
		deps.Progress = progress.NewReporter()
	}
	return &Controller{
		cfg:   cfg,
		deps:  deps,
		state: StateConfiguring,
	}
}

// Subscribe registers an observer for state transitions
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Plan returns the plan once planning is done, nil before
func (c *Controller) Plan() *planner.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// Config returns the run's configuration
func (c *Controller) Config() config.RunConfig {
	return c.cfg
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	if !CanTransition(from, to) {
		c.mu.Unlock()
		c.deps.Logger.Error("illegal state transition", "from", from.String(), "to", to.String())
		return
	}
	c.state = to
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	c.deps.Logger.Debug("state", "from", from.String(), "to", to.String())
	for _, o := range observers {
		o(from, to)
	}
}

// Run executes the run to a terminal state. Per-file failures end up in the
// summary; an error is returned only when the run could not be set up or the
// scan could not start or was cancelled.
func (c *Controller) Run(ctx context.Context) (*Summary, error) {
	if c.State() != StateConfiguring {
		return nil, errors.New("run already started")
	}

	log := c.deps.Logger
	mode := planner.ModeFor(c.cfg.Archiving())
	sum := &Summary{
		State:      StateConfiguring,
		Mode:       mode,
		Root:       c.cfg.Root,
		ArchiveDir: c.cfg.ArchiveDir,
		AgeDays:    c.cfg.AgeDays,
		Cutoff:     c.cfg.Cutoff,
		DryRun:     c.cfg.DryRun,
		StartedAt:  time.Now(),
	}

	auditLog, closeAudit, err := c.openAudit(sum.StartedAt)
	if err != nil {
		return nil, err
	}
	defer closeAudit()

	sum.RunID = auditLog.RunID()
	sum.AuditPath = auditLog.Path()
	log = log.With("run", sum.RunID)

	c.appendAudit(auditLog, audit.Entry{
		Verb:   audit.VerbRunStart,
		Path:   c.cfg.Root,
		Dest:   c.cfg.ArchiveDir,
		Detail: fmt.Sprintf("mode=%s age_days=%d cutoff=%s dry_run=%t",
			mode, c.cfg.AgeDays, c.cfg.Cutoff.Format(time.RFC3339), c.cfg.DryRun),
	})

	// Scanning
	c.transition(StateScanning)
	result, err := c.scan(ctx, log)
	if err != nil {
		c.appendAudit(auditLog, audit.Entry{Verb: audit.VerbError, Path: c.cfg.Root, Error: err.Error(), Detail: "scan"})
		c.deps.Progress.UpdateScanProgress(&progress.ScanProgress{Phase: progress.PhaseError, CurrentPath: c.cfg.Root, Error: err})
		c.finish(auditLog, sum)
		return sum, fmt.Errorf("scan %s: %w", c.cfg.Root, err)
	}

	sum.Eligible = len(result.Eligible)
	sum.Ineligible = len(result.Ineligible)
	sum.ScanErrors = len(result.Errors)
	sum.Skipped = len(result.Skipped)
	sum.BytesPlanned = result.TotalSize

	for _, rec := range result.Eligible {
		c.appendAudit(auditLog, audit.Entry{Verb: audit.VerbScanned, Path: rec.Path, Detail: "eligible"})
	}
	for _, se := range result.Errors {
		c.appendAudit(auditLog, audit.Entry{Verb: audit.VerbError, Path: se.Path, Error: se.Err.Error(), Detail: "scan"})
	}

	// Planning
	c.transition(StatePlanning)
	plan := planner.New(result, mode).WithArchiveDir(c.cfg.ArchiveDir)
	c.mu.Lock()
	c.plan = plan
	c.mu.Unlock()

	if plan.Empty() {
		c.transition(StateFinishedEmpty)
		return c.finish(auditLog, sum), nil
	}

	// Confirmation
	c.transition(StateAwaitingConfirmation)
	confirmer := c.deps.Confirmer
	if confirmer == nil || c.cfg.DryRun {
		confirmer = planner.Decline
	}

	decision, err := planner.Gate(ctx, plan, confirmer)
	if err != nil {
		log.Warn("confirmation failed", "err", err)
		c.appendAudit(auditLog, audit.Entry{Verb: audit.VerbError, Error: err.Error(), Detail: "confirmation"})
	}

	if decision != planner.DecisionConfirmed {
		detail := "declined"
		if c.cfg.DryRun {
			detail = "dry run"
		}
		c.appendAudit(auditLog, audit.Entry{
			Verb:   audit.VerbDeclined,
			Path:   c.cfg.Root,
			Detail: fmt.Sprintf("%s, %d file(s) untouched", detail, plan.Count),
		})
		c.transition(StateFinishedDeclined)
		return c.finish(auditLog, sum), nil
	}

	c.appendAudit(auditLog, audit.Entry{
		Verb:   audit.VerbConfirmed,
		Path:   c.cfg.Root,
		Detail: fmt.Sprintf("%d file(s) to %s", plan.Count, plan.Verb),
	})

	// Executing
	c.transition(StateExecuting)
	cl := cleaner.New(mode, c.cfg.ArchiveDir,
		cleaner.WithRoot(c.cfg.Root),
		cleaner.WithCollisionPolicy(c.cfg.Collision),
		cleaner.WithAttempts(c.cfg.BusyRetries),
		cleaner.WithValidator(c.cfg.Validator()),
		cleaner.WithAudit(auditLog),
		cleaner.WithLogger(log),
		cleaner.WithProgress(c.deps.Progress),
	)

	res, err := cl.ApplyPlan(ctx, plan, decision)
	if err != nil {
		// Nothing was touched; the run still ends with a summary
		sum.NotAttempted = plan.Count
		c.transition(StateFinishedSummary)
		return c.finish(auditLog, sum), fmt.Errorf("execute plan: %w", err)
	}

	sum.Succeeded = res.Succeeded
	sum.Failed = res.Failed
	sum.NotAttempted = res.NotAttempted
	sum.BytesProcessed = res.BytesProcessed
	sum.Cancelled = res.Cancelled
	sum.Outcomes = res.Outcomes
	sum.Errors = res.Errors

	if c.deps.Metrics != nil {
		for _, out := range res.Outcomes {
			c.deps.Metrics.ObserveOutcome(mode.Verb(), out)
		}
	}

	c.transition(StateFinishedSummary)
	return c.finish(auditLog, sum), nil
}

// scan walks the root, pruning the run's own output directories
func (c *Controller) scan(ctx context.Context, log *slog.Logger) (*scanner.ScanResult, error) {
	started := time.Now()
	pr := c.deps.Progress

	pr.UpdateScanProgress(&progress.ScanProgress{Phase: progress.PhaseScanning, CurrentPath: c.cfg.Root, StartTime: started})

	s := scanner.New(
		scanner.WithExcludes(c.cfg.Excludes...),
		scanner.WithPrune(c.cfg.ArchiveDir, c.cfg.AuditDir),
		scanner.WithLogger(log),
		scanner.WithProgress(func(path string, seen, eligible int) {
			pr.UpdateScanProgress(&progress.ScanProgress{
				Phase:       progress.PhaseScanning,
				CurrentPath: path,
				FilesSeen:   seen,
				Eligible:    eligible,
				StartTime:   started,
			})
		}),
	)

	result, err := s.Scan(ctx, c.cfg.Root, c.cfg.Cutoff)
	if err != nil {
		return nil, err
	}

	for _, se := range result.Errors {
		log.Warn("scan error", "path", se.Path, "err", se.Err)
		pr.UpdateScanProgress(&progress.ScanProgress{
			Phase:       progress.PhaseError,
			CurrentPath: se.Path,
			StartTime:   started,
			Error:       se.Err,
		})
	}

	pr.UpdateScanProgress(&progress.ScanProgress{
		Phase:     progress.PhaseComplete,
		FilesSeen: len(result.Eligible) + len(result.Ineligible),
		Eligible:  len(result.Eligible),
		StartTime: started,
	})

	if c.deps.Metrics != nil {
		c.deps.Metrics.ObserveScan(result, time.Since(started))
	}
	log.Debug("scan complete",
		"eligible", len(result.Eligible),
		"ineligible", len(result.Ineligible),
		"errors", len(result.Errors),
		"skipped", len(result.Skipped))

	return result, nil
}

// finish stamps the summary, writes RUN_END and exports metrics
func (c *Controller) finish(auditLog *audit.Log, sum *Summary) *Summary {
	sum.State = c.State()
	sum.FinishedAt = time.Now()
	sum.Duration = sum.FinishedAt.Sub(sum.StartedAt)

	c.appendAudit(auditLog, audit.Entry{
		Verb:   audit.VerbRunEnd,
		Path:   c.cfg.Root,
		Detail: fmt.Sprintf("state=%s eligible=%d succeeded=%d failed=%d not_attempted=%d scan_errors=%d",
			sum.State, sum.Eligible, sum.Succeeded, sum.Failed, sum.NotAttempted, sum.ScanErrors),
	})

	if c.deps.Metrics != nil {
		c.deps.Metrics.ObserveRun(sum.State.String(), sum.NotAttempted, sum.Duration, sum.FinishedAt)
		if c.cfg.MetricsFile != "" {
			if err := c.deps.Metrics.WriteTextfile(c.cfg.MetricsFile); err != nil {
				c.deps.Logger.Warn("metrics export failed", "path", c.cfg.MetricsFile, "err", err)
			}
		}
	}

	return sum
}

// openAudit returns the audit log and a function releasing it. A log passed
// in Deps is left open for the caller.
func (c *Controller) openAudit(startedAt time.Time) (*audit.Log, func(), error) {
	if c.deps.Audit != nil {
		return c.deps.Audit, func() {}, nil
	}

	if err := os.MkdirAll(c.cfg.AuditDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("prepare audit directory: %w", err)
	}

	runLock, err := lock.Acquire(lock.PathFor(c.cfg.AuditDir))
	if err != nil {
		return nil, nil, err
	}

	auditLog, err := audit.Open(c.cfg.AuditDir, c.cfg.AuditFormat, startedAt)
	if err != nil {
		_ = runLock.Release()
		return nil, nil, err
	}

	release := func() {
		if err := auditLog.Close(); err != nil {
			c.deps.Logger.Error("close audit log", "path", auditLog.Path(), "err", err)
		}
		if err := runLock.Release(); err != nil {
			c.deps.Logger.Error("release run lock", "err", err)
		}
	}
	return auditLog, release, nil
}

func (c *Controller) appendAudit(auditLog *audit.Log, e audit.Entry) {
	if err := auditLog.Append(e); err != nil {
		c.deps.Logger.Error("audit write failed", "verb", string(e.Verb), "path", e.Path, "err", err)
	}
}
