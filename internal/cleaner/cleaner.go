package cleaner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fenilsonani/agesweep/internal/audit"
	"github.com/fenilsonani/agesweep/internal/config"
	"github.com/fenilsonani/agesweep/internal/logging"
	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/progress"
	"github.com/fenilsonani/agesweep/internal/scanner"
	"github.com/fenilsonani/agesweep/internal/security"
)

// ErrNotConfirmed is returned by ApplyPlan for any decision but DecisionConfirmed
var ErrNotConfirmed = errors.New("plan was not confirmed")

// Status is the terminal state of one file's action
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSucceeded {
		return "succeeded"
	}
	return "failed"
}

// MarshalText encodes the status by name in reports
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of acting on one file
type Outcome struct {
	Path   string       `json:"path" yaml:"path"`
	Dest   string       `json:"dest,omitempty" yaml:"dest,omitempty"`
	Size   int64        `json:"size" yaml:"size"`
	Status Status       `json:"status" yaml:"status"`
	Err    *ActionError `json:"-" yaml:"-"`
}

// Failed reports whether the action failed
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// Result represents the result of executing a plan
type Result struct {
	Mode           planner.Mode
	Outcomes       []Outcome
	Succeeded      int
	Failed         int
	NotAttempted   int // files left over after cancellation
	BytesProcessed int64
	Errors         []*ActionError
	Cancelled      bool
	CancelReason   error
	StartTime      time.Time
	Duration       time.Duration
}

func (r *Result) add(out Outcome) {
	r.Outcomes = append(r.Outcomes, out)
	if out.Failed() {
		r.Failed++
		r.Errors = append(r.Errors, out.Err)
		return
	}
	r.Succeeded++
	r.BytesProcessed += out.Size
}

// fileOps are the filesystem calls that mutate the tree
type fileOps struct {
	rename func(oldpath, newpath string) error
	remove func(path string) error
	copy   func(src, dst string, info fs.FileInfo) error
	sleep  func(ctx context.Context, d time.Duration) error
}

var defaultOps = fileOps{
	rename: renameNoReplace,
	remove: os.Remove,
	copy:   copyAcross,
	sleep:  sleepContext,
}

// Cleaner archives or deletes files one at a time. A failure is recorded for
// the file it happened on and never stops the batch.
type Cleaner struct {
	mode       planner.Mode
	archiveDir string
	root       string
	collision  config.CollisionPolicy
	attempts   int
	delays     []time.Duration
	validator  *security.PathValidator
	audit      *audit.Log
	logger     *slog.Logger
	progress   *progress.Reporter
	ops        fileOps
}

// Option configures a Cleaner
type Option func(*Cleaner)

// WithRoot confines every action to paths strictly below root
func WithRoot(root string) Option {
	return func(c *Cleaner) {
		c.root = root
	}
}

// WithCollisionPolicy sets the archive collision policy
func WithCollisionPolicy(p config.CollisionPolicy) Option {
	return func(c *Cleaner) {
		c.collision = p
	}
}

// WithAttempts sets how many times a busy file is tried
func WithAttempts(n int) Option {
	return func(c *Cleaner) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithRetryDelays sets the pauses between busy retries
func WithRetryDelays(delays ...time.Duration) Option {
	return func(c *Cleaner) {
		c.delays = delays
	}
}

// WithValidator sets the path validator used with WithRoot
func WithValidator(pv *security.PathValidator) Option {
	return func(c *Cleaner) {
		c.validator = pv
	}
}

// WithAudit records every attempt in log
func WithAudit(log *audit.Log) Option {
	return func(c *Cleaner) {
		c.audit = log
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) {
		c.logger = logger
	}
}

// WithProgress sets the progress reporter
func WithProgress(pr *progress.Reporter) Option {
	return func(c *Cleaner) {
		c.progress = pr
	}
}

// New creates a Cleaner for mode. archiveDir is only used in archive mode.
func New(mode planner.Mode, archiveDir string, opts ...Option) *Cleaner {
	c := &Cleaner{
		mode:       mode,
		archiveDir: archiveDir,
		collision:  config.CollisionFail,
		attempts:   config.DefaultBusyRetries,
		delays: []time.Duration{
			100 * time.Millisecond,
			500 * time.Millisecond,
			2 * time.Second,
		},
		validator: security.NewPathValidator(),
		logger:    logging.Discard(),
		ops:       defaultOps,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the cleaner's action mode
func (c *Cleaner) Mode() planner.Mode {
	return c.mode
}

// EnsureArchiveDir creates the archive directory if it does not exist yet
func (c *Cleaner) EnsureArchiveDir() error {
	if c.mode != planner.ModeArchive {
		return nil
	}
	if c.archiveDir == "" {
		return errors.New("archive mode without an archive directory")
	}
	if err := os.MkdirAll(c.archiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	return nil
}

// ApplyPlan acts on every file of plan in order. It refuses to run unless the
// plan was confirmed. Cancellation is checked before each file; files left
// over are counted as not attempted and logged once.
func (c *Cleaner) ApplyPlan(ctx context.Context, plan *planner.Plan, decision planner.Decision) (*Result, error) {
	if decision != planner.DecisionConfirmed {
		return nil, ErrNotConfirmed
	}
	if plan.Mode != c.mode {
		return nil, fmt.Errorf("plan mode %s does not match cleaner mode %s", plan.Mode, c.mode)
	}

	result := &Result{
		Mode:      c.mode,
		Outcomes:  make([]Outcome, 0, len(plan.Files)),
		StartTime: time.Now(),
	}

	if err := c.EnsureArchiveDir(); err != nil {
		c.appendAudit(audit.Entry{Verb: audit.VerbError, Path: c.archiveDir, Error: err.Error()})
		return result, err
	}

	total := len(plan.Files)
	c.reportProgress(progress.PhaseExecuting, result, total, plan.TotalSize, nil)

	for i, rec := range plan.Files {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			result.CancelReason = err
			result.NotAttempted = total - i
			c.logger.Warn("run cancelled", "remaining", result.NotAttempted, "err", err)
			c.appendAudit(audit.Entry{
				Verb:   audit.VerbError,
				Error:  err.Error(),
				Detail: fmt.Sprintf("cancelled, %d file(s) not attempted", result.NotAttempted),
			})
			break
		}

		out := c.Apply(ctx, rec)
		result.add(out)
		c.reportProgress(progress.PhaseExecuting, result, total, plan.TotalSize, &out)
	}

	result.Duration = time.Since(result.StartTime)
	c.reportProgress(progress.PhaseComplete, result, total, plan.TotalSize, nil)

	return result, nil
}

// Apply archives or deletes a single file and records exactly one audit entry
// for the attempt
func (c *Cleaner) Apply(ctx context.Context, rec scanner.FileRecord) Outcome {
	out := Outcome{Path: rec.Path, Size: rec.Size}

	dest, err := c.apply(ctx, rec)
	out.Dest = dest
	if err != nil {
		actErr := CategorizeError(rec.Path, err)
		if actErr.Dest == "" {
			actErr.Dest = dest
		}
		out.Status = StatusFailed
		out.Err = actErr
		c.logger.Warn("action failed", "path", rec.Path, "reason", actErr.Reason.String(), "err", actErr.Original)
	} else {
		out.Status = StatusSucceeded
		c.logger.Debug("action succeeded", "path", rec.Path, "dest", dest, "mode", c.mode.String())
	}

	c.record(out)
	return out
}

func (c *Cleaner) apply(ctx context.Context, rec scanner.FileRecord) (string, error) {
	if c.root != "" {
		if err := c.validator.ValidateTarget(c.root, rec.Path); err != nil {
			return "", &ActionError{Path: rec.Path, Reason: ErrorInvalidPath, Original: err}
		}
	}

	info, actErr := recheck(rec.Path)
	if actErr != nil {
		return "", actErr
	}

	if c.mode == planner.ModeArchive {
		return c.archive(ctx, rec.Path, info)
	}
	return "", c.retry(ctx, func() error { return c.ops.remove(rec.Path) })
}

// archive moves path into the archive directory under its base name, applying
// the collision policy
func (c *Cleaner) archive(ctx context.Context, path string, info fs.FileInfo) (string, error) {
	if c.archiveDir == "" {
		return "", &ActionError{Path: path, Reason: ErrorInvalidPath, Original: errors.New("no archive directory configured")}
	}

	base := filepath.Base(path)
	var dest string
	for n := 0; n < maxSuffix; n++ {
		dest = filepath.Join(c.archiveDir, suffixName(base, n))

		err := c.move(ctx, path, dest, info)
		if err == nil {
			return dest, nil
		}
		if !isExist(err) {
			return dest, err
		}
		if c.collision != config.CollisionSuffix {
			return dest, &ActionError{
				Path:     path,
				Dest:     dest,
				Reason:   ErrorCollision,
				Original: fmt.Errorf("%w: %s", ErrCollision, dest),
			}
		}
	}

	return dest, &ActionError{
		Path:     path,
		Dest:     dest,
		Reason:   ErrorCollision,
		Original: fmt.Errorf("%w: no free name for %s", ErrCollision, base),
	}
}

// move renames path to dest without replacing dest. Across filesystems it
// copies, syncs and then removes the source; if the source cannot be removed
// the copy is dropped so the file exists exactly once.
func (c *Cleaner) move(ctx context.Context, path, dest string, info fs.FileInfo) error {
	err := c.retry(ctx, func() error { return c.ops.rename(path, dest) })
	if err == nil || !isCrossDevice(err) {
		return err
	}

	c.logger.Debug("cross-device move, copying", "path", path, "dest", dest)

	if err := c.ops.copy(path, dest, info); err != nil {
		if isExist(err) {
			return err
		}
		return &ActionError{Path: path, Dest: dest, Reason: ErrorCrossDevice, Original: err}
	}

	if err := c.retry(ctx, func() error { return c.ops.remove(path) }); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			c.logger.Error("could not drop copy after failed move", "dest", dest, "err", rmErr)
		}
		return err
	}

	return nil
}

// retry runs op until it succeeds, fails with a non-busy error or runs out of
// attempts
func (c *Cleaner) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		if attempt < c.attempts-1 {
			if sleepErr := c.ops.sleep(ctx, c.delay(attempt)); sleepErr != nil {
				return err
			}
		}
	}
	return err
}

func (c *Cleaner) delay(attempt int) time.Duration {
	if len(c.delays) == 0 {
		return 0
	}
	if attempt < len(c.delays) {
		return c.delays[attempt]
	}
	return c.delays[len(c.delays)-1]
}

func isBusy(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// record writes the terminal audit entry for an outcome
func (c *Cleaner) record(out Outcome) {
	e := audit.Entry{Path: out.Path, Dest: out.Dest}
	switch {
	case out.Failed():
		e.Verb = audit.VerbError
		e.Error = out.Err.Original.Error()
		e.Detail = out.Err.Reason.String()
	case c.mode == planner.ModeArchive:
		e.Verb = audit.VerbArchived
	default:
		e.Verb = audit.VerbDeleted
	}
	c.appendAudit(e)
}

func (c *Cleaner) appendAudit(e audit.Entry) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Append(e); err != nil {
		c.logger.Error("audit write failed", "verb", string(e.Verb), "path", e.Path, "err", err)
	}
}

// reportProgress reports action progress to listeners
func (c *Cleaner) reportProgress(phase progress.Phase, r *Result, total int, bytesTotal int64, last *Outcome) {
	if c.progress == nil {
		return
	}

	update := &progress.ActionProgress{
		Phase:      phase,
		Verb:       c.mode.Verb(),
		Done:       len(r.Outcomes),
		Total:      total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		BytesDone:  r.BytesProcessed,
		BytesTotal: bytesTotal,
		StartTime:  r.StartTime,
	}
	if last != nil {
		update.CurrentFile = last.Path
		update.Dest = last.Dest
		if last.Err != nil {
			update.Error = last.Err
		}
	}

	c.progress.UpdateActionProgress(update)
}
