package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fenilsonani/agesweep/internal/audit"
	"github.com/fenilsonani/agesweep/internal/config"
	"github.com/fenilsonani/agesweep/internal/lock"
	"github.com/fenilsonani/agesweep/internal/metrics"
	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/testutil"
)

// =============================================================================
// Helpers
// =============================================================================

type configOpt func(*config.Options)

func archiving(f *testutil.TestFixture) configOpt {
	return func(o *config.Options) { o.ArchiveDir = f.ArchiveDir }
}

func dryRun(o *config.Options) { o.DryRun = true }

func newConfig(t *testing.T, f *testutil.TestFixture, opts ...configOpt) config.RunConfig {
	t.Helper()
	o := config.Options{
		Root:     f.TreeDir,
		AgeDays:  30,
		AuditDir: f.AuditDir,
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := config.NewRunConfig(o)
	if err != nil {
		t.Fatalf("NewRunConfig() error = %v", err)
	}
	return cfg
}

func memoryAudit() (*audit.Log, *audit.MemorySink) {
	sink := audit.NewMemorySink()
	return audit.New(sink), sink
}

func verbCounts(entries []audit.Entry) map[audit.Verb]int {
	counts := make(map[audit.Verb]int)
	for _, e := range entries {
		counts[e.Verb]++
	}
	return counts
}

func recordStates(c *Controller) *[]State {
	var states []State
	c.Subscribe(func(_, to State) {
		states = append(states, to)
	})
	return &states
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// End-to-end runs
// =============================================================================

func TestRun_ArchiveScenario(t *testing.T) {
	f := testutil.NewFixture(t)
	fresh := f.CreateTreeFile("a.txt", 5)
	f.CreateTreeFile("b.txt", 40)
	f.CreateTreeFile("c.txt", 100)

	c := New(newConfig(t, f, archiving(f)), Deps{Confirmer: planner.AutoConfirm})
	states := recordStates(c)

	sum, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []State{StateScanning, StatePlanning, StateAwaitingConfirmation, StateExecuting, StateFinishedSummary}
	if !equalStates(*states, want) {
		t.Errorf("states = %v, want %v", *states, want)
	}
	if c.State() != StateFinishedSummary || sum.State != StateFinishedSummary {
		t.Errorf("final state = %v / %v", c.State(), sum.State)
	}
	if sum.Eligible != 2 || sum.Ineligible != 1 || sum.Succeeded != 2 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Mode != planner.ModeArchive {
		t.Errorf("Mode = %v, want archive", sum.Mode)
	}

	f.AssertFileExists(fresh)
	f.AssertFileExists(filepath.Join(f.ArchiveDir, "b.txt"))
	f.AssertFileExists(filepath.Join(f.ArchiveDir, "c.txt"))
	f.AssertFileNotExists(filepath.Join(f.TreeDir, "b.txt"))
	f.AssertFileNotExists(filepath.Join(f.TreeDir, "c.txt"))

	if sum.AuditPath == "" || filepath.Dir(sum.AuditPath) != f.AuditDir {
		t.Fatalf("AuditPath = %q, want a file in %s", sum.AuditPath, f.AuditDir)
	}
	data, err := os.ReadFile(sum.AuditPath)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	if got := strings.Count(string(data), "Archived: "); got != 2 {
		t.Errorf("audit file has %d Archived lines, want 2:\n%s", got, data)
	}
}

func TestRun_DeclinedLeavesTreeIdentical(t *testing.T) {
	tests := []struct {
		name      string
		confirmer planner.Confirmer
		opts      []configOpt
	}{
		{"declined", planner.Decline, nil},
		{"dry run", planner.AutoConfirm, []configOpt{dryRun}},
		{"no confirmer", nil, nil},
		{
			"confirmer error",
			planner.ConfirmerFunc(func(context.Context, *planner.Plan) (bool, error) {
				return true, errors.New("stdin closed")
			}),
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFixture(t)
			f.CreateTreeFile("a.txt", 5)
			f.CreateTreeFile("b.txt", 40)
			f.CreateTreeFile("sub/c.txt", 100)
			before := f.Snapshot(f.TreeDir)

			opts := append([]configOpt{archiving(f)}, tt.opts...)
			auditLog, sink := memoryAudit()
			c := New(newConfig(t, f, opts...), Deps{Confirmer: tt.confirmer, Audit: auditLog})

			sum, err := c.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if sum.State != StateFinishedDeclined {
				t.Errorf("State = %v, want finished-declined", sum.State)
			}
			if sum.Succeeded != 0 || sum.Failed != 0 {
				t.Errorf("declined run acted: %+v", sum)
			}

			if after := f.Snapshot(f.TreeDir); after != before {
				t.Errorf("tree changed:\nbefore:\n%s\nafter:\n%s", before, after)
			}
			if f.FileExists(f.ArchiveDir) {
				t.Error("archive directory was created")
			}

			counts := verbCounts(sink.Entries())
			if counts[audit.VerbDeclined] != 1 || counts[audit.VerbArchived] != 0 {
				t.Errorf("audit verbs = %v", counts)
			}
		})
	}
}

func TestRun_Empty(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateTreeFile("fresh.txt", 1)

	asked := false
	confirmer := planner.ConfirmerFunc(func(context.Context, *planner.Plan) (bool, error) {
		asked = true
		return true, nil
	})

	auditLog, sink := memoryAudit()
	c := New(newConfig(t, f), Deps{Confirmer: confirmer, Audit: auditLog})
	states := recordStates(c)

	sum, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if asked {
		t.Error("confirmer called for an empty plan")
	}
	if sum.State != StateFinishedEmpty {
		t.Errorf("State = %v, want finished-empty", sum.State)
	}
	want := []State{StateScanning, StatePlanning, StateFinishedEmpty}
	if !equalStates(*states, want) {
		t.Errorf("states = %v, want %v", *states, want)
	}

	counts := verbCounts(sink.Entries())
	if counts[audit.VerbRunStart] != 1 || counts[audit.VerbRunEnd] != 1 || counts[audit.VerbScanned] != 0 {
		t.Errorf("audit verbs = %v", counts)
	}
}

func TestRun_DeletePostcondition(t *testing.T) {
	f := testutil.NewFixture(t)
	keep := []string{
		f.CreateTreeFile("new.txt", 2),
		f.CreateTreeFile("deep/newer.txt", 10),
	}
	drop := []string{
		f.CreateTreeFile("old.txt", 31),
		f.CreateTreeFile("deep/older.txt", 365),
	}

	auditLog, sink := memoryAudit()
	c := New(newConfig(t, f), Deps{Confirmer: planner.AutoConfirm, Audit: auditLog})

	sum, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Mode != planner.ModeDelete || sum.Succeeded != 2 {
		t.Errorf("summary = %+v", sum)
	}

	for _, p := range keep {
		f.AssertFileExists(p)
	}
	for _, p := range drop {
		f.AssertFileNotExists(p)
	}
	if got := verbCounts(sink.Entries())[audit.VerbDeleted]; got != 2 {
		t.Errorf("DELETED entries = %d, want 2", got)
	}
}

func TestRun_PartialFailure(t *testing.T) {
	testutil.SkipIfRoot(t)
	testutil.SkipOnWindows(t)

	f := testutil.NewFixture(t)
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "locked/e.txt"} {
		f.CreateTreeFile(name, 40)
	}
	f.CreateReadOnlyDir("tree/locked")

	auditLog, sink := memoryAudit()
	c := New(newConfig(t, f), Deps{Confirmer: planner.AutoConfirm, Audit: auditLog})

	sum, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Succeeded != 4 || sum.Failed != 1 {
		t.Errorf("summary = %d succeeded, %d failed, want 4 and 1", sum.Succeeded, sum.Failed)
	}
	if sum.State != StateFinishedSummary {
		t.Errorf("State = %v", sum.State)
	}

	entries := sink.Entries()
	counts := verbCounts(entries)
	if counts[audit.VerbScanned] != 5 || counts[audit.VerbDeleted] != 4 || counts[audit.VerbError] != 1 {
		t.Errorf("audit verbs = %v", counts)
	}

	attempts := counts[audit.VerbDeleted] + counts[audit.VerbError]
	if len(entries) < sum.ScanErrors+attempts {
		t.Errorf("audit entries = %d, want at least %d", len(entries), sum.ScanErrors+attempts)
	}
}

func TestRun_ScanErrorsAreAudited(t *testing.T) {
	testutil.SkipIfRoot(t)
	testutil.SkipOnWindows(t)

	f := testutil.NewFixture(t)
	f.CreateTreeFile("old.txt", 40)
	f.CreateTreeFile("closed/hidden.txt", 40)
	f.CreateUnreadableDir("tree/closed")

	auditLog, sink := memoryAudit()
	c := New(newConfig(t, f), Deps{Confirmer: planner.Decline, Audit: auditLog})

	sum, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.ScanErrors != 1 {
		t.Errorf("ScanErrors = %d, want 1", sum.ScanErrors)
	}

	var found bool
	for _, e := range sink.Entries() {
		if e.Verb == audit.VerbError && e.Detail == "scan" && strings.HasSuffix(e.Path, "closed") {
			found = true
		}
	}
	if !found {
		t.Errorf("no scan ERROR entry in %+v", sink.Entries())
	}
}

func TestRun_ArchiveSetupFailureEndsWithSummary(t *testing.T) {
	f := testutil.NewFixture(t)
	old := f.CreateTreeFile("old.txt", 40)
	parent := f.CreateDir("arch-parent")

	cfg := newConfig(t, f, func(o *config.Options) { o.ArchiveDir = filepath.Join(parent, "archive") })

	// The parent turns into a file between configuration and execution
	if err := os.Remove(parent); err != nil {
		t.Fatal(err)
	}
	f.CreateFile("arch-parent", []byte("x"))

	auditLog, sink := memoryAudit()
	c := New(cfg, Deps{Confirmer: planner.AutoConfirm, Audit: auditLog})

	sum, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("Run() succeeded with an uncreatable archive directory")
	}
	if c.State() != StateFinishedSummary || sum.State != StateFinishedSummary {
		t.Errorf("final state = %v / %v, want finished-summary", c.State(), sum.State)
	}
	if !sum.State.Terminal() {
		t.Error("run ended in a non-terminal state")
	}
	if sum.Succeeded != 0 || sum.Failed != 0 || sum.NotAttempted != 1 {
		t.Errorf("summary = %d succeeded, %d failed, %d not attempted, want 0/0/1",
			sum.Succeeded, sum.Failed, sum.NotAttempted)
	}
	f.AssertFileExists(old)

	counts := verbCounts(sink.Entries())
	if counts[audit.VerbError] != 1 || counts[audit.VerbRunEnd] != 1 {
		t.Errorf("audit verbs = %v", counts)
	}
}

func TestRun_ConfirmerSeesPlan(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateTreeFile("a.txt", 40)
	f.CreateTreeFile("b.txt", 40)

	var seen *planner.Plan
	confirmer := planner.ConfirmerFunc(func(_ context.Context, p *planner.Plan) (bool, error) {
		seen = p
		return false, nil
	})

	auditLog, _ := memoryAudit()
	c := New(newConfig(t, f, archiving(f)), Deps{Confirmer: confirmer, Audit: auditLog})
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if seen == nil || seen.Count != 2 || seen.Verb != "archive" || seen.ArchiveDir != f.ArchiveDir {
		t.Errorf("confirmer saw plan %+v", seen)
	}
	if c.Plan() != seen {
		t.Error("Plan() differs from the confirmed plan")
	}
}

func TestRun_CancelledBeforeScan(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateTreeFile("old.txt", 40)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auditLog, sink := memoryAudit()
	c := New(newConfig(t, f), Deps{Confirmer: planner.AutoConfirm, Audit: auditLog})

	_, err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	f.AssertFileExists(filepath.Join(f.TreeDir, "old.txt"))

	counts := verbCounts(sink.Entries())
	if counts[audit.VerbError] != 1 || counts[audit.VerbRunEnd] != 1 {
		t.Errorf("audit verbs = %v", counts)
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	f := testutil.NewFixture(t)
	auditLog, _ := memoryAudit()
	c := New(newConfig(t, f), Deps{Audit: auditLog})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := c.Run(context.Background()); err == nil {
		t.Error("second Run() succeeded")
	}
}

func TestRun_AuditDirLocked(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateTreeFile("old.txt", 40)

	held, err := lock.Acquire(lock.PathFor(f.AuditDir))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	c := New(newConfig(t, f), Deps{Confirmer: planner.AutoConfirm})
	if _, err := c.Run(context.Background()); !errors.Is(err, lock.ErrLocked) {
		t.Fatalf("Run() error = %v, want ErrLocked", err)
	}
	f.AssertFileExists(filepath.Join(f.TreeDir, "old.txt"))
	if c.State() != StateConfiguring {
		t.Errorf("State = %v, want configuring", c.State())
	}
}

func TestRun_WritesMetrics(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateTreeFile("old.txt", 40)
	metricsFile := f.Path("agesweep.prom")

	cfg := newConfig(t, f, func(o *config.Options) { o.MetricsFile = metricsFile })
	auditLog, _ := memoryAudit()
	c := New(cfg, Deps{Confirmer: planner.AutoConfirm, Audit: auditLog, Metrics: metrics.New()})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	for _, want := range []string{
		`agesweep_actions_total{action="delete",result="succeeded"} 1`,
		`agesweep_run_outcome{state="finished-summary"} 1`,
		`agesweep_files_classified_total{class="eligible"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q:\n%s", want, data)
		}
	}
}

// =============================================================================
// State machine
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateConfiguring, StateScanning, true},
		{StateScanning, StatePlanning, true},
		{StatePlanning, StateAwaitingConfirmation, true},
		{StatePlanning, StateFinishedEmpty, true},
		{StateAwaitingConfirmation, StateExecuting, true},
		{StateAwaitingConfirmation, StateFinishedDeclined, true},
		{StateExecuting, StateFinishedSummary, true},
		{StateScanning, StateConfiguring, false},
		{StateExecuting, StateAwaitingConfirmation, false},
		{StateFinishedSummary, StateScanning, false},
		{StatePlanning, StateExecuting, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	for s := StateConfiguring; s <= StateFinishedSummary; s++ {
		want := s == StateFinishedEmpty || s == StateFinishedDeclined || s == StateFinishedSummary
		if s.Terminal() != want {
			t.Errorf("%v.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
		if s.String() == "unknown" {
			t.Errorf("State(%d) has no name", s)
		}
	}
}
