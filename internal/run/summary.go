package run

import (
	"time"

	"github.com/fenilsonani/agesweep/internal/cleaner"
	"github.com/fenilsonani/agesweep/internal/planner"
)

// Summary is what a run reports when it ends
type Summary struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	State      State        `json:"state" yaml:"state"`
	Mode       planner.Mode `json:"mode" yaml:"mode"`
	Root       string       `json:"root" yaml:"root"`
	ArchiveDir string       `json:"archive_dir,omitempty" yaml:"archive_dir,omitempty"`
	AgeDays    int          `json:"age_days" yaml:"age_days"`
	Cutoff     time.Time    `json:"cutoff" yaml:"cutoff"`
	DryRun     bool         `json:"dry_run" yaml:"dry_run"`

	// Scan
	Eligible     int   `json:"eligible" yaml:"eligible"`
	Ineligible   int   `json:"ineligible" yaml:"ineligible"`
	ScanErrors   int   `json:"scan_errors" yaml:"scan_errors"`
	Skipped      int   `json:"skipped" yaml:"skipped"`
	BytesPlanned int64 `json:"bytes_planned" yaml:"bytes_planned"`

	// Execution
	Succeeded      int                    `json:"succeeded" yaml:"succeeded"`
	Failed         int                    `json:"failed" yaml:"failed"`
	NotAttempted   int                    `json:"not_attempted" yaml:"not_attempted"`
	BytesProcessed int64                  `json:"bytes_processed" yaml:"bytes_processed"`
	Cancelled      bool                   `json:"cancelled" yaml:"cancelled"`
	Outcomes       []cleaner.Outcome      `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Errors         []*cleaner.ActionError `json:"-" yaml:"-"`

	AuditPath  string        `json:"audit_path,omitempty" yaml:"audit_path,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}
