package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/agesweep/internal/cleaner"
	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/run"
	"github.com/fenilsonani/agesweep/internal/scanner"
	"github.com/fenilsonani/agesweep/internal/ui/styles"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat parses an --output value; empty means summary
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatSummary, nil
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want summary, table, json or yaml)", s)
	}
}

// Structured reports whether the format is meant for machines
func (f OutputFormat) Structured() bool {
	return f == FormatJSON || f == FormatYAML
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
	now    func() time.Time
}

// New creates a new Reporter
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
		now:    time.Now,
	}
}

// =============================================================================
// Scan reports
// =============================================================================

type scanReport struct {
	Timestamp         string                 `json:"timestamp" yaml:"timestamp"`
	Root              string                 `json:"root" yaml:"root"`
	Cutoff            time.Time              `json:"cutoff" yaml:"cutoff"`
	TotalFiles        int                    `json:"total_files" yaml:"total_files"`
	EligibleSize      int64                  `json:"eligible_size" yaml:"eligible_size"`
	EligibleSizeHuman string                 `json:"eligible_size_formatted" yaml:"eligible_size_formatted"`
	Eligible          []scanner.FileRecord   `json:"eligible" yaml:"eligible"`
	Ineligible        int                    `json:"ineligible" yaml:"ineligible"`
	Skipped           []scanner.SkippedEntry `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Errors            []string               `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// ReportScan reports a classification without acting on it
func (r *Reporter) ReportScan(result *scanner.ScanResult) error {
	switch r.format {
	case FormatTable:
		return r.scanTable(result)
	case FormatJSON, FormatYAML:
		report := scanReport{
			Timestamp:         r.now().Format(time.RFC3339),
			Root:              result.Root,
			Cutoff:            result.Cutoff,
			TotalFiles:        result.TotalFiles(),
			EligibleSize:      result.TotalSize,
			EligibleSizeHuman: humanize.Bytes(uint64(result.TotalSize)),
			Eligible:          result.Eligible,
			Ineligible:        len(result.Ineligible),
			Skipped:           result.Skipped,
		}
		for _, e := range result.Errors {
			report.Errors = append(report.Errors, e.Error())
		}
		return r.encode(report)
	case FormatSummary:
		return r.scanSummary(result)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) scanSummary(result *scanner.ScanResult) error {
	fmt.Fprintln(r.writer, styles.TitleStyle.Render("=== Scan Summary ==="))
	fmt.Fprintf(r.writer, "Root: %s\n", result.Root)
	fmt.Fprintf(r.writer, "Cutoff: %s\n", result.Cutoff.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.writer, "Total Files: %d\n", result.TotalFiles())
	fmt.Fprintf(r.writer, "Eligible: %d (%s)\n", len(result.Eligible), humanize.Bytes(uint64(result.TotalSize)))
	fmt.Fprintf(r.writer, "Kept: %d\n", len(result.Ineligible))

	if len(result.Skipped) > 0 {
		fmt.Fprintf(r.writer, "Skipped: %d\n", len(result.Skipped))
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(r.writer, "\nErrors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(r.writer, "  %s\n", styles.ErrorStyle.Render(e.Error()))
		}
	}

	return nil
}

func (r *Reporter) scanTable(result *scanner.ScanResult) error {
	r.fileTable(result.Eligible)
	fmt.Fprintf(r.writer, "Total: %d files, %s\n", len(result.Eligible), humanize.Bytes(uint64(result.TotalSize)))
	return nil
}

// fileTable prints path, size, modification time and age per record
func (r *Reporter) fileTable(files []scanner.FileRecord) {
	rule := strings.Repeat("-", 120)
	fmt.Fprintf(r.writer, "%-60s | %-10s | %-19s | %s\n", "Path", "Size", "Modified", "Age")
	fmt.Fprintln(r.writer, rule)

	now := r.now()
	for _, file := range files {
		path := file.Path
		if len(path) > 60 {
			path = "..." + path[len(path)-57:]
		}

		fmt.Fprintf(r.writer, "%-60s | %-10s | %-19s | %s\n",
			path,
			humanize.Bytes(uint64(file.Size)),
			file.ModTime.Format("2006-01-02 15:04:05"),
			humanize.RelTime(file.ModTime, now, "ago", "from now"))
	}

	fmt.Fprintln(r.writer, rule)
}

// =============================================================================
// Plan reports
// =============================================================================

// ReportPlan reports what a run is about to do
func (r *Reporter) ReportPlan(plan *planner.Plan) error {
	switch r.format {
	case FormatTable:
		fmt.Fprintln(r.writer, plan.Headline())
		r.fileTable(plan.Files)
		return nil
	case FormatJSON, FormatYAML:
		return r.encode(plan)
	case FormatSummary:
		if plan.Empty() {
			fmt.Fprintln(r.writer, "No files found matching criteria.")
			return nil
		}
		fmt.Fprintf(r.writer, "%s:\n", plan.Headline())
		for _, f := range plan.Files {
			fmt.Fprintf(r.writer, "  - %s\n", styles.FilePathStyle.Render(f.Path))
		}
		if plan.ArchiveDir != "" {
			fmt.Fprintf(r.writer, "Destination: %s\n", plan.ArchiveDir)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// =============================================================================
// Run summaries
// =============================================================================

type outcomeRow struct {
	Path   string `json:"path" yaml:"path"`
	Dest   string `json:"dest,omitempty" yaml:"dest,omitempty"`
	Status string `json:"status" yaml:"status"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type summaryReport struct {
	run.Summary  `yaml:",inline"`
	DurationText string       `json:"duration_formatted" yaml:"duration_formatted"`
	Results      []outcomeRow `json:"results,omitempty" yaml:"results,omitempty"`
}

// ReportSummary reports how a run ended
func (r *Reporter) ReportSummary(sum *run.Summary) error {
	switch r.format {
	case FormatTable:
		return r.summaryTable(sum)
	case FormatJSON, FormatYAML:
		// Outcomes are reported as flat result rows
		trimmed := *sum
		trimmed.Outcomes = nil
		report := summaryReport{
			Summary:      trimmed,
			DurationText: humanizeDuration(sum.Duration),
		}
		for _, out := range sum.Outcomes {
			row := outcomeRow{Path: out.Path, Dest: out.Dest, Status: out.Status.String()}
			if out.Err != nil {
				row.Reason = out.Err.Reason.String()
				row.Error = out.Err.Original.Error()
			}
			report.Results = append(report.Results, row)
		}
		return r.encode(report)
	case FormatSummary:
		return r.summaryText(sum)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) summaryText(sum *run.Summary) error {
	fmt.Fprintln(r.writer, styles.TitleStyle.Render("=== Run Summary ==="))
	fmt.Fprintf(r.writer, "Result: %s\n", stateText(sum))
	fmt.Fprintf(r.writer, "Mode: %s\n", sum.Mode)
	fmt.Fprintf(r.writer, "Root: %s\n", sum.Root)
	if sum.ArchiveDir != "" {
		fmt.Fprintf(r.writer, "Archive: %s\n", sum.ArchiveDir)
	}
	fmt.Fprintf(r.writer, "Eligible: %d of %d files older than %d days (%s)\n",
		sum.Eligible, sum.Eligible+sum.Ineligible, sum.AgeDays, humanize.Bytes(uint64(sum.BytesPlanned)))

	if sum.State == run.StateFinishedSummary {
		fmt.Fprintf(r.writer, "Succeeded: %s\n", styles.SuccessStyle.Render(fmt.Sprint(sum.Succeeded)))
		failed := fmt.Sprint(sum.Failed)
		if sum.Failed > 0 {
			failed = styles.ErrorStyle.Render(failed)
		}
		fmt.Fprintf(r.writer, "Failed: %s\n", failed)
		if sum.NotAttempted > 0 {
			fmt.Fprintf(r.writer, "Not attempted: %s\n", styles.WarningStyle.Render(fmt.Sprint(sum.NotAttempted)))
		}
		fmt.Fprintf(r.writer, "Processed: %s\n", humanize.Bytes(uint64(sum.BytesProcessed)))
	}
	if sum.ScanErrors > 0 {
		fmt.Fprintf(r.writer, "Scan errors: %d\n", sum.ScanErrors)
	}
	if sum.Skipped > 0 {
		fmt.Fprintf(r.writer, "Skipped entries: %d\n", sum.Skipped)
	}
	fmt.Fprintf(r.writer, "Duration: %s\n", humanizeDuration(sum.Duration))
	if sum.AuditPath != "" {
		fmt.Fprintf(r.writer, "Audit log: %s\n", sum.AuditPath)
	}

	if summary := cleaner.FormatErrorSummary(sum.Errors); summary != "" {
		fmt.Fprint(r.writer, summary)
	}

	return nil
}

func (r *Reporter) summaryTable(sum *run.Summary) error {
	fmt.Fprintf(r.writer, "%-8s | %-60s | %s\n", "Status", "Path", "Destination / Error")
	fmt.Fprintln(r.writer, strings.Repeat("-", 120))

	for _, out := range sum.Outcomes {
		path := out.Path
		if len(path) > 60 {
			path = "..." + path[len(path)-57:]
		}
		detail := out.Dest
		status := "ok"
		if out.Failed() {
			status = "failed"
			detail = out.Err.UserMessage()
		}
		fmt.Fprintf(r.writer, "%-8s | %-60s | %s\n", status, path, detail)
	}

	fmt.Fprintln(r.writer, strings.Repeat("-", 120))
	fmt.Fprintf(r.writer, "%s: %d succeeded, %d failed, %d not attempted\n",
		stateText(sum), sum.Succeeded, sum.Failed, sum.NotAttempted)
	return nil
}

func stateText(sum *run.Summary) string {
	switch sum.State {
	case run.StateFinishedEmpty:
		return "nothing to do"
	case run.StateFinishedDeclined:
		if sum.DryRun {
			return "dry run, no files were modified"
		}
		return "cancelled, no files were modified"
	case run.StateFinishedSummary:
		if sum.Cancelled {
			return "interrupted"
		}
		return "complete"
	default:
		return sum.State.String()
	}
}

func humanizeDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func (r *Reporter) encode(v any) error {
	switch r.format {
	case FormatJSON:
		encoder := json.NewEncoder(r.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		encoder := yaml.NewEncoder(r.writer)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}
