package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/agesweep/internal/config"
	"github.com/fenilsonani/agesweep/internal/console"
	"github.com/fenilsonani/agesweep/internal/logging"
	"github.com/fenilsonani/agesweep/internal/metrics"
	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/platform"
	"github.com/fenilsonani/agesweep/internal/progress"
	"github.com/fenilsonani/agesweep/internal/reporter"
	"github.com/fenilsonani/agesweep/internal/run"
	"github.com/fenilsonani/agesweep/internal/scanner"
	"github.com/fenilsonani/agesweep/internal/ui"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// errRunIncomplete makes the process exit non-zero after the summary was printed
var errRunIncomplete = errors.New("run did not complete")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRunIncomplete) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// globalOptions are the persistent flags
type globalOptions struct {
	configPath string
	verbose    bool
	logLevel   string
}

// runOptions are the flags of the run and scan commands
type runOptions struct {
	root        string
	archive     string
	days        int
	yes         bool
	dryRun      bool
	tui         bool
	collision   string
	excludes    []string
	auditDir    string
	auditFormat string
	metricsFile string
	output      string
	busyRetries int
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "agesweep",
		Short: "Archive or delete files older than a threshold",
		Long: `agesweep scans a folder for files that have not been modified for a
number of days, shows what it found and, once confirmed, moves them to an
archive folder or deletes them. Every run is recorded in an audit log.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file path (default ~/.config/agesweep/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(g))
	rootCmd.AddCommand(newScanCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))

	return rootCmd
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan, confirm, then archive or delete old files",
		Long: `Scans the root folder and lists every file older than the threshold.
Nothing is modified until the list is confirmed. Missing options are asked for
interactively.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, g, o)
		},
	}

	addScanFlags(cmd, o)
	cmd.Flags().StringVar(&o.archive, "archive", "", "move files here instead of deleting them")
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "show what would be done without modifying anything")
	cmd.Flags().BoolVar(&o.tui, "tui", false, "confirm on a full-screen terminal UI")
	cmd.Flags().StringVar(&o.collision, "collision", "", "archive name collision policy (fail, suffix)")
	cmd.Flags().StringVar(&o.auditDir, "audit-dir", "", "directory for audit logs")
	cmd.Flags().StringVar(&o.auditFormat, "audit-format", "", "audit log format (text, jsonl, sqlite)")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	cmd.Flags().IntVar(&o.busyRetries, "busy-retries", 0, "attempts for files reported busy")

	return cmd
}

func newScanCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List files older than the threshold without touching them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, g, o)
		},
	}

	addScanFlags(cmd, o)
	_ = cmd.MarkFlagRequired("root")

	return cmd
}

func addScanFlags(cmd *cobra.Command, o *runOptions) {
	cmd.Flags().StringVar(&o.root, "root", "", "folder to scan")
	cmd.Flags().IntVar(&o.days, "days", 0, "age threshold in days (default 30)")
	cmd.Flags().StringArrayVar(&o.excludes, "exclude", nil, "glob pattern to skip, relative to the root (repeatable)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "summary", "output format (summary, table, json, yaml)")
}

func newConfigCmd(g *globalOptions) *cobra.Command {
	var initFile bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display current configuration",
		Long:  `Shows the config file in use and the effective configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfgPath, err := configPath(g)
			if err != nil {
				return err
			}
			if initFile {
				if g.configPath != "" {
					return errors.New("--init writes the default location; drop --config")
				}
				if cfgPath, err = config.EnsureConfigExists(); err != nil {
					return fmt.Errorf("failed to create config file: %w", err)
				}
			}

			fmt.Fprintf(out, "Config file: %s\n", cfgPath)
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "Config file does not exist. Using default configuration.")
				fmt.Fprintln(out, "Run 'agesweep config --init' to create one.")
			}

			if info, err := platform.GetInfo(); err == nil {
				fmt.Fprintf(out, "Platform: %s (user %s)\n", info.OS, info.Username)
				fmt.Fprintf(out, "Default audit directory: %s\n", info.StateDir)
			}

			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintf(out, "\n%s", data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&initFile, "init", false, "create a commented default config file if none exists")

	return cmd
}

// runSweep performs one full run
func runSweep(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	format, err := reporter.ParseFormat(o.output)
	if err != nil {
		return err
	}
	logger, err := newLogger(g)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Keep stdout machine-readable for structured output
	out := cmd.OutOrStdout()
	chatter := out
	if format.Structured() {
		chatter = cmd.ErrOrStderr()
	}

	printer := console.NewPrinter(chatter)
	prompter := console.NewPrompter(cmd.InOrStdin(), chatter)
	printer.Banner()

	opts, err := sweepOptions(ctx, cmd, cfg, o, prompter)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printer.Interrupted(err)
			return errRunIncomplete
		}
		return err
	}

	rc, err := config.NewRunConfig(opts)
	if err != nil {
		return err
	}
	logger.Debug("run configured",
		"root", rc.Root,
		"archive", rc.ArchiveDir,
		"age_days", rc.AgeDays,
		"cutoff", rc.Cutoff,
		"audit_dir", rc.AuditDir)

	var confirmer planner.Confirmer = prompter
	switch {
	case o.yes:
		confirmer = planner.AutoConfirm
	case o.tui:
		confirmer = ui.NewConfirmer(nil, nil)
	}

	pr := progress.NewReporter()
	pr.Subscribe(printer.Progress)

	ctl := run.New(rc, run.Deps{
		Confirmer: confirmer,
		Logger:    logger,
		Progress:  pr,
		Metrics:   metrics.New(),
	})
	ctl.Subscribe(printer.Transition(rc))

	sum, runErr := ctl.Run(ctx)
	if sum == nil {
		return runErr
	}

	if err := reporter.New(out, format).ReportSummary(sum); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if runErr != nil {
		logger.Error("run failed", "err", runErr)
		printer.Interrupted(runErr)
		return errRunIncomplete
	}
	printer.Finish(sum)

	if sum.Cancelled {
		return errRunIncomplete
	}
	return nil
}

// sweepOptions merges flags over the config file. Without --root the run is
// interactive and asks for the folder, archive and threshold not given as
// flags.
func sweepOptions(ctx context.Context, cmd *cobra.Command, cfg *config.Config, o *runOptions, p *console.Prompter) (config.Options, error) {
	opts := config.Options{
		Root:        o.root,
		ArchiveDir:  cfg.ArchiveDir,
		AgeDays:     cfg.AgeThresholdDays,
		Collision:   cfg.CollisionPolicy,
		Excludes:    append(append([]string{}, cfg.ExcludePattern...), o.excludes...),
		Protected:   cfg.ProtectedPaths,
		DryRun:      o.dryRun,
		AuditDir:    cfg.Audit.Dir,
		AuditFormat: cfg.Audit.Format,
		MetricsFile: cfg.MetricsFile,
		BusyRetries: cfg.BusyRetries,
	}

	flags := cmd.Flags()
	if flags.Changed("archive") {
		opts.ArchiveDir = o.archive
	}
	if flags.Changed("days") {
		opts.AgeDays = o.days
	}
	if flags.Changed("collision") {
		opts.Collision = o.collision
	}
	if flags.Changed("audit-dir") {
		opts.AuditDir = o.auditDir
	}
	if flags.Changed("audit-format") {
		opts.AuditFormat = o.auditFormat
	}
	if flags.Changed("metrics-file") {
		opts.MetricsFile = o.metricsFile
	}
	if flags.Changed("busy-retries") {
		opts.BusyRetries = o.busyRetries
	}

	if opts.Root != "" {
		return opts, nil
	}

	var err error
	if opts.Root, err = p.AskRoot(ctx); err != nil {
		return opts, err
	}
	if !flags.Changed("archive") {
		if opts.ArchiveDir, err = p.AskArchive(ctx); err != nil {
			return opts, err
		}
	}
	if !flags.Changed("days") {
		if opts.AgeDays, err = p.AskDays(ctx); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// runScan reports what a run would find without opening an audit log
func runScan(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	format, err := reporter.ParseFormat(o.output)
	if err != nil {
		return err
	}
	logger, err := newLogger(g)
	if err != nil {
		return err
	}

	days := cfg.AgeThresholdDays
	if cmd.Flags().Changed("days") {
		days = o.days
	}
	rc, err := config.NewRunConfig(config.Options{
		Root:        o.root,
		ArchiveDir:  cfg.ArchiveDir,
		AgeDays:     days,
		Collision:   cfg.CollisionPolicy,
		Excludes:    append(append([]string{}, cfg.ExcludePattern...), o.excludes...),
		Protected:   cfg.ProtectedPaths,
		AuditDir:    cfg.Audit.Dir,
		AuditFormat: cfg.Audit.Format,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := scanner.New(
		scanner.WithExcludes(rc.Excludes...),
		scanner.WithPrune(rc.ArchiveDir, rc.AuditDir),
		scanner.WithLogger(logger),
	)
	result, err := s.Scan(ctx, rc.Root, rc.Cutoff)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := reporter.New(cmd.OutOrStdout(), format).ReportScan(result); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return nil
}

func configPath(g *globalOptions) (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.GetConfigPath()
}

func loadConfig(g *globalOptions) (*config.Config, error) {
	cfgPath, err := configPath(g)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.LoadEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(g *globalOptions) (*slog.Logger, error) {
	if g.verbose {
		return logging.ForTerminal(os.Stderr, true), nil
	}
	level, err := logging.ParseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, logging.Options{Level: level, Color: logging.ColorEnabled(os.Stderr)}), nil
}
