package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fenilsonani/agesweep/internal/audit"
	"github.com/fenilsonani/agesweep/internal/platform"
	"github.com/fenilsonani/agesweep/internal/scanner"
	"github.com/fenilsonani/agesweep/internal/security"
)

// CollisionPolicy decides what happens when an archive destination exists
type CollisionPolicy string

const (
	// CollisionFail records a collision error and leaves the source in place
	CollisionFail CollisionPolicy = "fail"
	// CollisionSuffix archives under the first free "name (N).ext"
	CollisionSuffix CollisionPolicy = "suffix"
)

// ParseCollisionPolicy parses a policy name; empty means CollisionFail
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionFail:
		return CollisionFail, nil
	case CollisionSuffix:
		return CollisionSuffix, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q (want fail or suffix)", s)
	}
}

// ConfigError reports an invalid run setting. It is the only error that aborts
// a run, and it is always returned before any file is touched.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Options are the raw, unvalidated inputs for one run
type Options struct {
	Root        string
	ArchiveDir  string
	AgeDays     int
	Collision   string
	Excludes    []string
	Protected   []string
	DryRun      bool
	AuditDir    string
	AuditFormat string
	MetricsFile string
	BusyRetries int
	Now         time.Time // zero means time.Now()
}

// RunConfig is the validated configuration of a single run. It is built once
// by NewRunConfig and only read afterwards.
type RunConfig struct {
	Root         string
	ArchiveDir   string // empty selects delete mode
	AgeDays      int
	AgeDefaulted bool // AgeDays was missing or invalid and fell back to 30
	Now          time.Time
	Cutoff       time.Time
	Collision    CollisionPolicy
	Excludes     []string
	Protected    []string
	DryRun       bool
	AuditDir     string
	AuditFormat  audit.Format
	MetricsFile  string
	BusyRetries  int
}

// Archiving reports whether the run moves files instead of deleting them
func (c RunConfig) Archiving() bool {
	return c.ArchiveDir != ""
}

// Validator returns a path validator that includes the configured protected paths
func (c RunConfig) Validator() *security.PathValidator {
	pv := security.NewPathValidator()
	for _, p := range c.Protected {
		pv.AddProtectedPath(p)
	}
	return pv
}

// NewRunConfig validates opts and returns an immutable RunConfig. The cutoff is
// computed once here and stays fixed for the whole run.
func NewRunConfig(opts Options) (RunConfig, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cfg := RunConfig{
		Now:         now,
		DryRun:      opts.DryRun,
		MetricsFile: opts.MetricsFile,
		BusyRetries: opts.BusyRetries,
	}

	for _, p := range opts.Protected {
		if !filepath.IsAbs(p) {
			return RunConfig{}, &ConfigError{Field: "protected path", Value: p, Err: security.ErrNotAbsolute}
		}
		cfg.Protected = append(cfg.Protected, filepath.Clean(p))
	}
	pv := cfg.Validator()

	root, err := resolveRoot(opts.Root)
	if err != nil {
		return RunConfig{}, &ConfigError{Field: "root", Value: opts.Root, Err: err}
	}
	if err := pv.ValidateRoot(root); err != nil {
		return RunConfig{}, &ConfigError{Field: "root", Value: opts.Root, Err: err}
	}
	cfg.Root = root

	cfg.AgeDays = opts.AgeDays
	if cfg.AgeDays <= 0 {
		cfg.AgeDays = DefaultAgeDays
		cfg.AgeDefaulted = true
	}
	cfg.Cutoff = scanner.Cutoff(now, cfg.AgeDays)

	if strings.TrimSpace(opts.ArchiveDir) != "" {
		archive, err := resolveArchive(opts.ArchiveDir)
		if err != nil {
			return RunConfig{}, &ConfigError{Field: "archive directory", Value: opts.ArchiveDir, Err: err}
		}
		if err := pv.ValidateArchiveDir(root, archive); err != nil {
			return RunConfig{}, &ConfigError{Field: "archive directory", Value: opts.ArchiveDir, Err: err}
		}
		cfg.ArchiveDir = archive
	}

	if cfg.Collision, err = ParseCollisionPolicy(opts.Collision); err != nil {
		return RunConfig{}, &ConfigError{Field: "collision policy", Value: opts.Collision, Err: err}
	}

	for _, pattern := range opts.Excludes {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return RunConfig{}, &ConfigError{Field: "exclude pattern", Value: pattern, Err: err}
		}
		cfg.Excludes = append(cfg.Excludes, pattern)
	}

	if cfg.AuditFormat, err = audit.ParseFormat(opts.AuditFormat); err != nil {
		return RunConfig{}, &ConfigError{Field: "audit format", Value: opts.AuditFormat, Err: err}
	}

	auditDir := opts.AuditDir
	if strings.TrimSpace(auditDir) == "" {
		if auditDir, err = platform.StateDir(); err != nil {
			return RunConfig{}, &ConfigError{Field: "audit directory", Value: opts.AuditDir, Err: err}
		}
	}
	if cfg.AuditDir, err = absPath(auditDir); err != nil {
		return RunConfig{}, &ConfigError{Field: "audit directory", Value: auditDir, Err: err}
	}
	// The scanner prunes the audit directory by exact path, so match Root's form
	if resolved, err := filepath.EvalSymlinks(cfg.AuditDir); err == nil {
		cfg.AuditDir = resolved
	}

	if cfg.BusyRetries < 0 {
		return RunConfig{}, &ConfigError{Field: "busy retries", Value: strconv.Itoa(opts.BusyRetries), Err: errors.New("must be >= 0")}
	}
	if cfg.BusyRetries == 0 {
		cfg.BusyRetries = DefaultBusyRetries
	}

	return cfg, nil
}

// ParseThresholdDays parses an interactive threshold answer. Anything that is
// not a positive integer yields DefaultAgeDays and ok=false so the caller can
// tell the user.
func ParseThresholdDays(input string) (days int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n <= 0 {
		return DefaultAgeDays, false
	}
	return n, true
}

// resolveRoot returns the absolute, symlink-free path of an existing directory
func resolveRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("root directory is required")
	}

	abs, err := absPath(path)
	if err != nil {
		return "", err
	}

	// WalkDir does not descend a symlinked root, so resolve it up front
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", resolved)
	}

	return resolved, nil
}

// resolveArchive returns the absolute archive path. The directory itself may
// not exist yet but its nearest existing ancestor must be a directory the
// process can write to, so it can be created once the run is confirmed.
func resolveArchive(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}

	for dir := abs; ; dir = filepath.Dir(dir) {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("exists and is not a directory: %s", dir)
			}
			if err := checkWritableDir(dir); err != nil {
				return "", err
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	// Resolve symlinks in the existing part so root comparisons are exact
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// absPath expands a leading ~ and returns a clean absolute path
func absPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
