package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fenilsonani/agesweep/internal/logging"
)

// Scanner walks a directory tree and classifies regular files by age.
// Symbolic links are never followed.
type Scanner struct {
	excludes []string
	prune    []string
	progress ProgressCallback
	logger   *slog.Logger
	stat     func(fs.DirEntry) (fs.FileInfo, error)
}

// Option configures a Scanner
type Option func(*Scanner)

// WithExcludes sets doublestar patterns matched against root-relative paths
func WithExcludes(patterns ...string) Option {
	return func(s *Scanner) {
		s.excludes = append(s.excludes, patterns...)
	}
}

// WithPrune sets directories that are never descended into
func WithPrune(dirs ...string) Option {
	return func(s *Scanner) {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			s.prune = append(s.prune, filepath.Clean(dir))
		}
	}
}

// WithProgress sets a callback invoked for every classified file
func WithProgress(cb ProgressCallback) Option {
	return func(s *Scanner) {
		s.progress = cb
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a new Scanner
func New(opts ...Option) *Scanner {
	s := &Scanner{
		logger: logging.Discard(),
		stat:   fs.DirEntry.Info,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root and classifies every regular file against cutoff.
// Per-entry failures are recorded in the result and never stop the walk; only
// an unreadable root or a cancelled context returns an error.
func (s *Scanner) Scan(ctx context.Context, root string, cutoff time.Time) (*ScanResult, error) {
	root = filepath.Clean(root)
	result := &ScanResult{
		Root:       root,
		Cutoff:     cutoff,
		Eligible:   []FileRecord{},
		Ineligible: []FileRecord{},
		Errors:     []*ScanError{},
		Skipped:    []SkippedEntry{},
	}

	info, err := os.Stat(root)
	if err != nil {
		return result, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("root is not a directory: %s", root)
	}

	seen := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// Unreadable directory or vanished entry
			s.logger.Debug("scan error", "path", path, "err", walkErr)
			result.Errors = append(result.Errors, &ScanError{Path: path, Err: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && s.shouldPrune(root, path) {
				s.logger.Debug("pruned directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(root, path) {
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: SkipExcluded})
			return nil
		}

		mode := d.Type()
		switch {
		case mode&fs.ModeSymlink != 0:
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: SkipSymlink})
			return nil
		case !mode.IsRegular():
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: SkipSpecial})
			return nil
		}

		fi, err := s.stat(d)
		if err != nil {
			s.logger.Debug("stat failed", "path", path, "err", err)
			result.Errors = append(result.Errors, &ScanError{Path: path, Err: err})
			return nil
		}

		rec := FileRecord{
			Path:    path,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		}

		if IsEligible(rec.ModTime, cutoff) {
			result.Eligible = append(result.Eligible, rec)
			result.TotalSize += rec.Size
		} else {
			result.Ineligible = append(result.Ineligible, rec)
		}

		seen++
		if s.progress != nil {
			s.progress(path, seen, len(result.Eligible))
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		return result, fmt.Errorf("walk %s: %w", root, err)
	}

	return result, nil
}

// shouldPrune checks if a directory is one of the pruned directories or matches
// an exclude pattern
func (s *Scanner) shouldPrune(root, dir string) bool {
	clean := filepath.Clean(dir)
	for _, p := range s.prune {
		if clean == p {
			return true
		}
	}
	return s.isExcluded(root, dir)
}

// isExcluded matches the root-relative, slash-separated path against the
// exclude patterns
func (s *Scanner) isExcluded(root, path string) bool {
	if len(s.excludes) == 0 {
		return false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	normalized := filepath.ToSlash(rel)

	for _, pattern := range s.excludes {
		if pattern == "" {
			continue
		}
		ok, err := doublestar.Match(pattern, normalized)
		if err == nil && ok {
			return true
		}
	}
	return false
}
