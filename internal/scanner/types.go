package scanner

import (
	"fmt"
	"time"
)

// FileRecord represents a regular file seen during scanning
type FileRecord struct {
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// SkipReason explains why a walked entry was not classified
type SkipReason string

const (
	SkipSymlink  SkipReason = "symlink"
	SkipSpecial  SkipReason = "special file"
	SkipExcluded SkipReason = "excluded"
)

// SkippedEntry is a walked entry that was neither classified nor errored
type SkippedEntry struct {
	Path   string     `json:"path" yaml:"path"`
	Reason SkipReason `json:"reason" yaml:"reason"`
}

// ScanError records an entry whose metadata could not be read
type ScanError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.Err
}

// ScanResult represents the result of a scan operation
type ScanResult struct {
	Root       string
	Cutoff     time.Time
	Eligible   []FileRecord
	Ineligible []FileRecord
	Errors     []*ScanError
	Skipped    []SkippedEntry
	TotalSize  int64 // size of eligible files
}

// TotalFiles returns the number of regular files that were classified or errored
func (r *ScanResult) TotalFiles() int {
	return len(r.Eligible) + len(r.Ineligible) + len(r.Errors)
}

// EligiblePaths returns the eligible paths in walk order
func (r *ScanResult) EligiblePaths() []string {
	paths := make([]string, len(r.Eligible))
	for i, rec := range r.Eligible {
		paths[i] = rec.Path
	}
	return paths
}

// ProgressCallback is called for every regular file the scanner classifies
type ProgressCallback func(currentPath string, filesSeen, eligible int)
