// Package testutil provides test helpers and fixtures for agesweep tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"
)

// TestFixture holds paths to test directories and files
type TestFixture struct {
	T       *testing.T
	RootDir string // Root temp directory (auto-cleaned)

	// Standard test directories
	TreeDir    string // directory tree that gets scanned
	ArchiveDir string // archive destination (not created up front)
	AuditDir   string // audit log directory
}

// NewFixture creates a new test fixture with standard directory structure
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	f := &TestFixture{
		T:          t,
		RootDir:    root,
		TreeDir:    filepath.Join(root, "tree"),
		ArchiveDir: filepath.Join(root, "archive"),
		AuditDir:   filepath.Join(root, "audit"),
	}

	for _, dir := range []string{f.TreeDir, f.AuditDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	return f
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path.
// relPath is relative to the fixture root.
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateFileWithModTime creates a file and sets its modification time
func (f *TestFixture) CreateFileWithModTime(relPath string, content []byte, modTime time.Time) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	if err := os.Chtimes(fullPath, modTime, modTime); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateFileWithAge creates a file and sets its modification time to the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()
	return f.CreateFileWithModTime(relPath, content, time.Now().Add(-age))
}

// CreateTreeFile creates a file under the scanned tree aged by days
func (f *TestFixture) CreateTreeFile(relPath string, days int) string {
	f.T.Helper()
	content := []byte(fmt.Sprintf("%s aged %d days", relPath, days))
	return f.CreateFileWithAge(filepath.Join("tree", relPath), content, time.Duration(days)*24*time.Hour)
}

// =============================================================================
// Directory Helpers
// =============================================================================

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateReadOnlyDir makes an existing directory read-only so entries inside it
// cannot be removed or renamed. Permissions are restored on cleanup.
func (f *TestFixture) CreateReadOnlyDir(relPath string) string {
	f.T.Helper()

	dirPath := f.CreateDir(relPath)
	if err := os.Chmod(dirPath, 0555); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dirPath, err)
	}

	// Restore permissions so TempDir cleanup works
	f.T.Cleanup(func() {
		os.Chmod(dirPath, 0755)
	})

	return dirPath
}

// CreateUnreadableDir makes a directory unlistable. Permissions are restored on
// cleanup.
func (f *TestFixture) CreateUnreadableDir(relPath string) string {
	f.T.Helper()

	dirPath := f.CreateDir(relPath)
	if err := os.Chmod(dirPath, 0000); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dirPath, err)
	}

	f.T.Cleanup(func() {
		os.Chmod(dirPath, 0755)
	})

	return dirPath
}

// =============================================================================
// Symlink Helpers
// =============================================================================

// CreateSymlink creates a symbolic link
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := filepath.Join(f.RootDir, linkPath)
	dir := filepath.Dir(fullLinkPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.Symlink(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// =============================================================================
// Path Helpers
// =============================================================================

// Path returns the full path for a relative path within the fixture
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.RootDir, relPath)
}

// =============================================================================
// Assertion Helpers
// =============================================================================

// FileExists checks if a file exists (without following symlinks)
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected file to not exist: %s", path)
	}
}

// AssertFileContent checks the content of a file
func (f *TestFixture) AssertFileContent(path string, want []byte) {
	f.T.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		f.T.Errorf("failed to read %s: %v", path, err)
		return
	}
	if string(got) != string(want) {
		f.T.Errorf("file %s content = %q, want %q", path, got, want)
	}
}

// Snapshot returns a deterministic description of every entry under dir: kind,
// mode, size, modification time and a content hash for regular files. Two equal
// snapshots mean the tree was not modified.
func (f *TestFixture) Snapshot(dir string) string {
	f.T.Helper()

	var lines []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		line := fmt.Sprintf("%s %s %d %d", rel, info.Mode(), info.Size(), info.ModTime().UnixNano())
		if info.Mode().IsRegular() {
			line += " " + hashFile(f.T, path)
		}
		if info.IsDir() {
			// Directory size and mtime change when entries move
			line = fmt.Sprintf("%s %s %d", rel, info.Mode(), info.ModTime().UnixNano())
		}
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		f.T.Fatalf("failed to snapshot %s: %v", dir, err)
	}

	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// =============================================================================
// Utility Functions
// =============================================================================

// IsRoot returns true if running as root/admin
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips the test if running as root
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test when running as root")
	}
}

// SkipOnWindows skips tests relying on POSIX permission bits
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on windows")
	}
}

func hashFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
