package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrNotAbsolute is returned for relative or unclean paths
	ErrNotAbsolute = errors.New("path must be absolute and clean")
	// ErrProtectedPath is returned for system directories that are never swept
	ErrProtectedPath = errors.New("refusing to use protected path")
	// ErrOutsideRoot is returned when an action target escapes the scan root
	ErrOutsideRoot = errors.New("path is outside the scan root")
)

// PathValidator handles path validation for retention runs
type PathValidator struct {
	protectedPaths []string
}

// NewPathValidator creates a new PathValidator with default protected paths
func NewPathValidator() *PathValidator {
	return &PathValidator{
		protectedPaths: []string{
			// Unix system directories
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/root",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
			// macOS system directories
			"/System",
			"/Applications",
			"/Library/System",
		},
	}
}

// ValidateRoot checks that a scan root is absolute and is not itself a
// protected directory. Anything below one, such as /var/log, is a valid root;
// ValidateTarget still guards each file.
func (pv *PathValidator) ValidateRoot(path string) error {
	if err := checkAbsolute(path); err != nil {
		return err
	}
	for _, protected := range pv.protectedPaths {
		if path == protected {
			return fmt.Errorf("%w: %s", ErrProtectedPath, path)
		}
	}
	return nil
}

// ValidateArchiveDir checks an archive destination against the scan root. The
// archive may live inside the root (it is pruned from the scan) but may not be
// the root itself.
func (pv *PathValidator) ValidateArchiveDir(root, archiveDir string) error {
	if err := checkAbsolute(archiveDir); err != nil {
		return err
	}
	if filepath.Clean(root) == archiveDir {
		return fmt.Errorf("archive directory cannot be the scan root: %s", archiveDir)
	}
	return pv.checkProtectedPaths(archiveDir)
}

// ValidateTarget is the last check before a file is moved or removed. The path
// must be absolute, strictly inside root and not protected.
func (pv *PathValidator) ValidateTarget(root, path string) error {
	if err := checkAbsolute(path); err != nil {
		return err
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains NUL byte: %q", path)
	}
	if !IsWithin(root, path) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if pv.IsProtectedPath(path) && !pv.IsProtectedPath(root) {
		return fmt.Errorf("%w: %s", ErrProtectedPath, path)
	}
	return nil
}

// checkProtectedPaths validates that a path is not a protected system directory
// or directly under one
func (pv *PathValidator) checkProtectedPaths(cleanPath string) error {
	for _, protected := range pv.protectedPaths {
		if cleanPath == protected {
			return fmt.Errorf("%w: %s", ErrProtectedPath, cleanPath)
		}

		// One level below a protected directory: /usr/foo but not /usr/local/foo
		if protected != "/" && strings.HasPrefix(cleanPath, protected+"/") {
			rel, _ := filepath.Rel(protected, cleanPath)
			if !strings.Contains(rel, "/") {
				return fmt.Errorf("%w: critical system path %s", ErrProtectedPath, cleanPath)
			}
		}
	}

	return nil
}

// IsProtectedPath checks if a path is a protected system path or inside one
func (pv *PathValidator) IsProtectedPath(path string) bool {
	cleanPath := filepath.Clean(path)
	for _, protected := range pv.protectedPaths {
		if cleanPath == protected {
			return true
		}
		if protected != "/" && strings.HasPrefix(cleanPath, protected+"/") {
			return true
		}
	}
	return false
}

// AddProtectedPath adds a custom protected path
func (pv *PathValidator) AddProtectedPath(path string) {
	cleanPath := filepath.Clean(path)
	pv.protectedPaths = append(pv.protectedPaths, cleanPath)
}

// IsWithin reports whether path lies strictly below root
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateGlobPattern validates an exclude pattern. Patterns are matched
// against root-relative paths, so traversal segments can never match.
func ValidateGlobPattern(pattern string) error {
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}

	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	return nil
}

func checkAbsolute(path string) error {
	if !filepath.IsAbs(path) || filepath.Clean(path) != path {
		return fmt.Errorf("%w: %q", ErrNotAbsolute, path)
	}
	return nil
}
