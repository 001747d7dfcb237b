// Package lock keeps two runs from writing the same audit directory.
package lock

import (
	"errors"
	"path/filepath"
)

// FileName is the lock file created inside the guarded directory
const FileName = "agesweep.lock"

// ErrLocked is returned when another process holds the lock
var ErrLocked = errors.New("another agesweep run holds the lock")

// PathFor returns the lock file path guarding dir
func PathFor(dir string) string {
	return filepath.Join(dir, FileName)
}
