//go:build !darwin && !linux

package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Lock is a lock file created exclusively
type Lock struct {
	path string
	file *os.File
}

// Acquire creates path exclusively. Platforms without flock fall back to the
// lock file's existence, so a crashed run leaves a file to remove by hand.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return &Lock{path: path, file: f}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release closes and removes the lock file
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	closeErr := f.Close()
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return closeErr
}
