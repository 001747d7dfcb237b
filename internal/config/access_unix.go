//go:build darwin || linux

package config

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkWritableDir reports whether entries can be created in dir. Read-only
// mounts fail this even for root.
func checkWritableDir(dir string) error {
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("cannot create entries in %s: %w", dir, err)
	}
	return nil
}
