//go:build !darwin && !linux

package config

// checkWritableDir is a no-op where access(2) is unavailable; failures surface
// when the archive directory is created.
func checkWritableDir(string) error {
	return nil
}
