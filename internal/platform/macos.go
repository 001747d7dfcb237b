package platform

import "path/filepath"

// getMacOSInfo returns directories for macOS. Audit logs go under
// ~/Library/Logs so Console.app can find them.
func getMacOSInfo(homeDir, username string) *Info {
	return &Info{
		OS:        MacOS,
		HomeDir:   homeDir,
		Username:  username,
		ConfigDir: filepath.Join(homeDir, ".config", AppName),
		StateDir:  filepath.Join(homeDir, "Library", "Logs", AppName),
	}
}
