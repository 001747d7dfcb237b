package platform

import (
	"os"
	"path/filepath"
)

// getLinuxInfo returns XDG based directories for Linux
func getLinuxInfo(homeDir, username string) *Info {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(homeDir, ".config")
	}

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(homeDir, ".local", "state")
	}

	return &Info{
		OS:        Linux,
		HomeDir:   homeDir,
		Username:  username,
		ConfigDir: filepath.Join(configHome, AppName),
		StateDir:  filepath.Join(stateHome, AppName),
	}
}
