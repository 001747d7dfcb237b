package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under the per-user config and state dirs
const AppName = "agesweep"

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

// Info contains platform-specific directories for agesweep
type Info struct {
	OS        Platform
	HomeDir   string
	Username  string
	ConfigDir string // holds config.yaml
	StateDir  string // default audit log directory
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information
func GetInfo() (*Info, error) {
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	homeDir := currentUser.HomeDir
	username := currentUser.Username

	switch Detect() {
	case MacOS:
		return getMacOSInfo(homeDir, username), nil
	case Linux:
		return getLinuxInfo(homeDir, username), nil
	default:
		return nil, ErrUnsupportedPlatform
	}
}

// ConfigDir returns the agesweep config directory for the current user
func ConfigDir() (string, error) {
	info, err := GetInfo()
	if err != nil {
		return fallbackDir(".config")
	}
	return info.ConfigDir, nil
}

// StateDir returns the default audit log directory for the current user
func StateDir() (string, error) {
	info, err := GetInfo()
	if err != nil {
		return fallbackDir(filepath.Join(".local", "state"))
	}
	return info.StateDir, nil
}

// fallbackDir is used on platforms without a dedicated layout
func fallbackDir(rel string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rel, AppName), nil
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
