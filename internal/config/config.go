package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/agesweep/internal/audit"
	"github.com/fenilsonani/agesweep/internal/platform"
	"github.com/fenilsonani/agesweep/internal/security"
)

// Environment variables that override the config file
const (
	EnvConfigPath  = "AGESWEEP_CONFIG"
	EnvAuditDir    = "AGESWEEP_AUDIT_DIR"
	EnvAuditFormat = "AGESWEEP_AUDIT_FORMAT"
)

// Config represents the persisted application configuration
type Config struct {
	AgeThresholdDays int         `yaml:"age_threshold_days"`
	ArchiveDir       string      `yaml:"archive_dir"`
	CollisionPolicy  string      `yaml:"collision_policy"`
	ExcludePattern   []string    `yaml:"exclude_patterns"`
	ProtectedPaths   []string    `yaml:"protected_paths"`
	Audit            AuditConfig `yaml:"audit"`
	MetricsFile      string      `yaml:"metrics_file"`
	BusyRetries      int         `yaml:"busy_retries"`
}

// AuditConfig controls where and how audit entries are written
type AuditConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // "text", "jsonl", "sqlite"
}

// Load loads configuration from a file
func Load(configPath string) (*Config, error) {
	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AgeThresholdDays < 0 {
		return fmt.Errorf("age threshold must be >= 0")
	}

	if c.BusyRetries < 0 {
		return fmt.Errorf("busy retries must be >= 0")
	}

	if _, err := ParseCollisionPolicy(c.CollisionPolicy); err != nil {
		return err
	}

	if c.Audit.Format != "" {
		if _, err := audit.ParseFormat(c.Audit.Format); err != nil {
			return err
		}
	}

	for _, pattern := range c.ExcludePattern {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}

	for _, path := range c.ProtectedPaths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("protected path must be absolute: %s", path)
		}
	}

	return nil
}

// LoadEnv reads a .env file into the process environment when present and
// applies the audit overrides to c. Variables already set win over the file.
func LoadEnv(c *Config, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if dir := strings.TrimSpace(os.Getenv(EnvAuditDir)); dir != "" {
		c.Audit.Dir = dir
	}
	if format := strings.TrimSpace(os.Getenv(EnvAuditFormat)); format != "" {
		c.Audit.Format = format
	}

	return c.Validate()
}

// GetConfigPath returns the config path, honoring AGESWEEP_CONFIG
func GetConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path, nil
	}

	configDir, err := platform.ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(GetExampleConfig()), 0644); err != nil {
			return "", fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return configPath, nil
}
