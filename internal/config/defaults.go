package config

// DefaultAgeDays is used when the threshold is missing or not a positive integer
const DefaultAgeDays = 30

// DefaultBusyRetries is the number of attempts for a file reported busy
const DefaultBusyRetries = 3

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		AgeThresholdDays: DefaultAgeDays,
		CollisionPolicy:  string(CollisionFail),
		ExcludePattern:   []string{},
		ProtectedPaths:   []string{},
		Audit: AuditConfig{
			Format: "text",
		},
		BusyRetries: DefaultBusyRetries,
	}
}

// GetExampleConfig returns an example configuration with comments
func GetExampleConfig() string {
	return `# agesweep configuration file
# Location: ~/.config/agesweep/config.yaml (override with AGESWEEP_CONFIG)
# Command line flags take precedence over every value here.

# Files last modified more than this many days ago are eligible
age_threshold_days: 30

# Move eligible files here instead of deleting them.
# Leave empty to delete.
archive_dir: ""

# What to do when the archive already holds a file with the same name:
#   fail   - leave the source in place and record a collision error
#   suffix - archive as "name (1).ext", "name (2).ext", ...
collision_policy: fail

# Glob patterns relative to the scan root (doublestar syntax).
# Matching files are skipped; matching directories are not descended.
exclude_patterns:
  - "**/.git"
  - "**/*.keep"

# Extra paths that are never swept, in addition to system directories
protected_paths: []

audit:
  # Defaults to ~/.local/state/agesweep (Linux) or ~/Library/Logs/agesweep (macOS)
  dir: ""
  # text, jsonl or sqlite
  format: text

# Write Prometheus textfile metrics after each run (node_exporter collector)
metrics_file: ""

# Attempts for files reported busy before giving up
busy_retries: 3
`
}
