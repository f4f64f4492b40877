package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/stagehand/internal/storage"
)

// StateDirName is the per-workspace directory holding config, state and logs
const StateDirName = ".stagehand"

// Config represents stagehand configuration options
type Config struct {
	// Exclude lists user exclusion patterns, merged with .gitignore and defaults
	Exclude []string `yaml:"exclude"`

	// DefaultExclude lists extra patterns added to the built-in defaults
	DefaultExclude []string `yaml:"default_exclude"`

	// LargeFileThreshold is the token count above which a file is flagged in listings
	LargeFileThreshold int `yaml:"large_file_threshold"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written; empty disables file logging
	LogDir string `yaml:"log_dir"`

	// Storage selects the persistence backend (file or sqlite)
	Storage string `yaml:"storage"`

	// StateDir is where track state is persisted, relative to the workspace root
	StateDir string `yaml:"state_dir"`

	// MaxConcurrency bounds folder scans and file reads (0 = max(2, NumCPU))
	MaxConcurrency int `yaml:"max_concurrency"`

	// PreviewDebounce delays preview refreshes after changes
	PreviewDebounce time.Duration `yaml:"preview_debounce"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Exclude:            []string{},
		DefaultExclude:     []string{},
		LargeFileThreshold: 5000,
		LogLevel:           "info",
		LogDir:             filepath.Join(StateDirName, "logs"),
		Storage:            storage.BackendFile,
		StateDir:           StateDirName,
		MaxConcurrency:     0,
		PreviewDebounce:    300 * time.Millisecond,
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are parsed by hand so "500ms" style strings work
	type yamlConfig struct {
		Exclude            []string `yaml:"exclude"`
		DefaultExclude     []string `yaml:"default_exclude"`
		LargeFileThreshold int      `yaml:"large_file_threshold"`
		LogLevel           string   `yaml:"log_level"`
		LogDir             *string  `yaml:"log_dir"`
		Storage            string   `yaml:"storage"`
		StateDir           string   `yaml:"state_dir"`
		MaxConcurrency     int      `yaml:"max_concurrency"`
		PreviewDebounce    string   `yaml:"preview_debounce"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.Exclude != nil {
		cfg.Exclude = yamlCfg.Exclude
	}
	if yamlCfg.DefaultExclude != nil {
		cfg.DefaultExclude = yamlCfg.DefaultExclude
	}
	if yamlCfg.LargeFileThreshold != 0 {
		cfg.LargeFileThreshold = yamlCfg.LargeFileThreshold
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(yamlCfg.LogLevel)
	}
	// log_dir may be set to "" explicitly to turn file logging off
	if yamlCfg.LogDir != nil {
		cfg.LogDir = *yamlCfg.LogDir
	}
	if yamlCfg.Storage != "" {
		cfg.Storage = strings.ToLower(yamlCfg.Storage)
	}
	if yamlCfg.StateDir != "" {
		cfg.StateDir = yamlCfg.StateDir
	}
	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.PreviewDebounce != "" {
		d, err := time.ParseDuration(yamlCfg.PreviewDebounce)
		if err != nil {
			return nil, fmt.Errorf("invalid preview_debounce format %q: %w", yamlCfg.PreviewDebounce, err)
		}
		cfg.PreviewDebounce = d
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .stagehand/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(ConfigPath(dir))
}

// ConfigPath returns the config file location for a workspace
func ConfigPath(workspace string) string {
	return filepath.Join(workspace, StateDirName, "config.yaml")
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, storageBackend *string, maxConcurrency *int, exclude []string) {
	if logLevel != nil {
		c.LogLevel = strings.ToLower(*logLevel)
	}
	if storageBackend != nil {
		c.Storage = strings.ToLower(*storageBackend)
	}
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	c.Exclude = append(c.Exclude, exclude...)
}

// ResolveStateDir returns the absolute state directory for a workspace
func (c *Config) ResolveStateDir(workspace string) string {
	if filepath.IsAbs(c.StateDir) {
		return c.StateDir
	}
	return filepath.Join(workspace, c.StateDir)
}

// ResolveLogDir returns the absolute log directory, or "" when file logging is off
func (c *Config) ResolveLogDir(workspace string) string {
	if c.LogDir == "" || filepath.IsAbs(c.LogDir) {
		return c.LogDir
	}
	return filepath.Join(workspace, c.LogDir)
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	switch c.Storage {
	case storage.BackendFile, storage.BackendSQLite:
	default:
		return fmt.Errorf("invalid storage %q, must be one of: %s, %s", c.Storage, storage.BackendFile, storage.BackendSQLite)
	}

	if c.LargeFileThreshold <= 0 {
		return fmt.Errorf("large_file_threshold must be > 0, got %d", c.LargeFileThreshold)
	}
	if c.PreviewDebounce < 0 {
		return fmt.Errorf("preview_debounce must be >= 0, got %v", c.PreviewDebounce)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}

	return nil
}
