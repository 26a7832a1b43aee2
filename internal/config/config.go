package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/fenilsonani/duster/internal/platform"
	"github.com/fenilsonani/duster/internal/scanner"
	"github.com/fenilsonani/duster/internal/security"
)

const (
	appDir   = "duster"
	fileName = "config.toml"
)

// Config represents the application configuration
type Config struct {
	MinAgeDays         int       `toml:"min_age_days" json:"min_age_days" yaml:"min_age_days"`
	MinLargeSizeMB     int64     `toml:"min_large_size_mb" json:"min_large_size_mb" yaml:"min_large_size_mb"`
	ProjectRecentDays  int       `toml:"project_recent_days" json:"project_recent_days" yaml:"project_recent_days"`
	DownloadAgeDays    int       `toml:"download_age_days" json:"download_age_days" yaml:"download_age_days"`
	DuplicateMinSizeKB int64     `toml:"duplicate_min_size_kb" json:"duplicate_min_size_kb" yaml:"duplicate_min_size_kb"`
	ExcludedPaths      []string  `toml:"excluded_paths" json:"excluded_paths" yaml:"excluded_paths"`
	CachePaths         []string  `toml:"cache_paths" json:"cache_paths" yaml:"cache_paths"`
	Workers            int       `toml:"workers" json:"workers" yaml:"workers"`
	Log                LogConfig `toml:"log" json:"log" yaml:"log"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `toml:"level" json:"level" yaml:"level"`
	File  string `toml:"file" json:"file,omitempty" yaml:"file,omitempty"`
}

// ValidationError reports a single invalid configuration field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Overrides are values given on the command line. Zero values leave the
// configured value in place.
type Overrides struct {
	Root       string
	Categories []scanner.Category
	MinAge     time.Duration
	MinSize    int64
	ProjectAge time.Duration
	Exclude    []string
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return GetDefault(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefault()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to a file
func Save(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	nonNegative := []struct {
		field string
		value int64
	}{
		{"min_age_days", int64(c.MinAgeDays)},
		{"min_large_size_mb", c.MinLargeSizeMB},
		{"project_recent_days", int64(c.ProjectRecentDays)},
		{"download_age_days", int64(c.DownloadAgeDays)},
		{"duplicate_min_size_kb", c.DuplicateMinSizeKB},
		{"workers", int64(c.Workers)},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			return &ValidationError{Field: f.field, Message: "must be >= 0"}
		}
	}

	for _, pattern := range c.ExcludedPaths {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return &ValidationError{Field: "excluded_paths", Message: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
		}
	}

	for _, path := range c.CachePaths {
		if !filepath.IsAbs(ExpandHome(path, "/")) {
			return &ValidationError{Field: "cache_paths", Message: fmt.Sprintf("path must be absolute: %s", path)}
		}
	}

	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		default:
			return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
		}
	}

	return nil
}

// ScanOptions merges the configuration, command line overrides and the
// platform locations into scanner options. Overrides win.
func (c *Config) ScanOptions(ov Overrides, info *platform.Info) scanner.Options {
	home := info.HomeDir

	opts := scanner.Options{
		Root:             info.HomeDir,
		Categories:       ov.Categories,
		MinAge:           time.Duration(c.MinAgeDays) * scanner.Day,
		MinSize:          c.MinLargeSizeMB << 20,
		ProjectAge:       time.Duration(c.ProjectRecentDays) * scanner.Day,
		DownloadAge:      time.Duration(c.DownloadAgeDays) * scanner.Day,
		DuplicateMinSize: c.DuplicateMinSizeKB << 10,
		Workers:          c.Workers,
	}

	if ov.Root != "" {
		opts.Root = ExpandHome(ov.Root, home)
	}
	if ov.MinAge > 0 {
		opts.MinAge = ov.MinAge
	}
	if ov.MinSize > 0 {
		opts.MinSize = ov.MinSize
	}
	if ov.ProjectAge > 0 {
		opts.ProjectAge = ov.ProjectAge
	}

	for _, p := range c.ExcludedPaths {
		opts.Exclude = append(opts.Exclude, ExpandHome(p, home))
	}
	for _, p := range ov.Exclude {
		opts.Exclude = append(opts.Exclude, ExpandHome(p, home))
	}

	extra := make([]string, 0, len(c.CachePaths))
	for _, p := range c.CachePaths {
		extra = append(extra, ExpandHome(p, home))
	}
	opts.Locations = info.Locations(extra...)

	return opts
}

// ExpandHome replaces a leading "~" with home
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	configDir, err := platform.GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appDir, fileName), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := Save(GetDefault(), configPath); err != nil {
			return "", err
		}
	}

	return configPath, nil
}
