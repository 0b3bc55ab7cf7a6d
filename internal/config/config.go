// Package config provides configuration loading for planview.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pverrors "github.com/randalmurphal/planview/internal/errors"
	"github.com/randalmurphal/planview/internal/item"
)

const (
	// ConfigFileName is the config file name inside .planview.
	ConfigFileName = "config.yaml"
)

// WatchConfig holds change-coalescing settings.
type WatchConfig struct {
	// DebounceMs is the quiet period after a change notification before a
	// refresh cycle runs.
	DebounceMs int `yaml:"debounce_ms" json:"debounce_ms"`
	// BulkDebounceMs is the slower settle period for bulk operation markers.
	BulkDebounceMs int `yaml:"bulk_debounce_ms" json:"bulk_debounce_ms"`
	// BulkTimeoutSec bounds how long a bulk marker may suppress refreshes.
	BulkTimeoutSec int `yaml:"bulk_timeout_sec" json:"bulk_timeout_sec"`
	// Markers are bulk-operation marker locations relative to the project
	// root (e.g. .git/index.lock during a checkout).
	Markers []string `yaml:"markers,omitempty" json:"markers,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
}

// Config is the planview configuration.
type Config struct {
	Version int         `yaml:"version" json:"version"`
	Watch   WatchConfig `yaml:"watch" json:"watch"`
	Log     LogConfig   `yaml:"log" json:"log"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Watch: WatchConfig{
			DebounceMs:     300,
			BulkDebounceMs: 2000,
			BulkTimeoutSec: 30,
			Markers: []string{
				filepath.Join(".git", "index.lock"),
				filepath.Join(".git", "MERGE_HEAD"),
				filepath.Join(".git", "rebase-merge"),
				filepath.Join(".git", "rebase-apply"),
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration for a project directory.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.planview/config.yaml) - optional
//  3. Project config (.planview/config.yaml) - optional
//  4. Environment variables (PLANVIEW_*)
func Load(projectDir string) (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, item.PlanviewDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(cfg, userPath); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(projectDir, item.PlanviewDir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(cfg, projectPath); err != nil {
			return nil, err // Project config errors are fatal
		}
	}

	applyEnvVars(cfg)

	return cfg, nil
}

// mergeFromFile merges configuration from a file into cfg.
func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvVars applies PLANVIEW_* environment overrides.
func applyEnvVars(cfg *Config) {
	if v := os.Getenv("PLANVIEW_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Watch.DebounceMs = n
		}
	}
	if v := os.Getenv("PLANVIEW_BULK_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Watch.BulkDebounceMs = n
		}
	}
	if v := os.Getenv("PLANVIEW_BULK_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Watch.BulkTimeoutSec = n
		}
	}
	if v := os.Getenv("PLANVIEW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// Debounce returns the normal debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// BulkDebounce returns the bulk settle window as a duration.
func (c *Config) BulkDebounce() time.Duration {
	return time.Duration(c.Watch.BulkDebounceMs) * time.Millisecond
}

// BulkTimeout returns the bulk suppression upper bound as a duration.
func (c *Config) BulkTimeout() time.Duration {
	return time.Duration(c.Watch.BulkTimeoutSec) * time.Second
}

// MarkerPaths resolves marker locations against the project directory.
func (c *Config) MarkerPaths(projectDir string) []string {
	out := make([]string, 0, len(c.Watch.Markers))
	for _, m := range c.Watch.Markers {
		if filepath.IsAbs(m) {
			out = append(out, m)
			continue
		}
		out = append(out, filepath.Join(projectDir, m))
	}
	return out
}

// SlogLevel maps the configured level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsInitialized returns true if projectDir contains a .planview directory.
func IsInitialized(projectDir string) bool {
	info, err := os.Stat(filepath.Join(projectDir, item.PlanviewDir))
	return err == nil && info.IsDir()
}

// RequireInit returns an error if projectDir is not a planview project.
func RequireInit(projectDir string) error {
	if !IsInitialized(projectDir) {
		return pverrors.New(pverrors.CodeNotInitialized,
			"not a planview project (no "+item.PlanviewDir+" directory)").
			WithFix("run 'planview init' first")
	}
	return nil
}

// Save writes the config to the project's .planview directory.
func (c *Config) Save(projectDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(projectDir, item.PlanviewDir, ConfigFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
