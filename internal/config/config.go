// Package config loads artisan's runtime configuration: planner candidate
// counts, cache budgets, and logging verbosity, from a YAML file merged
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents artisan's runtime configuration options.
type Config struct {
	// MaxConcurrency is the maximum number of concurrent wave artifacts
	// executed at once (0 = unlimited, bounded by wave width).
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout is loaded from the config file and defaults; the run and
	// resume commands do not apply it (their limit comes from --timeout).
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir is loaded from the config file and defaults; no component
	// writes log files to it.
	LogDir string `yaml:"log_dir"`

	// Planner contains harmonic planner configuration.
	Planner PlannerConfig `yaml:"planner"`

	// Cache contains execution cache configuration.
	Cache CacheConfig `yaml:"cache"`

	// PlanDir is the directory where plan store records are written.
	PlanDir string `yaml:"plan_dir"`
}

// PlannerConfig controls harmonic candidate generation.
type PlannerConfig struct {
	// Candidates is the number of parallel plan candidates generated per
	// planning attempt.
	Candidates int `yaml:"candidates"`

	// MaxRefinements bounds the strict-improvement-only refinement loop.
	MaxRefinements int `yaml:"max_refinements"`

	// Tier is the model tier used for candidate generation.
	Tier string `yaml:"tier"`
}

// CacheConfig controls the execution cache's on-disk footprint.
type CacheConfig struct {
	// Dir is the cache's base directory (SQLite index + sharded blobs).
	Dir string `yaml:"dir"`

	// MaxBytes bounds total blob storage (0 = unbounded).
	MaxBytes int64 `yaml:"max_bytes"`

	// TTL is how long a cache entry remains valid before expiring (0 =
	// never expires).
	TTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 0,
		Timeout:        2 * time.Hour,
		LogLevel:       "info",
		LogDir:         ".artisan/logs",
		Planner: PlannerConfig{
			Candidates:     3,
			MaxRefinements: 0,
			Tier:           "standard",
		},
		Cache: CacheConfig{
			Dir:      ".artisan/cache",
			MaxBytes: 0,
			TTL:      0,
		},
		PlanDir: ".artisan/plans",
	}
}

// yamlConfig mirrors Config but keeps Timeout/TTL as strings so
// time.ParseDuration can report malformed values with their original text.
type yamlConfig struct {
	MaxConcurrency int    `yaml:"max_concurrency"`
	Timeout        string `yaml:"timeout"`
	LogLevel       string `yaml:"log_level"`
	LogDir         string `yaml:"log_dir"`
	PlanDir        string `yaml:"plan_dir"`
	Planner        struct {
		Candidates     int    `yaml:"candidates"`
		MaxRefinements int    `yaml:"max_refinements"`
		Tier           string `yaml:"tier"`
	} `yaml:"planner"`
	Cache struct {
		Dir      string `yaml:"dir"`
		MaxBytes int64  `yaml:"max_bytes"`
		TTL      string `yaml:"ttl"`
	} `yaml:"cache"`
}

// Load reads configuration from path, merging file values over the
// defaults, then applies environment variable overrides. A missing file
// is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if y.MaxConcurrency != 0 {
		cfg.MaxConcurrency = y.MaxConcurrency
	}
	if y.Timeout != "" {
		d, err := time.ParseDuration(y.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config: invalid timeout %q: %w", y.Timeout, err)
		}
		cfg.Timeout = d
	}
	if y.LogLevel != "" {
		cfg.LogLevel = y.LogLevel
	}
	if y.LogDir != "" {
		cfg.LogDir = y.LogDir
	}
	if y.PlanDir != "" {
		cfg.PlanDir = y.PlanDir
	}
	if y.Planner.Candidates != 0 {
		cfg.Planner.Candidates = y.Planner.Candidates
	}
	if y.Planner.MaxRefinements != 0 {
		cfg.Planner.MaxRefinements = y.Planner.MaxRefinements
	}
	if y.Planner.Tier != "" {
		cfg.Planner.Tier = y.Planner.Tier
	}
	if y.Cache.Dir != "" {
		cfg.Cache.Dir = y.Cache.Dir
	}
	if y.Cache.MaxBytes != 0 {
		cfg.Cache.MaxBytes = y.Cache.MaxBytes
	}
	if y.Cache.TTL != "" {
		d, err := time.ParseDuration(y.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("config: invalid cache ttl %q: %w", y.Cache.TTL, err)
		}
		cfg.Cache.TTL = d
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies ARTISAN_* environment variables over cfg.
// Environment variables take precedence over both defaults and the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARTISAN_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("ARTISAN_PLAN_DIR"); v != "" {
		cfg.PlanDir = v
	}
	if v := os.Getenv("ARTISAN_MAX_WORKERS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.MaxConcurrency = n
		}
	}
	if v := os.Getenv("ARTISAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %q", s)
	}
	return n, nil
}
