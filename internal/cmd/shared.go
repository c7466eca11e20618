package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/artisan/internal/cache"
	"github.com/harrison/artisan/internal/config"
	"github.com/harrison/artisan/internal/logger"
	"github.com/harrison/artisan/internal/model"
	"github.com/harrison/artisan/internal/model/anthropic"
	"github.com/harrison/artisan/internal/planstore"
)

// loadConfig resolves --config (falling back to <home>/config.yaml) and
// loads it, applying environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		home, err := config.Home()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, "config.yaml")
	}
	return config.Load(path)
}

// newLogger builds a console logger at the level requested by --log-level,
// falling back to cfg.LogLevel.
func newLogger(cmd *cobra.Command, cfg *config.Config) *logger.ConsoleLogger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	return logger.NewConsoleLogger(os.Stdout, level)
}

// newBackend builds the Anthropic-backed model.Backend from
// ANTHROPIC_API_KEY. There is no in-process fake backend for CLI use: a
// real API key is required to plan or execute a goal.
func newBackend() (model.Backend, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	models := anthropic.Models{
		Background: os.Getenv("ARTISAN_MODEL_BACKGROUND"),
		Standard:   envOrDefault("ARTISAN_MODEL_STANDARD", "claude-sonnet-4-5"),
		Premium:    os.Getenv("ARTISAN_MODEL_PREMIUM"),
	}
	return anthropic.NewFromAPIKey(key, models, 4096)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openCache(cfg *config.Config) (*cache.Store, error) {
	return cache.Open(cfg.Cache.Dir, cfg.Cache.MaxBytes)
}

func openPlanStore(cfg *config.Config) (*planstore.Store, error) {
	return planstore.Open(cfg.PlanDir)
}

// mergeModelDistribution adds this run's per-tier call counts into the
// record's running total, so resuming a goal across processes keeps
// accumulating rather than resetting.
func mergeModelDistribution(record *planstore.Record, thisRun map[string]int) {
	if record.ModelDistribution == nil {
		record.ModelDistribution = make(map[string]int)
	}
	for tier, n := range thisRun {
		record.ModelDistribution[tier] += n
	}
}
