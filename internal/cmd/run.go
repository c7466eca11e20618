package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/artisan/internal/model"
	"github.com/harrison/artisan/internal/orchestrator"
	"github.com/harrison/artisan/internal/produce"
	"github.com/harrison/artisan/internal/wave"
)

func newRunCommand() *cobra.Command {
	var candidates int
	var maxRefinements int
	var maxConcurrency int
	var cacheTTL time.Duration
	var forceReplan bool
	var dryRun bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <goal text...>",
		Short: "Plan and execute a goal to completion",
		Long: `run plans the goal into an artifact graph, then executes it wave by
wave under a bounded worker pool, consulting the execution cache and
persisting progress so a killed run can be resumed with "artisan resume".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")
			return runGoal(cmd, goal, orchestrator.Options{
				Candidates:     candidates,
				MaxRefinements: maxRefinements,
				MaxConcurrency: maxConcurrency,
				CacheTTL:       cacheTTL,
				ForceReplan:    forceReplan,
				DryRun:         dryRun,
			}, timeout)
		},
	}

	cmd.Flags().IntVar(&candidates, "candidates", 3, "number of parallel plan candidates to generate")
	cmd.Flags().IntVar(&maxRefinements, "max-refinements", 0, "strict-improvement-only refinement rounds")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "artifacts executed concurrently per wave (0 = wave width)")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 0, "execution cache entry TTL (0 = never expires)")
	cmd.Flags().BoolVar(&forceReplan, "force-replan", false, "replan instead of resuming an incomplete saved plan for this goal")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and persist, but do not execute any artifact")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum run duration (0 = no timeout)")

	return cmd
}

func newResumeCommand() *cobra.Command {
	var maxConcurrency int
	var cacheTTL time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "resume <goal text...>",
		Short: "Resume a previously paused or incomplete run for a goal",
		Long: `resume re-opens the saved plan record for the same goal text and
continues executing only the artifacts that are not yet terminal,
without replanning.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")
			return runGoal(cmd, goal, orchestrator.Options{
				MaxConcurrency: maxConcurrency,
				CacheTTL:       cacheTTL,
			}, timeout)
		},
	}

	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "artifacts executed concurrently per wave (0 = wave width)")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 0, "execution cache entry TTL (0 = never expires)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum run duration (0 = no timeout)")

	return cmd
}

func runGoal(cmd *cobra.Command, goal string, opts orchestrator.Options, timeout time.Duration) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.Candidates == 0 {
		opts.Candidates = cfg.Planner.Candidates
	}
	if opts.MaxRefinements == 0 {
		opts.MaxRefinements = cfg.Planner.MaxRefinements
	}
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = cfg.MaxConcurrency
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = cfg.Cache.TTL
	}

	rawBackend, err := newBackend()
	if err != nil {
		return err
	}
	backend := model.NewCountingBackend(rawBackend)
	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	opts.Cache = store
	plans, err := openPlanStore(cfg)
	if err != nil {
		return err
	}

	log := newLogger(cmd, cfg)
	writer := &produce.ModelWriter{Backend: backend, Tier: model.Tier(cfg.Planner.Tier), RootDir: cfg.PlanDir}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	o := orchestrator.New(backend, writer.Produce, plans, nil)
	record, err := o.Run(ctx, goal, opts, wave.WithCache(store, opts.CacheTTL))

	if record != nil {
		mergeModelDistribution(record, backend.Dist.Snapshot())
		if saveErr := plans.Save(record); saveErr != nil && err == nil {
			err = saveErr
		}
		log.LogRunSummary(record)
	}
	if err != nil {
		log.Errorf("run failed: %v", err)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "run complete")
	return nil
}
