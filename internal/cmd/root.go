// Package cmd implements artisan's cobra command tree: plan, run, resume,
// and cache/plan inspection subcommands, all driving internal/orchestrator.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand builds the root artisan command with all subcommands
// attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "artisan",
		Short: "Harmonic artifact planner and incremental wave executor",
		Long: `artisan plans a goal into a dependency graph of artifacts, executes
them wave by wave with bounded concurrency, and resumes a killed or
cancelled run from the last saved state.`,
		Version:      Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "path to config file (default: <home>/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log verbosity: debug, info, warn, error")

	root.AddCommand(newPlanCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newResumeCommand())
	root.AddCommand(newCacheCommand())

	return root
}
