package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/artisan/internal/hasher"
	"github.com/harrison/artisan/internal/planner"
)

// newPlanCommand builds the `plan` subcommand: generate and score
// candidate plans for a goal without executing anything (C4 only).
func newPlanCommand() *cobra.Command {
	var candidates int
	var maxRefinements int

	cmd := &cobra.Command{
		Use:   "plan <goal text...>",
		Short: "Generate a harmonic plan for a goal without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")

			backend, err := newBackend()
			if err != nil {
				return err
			}

			fingerprint := hasher.Fingerprint(goal, nil)
			result, err := planner.Plan(cmd.Context(), backend, fingerprint, goal, planner.Options{
				Candidates:     candidates,
				MaxRefinements: maxRefinements,
			})
			if err != nil {
				return err
			}

			waves, err := result.Graph.Waves()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "winning candidate #%d, score %.2f, %d wave(s):\n", result.CandidateIndex, result.Score, len(waves))
			for i, wave := range waves {
				fmt.Fprintf(cmd.OutOrStdout(), "  wave %d: %s\n", i, strings.Join(wave, ", "))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&candidates, "candidates", 3, "number of parallel plan candidates to generate")
	cmd.Flags().IntVar(&maxRefinements, "max-refinements", 0, "strict-improvement-only refinement rounds")

	listCmd := &cobra.Command{
		Use:   "list-recent",
		Short: "List recently saved plan records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openPlanStore(cfg)
			if err != nil {
				return err
			}
			records, err := store.ListRecent(10)
			if err != nil {
				return err
			}
			for _, r := range records {
				status := "in progress"
				if r.Complete {
					status = "complete"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  score=%.2f  %s\n", r.UpdatedAt.Format("2006-01-02 15:04:05"), status, r.PlanScore, r.Goal)
			}
			return nil
		},
	}
	cmd.AddCommand(listCmd)

	return cmd
}
