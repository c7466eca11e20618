package planner

import (
	"path/filepath"

	"github.com/harrison/artisan/internal/artifact"
)

// score implements the weighted scoring formula from spec.md section 4:
//
//	40*parallelism_factor + 30*balance_factor + 20*(1/depth) + 10*(1/(1+file_conflicts))
//
// parallelism_factor is leaves/artifact_count: the share of artifacts that
// can start immediately (no requires). balance_factor is width/depth: wide,
// shallow plans score higher than deep, narrow ones. depth is the wave
// count. file_conflicts counts distinct paths touched by more than one
// artifact anywhere in the plan, penalizing designs that serialize work
// through shared files.
func score(waves [][]string, specs map[string]*artifact.Spec) float64 {
	total := 0
	for _, w := range waves {
		total += len(w)
	}
	if total == 0 || len(waves) == 0 {
		return 0
	}

	leaves := 0
	for _, s := range specs {
		if len(s.Requires) == 0 {
			leaves++
		}
	}

	maxWidth := 0
	for _, w := range waves {
		if len(w) > maxWidth {
			maxWidth = len(w)
		}
	}
	depth := len(waves)

	parallelismFactor := float64(leaves) / float64(total)
	balanceFactor := float64(maxWidth) / float64(depth)
	depthFactor := 1.0 / float64(depth)
	conflictFactor := 1.0 / float64(1+fileConflicts(specs))

	return 40*parallelismFactor + 30*balanceFactor + 20*depthFactor + 10*conflictFactor
}

// fileConflicts counts distinct normalized paths (from Modifies) that are
// touched by more than one artifact across the whole plan, regardless of
// which wave they land in.
func fileConflicts(specs map[string]*artifact.Spec) int {
	owners := make(map[string]int)
	for _, s := range specs {
		seen := make(map[string]bool)
		for _, path := range s.Modifies {
			norm := filepath.Clean(path)
			if seen[norm] {
				continue
			}
			seen[norm] = true
			owners[norm]++
		}
	}
	conflicts := 0
	for _, count := range owners {
		if count > 1 {
			conflicts++
		}
	}
	return conflicts
}
