// Package changeset computes what changed between a previous artifact
// graph and a new one, and the transitive set of artifacts that must be
// rebuilt as a result (spec component C7).
package changeset

import (
	"github.com/harrison/artisan/internal/graph"
)

// Kind classifies why an artifact is considered changed.
type Kind string

const (
	KindAdded           Kind = "added"
	KindRemoved         Kind = "removed"
	KindContractChanged Kind = "contract_changed"
	KindDepsChanged     Kind = "deps_changed"
	KindOutputModified  Kind = "output_modified"
)

// Change records one artifact's classification.
type Change struct {
	ArtifactID string
	Kind       Kind
}

// Set is the result of diffing two graphs: the direct changes found, plus
// the full rebuild set (direct changes union their transitive dependents).
type Set struct {
	Changes    []Change
	RebuildSet map[string]bool
}

// Detect compares prev (the graph from the last completed run, possibly
// nil for a first run) against next (the freshly planned graph) and an
// optional function reporting whether an artifact's on-disk output was
// modified out-of-band since it was last produced. outputModified may be
// nil, in which case no artifact is flagged KindOutputModified.
func Detect(prev, next *graph.Graph, outputModified func(id string) bool) (*Set, error) {
	if !next.Frozen() {
		return nil, &graph.NotFrozenError{}
	}

	var changes []Change
	changedIDs := make(map[string]bool)

	record := func(id string, kind Kind) {
		changes = append(changes, Change{ArtifactID: id, Kind: kind})
		changedIDs[id] = true
	}

	if prev == nil {
		for _, id := range next.IDs() {
			record(id, KindAdded)
		}
	} else {
		prevIDs := make(map[string]bool)
		for _, id := range prev.IDs() {
			prevIDs[id] = true
		}
		nextIDs := make(map[string]bool)
		for _, id := range next.IDs() {
			nextIDs[id] = true
		}

		for _, id := range prev.IDs() {
			if !nextIDs[id] {
				record(id, KindRemoved)
			}
		}

		for _, id := range next.IDs() {
			newSpec, _ := next.Lookup(id)
			if !prevIDs[id] {
				record(id, KindAdded)
				continue
			}
			oldSpec, _ := prev.Lookup(id)
			if oldSpec.Contract != newSpec.Contract || oldSpec.ContractHash != newSpec.ContractHash {
				record(id, KindContractChanged)
				continue
			}
			if !sameStringSet(oldSpec.Requires, newSpec.Requires) {
				record(id, KindDepsChanged)
				continue
			}
			if outputModified != nil && outputModified(id) {
				record(id, KindOutputModified)
			}
		}
	}

	rebuild := make(map[string]bool, len(changedIDs))
	var queue []string
	for id := range changedIDs {
		if _, ok := next.Lookup(id); ok { // removed artifacts have no dependents in next
			rebuild[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dependent := range next.Dependents(id) {
			if !rebuild[dependent] {
				rebuild[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}

	return &Set{Changes: changes, RebuildSet: rebuild}, nil
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, x := range a {
		seen[x]++
	}
	for _, x := range b {
		seen[x]--
	}
	for _, count := range seen {
		if count != 0 {
			return false
		}
	}
	return true
}
