// Package graph implements the in-memory artifact DAG: invariant checks,
// topological wave computation, and subgraph extraction (spec component C1).
package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/harrison/artisan/internal/artifact"
)

// Graph is a mapping from artifact ID to spec, plus a derived dependents
// index (the reverse of Requires) computed on first access and cached.
// Specs are immutable once the graph is frozen.
type Graph struct {
	specs map[string]*artifact.Spec

	frozen bool
	waves  [][]string // wave index -> artifact IDs, lexicographically sorted

	mu              sync.Mutex
	dependentsIndex map[string][]string // built lazily, guarded by mu
	dependentsBuilt bool
}

// New returns an empty, unfrozen graph.
func New() *Graph {
	return &Graph{specs: make(map[string]*artifact.Spec)}
}

// Add inserts a spec into the graph. Fails with DuplicateIDError if the ID
// already exists. Requires are not validated until Freeze (I1 is checked
// there, not here, so specs may be added in any order).
func (g *Graph) Add(spec artifact.Spec) error {
	if g.frozen {
		return fmt.Errorf("graph: cannot add %q: graph is frozen", spec.ID)
	}
	if _, exists := g.specs[spec.ID]; exists {
		return &DuplicateIDError{ID: spec.ID}
	}
	cp := spec
	g.specs[spec.ID] = &cp
	return nil
}

// Lookup returns the spec for id, or (a zero Spec, false) if it does not exist.
func (g *Graph) Lookup(id string) (artifact.Spec, bool) {
	s, ok := g.specs[id]
	if !ok {
		return artifact.Spec{}, false
	}
	return *s, true
}

// Len returns the number of artifacts in the graph.
func (g *Graph) Len() int { return len(g.specs) }

// IDs returns all artifact IDs in lexicographic order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.specs))
	for id := range g.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Leaves returns the IDs of artifacts with no Requires, in lexicographic
// order.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id, s := range g.specs {
		if len(s.Requires) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Frozen reports whether Freeze has been called successfully.
func (g *Graph) Frozen() bool { return g.frozen }

// Freeze validates invariants I1-I5, computes the dependents index and the
// topological waves, and locks the graph against further Add calls.
// On success, Waves() and Dependents() become available.
func (g *Graph) Freeze() error {
	if g.frozen {
		return nil
	}

	// I1: every Requires entry resolves to a spec in the graph.
	for id, s := range g.specs {
		for _, dep := range s.Requires {
			if _, ok := g.specs[dep]; !ok {
				return &UnknownDependencyError{ArtifactID: id, MissingID: dep}
			}
		}
	}

	// I5: produces_file uniqueness.
	owners := make(map[string]string)
	for _, id := range g.IDs() {
		s := g.specs[id]
		if s.ProducesFile == "" {
			continue
		}
		normalized := filepath.Clean(s.ProducesFile)
		if owner, exists := owners[normalized]; exists {
			return &DuplicateProducesFileError{File: normalized, FirstID: owner, SecondID: id}
		}
		owners[normalized] = id
	}

	g.buildDependentsIndex()

	waves, err := computeWaves(g.specs, g.dependentsIndex)
	if err != nil {
		return err
	}

	if err := checkConflicts(waves, g.specs); err != nil {
		return err
	}

	g.waves = waves
	g.frozen = true
	return nil
}

// buildDependentsIndex computes the reverse of Requires, lexicographically
// sorted per entry. Safe to call multiple times; only builds once.
func (g *Graph) buildDependentsIndex() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dependentsBuilt {
		return
	}
	idx := make(map[string][]string, len(g.specs))
	for id := range g.specs {
		idx[id] = nil
	}
	for id, s := range g.specs {
		for _, dep := range s.Requires {
			idx[dep] = append(idx[dep], id)
		}
	}
	for dep := range idx {
		sort.Strings(idx[dep])
	}
	g.dependentsIndex = idx
	g.dependentsBuilt = true
}

// Dependents returns the set of artifact IDs that directly require id,
// lexicographically sorted. Computed on first access and cached.
func (g *Graph) Dependents(id string) []string {
	g.buildDependentsIndex()
	g.mu.Lock()
	defer g.mu.Unlock()
	deps := g.dependentsIndex[id]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Waves returns the stable topological levels computed at Freeze: wave k
// contains every artifact whose longest path to a leaf is k. Returns an
// error wrapping NotFrozenError if the graph has not been frozen.
func (g *Graph) Waves() ([][]string, error) {
	if !g.frozen {
		return nil, &NotFrozenError{}
	}
	out := make([][]string, len(g.waves))
	for i, w := range g.waves {
		cp := make([]string, len(w))
		copy(cp, w)
		out[i] = cp
	}
	return out, nil
}

// MaxDepth returns the number of waves (0 for an empty graph).
func (g *Graph) MaxDepth() int {
	return len(g.waves)
}

// Subgraph returns a new, frozen graph containing the transitive closure of
// ids under Requires, with waves recomputed but restricted to the closure in
// the same relative index order as the original (P3).
func (g *Graph) Subgraph(ids []string) (*Graph, error) {
	if !g.frozen {
		return nil, &NotFrozenError{}
	}

	closure := make(map[string]bool)
	var visit func(string)
	visit = func(id string) {
		if closure[id] {
			return
		}
		closure[id] = true
		if s, ok := g.specs[id]; ok {
			for _, dep := range s.Requires {
				visit(dep)
			}
		}
	}
	for _, id := range ids {
		visit(id)
	}

	sub := New()
	for id := range closure {
		_ = sub.Add(*g.specs[id])
	}
	if err := sub.Freeze(); err != nil {
		return nil, err
	}
	return sub, nil
}

// computeWaves runs Kahn's algorithm over the requires/dependents edges,
// producing stable topological levels ordered lexicographically within each
// wave (spec.md "Within a wave, order is by id lexicographic").
func computeWaves(specs map[string]*artifact.Spec, dependents map[string][]string) ([][]string, error) {
	if len(specs) == 0 {
		return [][]string{}, nil
	}

	inDegree := make(map[string]int, len(specs))
	for id, s := range specs {
		inDegree[id] = len(s.Requires)
	}

	remaining := len(specs)
	var waves [][]string

	for remaining > 0 {
		var current []string
		for id, degree := range inDegree {
			if degree == 0 {
				current = append(current, id)
			}
		}
		if len(current) == 0 {
			return nil, detectCycle(specs)
		}
		sort.Strings(current)
		waves = append(waves, current)

		for _, id := range current {
			delete(inDegree, id)
			remaining--
			for _, dependent := range dependents[id] {
				if _, ok := inDegree[dependent]; ok {
					inDegree[dependent]--
				}
			}
		}
	}

	return waves, nil
}

// detectCycle runs a DFS with color marking to name one offending cycle for
// CycleError once Kahn's algorithm reports that no zero-in-degree nodes
// remain.
func detectCycle(specs map[string]*artifact.Spec) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(specs))
	var path []string
	var cyclePath []string

	var dfs func(string) bool
	dfs = func(id string) bool {
		colors[id] = gray
		path = append(path, id)
		for _, dep := range specs[id].Requires {
			switch colors[dep] {
			case gray:
				// Found the back edge; slice path from dep's first occurrence.
				for i, p := range path {
					if p == dep {
						cyclePath = append([]string{}, path[i:]...)
						cyclePath = append(cyclePath, dep)
						break
					}
				}
				return true
			case white:
				if dfs(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		colors[id] = black
		return false
	}

	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if colors[id] == white {
			if dfs(id) {
				return &CycleError{Cycle: cyclePath}
			}
		}
	}
	return &CycleError{Cycle: nil}
}

// checkConflicts scans each wave for any pair of specs whose Modifies sets
// intersect (I3). Mandatory before execution per spec.md 4.1.
func checkConflicts(waves [][]string, specs map[string]*artifact.Spec) error {
	for waveIdx, wave := range waves {
		owners := make(map[string]string)
		for _, id := range wave {
			s := specs[id]
			for _, path := range s.Modifies {
				normalized := filepath.Clean(path)
				if owner, exists := owners[normalized]; exists && owner != id {
					return &ConflictError{WaveIndex: waveIdx, FirstID: owner, SecondID: id, Path: normalized}
				}
				owners[normalized] = id
			}
		}
	}
	return nil
}
