package graph

import "fmt"

// DuplicateIDError is returned by Graph.Add when a spec's ID already exists.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("graph: duplicate artifact id %q", e.ID)
}

// UnknownDependencyError is returned by Freeze when a spec's Requires
// references an ID that does not resolve to any spec in the graph (I1).
type UnknownDependencyError struct {
	ArtifactID string
	MissingID  string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("graph: artifact %q requires unknown artifact %q", e.ArtifactID, e.MissingID)
}

// CycleError is returned by Freeze when the Requires relation is cyclic (I2).
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: circular dependency detected: %v", e.Cycle)
}

// ConflictError is returned by Freeze when two specs in the same wave have
// intersecting Modifies sets (I3).
type ConflictError struct {
	WaveIndex int
	FirstID   string
	SecondID  string
	Path      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("graph: wave %d: artifacts %q and %q both modify %q",
		e.WaveIndex, e.FirstID, e.SecondID, e.Path)
}

// DuplicateProducesFileError is returned by Freeze when two specs share the
// same non-empty ProducesFile (I5).
type DuplicateProducesFileError struct {
	File     string
	FirstID  string
	SecondID string
}

func (e *DuplicateProducesFileError) Error() string {
	return fmt.Sprintf("graph: produces_file %q is claimed by both %q and %q", e.File, e.FirstID, e.SecondID)
}

// NotFrozenError is returned by operations that require a frozen graph.
type NotFrozenError struct{}

func (e *NotFrozenError) Error() string { return "graph: operation requires a frozen graph" }
