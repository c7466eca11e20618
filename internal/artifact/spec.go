// Package artifact defines the core data model for artifact specs, graphs,
// and execution results shared across the planner, cache, and executor.
package artifact

import "time"

// Spec describes a single artifact the system must produce. Specs are
// immutable once their owning Graph is frozen.
type Spec struct {
	// ID is an opaque, globally unique identifier, stable across runs.
	ID string `json:"id" yaml:"id"`

	// Description is a human-readable summary of the artifact.
	Description string `json:"description" yaml:"description"`

	// Contract states what a completed artifact must satisfy. Part of
	// the fingerprint.
	Contract string `json:"contract" yaml:"contract"`

	// Requires lists the IDs of other artifacts this one depends on.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// Modifies lists file paths this artifact may write. Two specs in the
	// same wave must have disjoint Modifies sets (I3).
	Modifies []string `json:"modifies,omitempty" yaml:"modifies,omitempty"`

	// ProducesFile, when set, is the canonical file this artifact emits.
	// Unique across the graph (I5).
	ProducesFile string `json:"produces_file,omitempty" yaml:"produces_file,omitempty"`

	// DomainType is an optional free-form tag (e.g. "handler", "schema",
	// "migration") used for scoring and display, not for execution logic.
	DomainType string `json:"domain_type,omitempty" yaml:"domain_type,omitempty"`

	// ContractHash is an optional fingerprint of the spec itself, used by
	// the change detector to flag a contract edit even when the contract
	// text is stored elsewhere.
	ContractHash string `json:"contract_hash,omitempty" yaml:"contract_hash,omitempty"`
}

// Status is the terminal-or-intermediate state of an artifact within a run.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusSkipped   Status = "skipped"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusBlocked   Status = "blocked"
)

// Terminal reports whether the status is one of the four terminal states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBlocked, StatusSkipped:
		return true
	default:
		return false
	}
}

// Result is the outcome of attempting to produce a single artifact.
type Result struct {
	ArtifactID string `json:"artifact_id"`
	Status     Status `json:"status"`

	// Output payload: either a file path or an inline string. Exactly one
	// of OutputPath/OutputInline is expected to be set on success.
	OutputPath   string `json:"output_path,omitempty"`
	OutputInline string `json:"output_inline,omitempty"`

	ContentHash string        `json:"content_hash,omitempty"`
	ModelTier   string        `json:"model_tier,omitempty"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
	Verified    bool          `json:"verified,omitempty"`

	// Error is the failure reason, set only when Status is StatusFailed.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the result represents a completed or skipped
// (cache-hit) artifact.
func (r Result) Succeeded() bool {
	return r.Status == StatusCompleted || r.Status == StatusSkipped
}
