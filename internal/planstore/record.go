// Package planstore persists completed and resumable plans to durable
// JSON records, one file per goal fingerprint, with atomic writes guarded
// by a per-goal advisory lock (spec component C6).
package planstore

import (
	"time"

	"github.com/harrison/artisan/internal/artifact"
)

// SchemaVersion is bumped whenever Record's on-disk shape changes in a way
// that is not backward compatible. Load rejects records from a newer
// version than this binary understands.
const SchemaVersion = 1

// Record is the durable, resumable representation of a planned and
// (partially) executed goal.
type Record struct {
	SchemaVersion   int                        `json:"schema_version"`
	GoalFingerprint string                     `json:"goal_fingerprint"`
	Goal            string                     `json:"goal"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	Specs           []artifact.Spec            `json:"specs"`
	Waves           [][]string                 `json:"waves"`
	Results         map[string]artifact.Result `json:"results"`
	PlanScore       float64                    `json:"plan_score"`
	Complete        bool                       `json:"complete"`

	// ModelDistribution counts completed backend calls per tier
	// ("background"/"standard"/"premium") across planning and production,
	// for passive cost accounting. Merged across resumes, never reset.
	ModelDistribution map[string]int `json:"model_distribution,omitempty"`
}

// NewRecord builds a fresh Record for a just-completed planning run.
func NewRecord(goalFingerprint, goal string, specs []artifact.Spec, waves [][]string, planScore float64) *Record {
	now := time.Now()
	return &Record{
		SchemaVersion:     SchemaVersion,
		GoalFingerprint:   goalFingerprint,
		Goal:              goal,
		CreatedAt:         now,
		UpdatedAt:         now,
		Specs:             specs,
		Waves:             waves,
		Results:           make(map[string]artifact.Result),
		PlanScore:         planScore,
		ModelDistribution: make(map[string]int),
	}
}

// RemainingArtifacts returns the IDs in Specs that have no terminal Result
// yet, in spec order, for resuming an interrupted run.
func (r *Record) RemainingArtifacts() []string {
	var out []string
	for _, s := range r.Specs {
		res, ok := r.Results[s.ID]
		if !ok || !res.Status.Terminal() {
			out = append(out, s.ID)
		}
	}
	return out
}
