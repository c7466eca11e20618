package planner

import "fmt"

// PlanningError wraps a failure that prevented the planner from producing
// any usable candidate: every candidate generation failed schema
// validation, graph construction, or the model backend itself.
type PlanningError struct {
	GoalFingerprint string
	CandidateErrors []error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed for goal %s: %d candidate(s) rejected", e.GoalFingerprint, len(e.CandidateErrors))
}

func (e *PlanningError) Unwrap() []error { return e.CandidateErrors }
