package planstore

import "fmt"

// NotFoundError indicates no record exists for a goal fingerprint.
type NotFoundError struct {
	GoalFingerprint string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plan store: no record for goal %s", e.GoalFingerprint)
}

// UnsupportedSchemaError indicates a record on disk was written by a newer
// schema version than this binary understands.
type UnsupportedSchemaError struct {
	GoalFingerprint string
	FoundVersion    int
}

func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("plan store: record %s has schema version %d, this binary supports up to %d",
		e.GoalFingerprint, e.FoundVersion, SchemaVersion)
}
