// Package produce defines the contract the wave executor uses to turn a
// single artifact spec into a Result. The orchestrator supplies a Func;
// everything upstream of this package (cache lookups, wave sequencing,
// event emission) is agnostic to how an artifact actually gets produced.
package produce

import (
	"context"
	"fmt"

	"github.com/harrison/artisan/internal/artifact"
)

// Func produces one artifact given its spec and the already-resolved
// results of its Requires. Implementations are expected to call out to a
// model.Backend, a tool invocation, or any other side effect; this package
// only fixes the shape of the call.
type Func func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error)

// ErrorKind classifies why a producer call failed.
type ErrorKind string

const (
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindModelFailure  ErrorKind = "model_failure"
	ErrorKindWriteFailure  ErrorKind = "write_failure"
	ErrorKindVerifyFailure ErrorKind = "verify_failure"
	ErrorKindCancelled     ErrorKind = "cancelled"
)

// Error wraps a production failure with its artifact and classification.
type Error struct {
	ArtifactID string
	Kind       ErrorKind
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("produce %s (%s): %v", e.ArtifactID, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }
