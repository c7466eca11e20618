// Package model defines the contract between the harmonic planner and the
// external model backend that generates candidate plans and, later,
// produces artifacts. It intentionally says nothing about how a backend
// talks to a model process; adapters (CLI invocation, HTTP, in-process)
// live outside this package and satisfy Backend.
package model

import (
	"context"
	"fmt"
)

// Tier selects which model class a request is routed to. The planner and
// orchestrator both use Tier to trade cost against quality, per spec.md's
// model tier guidance.
type Tier string

const (
	TierBackground Tier = "background"
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
)

// Request is a single prompt sent to a backend. Schema, when set, asks the
// backend to constrain output to the given JSON schema; backends that
// cannot enforce this should still attempt best-effort JSON output and let
// the caller validate.
type Request struct {
	Prompt         string
	SystemPrompt   string
	Schema         string
	Tier           Tier
	Temperature    float64
	ConstraintHint string
	SessionID      string // non-empty to resume a prior conversation
}

// Chunk is one increment of a streaming response, used by GenerateStream.
type Chunk struct {
	Thinking bool
	Text     string
	Done     bool
}

// Response is a completed, non-streaming generation.
type Response struct {
	Content   string
	SessionID string
	Tier      Tier
}

// Backend is the contract a model integration must satisfy. Implementations
// must be safe for concurrent use: the planner invokes Generate for several
// candidates in parallel.
type Backend interface {
	Generate(ctx context.Context, req Request) (Response, error)
	GenerateStream(ctx context.Context, req Request, out chan<- Chunk) (Response, error)
}

// ErrorKind classifies why a Backend call failed, letting callers decide
// whether to retry, fall back to a cheaper tier, or abort the wave.
type ErrorKind string

const (
	ErrorKindRateLimit      ErrorKind = "rate_limit"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindInvalidOutput  ErrorKind = "invalid_output"
	ErrorKindContextLength  ErrorKind = "context_length"
	ErrorKindUnavailable    ErrorKind = "unavailable"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// Error wraps a Backend failure with a classification and the underlying
// cause, so callers can use errors.As without parsing message text.
type Error struct {
	Kind  ErrorKind
	Tier  Tier
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model backend (%s, tier=%s): %v", e.Kind, e.Tier, e.Cause)
	}
	return fmt.Sprintf("model backend (%s, tier=%s)", e.Kind, e.Tier)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the orchestrator should retry the same request,
// per spec.md's model-error taxonomy.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrorKindRateLimit, ErrorKindTimeout, ErrorKindUnavailable:
		return true
	default:
		return false
	}
}
