// Package eventbus implements the typed, ordered, back-pressured event
// stream used to report planning and execution progress to subscribers
// (spec component C3).
package eventbus

import "time"

// Type is drawn from the closed event taxonomy of spec.md section 6.
type Type string

const (
	TypeSessionStart     Type = "session_start"
	TypeSessionEnd       Type = "session_end"
	TypePlanningStart    Type = "planning_start"
	TypePlanCandidate    Type = "plan_candidate"
	TypePlanWinner       Type = "plan_winner"
	TypePlanningFailed   Type = "planning_failed"
	TypeRunStart         Type = "run_start"
	TypeWaveStart        Type = "wave_start"
	TypeWaveComplete     Type = "wave_complete"
	TypeArtifactStart    Type = "artifact_start"
	TypeArtifactComplete Type = "artifact_complete"
	TypeArtifactFailed   Type = "artifact_failed"
	TypeArtifactSkipped  Type = "artifact_skipped"
	TypeArtifactBlocked  Type = "artifact_blocked"
	TypeCacheHit         Type = "cache_hit"
	TypeCacheMiss        Type = "cache_miss"
	TypeCacheCorruption  Type = "cache_corruption_detected"
	TypeCancelled        Type = "cancelled"
	TypeRunComplete      Type = "run_complete"
	TypeRunFailed        Type = "run_failed"
	TypeRunPaused        Type = "run_paused"
	TypeModelStart       Type = "model_start"
	TypeModelTokens      Type = "model_tokens"
	TypeModelThinking    Type = "model_thinking"
	TypeModelComplete    Type = "model_complete"
	TypeBufferOverflow   Type = "buffer_overflow"
)

// Event is an ordered, append-only record published to a session's
// subscribers.
type Event struct {
	Type      Type        `json:"event"`
	Timestamp time.Time   `json:"ts"`
	SessionID string      `json:"session_id"`
	Sequence  uint64      `json:"seq"`
	Data      interface{} `json:"data,omitempty"`
}
