package ledger

import (
	"time"

	"github.com/BaSui01/trustflow/types"
)

// SessionState is the lifecycle state of an agent session.
type SessionState string

const (
	SessionActive     SessionState = "active"
	SessionPaused     SessionState = "paused"
	SessionCompleted  SessionState = "completed"
	SessionTerminated SessionState = "terminated"
)

// Terminal reports whether the session has ended.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionTerminated
}

// canTransition enumerates the legal session state machine.
func (s SessionState) canTransition(to SessionState) bool {
	switch s {
	case SessionActive:
		return to == SessionPaused || to == SessionCompleted || to == SessionTerminated
	case SessionPaused:
		return to == SessionActive || to == SessionCompleted || to == SessionTerminated
	}
	return false
}

// Session is one agent working session. Decisions are recorded against it
// while it is active. Version supports optimistic concurrency in stores.
type Session struct {
	ID         string           `json:"id"`
	AgentID    string           `json:"agent_id"`
	SubjectID  string           `json:"subject_id"`
	TrustLevel types.TrustLevel `json:"trust_level"`
	State      SessionState     `json:"state"`
	StartedAt  time.Time        `json:"started_at"`
	EndedAt    time.Time        `json:"ended_at,omitempty"`
	Version    int64            `json:"version"`
}

// Clone returns a copy safe to mutate.
func (s *Session) Clone() *Session {
	out := *s
	return &out
}
