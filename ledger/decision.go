package ledger

import (
	"time"
)

// DecisionStatus is the lifecycle state of a recorded decision.
type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "PENDING"
	DecisionApproved  DecisionStatus = "APPROVED"
	DecisionRejected  DecisionStatus = "REJECTED"
	DecisionExecuted  DecisionStatus = "EXECUTED"
	DecisionFailed    DecisionStatus = "FAILED"
	DecisionCancelled DecisionStatus = "CANCELLED"
)

// Decision is one append-only audit record of a choice an agent made within
// a session. Records are never deleted; only their status advances.
type Decision struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	AgentID    string         `json:"agent_id"`
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Status     DecisionStatus `json:"status"`
	Note       string         `json:"note,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ExecutedAt time.Time      `json:"executed_at,omitempty"`
	Version    int64          `json:"version"`
}

// Clone returns a copy safe to mutate.
func (d *Decision) Clone() *Decision {
	out := *d
	return &out
}

// DecisionMetrics aggregates a trailing window of decisions into the numbers
// the trust engine consumes.
type DecisionMetrics struct {
	Total            int           `json:"total"`
	Executed         int           `json:"executed"`
	Failed           int           `json:"failed"`
	Rejected         int           `json:"rejected"`
	AvgConfidence    float64       `json:"avg_confidence"`
	AvgExecutionTime time.Duration `json:"avg_execution_time"`
	AccuracyRate     float64       `json:"accuracy_rate"`
	WindowStart      time.Time     `json:"window_start"`
	WindowEnd        time.Time     `json:"window_end"`
}
