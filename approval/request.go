package approval

import (
	"time"
)

// State is the lifecycle state of an approval request. A request starts
// PENDING and moves exactly once into one of the terminal states.
type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateTimeout   State = "TIMEOUT"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateApproved, StateRejected, StateTimeout, StateCancelled:
		return true
	}
	return false
}

// RiskLevel grades how dangerous the requested action is. It drives alert
// routing, not workflow behavior.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Request is one approval request awaiting (or past) a human decision.
type Request struct {
	ID         string         `json:"id"`
	SubjectID  string         `json:"subject_id"`
	Action     string         `json:"action"`
	Params     map[string]any `json:"params,omitempty"`
	RiskLevel  RiskLevel      `json:"risk_level"`
	State      State          `json:"state"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	DecidedAt  time.Time      `json:"decided_at,omitempty"`
	DecidedBy  string         `json:"decided_by,omitempty"`
	DecisionNote string       `json:"decision_note,omitempty"`
}

// Clone returns a deep-enough copy safe to hand outside the workflow lock.
func (r *Request) Clone() *Request {
	out := *r
	if r.Params != nil {
		out.Params = make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return &out
}

// Response is the one-shot outcome delivered to a waiter.
type Response struct {
	RequestID string    `json:"request_id"`
	Approved  bool      `json:"approved"`
	State     State     `json:"state"`
	DecidedBy string    `json:"decided_by,omitempty"`
	Note      string    `json:"note,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}
