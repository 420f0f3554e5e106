package types

import "time"

// TrustLevel is an agent's autonomy tier. It gates which actions may execute
// without human approval. Levels are ordered; transitions happen only through
// explicit promotion or demotion, never by direct assignment.
type TrustLevel int

const (
	// TrustLevelObserved (L0): every action requires human approval.
	TrustLevelObserved TrustLevel = iota
	// TrustLevelAssisted (L1): low-risk actions run unattended.
	TrustLevelAssisted
	// TrustLevelSupervised (L2): most actions run unattended, spot-checked.
	TrustLevelSupervised
	// TrustLevelAutonomous (L3): full autonomy within policy bounds.
	TrustLevelAutonomous
)

// String returns the canonical level name.
func (l TrustLevel) String() string {
	switch l {
	case TrustLevelObserved:
		return "L0_OBSERVED"
	case TrustLevelAssisted:
		return "L1_ASSISTED"
	case TrustLevelSupervised:
		return "L2_SUPERVISED"
	case TrustLevelAutonomous:
		return "L3_AUTONOMOUS"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the level is within the defined range.
func (l TrustLevel) Valid() bool {
	return l >= TrustLevelObserved && l <= TrustLevelAutonomous
}

// Next returns the next level up and whether one exists.
func (l TrustLevel) Next() (TrustLevel, bool) {
	if l >= TrustLevelAutonomous {
		return l, false
	}
	return l + 1, true
}

// Prev returns the next level down and whether one exists.
func (l TrustLevel) Prev() (TrustLevel, bool) {
	if l <= TrustLevelObserved {
		return l, false
	}
	return l - 1, true
}

// RelationshipTrust models how much a human user trusts the system. It is a
// separate domain from TrustLevel (agent autonomy) and the two must never be
// conflated; they share only a visual naming pattern.
type RelationshipTrust int

const (
	RelationshipUnknown RelationshipTrust = iota
	RelationshipSkeptical
	RelationshipCautious
	RelationshipTrusting
	RelationshipDelegating
)

// String returns the relationship stage name.
func (r RelationshipTrust) String() string {
	switch r {
	case RelationshipUnknown:
		return "UNKNOWN"
	case RelationshipSkeptical:
		return "SKEPTICAL"
	case RelationshipCautious:
		return "CAUTIOUS"
	case RelationshipTrusting:
		return "TRUSTING"
	case RelationshipDelegating:
		return "DELEGATING"
	default:
		return "UNKNOWN"
	}
}

// Severity grades a demotion or violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is one of the defined grades.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// MetricType identifies one behavioral dimension tracked per subject.
type MetricType string

const (
	MetricApprovalRate MetricType = "approval_rate"
	MetricErrorRate    MetricType = "error_rate"
	MetricConsistency  MetricType = "consistency"
	MetricComplexity   MetricType = "complexity"
	MetricResponseTime MetricType = "response_time"
	MetricSuccessRate  MetricType = "success_rate"
)

// BehaviorMetric is a single immutable observation appended to a subject's
// rolling window. Value semantics depend on Type (binary outcome, ratio,
// milliseconds).
type BehaviorMetric struct {
	Type       MetricType `json:"type"`
	Value      float64    `json:"value"`
	ActionType string     `json:"action_type,omitempty"`
	Weight     float64    `json:"weight"`
	Timestamp  time.Time  `json:"timestamp"`
}

// TrustScore is the derived composite score for a subject. It is recomputed
// on demand from the metric window and never mutated in place.
type TrustScore struct {
	Overall          float64   `json:"overall"` // 0-100
	ApprovalRate     float64   `json:"approval_rate"`
	SuccessRate      float64   `json:"success_rate"`
	ConsistencyScore float64   `json:"consistency_score"`
	ComplexityScore  float64   `json:"complexity_score"`
	TimeDecayFactor  float64   `json:"time_decay_factor"`
	CalculatedAt     time.Time `json:"calculated_at"`
}

// Clamp01 clamps v to [0,1]. Confidence and rate fields are always stored
// clamped to their documented range.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
