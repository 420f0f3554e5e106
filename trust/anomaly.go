package trust

import (
	"fmt"
	"time"
)

// AnomalyDetector inspects a tracked action and reports whether it looks
// statistically suspicious. Detectors must be side-effect free; the engine
// owns the consequences (recording, auto-demotion).
type AnomalyDetector interface {
	// Name identifies the detector in notifications and metrics.
	Name() string
	// Check returns true and a human-readable detail when the action is
	// anomalous.
	Check(action Action) (bool, string)
}

// defaultDecisionLatencyFloor is the execution time below which a decision
// is considered implausibly fast for a genuine evaluation.
const defaultDecisionLatencyFloor = 50 * time.Millisecond

// DecisionLatencyDetector flags decisions made faster than a plausibility
// floor. Sub-50ms decisions suggest the agent is not actually evaluating
// its input.
type DecisionLatencyDetector struct {
	// Floor below which a decision latency is anomalous. Zero means the
	// 50ms default.
	Floor time.Duration
}

// Name implements AnomalyDetector.
func (d *DecisionLatencyDetector) Name() string { return "decision_latency" }

// Check implements AnomalyDetector.
func (d *DecisionLatencyDetector) Check(action Action) (bool, string) {
	floor := d.Floor
	if floor <= 0 {
		floor = defaultDecisionLatencyFloor
	}
	if action.ExecutionTime <= 0 {
		return false, ""
	}
	if action.ExecutionTime < floor {
		return true, fmt.Sprintf("decision latency %s below plausibility floor %s", action.ExecutionTime, floor)
	}
	return false, ""
}

// ComplexityMismatchDetector flags actions that claim high complexity but
// complete implausibly fast: under 1ms per 0.01 complexity.
type ComplexityMismatchDetector struct{}

// Name implements AnomalyDetector.
func (d *ComplexityMismatchDetector) Name() string { return "complexity_mismatch" }

// Check implements AnomalyDetector.
func (d *ComplexityMismatchDetector) Check(action Action) (bool, string) {
	if action.ExecutionTime <= 0 || action.Complexity < 0.8 {
		return false, ""
	}
	expected := time.Duration(action.Complexity*100) * time.Millisecond
	if action.ExecutionTime < expected/10 {
		return true, fmt.Sprintf("complexity %.2f handled in %s", action.Complexity, action.ExecutionTime)
	}
	return false, ""
}

// anomalyRecord is one detected anomaly for a subject.
type anomalyRecord struct {
	detector string
	detail   string
	at       time.Time
}

// pruneAnomalies drops records older than the window, returning the kept set.
func pruneAnomalies(records []anomalyRecord, now time.Time, window time.Duration) []anomalyRecord {
	kept := records[:0]
	for _, r := range records {
		if now.Sub(r.at) <= window {
			kept = append(kept, r)
		}
	}
	return kept
}
