package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecisionLatencyDetector(t *testing.T) {
	t.Parallel()

	d := &DecisionLatencyDetector{}

	ok, detail := d.Check(Action{Type: "code_gen", ExecutionTime: 10 * time.Millisecond})
	assert.True(t, ok)
	assert.Contains(t, detail, "below plausibility floor")

	ok, _ = d.Check(Action{Type: "code_gen", ExecutionTime: 200 * time.Millisecond})
	assert.False(t, ok)

	// unset execution time carries no signal
	ok, _ = d.Check(Action{Type: "code_gen"})
	assert.False(t, ok)
}

func TestDecisionLatencyDetector_CustomFloor(t *testing.T) {
	t.Parallel()

	d := &DecisionLatencyDetector{Floor: 500 * time.Millisecond}

	ok, _ := d.Check(Action{Type: "review", ExecutionTime: 200 * time.Millisecond})
	assert.True(t, ok)

	ok, _ = d.Check(Action{Type: "review", ExecutionTime: 600 * time.Millisecond})
	assert.False(t, ok)
}

func TestComplexityMismatchDetector(t *testing.T) {
	t.Parallel()

	d := &ComplexityMismatchDetector{}

	// complexity 0.9 expects ~90ms of work; 3ms is implausible
	ok, detail := d.Check(Action{Type: "code_gen", Complexity: 0.9, ExecutionTime: 3 * time.Millisecond})
	assert.True(t, ok)
	assert.Contains(t, detail, "complexity 0.90")

	ok, _ = d.Check(Action{Type: "code_gen", Complexity: 0.9, ExecutionTime: 2 * time.Second})
	assert.False(t, ok)

	// low-complexity actions are never flagged
	ok, _ = d.Check(Action{Type: "code_gen", Complexity: 0.2, ExecutionTime: time.Millisecond})
	assert.False(t, ok)
}

func TestPruneAnomalies(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []anomalyRecord{
		{detector: "decision_latency", at: now.Add(-10 * 24 * time.Hour)},
		{detector: "decision_latency", at: now.Add(-3 * 24 * time.Hour)},
		{detector: "complexity_mismatch", at: now.Add(-time.Hour)},
	}

	kept := pruneAnomalies(records, now, 7*24*time.Hour)
	assert.Len(t, kept, 2)
	assert.Equal(t, now.Add(-3*24*time.Hour), kept[0].at)
}
