package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/trustflow/types"
)

var scoreNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestCalculator() *Calculator {
	return NewCalculator(90 * 24 * time.Hour)
}

// fillWindow appends n full action readings (approval + success + complexity)
// sharing a timestamp per action, ending just before scoreNow.
func fillWindow(w *MetricWindow, n int, approved, successful bool, complexity float64) {
	start := scoreNow.Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		w.Append(types.BehaviorMetric{Type: types.MetricApprovalRate, Value: boolValue(approved), ActionType: "code_gen", Weight: 1, Timestamp: at})
		w.Append(types.BehaviorMetric{Type: types.MetricSuccessRate, Value: boolValue(successful), ActionType: "code_gen", Weight: 1, Timestamp: at})
		if complexity > 0 {
			w.Append(types.BehaviorMetric{Type: types.MetricComplexity, Value: complexity, ActionType: "code_gen", Weight: 1, Timestamp: at})
		}
	}
}

// -----------------------------------------------------------------------------
// Defaults with no history
// -----------------------------------------------------------------------------

func TestCalculate_EmptyWindowDefaults(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	score := c.Calculate(NewMetricWindow(100), scoreNow)

	assert.Equal(t, 0.5, score.ApprovalRate)
	assert.Equal(t, 1.0, score.SuccessRate)
	assert.Equal(t, 0.5, score.ConsistencyScore)
	assert.Equal(t, 0.0, score.ComplexityScore)
	assert.Equal(t, 0.5, score.TimeDecayFactor)
	// (0.4*0.5 + 0.3*1.0 + 0.2*0.5 + 0.1*0) * 100 * 0.5
	assert.InDelta(t, 30.0, score.Overall, 1e-9)
}

// -----------------------------------------------------------------------------
// Sub-scores
// -----------------------------------------------------------------------------

func TestCalculate_PerfectRecord(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(1000)
	fillWindow(w, 150, true, true, 0.8)

	score := c.Calculate(w, scoreNow)
	assert.Equal(t, 1.0, score.ApprovalRate)
	assert.Equal(t, 1.0, score.SuccessRate)
	assert.Equal(t, 1.0, score.ConsistencyScore)
	assert.InDelta(t, 0.8, score.ComplexityScore, 1e-9)
	assert.Equal(t, 1.0, score.TimeDecayFactor)
	// (0.4 + 0.3 + 0.2 + 0.08) * 100
	assert.InDelta(t, 98.0, score.Overall, 1e-9)
}

func TestApprovalRate_MixedOutcomes(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(1000)
	fillWindow(w, 30, true, true, 0)
	fillWindow(w, 10, false, true, 0)

	score := c.Calculate(w, scoreNow)
	assert.InDelta(t, 0.75, score.ApprovalRate, 1e-9)
}

func TestConsistency_TooFewActionsDefaultsToNeutral(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(100)
	fillWindow(w, 5, true, true, 0)

	score := c.Calculate(w, scoreNow)
	assert.Equal(t, 0.5, score.ConsistencyScore)
}

func TestConsistency_ErraticOutcomesScoreLow(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(1000)
	// alternating approve/deny on the same action type: maximum variance
	start := scoreNow.Add(-50 * time.Minute)
	for i := 0; i < 50; i++ {
		w.Append(types.BehaviorMetric{
			Type:       types.MetricApprovalRate,
			Value:      float64(i % 2),
			ActionType: "code_gen",
			Weight:     1,
			Timestamp:  start.Add(time.Duration(i) * time.Minute),
		})
	}

	score := c.Calculate(w, scoreNow)
	// binary variance peaks at 0.25, so 1 - 2*0.25 = 0.5
	assert.InDelta(t, 0.5, score.ConsistencyScore, 1e-9)
}

func TestComplexity_FailuresOnComplexActionsZeroTheScore(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(1000)
	fillWindow(w, 20, true, false, 0.9)

	score := c.Calculate(w, scoreNow)
	// mean complexity 0.9 but every complex action failed
	assert.Equal(t, 0.0, score.ComplexityScore)
}

func TestComplexity_SimpleActionsIgnoreSuccessPairing(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(1000)
	fillWindow(w, 20, true, false, 0.3)

	score := c.Calculate(w, scoreNow)
	// no action crosses the complex bar, success pairing never applies
	assert.InDelta(t, 0.3, score.ComplexityScore, 1e-9)
}

// -----------------------------------------------------------------------------
// Time decay
// -----------------------------------------------------------------------------

func TestTimeDecay_ActiveSubjectHasNoDecay(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(100)
	w.Append(metricAt(types.MetricApprovalRate, 1, scoreNow.Add(-10*24*time.Hour)))

	score := c.Calculate(w, scoreNow)
	assert.Equal(t, 1.0, score.TimeDecayFactor)
}

func TestTimeDecay_DecaysPerMonthBeyondWindow(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(100)
	// 90 days of grace plus exactly two 30-day months of inactivity
	w.Append(metricAt(types.MetricApprovalRate, 1, scoreNow.Add(-(90+60)*24*time.Hour)))

	score := c.Calculate(w, scoreNow)
	assert.InDelta(t, 0.9025, score.TimeDecayFactor, 1e-6)
}

func TestTimeDecay_FlooredAtHalf(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()
	w := NewMetricWindow(100)
	w.Append(metricAt(types.MetricApprovalRate, 1, scoreNow.Add(-5*365*24*time.Hour)))

	score := c.Calculate(w, scoreNow)
	assert.Equal(t, 0.5, score.TimeDecayFactor)
}

// -----------------------------------------------------------------------------
// Bounds
// -----------------------------------------------------------------------------

func TestCalculate_OverallWithinBounds(t *testing.T) {
	t.Parallel()

	c := newTestCalculator()

	worst := NewMetricWindow(1000)
	fillWindow(worst, 100, false, false, 0)
	score := c.Calculate(worst, scoreNow)
	require.GreaterOrEqual(t, score.Overall, 0.0)

	best := NewMetricWindow(1000)
	fillWindow(best, 100, true, true, 1.0)
	score = c.Calculate(best, scoreNow)
	require.LessOrEqual(t, score.Overall, 100.0)
}
