package trust

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/BaSui01/trustflow/types"
)

// Whatever behavioral history a subject accumulates, the composite score and
// its sub-scores stay within their documented ranges.
func TestCalculate_ScoreBoundsProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		c := newTestCalculator()
		w := NewMetricWindow(rapid.IntRange(1, 500).Draw(t, "capacity"))

		now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		n := rapid.IntRange(0, 300).Draw(t, "actions")
		for i := 0; i < n; i++ {
			at := now.Add(-time.Duration(rapid.Int64Range(0, 400*24*3600).Draw(t, "age")) * time.Second)
			action := rapid.SampledFrom([]string{"code_gen", "deploy", "review"}).Draw(t, "action_type")

			w.Append(types.BehaviorMetric{
				Type:       types.MetricApprovalRate,
				Value:      float64(rapid.IntRange(0, 1).Draw(t, "approved")),
				ActionType: action,
				Weight:     1,
				Timestamp:  at,
			})
			if rapid.Bool().Draw(t, "has_success") {
				w.Append(types.BehaviorMetric{
					Type:       types.MetricSuccessRate,
					Value:      float64(rapid.IntRange(0, 1).Draw(t, "successful")),
					ActionType: action,
					Weight:     1,
					Timestamp:  at,
				})
			}
			if rapid.Bool().Draw(t, "has_complexity") {
				w.Append(types.BehaviorMetric{
					Type:       types.MetricComplexity,
					Value:      rapid.Float64Range(0, 1).Draw(t, "complexity"),
					ActionType: action,
					Weight:     1,
					Timestamp:  at,
				})
			}
		}

		score := c.Calculate(w, now)

		if score.Overall < 0 || score.Overall > 100 {
			t.Fatalf("overall score %v outside [0,100]", score.Overall)
		}
		for name, v := range map[string]float64{
			"approval_rate":     score.ApprovalRate,
			"success_rate":      score.SuccessRate,
			"consistency_score": score.ConsistencyScore,
			"complexity_score":  score.ComplexityScore,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("%s %v outside [0,1]", name, v)
			}
		}
		if score.TimeDecayFactor < 0.5 || score.TimeDecayFactor > 1 {
			t.Fatalf("time decay factor %v outside [0.5,1]", score.TimeDecayFactor)
		}
	})
}

// The window never holds more than its capacity, and eviction is strictly
// oldest-first.
func TestMetricWindow_CapacityProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 64).Draw(t, "capacity")
		n := rapid.IntRange(0, 200).Draw(t, "appends")

		w := NewMetricWindow(capacity)
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < n; i++ {
			w.Append(types.BehaviorMetric{
				Type:      types.MetricApprovalRate,
				Value:     float64(i),
				Weight:    1,
				Timestamp: base.Add(time.Duration(i) * time.Second),
			})
		}

		if w.Len() > capacity {
			t.Fatalf("window length %d exceeds capacity %d", w.Len(), capacity)
		}
		kept := w.LastN(types.MetricApprovalRate, n)
		if n > 0 {
			expectFirst := float64(max(0, n-capacity))
			if kept[0].Value != expectFirst {
				t.Fatalf("oldest kept metric is %v, want %v", kept[0].Value, expectFirst)
			}
			if kept[len(kept)-1].Value != float64(n-1) {
				t.Fatalf("newest kept metric is %v, want %v", kept[len(kept)-1].Value, float64(n-1))
			}
		}
	})
}
