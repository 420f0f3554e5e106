package trust

import (
	"math"
	"time"

	"github.com/BaSui01/trustflow/types"
)

// Sub-score weights of the composite trust score.
const (
	weightApproval    = 0.40
	weightSuccess     = 0.30
	weightConsistency = 0.20
	weightComplexity  = 0.10
)

const (
	approvalSampleSize    = 100
	successSampleSize     = 100
	consistencySampleSize = 50
	consistencyMinActions = 10
	complexActionBar      = 0.7
	decayRatePerMonth     = 0.95
	decayFloor            = 0.5
)

// Calculator derives a composite trust score from a metric window. It is
// pure: the same window and clock reading always produce the same score.
type Calculator struct {
	// ActivityWindow is how long a subject may be inactive before time
	// decay starts. Default 90 days.
	ActivityWindow time.Duration
}

// NewCalculator creates a calculator with the given activity window.
func NewCalculator(activityWindow time.Duration) *Calculator {
	if activityWindow <= 0 {
		activityWindow = 90 * 24 * time.Hour
	}
	return &Calculator{ActivityWindow: activityWindow}
}

// Calculate computes the composite score over the window as of now.
// The overall result is clamped to [0,100].
func (c *Calculator) Calculate(w *MetricWindow, now time.Time) types.TrustScore {
	approval := c.approvalRate(w)
	success := c.successRate(w)
	consistency := c.consistencyScore(w)
	complexity := c.complexityScore(w)
	decay := c.timeDecayFactor(w, now)

	overall := (weightApproval*approval +
		weightSuccess*success +
		weightConsistency*consistency +
		weightComplexity*complexity) * 100 * decay

	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	return types.TrustScore{
		Overall:          overall,
		ApprovalRate:     approval,
		SuccessRate:      success,
		ConsistencyScore: consistency,
		ComplexityScore:  complexity,
		TimeDecayFactor:  decay,
		CalculatedAt:     now,
	}
}

// approvalRate is the mean approval outcome over the last 100 approval
// metrics. With no data it is neutral (0.5): a subject with no history has
// earned neither trust nor suspicion.
func (c *Calculator) approvalRate(w *MetricWindow) float64 {
	samples := w.LastN(types.MetricApprovalRate, approvalSampleSize)
	if len(samples) == 0 {
		return 0.5
	}
	return meanValue(samples)
}

// successRate is the mean success outcome over the last 100 success metrics.
// With no data it defaults to 1.0: innocent until proven otherwise.
func (c *Calculator) successRate(w *MetricWindow) float64 {
	samples := w.LastN(types.MetricSuccessRate, successSampleSize)
	if len(samples) == 0 {
		return 1.0
	}
	return meanValue(samples)
}

// consistencyScore measures how predictable approval outcomes are per action
// type over the last 50 actions: 1 - 2*variance of the binary outcomes,
// averaged across action types weighted by sample count. Binary variance
// peaks at 0.25, so the score stays within [0.5, 1.0] once enough data
// exists; below 10 actions it defaults to 0.5.
func (c *Calculator) consistencyScore(w *MetricWindow) float64 {
	samples := w.LastN(types.MetricApprovalRate, consistencySampleSize)
	if len(samples) < consistencyMinActions {
		return 0.5
	}

	byAction := make(map[string][]float64)
	for _, m := range samples {
		byAction[m.ActionType] = append(byAction[m.ActionType], m.Value)
	}

	var weightedVariance float64
	for _, values := range byAction {
		weightedVariance += variance(values) * float64(len(values))
	}
	weightedVariance /= float64(len(samples))

	return types.Clamp01(1 - 2*weightedVariance)
}

// complexityScore is the mean handled complexity multiplied by the success
// rate on the complex subset (complexity >= 0.7). Metrics recorded for one
// tracked action share a timestamp and action type, which is how success
// outcomes are paired with their complexity.
func (c *Calculator) complexityScore(w *MetricWindow) float64 {
	complexities := w.LastN(types.MetricComplexity, approvalSampleSize)
	if len(complexities) == 0 {
		return 0
	}

	mean := meanValue(complexities)

	successes := w.LastN(types.MetricSuccessRate, successSampleSize)
	var complexTotal, complexSucceeded float64
	for _, cm := range complexities {
		if cm.Value < complexActionBar {
			continue
		}
		for _, sm := range successes {
			if sm.Timestamp.Equal(cm.Timestamp) && sm.ActionType == cm.ActionType {
				complexTotal++
				complexSucceeded += sm.Value
				break
			}
		}
	}

	successOnComplex := 1.0
	if complexTotal > 0 {
		successOnComplex = complexSucceeded / complexTotal
	}

	return types.Clamp01(mean * successOnComplex)
}

// timeDecayFactor is 1.0 while the subject has activity within the activity
// window, then decays 5% per month of inactivity beyond it, floored at 0.5.
// An entirely empty window yields the floor.
func (c *Calculator) timeDecayFactor(w *MetricWindow, now time.Time) float64 {
	last, ok := w.LastActivity()
	if !ok {
		return decayFloor
	}

	inactive := now.Sub(last)
	if inactive <= c.ActivityWindow {
		return 1.0
	}

	monthsBeyond := (inactive - c.ActivityWindow).Hours() / (30 * 24)
	factor := math.Pow(decayRatePerMonth, monthsBeyond)
	if factor < decayFloor {
		return decayFloor
	}
	return factor
}

func meanValue(samples []types.BehaviorMetric) float64 {
	var sum float64
	for _, m := range samples {
		sum += m.Value
	}
	return sum / float64(len(samples))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}
