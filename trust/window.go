package trust

import (
	"time"

	"github.com/BaSui01/trustflow/types"
)

// MetricWindow is a bounded FIFO window of behavioral metrics for one subject.
// When capacity is reached the oldest entry is evicted first. Appends are
// ordered by recording time; the engine serializes access, so the window
// itself is not safe for concurrent use.
type MetricWindow struct {
	metrics  []types.BehaviorMetric
	capacity int
}

// NewMetricWindow creates a window with the given capacity.
func NewMetricWindow(capacity int) *MetricWindow {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MetricWindow{
		metrics:  make([]types.BehaviorMetric, 0, min(capacity, 1024)),
		capacity: capacity,
	}
}

// Append adds a metric, evicting the oldest entry when the window is full.
func (w *MetricWindow) Append(m types.BehaviorMetric) {
	if len(w.metrics) >= w.capacity {
		w.metrics = w.metrics[1:]
	}
	w.metrics = append(w.metrics, m)
}

// Len returns the number of metrics currently held.
func (w *MetricWindow) Len() int {
	return len(w.metrics)
}

// LastN returns up to n most recent metrics of the given type, oldest first.
func (w *MetricWindow) LastN(metricType types.MetricType, n int) []types.BehaviorMetric {
	out := make([]types.BehaviorMetric, 0, n)
	for i := len(w.metrics) - 1; i >= 0 && len(out) < n; i-- {
		if w.metrics[i].Type == metricType {
			out = append(out, w.metrics[i])
		}
	}
	// reverse back to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// LastActivity returns the timestamp of the most recent metric and whether
// the window holds any metrics at all.
func (w *MetricWindow) LastActivity() (time.Time, bool) {
	if len(w.metrics) == 0 {
		return time.Time{}, false
	}
	return w.metrics[len(w.metrics)-1].Timestamp, true
}
