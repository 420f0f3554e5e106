package coordinator

import (
	"time"
)

// AgentWorkload tracks one registered agent's capacity and track record.
// Mutated only by the coordinator under its lock.
type AgentWorkload struct {
	AgentID           string
	CurrentTasks      map[string]struct{}
	CompletedTasks    int
	FailedTasks       int
	AvgCompletionTime time.Duration
	Capabilities      map[string]struct{}
	Availability      float64
}

func newAgentWorkload(agentID string, capabilities []string, availability float64) *AgentWorkload {
	caps := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		caps[c] = struct{}{}
	}
	return &AgentWorkload{
		AgentID:      agentID,
		CurrentTasks: make(map[string]struct{}),
		Capabilities: caps,
		Availability: availability,
	}
}

// hasCapabilities reports whether the agent covers every required capability.
func (w *AgentWorkload) hasCapabilities(required []string) bool {
	for _, c := range required {
		if _, ok := w.Capabilities[c]; !ok {
			return false
		}
	}
	return true
}

// performanceRatio ranks agents by completions per failure.
func (w *AgentWorkload) performanceRatio() float64 {
	return float64(w.CompletedTasks) / float64(max(1, w.FailedTasks))
}

// recordCompletion updates counters and the running average completion time
// with a simple incremental mean.
func (w *AgentWorkload) recordCompletion(elapsed time.Duration) {
	w.CompletedTasks++
	n := time.Duration(w.CompletedTasks)
	w.AvgCompletionTime += (elapsed - w.AvgCompletionTime) / n
}

// WorkloadStats is a point-in-time snapshot of one agent's workload.
type WorkloadStats struct {
	AgentID           string        `json:"agent_id"`
	CurrentTasks      int           `json:"current_tasks"`
	CompletedTasks    int           `json:"completed_tasks"`
	FailedTasks       int           `json:"failed_tasks"`
	AvgCompletionTime time.Duration `json:"avg_completion_time"`
	Capabilities      []string      `json:"capabilities"`
	Availability      float64       `json:"availability"`
}

func (w *AgentWorkload) stats() WorkloadStats {
	caps := make([]string, 0, len(w.Capabilities))
	for c := range w.Capabilities {
		caps = append(caps, c)
	}
	return WorkloadStats{
		AgentID:           w.AgentID,
		CurrentTasks:      len(w.CurrentTasks),
		CompletedTasks:    w.CompletedTasks,
		FailedTasks:       w.FailedTasks,
		AvgCompletionTime: w.AvgCompletionTime,
		Capabilities:      caps,
		Availability:      w.Availability,
	}
}
