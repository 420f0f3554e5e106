package coordinator

import (
	"sort"
)

// selectAgents picks assignees from the eligible set according to the
// strategy. The eligible slice is in agent registration order (first come)
// and must be non-empty.
func selectAgents(task *Task, eligible []*AgentWorkload, strategy Strategy) []string {
	switch strategy {
	case StrategyPriority:
		return selectByPerformance(task, eligible)
	case StrategyLoadBalance:
		return selectLeastLoaded(eligible)
	case StrategyExpertise:
		return selectByExpertise(task, eligible)
	case StrategyConsensus:
		return selectConsensus(eligible)
	default: // FIRST_COME
		return []string{eligible[0].AgentID}
	}
}

// selectByPerformance ranks eligible agents by completions-per-failure and
// takes the single best for high-priority tasks, the top two otherwise.
func selectByPerformance(task *Task, eligible []*AgentWorkload) []string {
	ranked := append([]*AgentWorkload(nil), eligible...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].performanceRatio() > ranked[j].performanceRatio()
	})

	take := 2
	if task.Priority > 3 {
		take = 1
	}
	take = min(take, len(ranked))

	out := make([]string, 0, take)
	for _, w := range ranked[:take] {
		out = append(out, w.AgentID)
	}
	return out
}

func selectLeastLoaded(eligible []*AgentWorkload) []string {
	best := eligible[0]
	for _, w := range eligible[1:] {
		if len(w.CurrentTasks) < len(best.CurrentTasks) {
			best = w
		}
	}
	return []string{best.AgentID}
}

// selectByExpertise maximizes the capability intersection with the task.
// Eligible agents all cover the required set, so ties are broken toward the
// agent with the narrowest capability set, i.e. the specialist.
func selectByExpertise(task *Task, eligible []*AgentWorkload) []string {
	best := eligible[0]
	bestScore := expertiseScore(task, best)
	for _, w := range eligible[1:] {
		score := expertiseScore(task, w)
		if score > bestScore || (score == bestScore && len(w.Capabilities) < len(best.Capabilities)) {
			best = w
			bestScore = score
		}
	}
	return []string{best.AgentID}
}

func expertiseScore(task *Task, w *AgentWorkload) int {
	score := 0
	for _, c := range task.RequiredCapabilities {
		if _, ok := w.Capabilities[c]; ok {
			score++
		}
	}
	return score
}

// selectConsensus assigns redundantly to up to three agents.
func selectConsensus(eligible []*AgentWorkload) []string {
	take := min(3, len(eligible))
	out := make([]string, 0, take)
	for _, w := range eligible[:take] {
		out = append(out, w.AgentID)
	}
	return out
}
