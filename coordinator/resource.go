package coordinator

import (
	"go.uber.org/zap"

	"github.com/BaSui01/trustflow/types"
)

// ResolveConflict decides which candidate agent gets a contended resource
// and records it as the holder. If the resource already has a holder among
// the candidates, that holder wins again without re-evaluation: holders are
// stable until they release.
//
// Otherwise StrategyPriority awards the resource to the candidate running
// the highest-priority task; any other strategy takes the first candidate.
func (c *Coordinator) ResolveConflict(resource string, candidates []string, strategy Strategy) (string, error) {
	if resource == "" || len(candidates) == 0 {
		return "", types.NewError(types.ErrValidation, "resource and candidates are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if holder, ok := c.resources[resource]; ok {
		for _, agent := range candidates {
			if agent == holder {
				return holder, nil
			}
		}
		// held by someone outside the candidate set
		return "", types.NewErrorf(types.ErrInvalidTransition,
			"resource %s is held by %s", resource, holder)
	}

	winner := candidates[0]
	if strategy == StrategyPriority {
		best := -1
		for _, agent := range candidates {
			if p := c.highestAssignedPriorityLocked(agent); p > best {
				best = p
				winner = agent
			}
		}
	}

	c.resources[resource] = winner
	c.logger.Info("resource granted",
		zap.String("resource", resource),
		zap.String("agent", winner),
		zap.String("strategy", string(strategy)),
	)
	return winner, nil
}

// highestAssignedPriorityLocked returns the top priority among the agent's
// current tasks, or -1 when it has none. Caller must hold c.mu.
func (c *Coordinator) highestAssignedPriorityLocked(agentID string) int {
	w, ok := c.agents[agentID]
	if !ok {
		return -1
	}
	best := -1
	for taskID := range w.CurrentTasks {
		if task, ok := c.tasks[taskID]; ok && task.Priority > best {
			best = task.Priority
		}
	}
	return best
}

// ReleaseResource frees a resource. Only the current holder may release;
// anyone else gets false.
func (c *Coordinator) ReleaseResource(resource, agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	holder, ok := c.resources[resource]
	if !ok || holder != agentID {
		return false
	}
	delete(c.resources, resource)
	c.logger.Info("resource released",
		zap.String("resource", resource),
		zap.String("agent", agentID),
	)
	return true
}

// ResourceHolder returns the current holder of a resource, if any.
func (c *Coordinator) ResourceHolder(resource string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	holder, ok := c.resources[resource]
	return holder, ok
}
