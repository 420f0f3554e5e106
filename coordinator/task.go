package coordinator

import (
	"time"
)

// TaskStatus is the lifecycle state of a coordinated task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskBlocked    TaskStatus = "BLOCKED"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Strategy selects which eligible agents receive a task.
type Strategy string

const (
	// StrategyPriority picks the best-performing agents by completion ratio:
	// one agent for priority above 3, otherwise the top two.
	StrategyPriority Strategy = "PRIORITY"
	// StrategyFirstCome picks the first eligible agent.
	StrategyFirstCome Strategy = "FIRST_COME"
	// StrategyLoadBalance picks the agent with the fewest current tasks.
	StrategyLoadBalance Strategy = "LOAD_BALANCE"
	// StrategyExpertise picks the agent whose capability set best matches.
	StrategyExpertise Strategy = "EXPERTISE"
	// StrategyConsensus assigns to up to three agents for redundant execution.
	StrategyConsensus Strategy = "CONSENSUS"
)

// Valid reports whether the strategy is one of the known constants.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyFirstCome, StrategyLoadBalance, StrategyExpertise, StrategyConsensus:
		return true
	}
	return false
}

// Task is one unit of coordinated work. Dependencies holds the ids of tasks
// that must complete first; the coordinator strips entries as they complete,
// so an empty set means the task is ready.
type Task struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	RequiredCapabilities []string            `json:"required_capabilities,omitempty"`
	AssignedAgents       []string            `json:"assigned_agents,omitempty"`
	Dependencies         map[string]struct{} `json:"dependencies,omitempty"`
	Priority             int                 `json:"priority"`
	Strategy             Strategy            `json:"strategy"`
	Status               TaskStatus          `json:"status"`
	SubmittedAt          time.Time           `json:"submitted_at"`
	StartedAt            time.Time           `json:"started_at,omitempty"`
	CompletedAt          time.Time           `json:"completed_at,omitempty"`
	Result               any                 `json:"result,omitempty"`
	FailureReason        string              `json:"failure_reason,omitempty"`
}

// Ready reports whether every dependency has completed.
func (t *Task) Ready() bool {
	return len(t.Dependencies) == 0
}

// Clone returns a copy safe to hand outside the coordinator lock.
func (t *Task) Clone() *Task {
	out := *t
	if t.RequiredCapabilities != nil {
		out.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	}
	if t.AssignedAgents != nil {
		out.AssignedAgents = append([]string(nil), t.AssignedAgents...)
	}
	if t.Dependencies != nil {
		out.Dependencies = make(map[string]struct{}, len(t.Dependencies))
		for id := range t.Dependencies {
			out.Dependencies[id] = struct{}{}
		}
	}
	return &out
}

// TaskSpec is the caller-facing description of a task to submit.
type TaskSpec struct {
	Name                 string
	RequiredCapabilities []string
	Dependencies         []string
	Priority             int
	Strategy             Strategy
}
