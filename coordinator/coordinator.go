package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/trustflow/config"
	"github.com/BaSui01/trustflow/internal/clock"
	"github.com/BaSui01/trustflow/internal/metrics"
	"github.com/BaSui01/trustflow/notify"
	"github.com/BaSui01/trustflow/types"
)

const deadlockReason = "Deadlock detected"

// Coordinator schedules tasks onto registered agents. One mutex guards all
// scheduling state (queue, active tasks, workloads, resource holders); the
// background loop runs one Tick per interval and never blocks on I/O. Task
// completion is reported asynchronously by callers through CompleteTask and
// FailTask.
type Coordinator struct {
	mu sync.Mutex

	cfg       config.CoordinatorConfig
	clk       clock.Clock
	logger    *zap.Logger
	notifier  notify.Notifier
	collector *metrics.Collector

	agents     map[string]*AgentWorkload
	agentOrder []string
	queue      []string
	tasks      map[string]*Task
	completed  map[string]*Task
	resources  map[string]string

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock injects a clock (tests use a fake).
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clk = c }
}

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(co *Coordinator) { co.notifier = n }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(co *Coordinator) { co.collector = c }
}

// New creates a coordinator. Call Start to run the scheduling loop, or drive
// it manually with Tick.
func New(cfg config.CoordinatorConfig, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		cfg:       cfg,
		clk:       clock.NewReal(),
		logger:    logger.With(zap.String("component", "coordinator")),
		notifier:  notify.NopNotifier{},
		agents:    make(map[string]*AgentWorkload),
		tasks:     make(map[string]*Task),
		completed: make(map[string]*Task),
		resources: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// -----------------------------------------------------------------------------
// Agent registry
// -----------------------------------------------------------------------------

// RegisterAgent adds an agent to the pool.
func (c *Coordinator) RegisterAgent(agentID string, capabilities []string, availability float64) error {
	if agentID == "" {
		return types.NewError(types.ErrValidation, "agentID is required")
	}
	if availability < 0 || availability > 1 {
		return types.NewErrorf(types.ErrValidation, "availability %v outside [0,1]", availability)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.agents[agentID]; ok {
		return types.NewErrorf(types.ErrValidation, "agent %s already registered", agentID)
	}
	c.agents[agentID] = newAgentWorkload(agentID, capabilities, availability)
	c.agentOrder = append(c.agentOrder, agentID)

	c.logger.Info("agent registered",
		zap.String("agent_id", agentID),
		zap.Strings("capabilities", capabilities),
		zap.Float64("availability", availability),
	)
	return nil
}

// UnregisterAgent removes an agent. Its in-flight tasks go back to the queue
// for reassignment, and any resources it holds are released.
func (c *Coordinator) UnregisterAgent(agentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.agents[agentID]
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "agent %s not registered", agentID)
	}

	for taskID := range w.CurrentTasks {
		task, ok := c.tasks[taskID]
		if !ok {
			continue
		}
		task.AssignedAgents = removeString(task.AssignedAgents, agentID)
		if len(task.AssignedAgents) == 0 && !task.Status.Terminal() {
			task.Status = TaskPending
			task.StartedAt = time.Time{}
			c.queue = append(c.queue, taskID)
			c.logger.Warn("task requeued after agent unregistration",
				zap.String("task_id", taskID),
				zap.String("agent_id", agentID),
			)
		}
	}
	for resource, holder := range c.resources {
		if holder == agentID {
			delete(c.resources, resource)
		}
	}

	delete(c.agents, agentID)
	c.agentOrder = removeString(c.agentOrder, agentID)
	c.logger.Info("agent unregistered", zap.String("agent_id", agentID))
	return nil
}

// Stats returns a workload snapshot per registered agent.
func (c *Coordinator) Stats() map[string]WorkloadStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]WorkloadStats, len(c.agents))
	for id, w := range c.agents {
		out[id] = w.stats()
	}
	return out
}

// -----------------------------------------------------------------------------
// Task submission and assignment
// -----------------------------------------------------------------------------

// SubmitTask queues a task for scheduling and returns its id.
func (c *Coordinator) SubmitTask(spec TaskSpec) (string, error) {
	if spec.Name == "" {
		return "", types.NewError(types.ErrValidation, "task name is required")
	}
	strategy := spec.Strategy
	if strategy == "" {
		strategy = StrategyFirstCome
	}
	if !strategy.Valid() {
		return "", types.NewErrorf(types.ErrValidation, "unknown strategy %q", spec.Strategy)
	}

	deps := make(map[string]struct{}, len(spec.Dependencies))
	for _, dep := range spec.Dependencies {
		deps[dep] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// dependencies on already-completed tasks are satisfied at submission
	for dep := range deps {
		if _, done := c.completed[dep]; done {
			delete(deps, dep)
		}
	}

	task := &Task{
		ID:                   uuid.New().String(),
		Name:                 spec.Name,
		RequiredCapabilities: append([]string(nil), spec.RequiredCapabilities...),
		Dependencies:         deps,
		Priority:             spec.Priority,
		Strategy:             strategy,
		Status:               TaskPending,
		SubmittedAt:          c.clk.Now(),
	}
	c.tasks[task.ID] = task
	c.queue = append(c.queue, task.ID)

	c.logger.Info("task submitted",
		zap.String("task_id", task.ID),
		zap.String("name", task.Name),
		zap.Int("priority", task.Priority),
		zap.String("strategy", string(strategy)),
		zap.Int("dependencies", len(deps)),
	)
	if c.collector != nil {
		c.collector.SetTasksActive(len(c.tasks))
	}
	return task.ID, nil
}

// AddDependency makes taskID wait for dependsOn. Both tasks must still be
// active; a dependency on an already-finished task is a no-op.
func (c *Coordinator) AddDependency(taskID, dependsOn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[taskID]
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "task %s not found", taskID)
	}
	if task.Status != TaskPending && task.Status != TaskBlocked {
		return types.NewErrorf(types.ErrInvalidTransition,
			"task %s is %s, dependencies are frozen", taskID, task.Status)
	}
	if _, done := c.completed[dependsOn]; done {
		return nil
	}
	if _, ok := c.tasks[dependsOn]; !ok {
		return types.NewErrorf(types.ErrNotFound, "dependency task %s not found", dependsOn)
	}
	task.Dependencies[dependsOn] = struct{}{}
	return nil
}

// AssignTask assigns a ready task immediately, outside the scheduler loop.
func (c *Coordinator) AssignTask(taskID string, strategy Strategy) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[taskID]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "task %s not found", taskID)
	}
	if task.Status != TaskPending && task.Status != TaskBlocked {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"task %s is %s, not assignable", taskID, task.Status)
	}
	if !task.Ready() {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"task %s has %d unmet dependencies", taskID, len(task.Dependencies))
	}

	if !c.assignLocked(task, strategy) {
		return nil, types.NewErrorf(types.ErrCapacityExceeded,
			"no eligible agent for task %s", taskID)
	}
	c.queue = removeString(c.queue, taskID)
	return append([]string(nil), task.AssignedAgents...), nil
}

// eligibleAgentsLocked returns agents able to take the task, in registration
// order. Caller must hold c.mu.
func (c *Coordinator) eligibleAgentsLocked(task *Task) []*AgentWorkload {
	var out []*AgentWorkload
	for _, id := range c.agentOrder {
		w := c.agents[id]
		if !w.hasCapabilities(task.RequiredCapabilities) {
			continue
		}
		if w.Availability < c.cfg.MinAvailability {
			continue
		}
		if len(w.CurrentTasks) >= c.cfg.MaxConcurrentTasksPerAgent {
			continue
		}
		out = append(out, w)
	}
	return out
}

// assignLocked attempts assignment and reports success. On no eligible agent
// the task becomes BLOCKED. Caller must hold c.mu.
func (c *Coordinator) assignLocked(task *Task, strategy Strategy) bool {
	eligible := c.eligibleAgentsLocked(task)
	if len(eligible) == 0 {
		if task.Status != TaskBlocked {
			task.Status = TaskBlocked
			c.logger.Warn("task blocked, no eligible agent",
				zap.String("task_id", task.ID),
				zap.Strings("required_capabilities", task.RequiredCapabilities),
			)
			c.notifier.Notify(&notify.TaskBlocked{
				TaskID:     task.ID,
				Reason:     "no eligible agent",
				Timestamp_: c.clk.Now(),
			})
		}
		return false
	}

	now := c.clk.Now()
	task.AssignedAgents = selectAgents(task, eligible, strategy)
	task.Status = TaskAssigned
	task.StartedAt = now
	for _, agentID := range task.AssignedAgents {
		c.agents[agentID].CurrentTasks[task.ID] = struct{}{}
	}

	c.logger.Info("task assigned",
		zap.String("task_id", task.ID),
		zap.Strings("agents", task.AssignedAgents),
		zap.String("strategy", string(strategy)),
	)
	if c.collector != nil {
		c.collector.RecordTaskAssignment(now.Sub(task.SubmittedAt))
	}
	return true
}

// -----------------------------------------------------------------------------
// Scheduler loop
// -----------------------------------------------------------------------------

// Start launches the background scheduling loop. Stop or context
// cancellation ends it.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.group, ctx = errgroup.WithContext(ctx)

	c.group.Go(func() error {
		c.logger.Info("scheduler started",
			zap.Duration("tick_interval", c.cfg.SchedulerTickInterval),
		)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("scheduler stopped")
				return nil
			case <-c.clk.After(c.cfg.SchedulerTickInterval):
				c.Tick()
			}
		}
	})
}

// Stop halts the scheduling loop and waits for it to exit.
func (c *Coordinator) Stop() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	return c.group.Wait()
}

// Tick runs one scheduling pass: fail timed-out tasks, break dependency
// cycles, then walk the queue assigning ready tasks and requeueing the rest.
func (c *Coordinator) Tick() {
	c.mu.Lock()
	now := c.clk.Now()

	// wall-clock timeouts, checked per tick rather than per-task timers
	for id, task := range c.tasks {
		if task.Status != TaskAssigned && task.Status != TaskInProgress {
			continue
		}
		if now.Sub(task.StartedAt) >= c.cfg.TaskTimeout {
			c.failLocked(task, "task timeout exceeded")
			c.queue = removeString(c.queue, id)
		}
	}

	// break at most one dependency cycle per tick
	if victim := detectDeadlock(c.tasks); victim != "" {
		task := c.tasks[victim]
		c.failLocked(task, deadlockReason)
		c.queue = removeString(c.queue, victim)
		c.logger.Warn("dependency cycle broken",
			zap.String("task_id", victim),
		)
		if c.collector != nil {
			c.collector.RecordDeadlock()
		}
	}

	pending := c.queue
	c.queue = c.queue[:0:0]
	for _, id := range pending {
		task, ok := c.tasks[id]
		if !ok || task.Status.Terminal() {
			continue
		}
		if !task.Ready() {
			c.queue = append(c.queue, id)
			continue
		}
		if !c.assignLocked(task, task.Strategy) {
			// blocked tasks stay queued and are retried next tick
			c.queue = append(c.queue, id)
		}
	}

	if c.collector != nil {
		c.collector.SetTasksActive(len(c.tasks))
	}
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Completion and failure
// -----------------------------------------------------------------------------

// StartTask marks an assigned task as in progress.
func (c *Coordinator) StartTask(taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[taskID]
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "task %s not found", taskID)
	}
	if task.Status != TaskAssigned {
		return types.NewErrorf(types.ErrInvalidTransition,
			"task %s is %s, not ASSIGNED", taskID, task.Status)
	}
	task.Status = TaskInProgress
	return nil
}

// CompleteTask records a successful result, updates the assignees' workload,
// and unblocks tasks that depended on this one.
func (c *Coordinator) CompleteTask(taskID string, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[taskID]
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "task %s not found", taskID)
	}
	if task.Status != TaskAssigned && task.Status != TaskInProgress {
		return types.NewErrorf(types.ErrInvalidTransition,
			"task %s is %s, cannot complete", taskID, task.Status)
	}

	now := c.clk.Now()
	task.Status = TaskCompleted
	task.CompletedAt = now
	task.Result = result

	for _, agentID := range task.AssignedAgents {
		if w, ok := c.agents[agentID]; ok {
			delete(w.CurrentTasks, taskID)
			w.recordCompletion(now.Sub(task.StartedAt))
		}
	}

	// completion satisfies this dependency everywhere
	for _, other := range c.tasks {
		delete(other.Dependencies, taskID)
	}

	delete(c.tasks, taskID)
	c.completed[taskID] = task
	c.queue = removeString(c.queue, taskID)

	c.logger.Info("task completed",
		zap.String("task_id", taskID),
		zap.Duration("elapsed", now.Sub(task.StartedAt)),
	)
	if c.collector != nil {
		c.collector.RecordTaskOutcome(string(TaskCompleted))
		c.collector.SetTasksActive(len(c.tasks))
	}
	return nil
}

// FailTask records a failure and updates the assignees' workload.
func (c *Coordinator) FailTask(taskID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[taskID]
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "task %s not found", taskID)
	}
	if task.Status.Terminal() {
		return types.NewErrorf(types.ErrInvalidTransition,
			"task %s is already %s", taskID, task.Status)
	}
	c.failLocked(task, reason)
	c.queue = removeString(c.queue, taskID)
	return nil
}

// failLocked applies the failure transition. Caller must hold c.mu.
func (c *Coordinator) failLocked(task *Task, reason string) {
	now := c.clk.Now()
	task.Status = TaskFailed
	task.CompletedAt = now
	task.FailureReason = reason

	for _, agentID := range task.AssignedAgents {
		if w, ok := c.agents[agentID]; ok {
			delete(w.CurrentTasks, task.ID)
			w.FailedTasks++
		}
	}

	delete(c.tasks, task.ID)
	c.completed[task.ID] = task

	// a failed dependency no longer gates its dependents
	for _, other := range c.tasks {
		delete(other.Dependencies, task.ID)
	}

	c.logger.Warn("task failed",
		zap.String("task_id", task.ID),
		zap.String("reason", reason),
	)
	if c.collector != nil {
		c.collector.RecordTaskOutcome(string(TaskFailed))
		c.collector.SetTasksActive(len(c.tasks))
	}
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// GetTask returns a snapshot of a task, active or finished.
func (c *Coordinator) GetTask(taskID string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task, ok := c.tasks[taskID]; ok {
		return task.Clone(), nil
	}
	if task, ok := c.completed[taskID]; ok {
		return task.Clone(), nil
	}
	return nil, types.NewErrorf(types.ErrNotFound, "task %s not found", taskID)
}

// ActiveTasks returns snapshots of all non-terminal tasks, ordered by
// submission time.
func (c *Coordinator) ActiveTasks() []*Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Task, 0, len(c.tasks))
	for _, task := range c.tasks {
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

func removeString(in []string, s string) []string {
	out := in[:0]
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
