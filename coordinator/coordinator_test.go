package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/trustflow/config"
	"github.com/BaSui01/trustflow/internal/clock"
	"github.com/BaSui01/trustflow/types"
)

var coordStart = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(coordStart)
	all := append([]Option{WithClock(clk)}, opts...)
	return New(config.DefaultCoordinatorConfig(), zap.NewNop(), all...), clk
}

func mustSubmit(t *testing.T, c *Coordinator, spec TaskSpec) string {
	t.Helper()
	id, err := c.SubmitTask(spec)
	require.NoError(t, err)
	return id
}

func taskStatus(t *testing.T, c *Coordinator, id string) TaskStatus {
	t.Helper()
	task, err := c.GetTask(id)
	require.NoError(t, err)
	return task.Status
}

// -----------------------------------------------------------------------------
// Submission
// -----------------------------------------------------------------------------

func TestSubmitTask_Validation(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	_, err := c.SubmitTask(TaskSpec{})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))

	_, err = c.SubmitTask(TaskSpec{Name: "x", Strategy: Strategy("ROUND_ROBIN")})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestSubmitTask_DefaultsToFirstCome(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	id := mustSubmit(t, c, TaskSpec{Name: "build"})

	task, err := c.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, StrategyFirstCome, task.Strategy)
	assert.Equal(t, TaskPending, task.Status)
}

// -----------------------------------------------------------------------------
// Agent registry
// -----------------------------------------------------------------------------

func TestRegisterAgent_Validation(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	assert.Error(t, c.RegisterAgent("", nil, 1.0))
	assert.Error(t, c.RegisterAgent("a", nil, 1.5))
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))
	assert.Error(t, c.RegisterAgent("a", nil, 1.0))
}

func TestUnregisterAgent_RequeuesInFlightTasks(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", []string{"go"}, 1.0))

	id := mustSubmit(t, c, TaskSpec{Name: "build", RequiredCapabilities: []string{"go"}})
	c.Tick()
	require.Equal(t, TaskAssigned, taskStatus(t, c, id))

	require.NoError(t, c.UnregisterAgent("a"))
	assert.Equal(t, TaskPending, taskStatus(t, c, id))

	// a new capable agent picks it up on the next tick
	require.NoError(t, c.RegisterAgent("b", []string{"go"}, 1.0))
	c.Tick()
	task, err := c.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, TaskAssigned, task.Status)
	assert.Equal(t, []string{"b"}, task.AssignedAgents)
}

// -----------------------------------------------------------------------------
// Scheduling
// -----------------------------------------------------------------------------

func TestTick_DependencyGating(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	dep := mustSubmit(t, c, TaskSpec{Name: "compile"})
	dependent := mustSubmit(t, c, TaskSpec{Name: "test", Dependencies: []string{dep}})

	c.Tick()
	assert.Equal(t, TaskAssigned, taskStatus(t, c, dep))
	// gated task is never assigned while its dependency is open
	assert.Equal(t, TaskPending, taskStatus(t, c, dependent))

	c.Tick()
	assert.Equal(t, TaskPending, taskStatus(t, c, dependent))

	require.NoError(t, c.CompleteTask(dep, "ok"))
	c.Tick()
	assert.Equal(t, TaskAssigned, taskStatus(t, c, dependent))
}

func TestTick_NoEligibleAgentBlocksTask(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", []string{"js"}, 1.0))

	id := mustSubmit(t, c, TaskSpec{Name: "build", RequiredCapabilities: []string{"go"}})
	c.Tick()
	assert.Equal(t, TaskBlocked, taskStatus(t, c, id))

	// a capable agent arriving unblocks it
	require.NoError(t, c.RegisterAgent("b", []string{"go"}, 1.0))
	c.Tick()
	assert.Equal(t, TaskAssigned, taskStatus(t, c, id))
}

func TestTick_LowAvailabilityAgentIsIneligible(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("sleepy", nil, 0.1))

	id := mustSubmit(t, c, TaskSpec{Name: "build"})
	c.Tick()
	assert.Equal(t, TaskBlocked, taskStatus(t, c, id))
}

func TestTick_ConcurrencyCapRespected(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultCoordinatorConfig()
	cfg.MaxConcurrentTasksPerAgent = 1
	clk := clock.NewFake(coordStart)
	c := New(cfg, zap.NewNop(), WithClock(clk))
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	first := mustSubmit(t, c, TaskSpec{Name: "one"})
	second := mustSubmit(t, c, TaskSpec{Name: "two"})

	c.Tick()
	assert.Equal(t, TaskAssigned, taskStatus(t, c, first))
	assert.Equal(t, TaskBlocked, taskStatus(t, c, second))

	require.NoError(t, c.CompleteTask(first, nil))
	c.Tick()
	assert.Equal(t, TaskAssigned, taskStatus(t, c, second))
}

func TestTick_FailsTimedOutTasks(t *testing.T) {
	t.Parallel()

	c, clk := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	id := mustSubmit(t, c, TaskSpec{Name: "slow"})
	c.Tick()
	require.Equal(t, TaskAssigned, taskStatus(t, c, id))

	clk.Advance(time.Hour)
	c.Tick()

	task, err := c.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, task.Status)
	assert.Contains(t, task.FailureReason, "timeout")
}

// Given a two-task dependency cycle, one tick fails exactly one of them with
// a deadlock reason and the other becomes schedulable.
func TestTick_DeadlockBreaksLiveness(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	idA := mustSubmit(t, c, TaskSpec{Name: "A"})
	idB := mustSubmit(t, c, TaskSpec{Name: "B", Dependencies: []string{idA}})
	require.NoError(t, c.AddDependency(idA, idB))

	c.Tick()

	statusA := taskStatus(t, c, idA)
	statusB := taskStatus(t, c, idB)
	failed, survivor := idA, idB
	if statusB == TaskFailed {
		failed, survivor = idB, idA
		statusA, statusB = statusB, statusA
	}
	require.Equal(t, TaskFailed, statusA, "exactly one cycle member must fail")
	require.NotEqual(t, TaskFailed, statusB)

	task, err := c.GetTask(failed)
	require.NoError(t, err)
	assert.Contains(t, task.FailureReason, "Deadlock")

	c.Tick()
	assert.Equal(t, TaskAssigned, taskStatus(t, c, survivor))
}

// -----------------------------------------------------------------------------
// Completion and workload accounting
// -----------------------------------------------------------------------------

func TestCompleteTask_UpdatesWorkload(t *testing.T) {
	t.Parallel()

	c, clk := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	first := mustSubmit(t, c, TaskSpec{Name: "one"})
	c.Tick()
	require.NoError(t, c.StartTask(first))
	clk.Advance(10 * time.Minute)
	require.NoError(t, c.CompleteTask(first, "done"))

	second := mustSubmit(t, c, TaskSpec{Name: "two"})
	c.Tick()
	clk.Advance(20 * time.Minute)
	require.NoError(t, c.CompleteTask(second, "done"))

	stats := c.Stats()["a"]
	assert.Equal(t, 0, stats.CurrentTasks)
	assert.Equal(t, 2, stats.CompletedTasks)
	assert.Equal(t, 15*time.Minute, stats.AvgCompletionTime)

	task, err := c.GetTask(first)
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, "done", task.Result)
}

func TestCompleteTask_InvalidTransitions(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	err := c.CompleteTask("ghost", nil)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	id := mustSubmit(t, c, TaskSpec{Name: "one"})
	err = c.CompleteTask(id, nil)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))

	c.Tick()
	require.NoError(t, c.FailTask(id, "gave up"))
	err = c.FailTask(id, "again")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	stats := c.Stats()["a"]
	assert.Equal(t, 1, stats.FailedTasks)
}
