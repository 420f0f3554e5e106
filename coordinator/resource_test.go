package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/trustflow/types"
)

func TestResolveConflict_Validation(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	_, err := c.ResolveConflict("", []string{"a"}, StrategyPriority)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))

	_, err = c.ResolveConflict("db_lock", nil, StrategyPriority)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

// Priority strategy awards the resource to the agent running the
// highest-priority task, and the holder stays stable on repeat calls.
func TestResolveConflict_PriorityThenStability(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("agentA", nil, 1.0))
	require.NoError(t, c.RegisterAgent("agentB", nil, 1.0))

	high := mustSubmit(t, c, TaskSpec{Name: "urgent", Priority: 5, Strategy: StrategyLoadBalance})
	_, err := c.AssignTask(high, StrategyFirstCome)
	require.NoError(t, err)

	low := mustSubmit(t, c, TaskSpec{Name: "routine", Priority: 1})
	_, err = c.AssignTask(low, StrategyLoadBalance)
	require.NoError(t, err)

	// agentA holds the priority-5 task, agentB the priority-1 task
	winner, err := c.ResolveConflict("db_lock", []string{"agentA", "agentB"}, StrategyPriority)
	require.NoError(t, err)
	assert.Equal(t, "agentA", winner)

	// holder wins again without re-evaluating priorities
	require.NoError(t, c.CompleteTask(high, nil))
	winner, err = c.ResolveConflict("db_lock", []string{"agentA", "agentB"}, StrategyPriority)
	require.NoError(t, err)
	assert.Equal(t, "agentA", winner)
}

func TestResolveConflict_DefaultStrategyPicksFirstCandidate(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))
	require.NoError(t, c.RegisterAgent("b", nil, 1.0))

	winner, err := c.ResolveConflict("cache_lock", []string{"b", "a"}, StrategyFirstCome)
	require.NoError(t, err)
	assert.Equal(t, "b", winner)
}

func TestResolveConflict_HeldByOutsider(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))
	require.NoError(t, c.RegisterAgent("b", nil, 1.0))

	_, err := c.ResolveConflict("db_lock", []string{"a"}, StrategyFirstCome)
	require.NoError(t, err)

	_, err = c.ResolveConflict("db_lock", []string{"b"}, StrategyFirstCome)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
}

func TestReleaseResource_HolderOnly(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	_, err := c.ResolveConflict("db_lock", []string{"a"}, StrategyFirstCome)
	require.NoError(t, err)

	assert.False(t, c.ReleaseResource("db_lock", "b"))
	assert.False(t, c.ReleaseResource("other_lock", "a"))
	assert.True(t, c.ReleaseResource("db_lock", "a"))

	_, held := c.ResourceHolder("db_lock")
	assert.False(t, held)
}

func TestUnregisterAgent_ReleasesHeldResources(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	require.NoError(t, c.RegisterAgent("a", nil, 1.0))

	_, err := c.ResolveConflict("db_lock", []string{"a"}, StrategyFirstCome)
	require.NoError(t, err)

	require.NoError(t, c.UnregisterAgent("a"))
	_, held := c.ResourceHolder("db_lock")
	assert.False(t, held)
}
