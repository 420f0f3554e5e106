package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/trustflow/types"
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewGormStore(db)
	require.NoError(t, err)
	return store
}

func TestGormStore_SessionRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newGormStore(t)

	s := sampleSession("sess-1")
	require.NoError(t, store.SaveSession(ctx, s))
	assert.Equal(t, int64(1), s.Version)

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, s.AgentID, got.AgentID)
	assert.Equal(t, s.TrustLevel, got.TrustLevel)
	assert.Equal(t, SessionActive, got.State)
	assert.True(t, got.EndedAt.IsZero())
	assert.True(t, got.StartedAt.Equal(storeStart))

	s.State = SessionCompleted
	s.EndedAt = storeStart.Add(time.Hour)
	require.NoError(t, store.SaveSession(ctx, s))

	got, err = store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, got.State)
	assert.True(t, got.EndedAt.Equal(storeStart.Add(time.Hour)))
	assert.Equal(t, int64(2), got.Version)
}

func TestGormStore_SessionVersionConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newGormStore(t)

	s := sampleSession("sess-1")
	require.NoError(t, store.SaveSession(ctx, s))

	stale, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)

	s.State = SessionPaused
	require.NoError(t, store.SaveSession(ctx, s))

	stale.State = SessionTerminated
	err = store.SaveSession(ctx, stale)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, got.State)
}

func TestGormStore_SessionNotFound(t *testing.T) {
	t.Parallel()

	_, err := newGormStore(t).GetSession(context.Background(), "ghost")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestGormStore_DecisionRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newGormStore(t)

	d := sampleDecision("d-1", "agent-1", storeStart)
	require.NoError(t, store.AppendDecision(ctx, d))
	assert.Equal(t, int64(1), d.Version)

	d.Status = DecisionExecuted
	d.ExecutedAt = storeStart.Add(5 * time.Minute)
	require.NoError(t, store.SaveDecision(ctx, d))

	got, err := store.GetDecision(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionExecuted, got.Status)
	assert.True(t, got.ExecutedAt.Equal(storeStart.Add(5*time.Minute)))
	assert.Equal(t, 0.8, got.Confidence)
}

func TestGormStore_SaveDecisionErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newGormStore(t)

	ghost := sampleDecision("ghost", "agent-1", storeStart)
	ghost.Version = 1
	err := store.SaveDecision(ctx, ghost)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	d := sampleDecision("d-1", "agent-1", storeStart)
	require.NoError(t, store.AppendDecision(ctx, d))
	d.Status = DecisionApproved
	require.NoError(t, store.SaveDecision(ctx, d))

	stale := sampleDecision("d-1", "agent-1", storeStart)
	stale.Version = 1
	err = store.SaveDecision(ctx, stale)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
}

func TestGormStore_ListDecisions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newGormStore(t)

	require.NoError(t, store.AppendDecision(ctx, sampleDecision("d-2", "agent-1", storeStart.Add(time.Minute))))
	require.NoError(t, store.AppendDecision(ctx, sampleDecision("d-1", "agent-1", storeStart)))
	require.NoError(t, store.AppendDecision(ctx, sampleDecision("d-3", "agent-2", storeStart.Add(2*time.Minute))))

	bySession, err := store.ListDecisionsBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, bySession, 3)
	assert.Equal(t, "d-1", bySession[0].ID)

	byAgent, err := store.ListDecisionsByAgent(ctx, "agent-1", storeStart.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	assert.Equal(t, "d-2", byAgent[0].ID)
}

func TestGormStore_BacksLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newGormStore(t)
	l := New(store, nil)

	s, err := l.StartSession(ctx, "agent-1", "user-1", types.TrustLevelSupervised)
	require.NoError(t, err)
	d, err := l.RecordDecision(ctx, s.ID, "deploy", 0.7)
	require.NoError(t, err)
	_, err = l.RecordFeedback(ctx, d.ID, true, "ship it")
	require.NoError(t, err)
	executed, err := l.ExecuteDecision(ctx, d.ID, true)
	require.NoError(t, err)
	assert.Equal(t, DecisionExecuted, executed.Status)

	_, err = l.CompleteSession(ctx, s.ID)
	require.NoError(t, err)
	got, err := l.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, got.State)
}
