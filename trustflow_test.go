package trustflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/trustflow/approval"
	"github.com/BaSui01/trustflow/config"
	"github.com/BaSui01/trustflow/types"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	// promauto registers into the process-global registry; keep it off when
	// tests build multiple systems.
	cfg.Metrics.Enabled = false
	return cfg
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	sys, err := New(WithConfig(testConfig()))
	require.NoError(t, err)
	assert.NotNil(t, sys.Trust)
	assert.NotNil(t, sys.Approval)
	assert.NotNil(t, sys.Coordinator)
	assert.NotNil(t, sys.Ledger)
	assert.NotNil(t, sys.Events)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Approval.MaxPendingRequests = 0
	_, err := New(WithConfig(cfg))
	assert.Error(t, err)
}

func TestResolveApproval_FeedsTrustRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys, err := New(WithConfig(testConfig()))
	require.NoError(t, err)

	sys.Trust.RegisterSubject("agent-1")
	req, err := sys.Approval.CreateRequest(ctx, "agent-1", "deploy", nil, approval.RiskHigh, time.Hour)
	require.NoError(t, err)

	applied, err := sys.ResolveApproval(ctx, req.ID, "reviewer", "ok", true)
	require.NoError(t, err)
	assert.True(t, applied)

	// the approval decision now counts toward the subject's score inputs
	score, err := sys.Trust.CalculateTrustScore("agent-1")
	require.NoError(t, err)
	assert.Greater(t, score.Overall, 0.0)

	// replays against the decided request are no-ops
	applied, err = sys.ResolveApproval(ctx, req.ID, "reviewer", "again", false)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRecordDecisionOutcome(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys, err := New(WithConfig(testConfig()))
	require.NoError(t, err)

	session, err := sys.Ledger.StartSession(ctx, "agent-1", "user-1", types.TrustLevelAssisted)
	require.NoError(t, err)
	decision, err := sys.Ledger.RecordDecision(ctx, session.ID, "merge_pr", 0.9)
	require.NoError(t, err)
	_, err = sys.Ledger.RecordFeedback(ctx, decision.ID, true, "lgtm")
	require.NoError(t, err)

	require.NoError(t, sys.RecordDecisionOutcome(ctx, "agent-1", decision.ID, true))

	score, err := sys.Trust.CalculateTrustScore("agent-1")
	require.NoError(t, err)
	assert.Greater(t, score.SuccessRate, 0.0)

	// only approved decisions can be executed
	err = sys.RecordDecisionOutcome(ctx, "agent-1", decision.ID, true)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	sys, err := New(WithConfig(testConfig()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys.Start(ctx)
	require.NoError(t, sys.Stop())
}
