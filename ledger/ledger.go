package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/trustflow/internal/clock"
	"github.com/BaSui01/trustflow/internal/metrics"
	"github.com/BaSui01/trustflow/types"
)

// Ledger records agent sessions and the decisions made within them. The
// store is the source of truth: every mutation loads the current row,
// applies the transition on a copy, and writes through — a persistence
// failure therefore leaves no partial in-memory state behind.
type Ledger struct {
	store     Store
	clk       clock.Clock
	logger    *zap.Logger
	collector *metrics.Collector
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock injects a clock (tests use a fake).
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clk = c }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(l *Ledger) { l.collector = c }
}

// New creates a ledger backed by the given store.
func New(store Store, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		clk:    clock.NewReal(),
		logger: logger.With(zap.String("component", "ledger")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

// StartSession opens a new active session for an agent acting on behalf of a
// subject at the given trust level.
func (l *Ledger) StartSession(ctx context.Context, agentID, subjectID string, level types.TrustLevel) (*Session, error) {
	if agentID == "" || subjectID == "" {
		return nil, types.NewError(types.ErrValidation, "agentID and subjectID are required")
	}
	if !level.Valid() {
		return nil, types.NewErrorf(types.ErrValidation, "invalid trust level %d", level)
	}

	session := &Session{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		SubjectID:  subjectID,
		TrustLevel: level,
		State:      SessionActive,
		StartedAt:  l.clk.Now(),
	}
	if err := l.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	l.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("agent_id", agentID),
		zap.String("trust_level", level.String()),
	)
	return session.Clone(), nil
}

// transitionSession loads, validates, and persists one state change.
func (l *Ledger) transitionSession(ctx context.Context, sessionID string, to SessionState) (*Session, error) {
	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.State.canTransition(to) {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"session %s cannot go from %s to %s", sessionID, session.State, to)
	}

	session.State = to
	if to.Terminal() {
		session.EndedAt = l.clk.Now()
	}
	if err := l.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	l.logger.Info("session state changed",
		zap.String("session_id", sessionID),
		zap.String("state", string(to)),
	)
	return session, nil
}

// PauseSession suspends an active session.
func (l *Ledger) PauseSession(ctx context.Context, sessionID string) (*Session, error) {
	return l.transitionSession(ctx, sessionID, SessionPaused)
}

// ResumeSession reactivates a paused session.
func (l *Ledger) ResumeSession(ctx context.Context, sessionID string) (*Session, error) {
	return l.transitionSession(ctx, sessionID, SessionActive)
}

// CompleteSession ends a session normally.
func (l *Ledger) CompleteSession(ctx context.Context, sessionID string) (*Session, error) {
	return l.transitionSession(ctx, sessionID, SessionCompleted)
}

// TerminateSession ends a session abnormally, e.g. after a demotion.
func (l *Ledger) TerminateSession(ctx context.Context, sessionID string) (*Session, error) {
	return l.transitionSession(ctx, sessionID, SessionTerminated)
}

// GetSession returns the current session state.
func (l *Ledger) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return l.store.GetSession(ctx, sessionID)
}

// -----------------------------------------------------------------------------
// Decisions
// -----------------------------------------------------------------------------

// RecordDecision appends a decision to an active session's audit log.
func (l *Ledger) RecordDecision(ctx context.Context, sessionID, decisionType string, confidence float64) (*Decision, error) {
	if decisionType == "" {
		return nil, types.NewError(types.ErrValidation, "decision type is required")
	}
	confidence = types.Clamp01(confidence)

	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != SessionActive {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"session %s is %s, decisions require an active session", sessionID, session.State)
	}

	decision := &Decision{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		AgentID:    session.AgentID,
		Type:       decisionType,
		Confidence: confidence,
		Status:     DecisionPending,
		CreatedAt:  l.clk.Now(),
	}
	if err := l.store.AppendDecision(ctx, decision); err != nil {
		return nil, err
	}

	l.logger.Info("decision recorded",
		zap.String("decision_id", decision.ID),
		zap.String("session_id", sessionID),
		zap.String("type", decisionType),
		zap.Float64("confidence", confidence),
	)
	if l.collector != nil {
		l.collector.RecordDecision(string(DecisionPending))
	}
	return decision.Clone(), nil
}

// RecordFeedback applies human feedback to a pending decision, moving it to
// APPROVED or REJECTED.
func (l *Ledger) RecordFeedback(ctx context.Context, decisionID string, approved bool, note string) (*Decision, error) {
	decision, err := l.store.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if decision.Status != DecisionPending {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"decision %s is %s, feedback requires PENDING", decisionID, decision.Status)
	}

	if approved {
		decision.Status = DecisionApproved
	} else {
		decision.Status = DecisionRejected
	}
	decision.Note = note
	if err := l.store.SaveDecision(ctx, decision); err != nil {
		return nil, err
	}

	if l.collector != nil {
		l.collector.RecordDecision(string(decision.Status))
	}
	return decision, nil
}

// ExecuteDecision marks an approved decision as executed. succeeded=false
// records a FAILED execution instead.
func (l *Ledger) ExecuteDecision(ctx context.Context, decisionID string, succeeded bool) (*Decision, error) {
	decision, err := l.store.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if decision.Status != DecisionApproved {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"decision %s is %s, execution requires APPROVED", decisionID, decision.Status)
	}

	if succeeded {
		decision.Status = DecisionExecuted
	} else {
		decision.Status = DecisionFailed
	}
	decision.ExecutedAt = l.clk.Now()
	if err := l.store.SaveDecision(ctx, decision); err != nil {
		return nil, err
	}

	l.logger.Info("decision executed",
		zap.String("decision_id", decisionID),
		zap.String("status", string(decision.Status)),
	)
	if l.collector != nil {
		l.collector.RecordDecision(string(decision.Status))
	}
	return decision, nil
}

// CancelDecision withdraws a pending or approved decision.
func (l *Ledger) CancelDecision(ctx context.Context, decisionID, note string) (*Decision, error) {
	decision, err := l.store.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if decision.Status != DecisionPending && decision.Status != DecisionApproved {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"decision %s is %s, cannot cancel", decisionID, decision.Status)
	}

	decision.Status = DecisionCancelled
	decision.Note = note
	if err := l.store.SaveDecision(ctx, decision); err != nil {
		return nil, err
	}
	if l.collector != nil {
		l.collector.RecordDecision(string(DecisionCancelled))
	}
	return decision, nil
}

// ListDecisions returns a session's decisions, oldest first.
func (l *Ledger) ListDecisions(ctx context.Context, sessionID string) ([]*Decision, error) {
	return l.store.ListDecisionsBySession(ctx, sessionID)
}

// -----------------------------------------------------------------------------
// Aggregation
// -----------------------------------------------------------------------------

// ProcessFeedback aggregates an agent's decisions over the trailing window
// into the metrics the trust engine consumes. Accuracy counts executed
// decisions against all decided (non-pending, non-cancelled) ones.
func (l *Ledger) ProcessFeedback(ctx context.Context, agentID string, window time.Duration) (*DecisionMetrics, error) {
	now := l.clk.Now()
	since := now.Add(-window)

	decisions, err := l.store.ListDecisionsByAgent(ctx, agentID, since)
	if err != nil {
		return nil, err
	}

	m := &DecisionMetrics{
		WindowStart: since,
		WindowEnd:   now,
	}
	var confidenceSum float64
	var execTimeSum time.Duration
	var decided int
	for _, d := range decisions {
		m.Total++
		confidenceSum += d.Confidence
		switch d.Status {
		case DecisionExecuted:
			m.Executed++
			decided++
			execTimeSum += d.ExecutedAt.Sub(d.CreatedAt)
		case DecisionFailed:
			m.Failed++
			decided++
			execTimeSum += d.ExecutedAt.Sub(d.CreatedAt)
		case DecisionRejected:
			m.Rejected++
			decided++
		case DecisionApproved:
			decided++
		}
	}

	if m.Total > 0 {
		m.AvgConfidence = confidenceSum / float64(m.Total)
	}
	if n := m.Executed + m.Failed; n > 0 {
		m.AvgExecutionTime = execTimeSum / time.Duration(n)
	}
	if decided > 0 {
		m.AccuracyRate = float64(m.Executed) / float64(decided)
	}
	return m, nil
}
