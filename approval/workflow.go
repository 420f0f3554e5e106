package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/trustflow/config"
	"github.com/BaSui01/trustflow/internal/clock"
	"github.com/BaSui01/trustflow/internal/metrics"
	"github.com/BaSui01/trustflow/notify"
	"github.com/BaSui01/trustflow/types"
)

// pendingEntry tracks an in-flight request: the live request, its one-shot
// response channel, and the cancel signal for the expiry timer goroutine.
type pendingEntry struct {
	req        *Request
	responseCh chan *Response
	timerStop  chan struct{}
}

// Workflow manages the approval request lifecycle: creation with capacity
// and rate limits, human decisions, expiry timers, and waiter delivery.
// Decisions return a boolean outcome rather than an error when they lose a
// race: by the time a human clicks approve the request may already have
// timed out, and that is an answer, not a failure.
type Workflow struct {
	mu sync.Mutex

	cfg       config.ApprovalConfig
	clk       clock.Clock
	store     Store
	notifier  notify.Notifier
	collector *metrics.Collector
	logger    *zap.Logger
	limiter   *rate.Limiter

	pending map[string]*pendingEntry
}

// WorkflowOption customizes a Workflow.
type WorkflowOption func(*Workflow)

// WithClock injects a clock (tests use a fake).
func WithClock(c clock.Clock) WorkflowOption {
	return func(w *Workflow) { w.clk = c }
}

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) WorkflowOption {
	return func(w *Workflow) { w.notifier = n }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) WorkflowOption {
	return func(w *Workflow) { w.collector = c }
}

// NewWorkflow creates an approval workflow backed by the given store.
func NewWorkflow(cfg config.ApprovalConfig, store Store, logger *zap.Logger, opts ...WorkflowOption) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workflow{
		cfg:      cfg,
		clk:      clock.NewReal(),
		store:    store,
		notifier: notify.NopNotifier{},
		logger:   logger.With(zap.String("component", "approval_workflow")),
		pending:  make(map[string]*pendingEntry),
	}
	if cfg.CreateRateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.CreateRateLimit), int(cfg.CreateRateLimit)+1)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateRequest registers a new approval request and starts its expiry timer.
// A zero timeout uses the configured default.
func (w *Workflow) CreateRequest(ctx context.Context, subjectID, action string, params map[string]any, risk RiskLevel, timeout time.Duration) (*Request, error) {
	if subjectID == "" || action == "" {
		return nil, types.NewError(types.ErrValidation, "subjectID and action are required")
	}
	if w.limiter != nil && !w.limiter.Allow() {
		return nil, types.NewError(types.ErrCapacityExceeded, "approval request rate limit exceeded").WithRetryable(true)
	}
	if timeout <= 0 {
		timeout = w.cfg.DefaultTimeout
	}

	w.mu.Lock()
	if len(w.pending) >= w.cfg.MaxPendingRequests {
		w.mu.Unlock()
		return nil, types.NewErrorf(types.ErrCapacityExceeded,
			"pending approval limit reached (%d)", w.cfg.MaxPendingRequests).WithRetryable(true)
	}

	now := w.clk.Now()
	req := &Request{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		Action:    action,
		Params:    params,
		RiskLevel: risk,
		State:     StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(timeout),
	}
	entry := &pendingEntry{
		req:        req,
		responseCh: make(chan *Response, 1),
		timerStop:  make(chan struct{}),
	}
	w.pending[req.ID] = entry
	pendingCount := len(w.pending)
	w.mu.Unlock()

	if err := w.store.Save(ctx, req); err != nil {
		w.mu.Lock()
		delete(w.pending, req.ID)
		w.mu.Unlock()
		return nil, types.NewError(types.ErrPersistence, "failed to save approval request").WithCause(err)
	}

	go w.expiryTimer(req.ID, timeout, entry.timerStop)

	w.logger.Info("approval requested",
		zap.String("request_id", req.ID),
		zap.String("subject_id", subjectID),
		zap.String("action", action),
		zap.String("risk_level", string(risk)),
		zap.Time("expires_at", req.ExpiresAt),
	)
	if w.collector != nil {
		w.collector.SetApprovalsPending(pendingCount)
	}
	w.notifier.Notify(&notify.ApprovalAlert{
		RequestID:  req.ID,
		SubjectID:  subjectID,
		Action:     action,
		RiskLevel:  string(risk),
		ExpiresAt:  req.ExpiresAt,
		Timestamp_: now,
	})

	return req.Clone(), nil
}

// expiryTimer flips the request to TIMEOUT when its deadline passes, unless
// a decision lands first.
func (w *Workflow) expiryTimer(requestID string, timeout time.Duration, stop <-chan struct{}) {
	select {
	case <-w.clk.After(timeout):
		w.expire(requestID)
	case <-stop:
	}
}

// expire moves a still-pending request to TIMEOUT.
func (w *Workflow) expire(requestID string) {
	w.mu.Lock()
	entry, ok := w.pending[requestID]
	if !ok || entry.req.State != StatePending {
		w.mu.Unlock()
		return
	}
	w.finalizeLocked(entry, StateTimeout, "", "expired without a decision")
	w.mu.Unlock()

	w.logger.Warn("approval request timed out",
		zap.String("request_id", requestID),
	)
}

// finalizeLocked applies the terminal transition: it stamps the request,
// removes it from the pending set, stops the timer, delivers the one-shot
// response, and writes through to the store. Caller must hold w.mu.
func (w *Workflow) finalizeLocked(entry *pendingEntry, terminal State, decidedBy, note string) {
	req := entry.req
	now := w.clk.Now()
	req.State = terminal
	req.DecidedAt = now
	req.DecidedBy = decidedBy
	req.DecisionNote = note

	delete(w.pending, req.ID)
	close(entry.timerStop)

	resp := &Response{
		RequestID: req.ID,
		Approved:  terminal == StateApproved,
		State:     terminal,
		DecidedBy: decidedBy,
		Note:      note,
		DecidedAt: now,
	}
	select {
	case entry.responseCh <- resp:
	default:
	}

	if err := w.store.Save(context.Background(), req); err != nil {
		w.logger.Error("failed to persist approval decision",
			zap.String("request_id", req.ID),
			zap.String("state", string(terminal)),
			zap.Error(err),
		)
	}

	if w.collector != nil {
		w.collector.RecordApprovalOutcome(string(terminal), now.Sub(req.CreatedAt))
		w.collector.SetApprovalsPending(len(w.pending))
	}
}

// decide applies a human decision. The boolean reports whether the decision
// took effect: false means the request had already reached a terminal state
// (including expiring just before the decision arrived).
func (w *Workflow) decide(requestID string, terminal State, decidedBy, note string) (bool, error) {
	if decidedBy == "" {
		return false, types.NewError(types.ErrValidation, "decidedBy is required")
	}

	w.mu.Lock()
	entry, ok := w.pending[requestID]
	if !ok {
		w.mu.Unlock()
		// already decided requests are an outcome, unknown ones an error
		if _, err := w.store.Get(context.Background(), requestID); err != nil {
			return false, err
		}
		return false, nil
	}

	// the timer may not have fired yet; expiry still wins the race
	if w.clk.Now().After(entry.req.ExpiresAt) {
		w.finalizeLocked(entry, StateTimeout, "", "expired without a decision")
		w.mu.Unlock()
		w.logger.Warn("decision arrived after expiry",
			zap.String("request_id", requestID),
			zap.String("decided_by", decidedBy),
		)
		return false, nil
	}

	w.finalizeLocked(entry, terminal, decidedBy, note)
	w.mu.Unlock()

	w.logger.Info("approval decision applied",
		zap.String("request_id", requestID),
		zap.String("state", string(terminal)),
		zap.String("decided_by", decidedBy),
	)
	return true, nil
}

// Approve marks the request APPROVED. Returns false when the request already
// reached a terminal state.
func (w *Workflow) Approve(_ context.Context, requestID, decidedBy, note string) (bool, error) {
	return w.decide(requestID, StateApproved, decidedBy, note)
}

// Reject marks the request REJECTED.
func (w *Workflow) Reject(_ context.Context, requestID, decidedBy, note string) (bool, error) {
	return w.decide(requestID, StateRejected, decidedBy, note)
}

// Cancel marks the request CANCELLED, typically by the requesting subject.
func (w *Workflow) Cancel(_ context.Context, requestID, cancelledBy, note string) (bool, error) {
	return w.decide(requestID, StateCancelled, cancelledBy, note)
}

// BulkApprove applies one decision to many requests and reports per-request
// whether it took effect. Unknown IDs report false.
func (w *Workflow) BulkApprove(ctx context.Context, requestIDs []string, decidedBy, note string) map[string]bool {
	out := make(map[string]bool, len(requestIDs))
	for _, id := range requestIDs {
		ok, err := w.Approve(ctx, id, decidedBy, note)
		if err != nil {
			ok = false
		}
		out[id] = ok
	}
	return out
}

// WaitForApproval blocks until the request reaches a terminal state or the
// context is cancelled. Requests already decided return immediately.
func (w *Workflow) WaitForApproval(ctx context.Context, requestID string) (*Response, error) {
	w.mu.Lock()
	entry, ok := w.pending[requestID]
	w.mu.Unlock()

	if !ok {
		req, err := w.store.Get(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if !req.State.Terminal() {
			return nil, types.NewErrorf(types.ErrInternal,
				"approval request %s is pending but not tracked", requestID)
		}
		return &Response{
			RequestID: req.ID,
			Approved:  req.State == StateApproved,
			State:     req.State,
			DecidedBy: req.DecidedBy,
			Note:      req.DecisionNote,
			DecidedAt: req.DecidedAt,
		}, nil
	}

	select {
	case resp := <-entry.responseCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the current state of a request.
func (w *Workflow) Get(ctx context.Context, requestID string) (*Request, error) {
	w.mu.Lock()
	if entry, ok := w.pending[requestID]; ok {
		req := entry.req.Clone()
		w.mu.Unlock()
		return req, nil
	}
	w.mu.Unlock()
	return w.store.Get(ctx, requestID)
}

// ListPending returns all requests awaiting a decision, oldest first.
func (w *Workflow) ListPending(ctx context.Context) ([]*Request, error) {
	return w.store.ListPending(ctx)
}

// PendingCount returns how many requests are currently awaiting a decision.
func (w *Workflow) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
