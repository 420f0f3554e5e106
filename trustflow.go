// Package trustflow provides a top-level convenience entry point that wires
// the trust engine, approval workflow, task coordinator, and decision ledger
// into one system with shared eventing and metrics.
//
// Usage:
//
//	import "github.com/BaSui01/trustflow"
//
//	sys, err := trustflow.New()
//	sys, err := trustflow.New(trustflow.WithConfig(cfg), trustflow.WithLogger(logger))
//
// Components remain directly accessible (sys.Trust, sys.Approval,
// sys.Coordinator, sys.Ledger) for callers that need the full APIs.
package trustflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/trustflow/approval"
	"github.com/BaSui01/trustflow/config"
	"github.com/BaSui01/trustflow/coordinator"
	"github.com/BaSui01/trustflow/internal/metrics"
	"github.com/BaSui01/trustflow/ledger"
	"github.com/BaSui01/trustflow/notify"
	"github.com/BaSui01/trustflow/trust"
)

// System bundles the four core components behind one constructor.
type System struct {
	Config      *config.Config
	Logger      *zap.Logger
	Events      *notify.Bus
	Trust       *trust.Engine
	Approval    *approval.Workflow
	Coordinator *coordinator.Coordinator
	Ledger      *ledger.Ledger

	collector *metrics.Collector
}

// Option configures the system created by [New].
type Option func(*options)

type options struct {
	cfg           *config.Config
	logger        *zap.Logger
	approvalStore approval.Store
	ledgerStore   ledger.Store
}

// WithConfig sets the full configuration. Defaults to [config.DefaultConfig].
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithApprovalStore overrides the approval request store. Defaults to an
// in-memory store; pass [approval.NewRedisStore] for shared persistence.
func WithApprovalStore(s approval.Store) Option {
	return func(o *options) { o.approvalStore = s }
}

// WithLedgerStore overrides the session/decision store. Defaults to an
// in-memory store; pass [ledger.NewGormStore] for durable persistence.
func WithLedgerStore(s ledger.Store) Option {
	return func(o *options) { o.ledgerStore = s }
}

// New creates a fully wired system. All components share one event bus and,
// when metrics are enabled, one Prometheus collector.
func New(opts ...Option) (*System, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	bus := notify.NewBus(64, logger)

	approvalStore := o.approvalStore
	if approvalStore == nil {
		approvalStore = approval.NewMemoryStore()
	}
	ledgerStore := o.ledgerStore
	if ledgerStore == nil {
		ledgerStore = ledger.NewMemoryStore()
	}

	sys := &System{
		Config:    cfg,
		Logger:    logger,
		Events:    bus,
		collector: collector,
	}

	sys.Trust = trust.NewEngine(cfg.Trust, logger,
		trust.WithNotifier(bus),
		trust.WithCollector(collector),
	)
	sys.Approval = approval.NewWorkflow(cfg.Approval, approvalStore, logger,
		approval.WithNotifier(bus),
		approval.WithCollector(collector),
	)
	sys.Coordinator = coordinator.New(cfg.Coordinator, logger,
		coordinator.WithNotifier(bus),
		coordinator.WithCollector(collector),
	)
	sys.Ledger = ledger.New(ledgerStore, logger,
		ledger.WithCollector(collector),
	)

	return sys, nil
}

// Start launches the coordinator's scheduling loop. It returns immediately;
// the loop runs until Stop or context cancellation.
func (s *System) Start(ctx context.Context) {
	s.Coordinator.Start(ctx)
}

// Stop shuts down the scheduling loop.
func (s *System) Stop() error {
	return s.Coordinator.Stop()
}

// ResolveApproval applies a human decision to a pending request and feeds the
// outcome into the requesting subject's behavioral record. The boolean
// reports whether the decision was applied; a request that already reached a
// terminal state is left untouched.
func (s *System) ResolveApproval(ctx context.Context, requestID, decidedBy, note string, approved bool) (bool, error) {
	var applied bool
	var err error
	if approved {
		applied, err = s.Approval.Approve(ctx, requestID, decidedBy, note)
	} else {
		applied, err = s.Approval.Reject(ctx, requestID, decidedBy, note)
	}
	if err != nil || !applied {
		return applied, err
	}

	req, err := s.Approval.Get(ctx, requestID)
	if err != nil {
		return true, err
	}
	return true, s.Trust.TrackAction(req.SubjectID, trust.Action{
		Type:          req.Action,
		Approved:      approved,
		ExecutionTime: req.DecidedAt.Sub(req.CreatedAt),
	})
}

// RecordDecisionOutcome stamps an approved ledger decision as executed (or
// failed) and feeds the outcome into the subject's behavioral record, closing
// the loop between the audit trail and trust scoring.
func (s *System) RecordDecisionOutcome(ctx context.Context, subjectID, decisionID string, succeeded bool) error {
	decision, err := s.Ledger.ExecuteDecision(ctx, decisionID, succeeded)
	if err != nil {
		return err
	}

	ok := succeeded
	return s.Trust.TrackAction(subjectID, trust.Action{
		Type:          decision.Type,
		Approved:      true,
		Successful:    &ok,
		ExecutionTime: decision.ExecutedAt.Sub(decision.CreatedAt),
	})
}
